package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"content-gen-api/internal/config"
	wfmodel "content-gen-api/internal/workflow/model"
	wfnode "content-gen-api/internal/workflow/node"
	workflowport "content-gen-api/internal/workflow/port"
	"content-gen-api/pkg/logger"
	"content-gen-api/pkg/metrics"
	"content-gen-api/pkg/retry"
)

// OutlineSource 产出大纲的降级层级
type OutlineSource string

const (
	OutlineSourceFull       OutlineSource = "full"
	OutlineSourceSimplified OutlineSource = "simplified"
	OutlineSourceFallback   OutlineSource = "fallback"
)

// OutlineResult 大纲阶段结果
type OutlineResult struct {
	Outline  *wfmodel.Outline
	Source   OutlineSource
	Repaired bool
	Usage    []wfmodel.LLMUsageMeta
	Duration time.Duration
}

// tierOutcome 单个层级的结果：Outline 非空为成功，否则 Escalation 说明升级原因
type tierOutcome struct {
	Outline    *wfmodel.Outline
	Repaired   bool
	Escalation error
}

type outlineTier struct {
	source     OutlineSource
	simplified bool
	maxRetries int
	maxTokens  int
}

// OutlineGenerator 大纲生成：完整提示词 → 精简提示词 → 确定性兜底。
// 只有致命错误（鉴权失败、调用方取消）会返回给调用方。
type OutlineGenerator struct {
	provider     workflowport.OutlineProvider
	providerName string
	cfg          config.OutlineGenerationConfig
}

// NewOutlineGenerator 创建大纲生成器
func NewOutlineGenerator(provider workflowport.OutlineProvider, providerName string, cfg config.OutlineGenerationConfig) *OutlineGenerator {
	return &OutlineGenerator{provider: provider, providerName: providerName, cfg: cfg}
}

// Generate 依次尝试各层级，总能返回结构合法的大纲
func (g *OutlineGenerator) Generate(ctx context.Context, req *GenerationRequest) (*OutlineResult, error) {
	started := time.Now()
	res := &OutlineResult{}

	tiers := []outlineTier{
		{source: OutlineSourceFull, maxRetries: g.cfg.MaxRetries, maxTokens: g.cfg.MaxTokens},
		{source: OutlineSourceSimplified, simplified: true, maxRetries: g.cfg.SimplifiedMaxRetries, maxTokens: g.cfg.SimplifiedMaxTokens},
	}
	for _, tier := range tiers {
		outcome, err := g.attempt(ctx, req, tier, res)
		if err != nil {
			metrics.OutlineTierTotal.WithLabelValues(string(tier.source), "fatal").Inc()
			return nil, err
		}
		if outcome.Outline != nil {
			metrics.OutlineTierTotal.WithLabelValues(string(tier.source), "success").Inc()
			res.Outline = outcome.Outline
			res.Source = tier.source
			res.Repaired = outcome.Repaired
			res.Duration = time.Since(started)
			return res, nil
		}
		metrics.OutlineTierTotal.WithLabelValues(string(tier.source), "escalated").Inc()
		logger.Warn(ctx, "outline tier escalated",
			"tier", string(tier.source),
			"class", retry.ClassOf(outcome.Escalation).String(),
			"error", outcome.Escalation.Error(),
		)
	}

	metrics.OutlineTierTotal.WithLabelValues(string(OutlineSourceFallback), "success").Inc()
	res.Outline = FallbackOutline(req)
	res.Source = OutlineSourceFallback
	res.Duration = time.Since(started)
	return res, nil
}

// attempt 在单个层级内按重试策略调用模型并解析；致命错误通过 error 返回
func (g *OutlineGenerator) attempt(ctx context.Context, req *GenerationRequest, tier outlineTier, res *OutlineResult) (tierOutcome, error) {
	if g.provider == nil {
		return tierOutcome{Escalation: errors.New("outline provider not configured")}, nil
	}

	in := &wfmodel.OutlineGenerateInput{
		Provider:    g.providerName,
		Simplified:  tier.simplified,
		Brief:       req.Brief(),
		Temperature: float32Ptr(g.cfg.Temperature),
		TopP:        float32Ptr(g.cfg.TopP),
		MaxTokens:   intPtr(tier.maxTokens),
		JSONMode:    true,
	}

	policy := retry.Policy{
		MaxRetries: tier.maxRetries,
		BaseDelay:  g.cfg.BaseDelay,
		MaxDelay:   g.cfg.MaxDelay,
		Jitter:     g.cfg.Jitter,
	}
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		metrics.RetryAttemptsTotal.WithLabelValues("outline_" + string(tier.source)).Inc()
		logger.Warn(ctx, "retrying outline generation",
			"tier", string(tier.source),
			"attempt", attempt,
			"delay_ms", delay.Milliseconds(),
			"class", wfnode.ClassifyLLMError(err).String(),
			"error", err.Error(),
		)
	}

	type parsed struct {
		outline  *wfmodel.Outline
		repaired bool
	}
	out, err := retry.Do(ctx, policy, wfnode.ClassifyLLMError, func(ctx context.Context) (parsed, error) {
		gen, err := g.provider.GenerateOutline(ctx, in)
		if err != nil {
			return parsed{}, err
		}
		res.Usage = append(res.Usage, gen.Meta)

		pr, err := wfnode.ParseStructured(gen.Text)
		if err != nil {
			return parsed{}, err
		}
		outline, err := wfmodel.DecodeOutline([]byte(pr.JSON))
		if err == nil {
			err = outline.Validate()
		}
		if err != nil {
			// 修复后的 JSON 不符合大纲结构，同样视为输出格式错误
			return parsed{}, &wfnode.MalformedOutputError{Reason: err.Error()}
		}
		return parsed{outline: outline, repaired: pr.Repaired()}, nil
	})
	if err == nil {
		return tierOutcome{Outline: out.outline, Repaired: out.repaired}, nil
	}
	if retry.ClassOf(err) == retry.Fatal {
		return tierOutcome{}, fmt.Errorf("outline generation aborted: %w", err)
	}
	return tierOutcome{Escalation: err}, nil
}

func float32Ptr(f float64) *float32 {
	if f <= 0 {
		return nil
	}
	v := float32(f)
	return &v
}

func intPtr(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}
