package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"content-gen-api/internal/config"
	wfmodel "content-gen-api/internal/workflow/model"
	wfnode "content-gen-api/internal/workflow/node"
	workflowport "content-gen-api/internal/workflow/port"
	"content-gen-api/pkg/logger"
	"content-gen-api/pkg/metrics"
	"content-gen-api/pkg/retry"
)

// ShortContentError 正文缺失或过短，视为截断或拒答，可重试
type ShortContentError struct {
	Length int
	Min    int
}

func (e *ShortContentError) Error() string {
	return fmt.Sprintf("content too short: %d < %d characters", e.Length, e.Min)
}

// OutputShape 实现 wfnode.OutputShapeError
func (e *ShortContentError) OutputShape() {}

// ContentResult 正文阶段结果
type ContentResult struct {
	Text     string
	Usage    []wfmodel.LLMUsageMeta
	Attempts int
	Duration time.Duration
}

// ContentGenerator 依据大纲生成正文，带独立的重试预算
type ContentGenerator struct {
	provider     workflowport.ContentProvider
	providerName string
	cfg          config.ContentGenerationConfig
}

// NewContentGenerator 创建正文生成器
func NewContentGenerator(provider workflowport.ContentProvider, providerName string, cfg config.ContentGenerationConfig) *ContentGenerator {
	return &ContentGenerator{provider: provider, providerName: providerName, cfg: cfg}
}

// Generate 按配置的重试次数生成正文
func (g *ContentGenerator) Generate(ctx context.Context, outline *wfmodel.Outline, req *GenerationRequest) (*ContentResult, error) {
	return g.generate(ctx, outline, req, g.cfg.MaxRetries)
}

// GenerateOnce 只调用一次，不重试
func (g *ContentGenerator) GenerateOnce(ctx context.Context, outline *wfmodel.Outline, req *GenerationRequest) (*ContentResult, error) {
	return g.generate(ctx, outline, req, 0)
}

func (g *ContentGenerator) generate(ctx context.Context, outline *wfmodel.Outline, req *GenerationRequest, maxRetries int) (*ContentResult, error) {
	if g.provider == nil {
		return nil, errors.New("content provider not configured")
	}
	outlineJSON, err := json.Marshal(outline)
	if err != nil {
		return nil, fmt.Errorf("failed to encode outline: %w", err)
	}

	in := &wfmodel.ContentGenerateInput{
		Provider:         g.providerName,
		Brief:            req.Brief(),
		OutlineJSON:      string(outlineJSON),
		Temperature:      float32Ptr(g.cfg.Temperature),
		MaxTokens:        intPtr(g.maxTokens(req.WordCount)),
		FrequencyPenalty: float32Ptr(g.cfg.FrequencyPenalty),
		PresencePenalty:  float32Ptr(g.cfg.PresencePenalty),
	}

	policy := retry.Policy{
		MaxRetries: maxRetries,
		BaseDelay:  g.cfg.BaseDelay,
		MaxDelay:   g.cfg.MaxDelay,
		Jitter:     g.cfg.Jitter,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			metrics.RetryAttemptsTotal.WithLabelValues("content").Inc()
			logger.Warn(ctx, "retrying content generation",
				"attempt", attempt,
				"delay_ms", delay.Milliseconds(),
				"error", err.Error(),
			)
		},
	}

	started := time.Now()
	res := &ContentResult{}
	text, err := retry.Do(ctx, policy, wfnode.ClassifyLLMError, func(ctx context.Context) (string, error) {
		res.Attempts++
		gen, err := g.provider.GenerateContent(ctx, in)
		if err != nil {
			return "", err
		}
		res.Usage = append(res.Usage, gen.Meta)

		text := strings.TrimSpace(gen.Text)
		if n := utf8.RuneCountInString(text); n < g.cfg.MinLength {
			return "", &ShortContentError{Length: n, Min: g.cfg.MinLength}
		}
		return text, nil
	})
	res.Duration = time.Since(started)
	if err != nil {
		return res, err
	}
	res.Text = text
	return res, nil
}

// maxTokens 按目标字数估算 token 上限
func (g *ContentGenerator) maxTokens(wordCount int) int {
	perWord := g.cfg.TokensPerWord
	if perWord <= 0 {
		perWord = 2
	}
	n := int(math.Ceil(float64(wordCount) * perWord))
	if g.cfg.MaxTokensCap > 0 && n > g.cfg.MaxTokensCap {
		return g.cfg.MaxTokensCap
	}
	return n
}
