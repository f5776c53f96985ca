package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"content-gen-api/internal/config"
	llmctx "content-gen-api/internal/domain/service"
	wfmodel "content-gen-api/internal/workflow/model"
	wfnode "content-gen-api/internal/workflow/node"
	workflowport "content-gen-api/internal/workflow/port"
	workflowprompt "content-gen-api/internal/workflow/prompt"
	"content-gen-api/pkg/metrics"
	"content-gen-api/pkg/tracer"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicContentProvider 使用 Anthropic Messages API 生成正文。
// 该接口不支持 frequency/presence penalty，相关参数被忽略。
type AnthropicContentProvider struct {
	name     string
	client   anthropic.Client
	model    string
	prompts  *workflowprompt.Registry
	defaults config.ProviderConfig
}

var _ workflowport.ContentProvider = (*AnthropicContentProvider)(nil)

// NewAnthropicContentProvider 创建 Anthropic 正文提供商；重试由调用方的策略负责
func NewAnthropicContentProvider(name string, cfg config.ProviderConfig) *AnthropicContentProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(base, "/")))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &AnthropicContentProvider{
		name:     name,
		client:   anthropic.NewClient(opts...),
		model:    cfg.Model,
		prompts:  workflowprompt.NewRegistry(),
		defaults: cfg,
	}
}

// GenerateContent 实现 port.ContentProvider
func (p *AnthropicContentProvider) GenerateContent(ctx context.Context, in *wfmodel.ContentGenerateInput) (*wfmodel.GenerateOutput, error) {
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	ctx = llmctx.WithWorkflowProvider(ctx, llmctx.WorkflowContent, p.name)

	vars := in.Brief.Vars()
	vars["outline"] = in.OutlineJSON
	msgs, err := p.prompts.Format(ctx, workflowprompt.PromptContentV1, vars)
	if err != nil {
		return nil, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.pickModel(in)),
		MaxTokens: int64(p.pickMaxTokens(in)),
	}
	for _, m := range msgs {
		switch m.Role {
		case "system":
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if in.Temperature != nil {
		params.Temperature = anthropic.Float(float64(*in.Temperature))
	} else if p.defaults.Temperature > 0 {
		params.Temperature = anthropic.Float(p.defaults.Temperature)
	}

	modelName := string(params.Model)
	ctx, span := tracer.Start(ctx, "llm.generate", trace.WithAttributes(
		attribute.String("llm.workflow", llmctx.WorkflowContent),
		attribute.String("llm.provider", p.name),
		attribute.String("llm.model", modelName),
	))
	defer span.End()

	started := time.Now()
	resp, err := p.client.Messages.New(ctx, params)
	elapsed := time.Since(started)
	metrics.LLMCallDuration.WithLabelValues(llmctx.WorkflowContent, p.name, modelName).Observe(elapsed.Seconds())
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues(llmctx.WorkflowContent, p.name, modelName, "error").Inc()
		err = p.wrapError(err)
		tracer.Fail(span, err)
		return nil, err
	}
	metrics.LLMCallTotal.WithLabelValues(llmctx.WorkflowContent, p.name, modelName, "success").Inc()

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	promptTokens := int(resp.Usage.InputTokens)
	completionTokens := int(resp.Usage.OutputTokens)
	metrics.LLMTokensUsed.WithLabelValues(llmctx.WorkflowContent, p.name, modelName, "prompt").Add(float64(promptTokens))
	metrics.LLMTokensUsed.WithLabelValues(llmctx.WorkflowContent, p.name, modelName, "completion").Add(float64(completionTokens))
	span.SetAttributes(
		attribute.Int("llm.prompt_tokens", promptTokens),
		attribute.Int("llm.completion_tokens", completionTokens),
	)

	return &wfmodel.GenerateOutput{
		Text: text.String(),
		Meta: wfmodel.LLMUsageMeta{
			Workflow:         llmctx.WorkflowContent,
			Provider:         p.name,
			Model:            modelName,
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			Duration:         elapsed,
			GeneratedAt:      started.Add(elapsed),
		},
	}, nil
}

func (p *AnthropicContentProvider) pickModel(in *wfmodel.ContentGenerateInput) string {
	if m := strings.TrimSpace(in.Model); m != "" {
		return m
	}
	return p.model
}

func (p *AnthropicContentProvider) pickMaxTokens(in *wfmodel.ContentGenerateInput) int {
	switch {
	case in.MaxTokens != nil && *in.MaxTokens > 0:
		return *in.MaxTokens
	case p.defaults.MaxTokens > 0:
		return p.defaults.MaxTokens
	default:
		return defaultAnthropicMaxTokens
	}
}

// wrapError 附带状态码，供重试分级使用
func (p *AnthropicContentProvider) wrapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &wfnode.ProviderError{Provider: p.name, StatusCode: apiErr.StatusCode, Err: err}
	}
	return &wfnode.ProviderError{Provider: p.name, Err: err}
}
