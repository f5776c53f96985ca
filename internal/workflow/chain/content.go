package chain

import (
	"context"
	"fmt"
	"strings"
	"time"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	llmctx "content-gen-api/internal/domain/service"
	wfmodel "content-gen-api/internal/workflow/model"
	workflowport "content-gen-api/internal/workflow/port"
	workflowprompt "content-gen-api/internal/workflow/prompt"
)

// ContentChain 按大纲生成正文
type ContentChain struct {
	factory workflowport.ChatModelFactory
}

var _ workflowport.ContentProvider = (*ContentChain)(nil)

func NewContentChain(factory workflowport.ChatModelFactory) *ContentChain {
	return &ContentChain{factory: factory}
}

// GenerateContent 实现 port.ContentProvider
func (c *ContentChain) GenerateContent(ctx context.Context, in *wfmodel.ContentGenerateInput) (*wfmodel.GenerateOutput, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	provider := strings.TrimSpace(in.Provider)
	if provider == "" {
		return nil, fmt.Errorf("provider is required")
	}
	if strings.TrimSpace(in.OutlineJSON) == "" {
		return nil, fmt.Errorf("outline is required")
	}

	ctx = llmctx.WithWorkflowProvider(ctx, llmctx.WorkflowContent, provider)
	chatModel, err := c.factory.Get(ctx, provider)
	if err != nil {
		return nil, err
	}

	vars := in.Brief.Vars()
	vars["outline"] = in.OutlineJSON
	msgs, err := defaultPromptRegistry.Format(ctx, workflowprompt.PromptContentV1, vars)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	outMsg, err := chatModel.Generate(ctx, msgs, buildContentModelOptions(in)...)
	elapsed := time.Since(started)
	if err != nil {
		return nil, err
	}
	if outMsg == nil {
		return nil, fmt.Errorf("empty llm response")
	}
	return &wfmodel.GenerateOutput{
		Text: outMsg.Content,
		Meta: usageMeta(llmctx.WorkflowContent, in.Provider, in.Model, outMsg, started, elapsed),
	}, nil
}

func buildContentModelOptions(in *wfmodel.ContentGenerateInput) []model.Option {
	opts := make([]model.Option, 0, 4)
	if in.Temperature != nil {
		opts = append(opts, model.WithTemperature(*in.Temperature))
	}
	if in.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*in.MaxTokens))
	}
	if m := strings.TrimSpace(in.Model); m != "" {
		opts = append(opts, model.WithModel(m))
	}

	extra := make(map[string]any, 2)
	if in.FrequencyPenalty != nil {
		extra["frequency_penalty"] = *in.FrequencyPenalty
	}
	if in.PresencePenalty != nil {
		extra["presence_penalty"] = *in.PresencePenalty
	}
	if len(extra) > 0 {
		opts = append(opts, openaiopts.WithExtraFields(extra))
	}
	return opts
}
