package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	llmctx "content-gen-api/internal/domain/service"
	wfmodel "content-gen-api/internal/workflow/model"
	wfnode "content-gen-api/internal/workflow/node"
	workflowport "content-gen-api/internal/workflow/port"
	workflowprompt "content-gen-api/internal/workflow/prompt"
	"content-gen-api/pkg/logger"
)

var defaultPromptRegistry = workflowprompt.NewRegistry()

// OutlineChain 调用大纲模型，返回原始文本（期望为 JSON）
type OutlineChain struct {
	factory workflowport.ChatModelFactory

	chainOnce sync.Once
	chain     compose.Runnable[*wfmodel.OutlineGenerateInput, *wfmodel.GenerateOutput]
	chainErr  error
}

var _ workflowport.OutlineProvider = (*OutlineChain)(nil)

func NewOutlineChain(factory workflowport.ChatModelFactory) *OutlineChain {
	return &OutlineChain{factory: factory}
}

// GenerateOutline 实现 port.OutlineProvider
func (c *OutlineChain) GenerateOutline(ctx context.Context, in *wfmodel.OutlineGenerateInput) (*wfmodel.GenerateOutput, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.Provider) == "" {
		return nil, fmt.Errorf("provider is required")
	}

	chain, err := c.getChain()
	if err != nil {
		return nil, err
	}
	return chain.Invoke(ctx, in)
}

type outlineChainState struct {
	In       *wfmodel.OutlineGenerateInput
	Messages []*schema.Message
	OutMsg   *schema.Message
	Started  time.Time
	Elapsed  time.Duration
}

func (c *OutlineChain) getChain() (compose.Runnable[*wfmodel.OutlineGenerateInput, *wfmodel.GenerateOutput], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *OutlineChain) buildChain(ctx context.Context) (compose.Runnable[*wfmodel.OutlineGenerateInput, *wfmodel.GenerateOutput], error) {
	chain := compose.NewChain[*wfmodel.OutlineGenerateInput, *wfmodel.GenerateOutput]()

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, in *wfmodel.OutlineGenerateInput) (*outlineChainState, error) {
			msgs, err := defaultPromptRegistry.Format(ctx, outlinePromptID(in), in.Brief.Vars())
			if err != nil {
				return nil, err
			}
			return &outlineChainState{In: in, Messages: msgs}, nil
		}),
		compose.WithNodeName("outline.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *outlineChainState) (*outlineChainState, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}
			provider := strings.TrimSpace(st.In.Provider)
			ctx = llmctx.WithWorkflowProvider(ctx, outlineWorkflow(st.In), provider)
			chatModel, err := c.factory.Get(ctx, provider)
			if err != nil {
				return nil, err
			}

			st.Started = time.Now()
			outMsg, err := chatModel.Generate(ctx, st.Messages, buildOutlineModelOptions(st.In, st.In.JSONMode)...)
			if err != nil && st.In.JSONMode && wfnode.IsResponseFormatUnsupportedError(err) {
				logger.Warn(ctx, "llm json mode not supported, fallback to prompt-only",
					"provider", provider,
					"model", strings.TrimSpace(st.In.Model),
					"error", err.Error(),
				)
				outMsg, err = chatModel.Generate(ctx, st.Messages, buildOutlineModelOptions(st.In, false)...)
			}
			st.Elapsed = time.Since(st.Started)
			if err != nil {
				return nil, err
			}
			if outMsg == nil {
				return nil, fmt.Errorf("empty llm response")
			}
			st.OutMsg = outMsg
			return st, nil
		}),
		compose.WithNodeName("outline.llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *outlineChainState) (*wfmodel.GenerateOutput, error) {
			if st == nil || st.OutMsg == nil {
				return nil, fmt.Errorf("state is nil")
			}
			return &wfmodel.GenerateOutput{
				Text: st.OutMsg.Content,
				Meta: usageMeta(outlineWorkflow(st.In), st.In.Provider, st.In.Model, st.OutMsg, st.Started, st.Elapsed),
			}, nil
		}),
		compose.WithNodeName("outline.finalize"),
	)

	return chain.Compile(ctx)
}

func outlinePromptID(in *wfmodel.OutlineGenerateInput) workflowprompt.PromptID {
	if in != nil && in.Simplified {
		return workflowprompt.PromptOutlineSimplifiedV1
	}
	return workflowprompt.PromptOutlineFullV1
}

func outlineWorkflow(in *wfmodel.OutlineGenerateInput) string {
	if in != nil && in.Simplified {
		return llmctx.WorkflowOutlineSimplified
	}
	return llmctx.WorkflowOutlineFull
}

func buildOutlineModelOptions(in *wfmodel.OutlineGenerateInput, jsonMode bool) []model.Option {
	opts := make([]model.Option, 0, 5)
	if in.Temperature != nil {
		opts = append(opts, model.WithTemperature(*in.Temperature))
	}
	if in.TopP != nil {
		opts = append(opts, model.WithTopP(*in.TopP))
	}
	if in.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*in.MaxTokens))
	}
	if m := strings.TrimSpace(in.Model); m != "" {
		opts = append(opts, model.WithModel(m))
	}
	if jsonMode {
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{"type": "json_object"},
		}))
	}
	return opts
}

func usageMeta(workflow, provider, modelName string, msg *schema.Message, started time.Time, elapsed time.Duration) wfmodel.LLMUsageMeta {
	meta := wfmodel.LLMUsageMeta{
		Workflow:    workflow,
		Provider:    strings.TrimSpace(provider),
		Model:       strings.TrimSpace(modelName),
		Duration:    elapsed,
		GeneratedAt: started.Add(elapsed),
	}
	if msg != nil && msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		meta.PromptTokens = msg.ResponseMeta.Usage.PromptTokens
		meta.CompletionTokens = msg.ResponseMeta.Usage.CompletionTokens
	}
	return meta
}
