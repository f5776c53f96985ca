package port

import (
	"context"

	"github.com/cloudwego/eino/components/model"

	wfmodel "content-gen-api/internal/workflow/model"
)

// ChatModelFactory 定义工作流层对 LLM ChatModel 的最小依赖（port）。
type ChatModelFactory interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
}

// OutlineProvider 大纲模型：返回期望为 JSON 的文本
type OutlineProvider interface {
	GenerateOutline(ctx context.Context, in *wfmodel.OutlineGenerateInput) (*wfmodel.GenerateOutput, error)
}

// ContentProvider 正文模型：返回 Markdown 文本
type ContentProvider interface {
	GenerateContent(ctx context.Context, in *wfmodel.ContentGenerateInput) (*wfmodel.GenerateOutput, error)
}
