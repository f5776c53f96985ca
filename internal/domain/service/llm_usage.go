package service

import "context"

// LLMUsageInput 表示一次 LLM 调用的可观测与可计量数据。
// 说明：该结构位于 domain/service，作为跨层的稳定契约（port），避免基础设施层依赖应用层实现。
type LLMUsageInput struct {
	// EventID 幂等键，重复投递时不重复记录
	EventID   string `json:"event_id"`
	UserID    string `json:"user_id"`
	ContentID string `json:"content_id"`

	Workflow string `json:"workflow"`
	Provider string `json:"provider"`
	Model    string `json:"model"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	DurationMs       int `json:"duration_ms"`
}

// LLMUsageRecorder 负责记录 LLM 使用量。
// 约定：实现应尽量 best-effort，不应阻塞主业务流程。
type LLMUsageRecorder interface {
	Record(ctx context.Context, in LLMUsageInput) error
}
