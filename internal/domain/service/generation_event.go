package service

import (
	"context"
	"time"
)

// GenerationEvent 一次生成流水线结算后的事件
type GenerationEvent struct {
	ContentID     string          `json:"content_id"`
	UserID        string          `json:"user_id"`
	Status        string          `json:"status"`
	Fallback      bool            `json:"fallback"`
	OutlineSource string          `json:"outline_source"`
	Cost          int             `json:"cost"`
	Remaining     int             `json:"remaining"`
	Usage         []LLMUsageInput `json:"usage,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// GenerationEventPublisher 发布生成事件，失败不影响主流程
type GenerationEventPublisher interface {
	PublishGenerationEvent(ctx context.Context, evt *GenerationEvent) error
}
