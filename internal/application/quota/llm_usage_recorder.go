package quota

import (
	"context"
	"fmt"
	"strings"

	"content-gen-api/internal/domain/entity"
	"content-gen-api/internal/domain/repository"
	"content-gen-api/internal/domain/service"
)

// LLMUsageRecorder 将模型用量写入流水表
type LLMUsageRecorder struct {
	usageRepo repository.LLMUsageEventRepository
}

var _ service.LLMUsageRecorder = (*LLMUsageRecorder)(nil)

func NewLLMUsageRecorder(usageRepo repository.LLMUsageEventRepository) *LLMUsageRecorder {
	return &LLMUsageRecorder{usageRepo: usageRepo}
}

func (r *LLMUsageRecorder) Record(ctx context.Context, in service.LLMUsageInput) error {
	if r == nil || r.usageRepo == nil {
		return nil
	}

	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return nil
	}
	if in.PromptTokens < 0 || in.CompletionTokens < 0 {
		return fmt.Errorf("invalid token usage")
	}

	evt := &entity.LLMUsageEvent{
		ID:               strings.TrimSpace(in.EventID),
		UserID:           userID,
		ContentID:        strings.TrimSpace(in.ContentID),
		Provider:         strings.TrimSpace(in.Provider),
		Model:            strings.TrimSpace(in.Model),
		Workflow:         strings.TrimSpace(in.Workflow),
		TokensPrompt:     in.PromptTokens,
		TokensCompletion: in.CompletionTokens,
		DurationMs:       in.DurationMs,
	}
	if err := r.usageRepo.Create(ctx, evt); err != nil {
		return fmt.Errorf("failed to record llm usage: %w", err)
	}
	return nil
}

// RecordGenerationEvent 记录一次生成事件携带的全部用量，按 EventID 幂等，可安全重投
func (r *LLMUsageRecorder) RecordGenerationEvent(ctx context.Context, evt *service.GenerationEvent) error {
	if evt == nil {
		return nil
	}
	for _, in := range evt.Usage {
		if in.UserID == "" {
			in.UserID = evt.UserID
		}
		if in.ContentID == "" {
			in.ContentID = evt.ContentID
		}
		if err := r.Record(ctx, in); err != nil {
			return err
		}
	}
	return nil
}
