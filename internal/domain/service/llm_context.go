package service

import (
	"context"
	"strings"
)

type llmCtxKey string

const (
	llmCtxKeyWorkflow  llmCtxKey = "llm_workflow"
	llmCtxKeyProvider  llmCtxKey = "llm_provider"
	llmCtxKeyUserID    llmCtxKey = "llm_user_id"
	llmCtxKeyContentID llmCtxKey = "llm_content_id"
)

// 生成流水线中的调用阶段
const (
	WorkflowOutlineFull       = "outline_full"
	WorkflowOutlineSimplified = "outline_simplified"
	WorkflowContent           = "content"
)

func WithWorkflow(ctx context.Context, workflow string) context.Context {
	return withTrimmed(ctx, llmCtxKeyWorkflow, workflow)
}

func WithProvider(ctx context.Context, provider string) context.Context {
	return withTrimmed(ctx, llmCtxKeyProvider, provider)
}

func WithWorkflowProvider(ctx context.Context, workflow, provider string) context.Context {
	return WithProvider(WithWorkflow(ctx, workflow), provider)
}

// WithUsageSubject 标记本次调用归属的用户与生成记录
func WithUsageSubject(ctx context.Context, userID, contentID string) context.Context {
	return withTrimmed(withTrimmed(ctx, llmCtxKeyUserID, userID), llmCtxKeyContentID, contentID)
}

func WorkflowFromContext(ctx context.Context) string {
	return valueOr(ctx, llmCtxKeyWorkflow, "unknown")
}

func ProviderFromContext(ctx context.Context) string {
	return valueOr(ctx, llmCtxKeyProvider, "unknown")
}

// UsageSubjectFromContext 返回调用归属的用户与生成记录 ID
func UsageSubjectFromContext(ctx context.Context) (userID, contentID string) {
	return valueOr(ctx, llmCtxKeyUserID, ""), valueOr(ctx, llmCtxKeyContentID, "")
}

func withTrimmed(ctx context.Context, key llmCtxKey, v string) context.Context {
	if ctx == nil {
		return nil
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func valueOr(ctx context.Context, key llmCtxKey, def string) string {
	if ctx == nil {
		return def
	}
	s, ok := ctx.Value(key).(string)
	if !ok || strings.TrimSpace(s) == "" {
		return def
	}
	return strings.TrimSpace(s)
}
