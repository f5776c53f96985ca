// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"

	"content-gen-api/internal/domain/entity"
)

type LLMUsageEventRepository interface {
	// Create 写入用量流水，相同 ID 重复写入时忽略
	Create(ctx context.Context, event *entity.LLMUsageEvent) error
	GetTokenUsage(ctx context.Context, userID string, startInclusive, endExclusive time.Time) (int64, error)
}
