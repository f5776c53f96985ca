package repository

import (
	"context"

	"content-gen-api/internal/domain/entity"
)

// GeneratedContentRepository 生成记录仓储接口
type GeneratedContentRepository interface {
	// Create 写入生成记录
	Create(ctx context.Context, content *entity.GeneratedContent) error

	// GetByID 根据 ID 获取记录，不存在返回 nil
	GetByID(ctx context.Context, id string) (*entity.GeneratedContent, error)

	// ListByUser 按创建时间倒序列出用户的记录
	ListByUser(ctx context.Context, userID string, pagination Pagination) (*PagedResult[*entity.GeneratedContent], error)
}
