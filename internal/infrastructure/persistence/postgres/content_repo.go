package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"content-gen-api/internal/domain/entity"
	"content-gen-api/internal/domain/repository"
)

// GeneratedContentRepository 生成记录仓储实现
type GeneratedContentRepository struct {
	client *Client
}

// NewGeneratedContentRepository 创建生成记录仓储
func NewGeneratedContentRepository(client *Client) *GeneratedContentRepository {
	return &GeneratedContentRepository{client: client}
}

// Create 写入生成记录
func (r *GeneratedContentRepository) Create(ctx context.Context, content *entity.GeneratedContent) error {
	ctx, span := tracer.Start(ctx, "postgres.GeneratedContentRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(content).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create generated content: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取记录
func (r *GeneratedContentRepository) GetByID(ctx context.Context, id string) (*entity.GeneratedContent, error) {
	ctx, span := tracer.Start(ctx, "postgres.GeneratedContentRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var content entity.GeneratedContent
	if err := db.First(&content, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get generated content: %w", err)
	}
	return &content, nil
}

// ListByUser 分页列出用户的记录
func (r *GeneratedContentRepository) ListByUser(ctx context.Context, userID string, pagination repository.Pagination) (*repository.PagedResult[*entity.GeneratedContent], error) {
	ctx, span := tracer.Start(ctx, "postgres.GeneratedContentRepository.ListByUser")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var total int64
	if err := db.Model(&entity.GeneratedContent{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count generated contents: %w", err)
	}

	var items []*entity.GeneratedContent
	if err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&items).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list generated contents: %w", err)
	}

	return repository.NewPagedResult(items, total, pagination), nil
}
