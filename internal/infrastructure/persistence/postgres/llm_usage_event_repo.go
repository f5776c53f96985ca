// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"content-gen-api/internal/domain/entity"
)

type LLMUsageEventRepository struct {
	client *Client
}

func NewLLMUsageEventRepository(client *Client) *LLMUsageEventRepository {
	return &LLMUsageEventRepository{client: client}
}

// Create 写入用量流水；消息重投时同 ID 记录被忽略
func (r *LLMUsageEventRepository) Create(ctx context.Context, event *entity.LLMUsageEvent) error {
	ctx, span := tracer.Start(ctx, "postgres.LLMUsageEventRepository.Create")
	defer span.End()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	db := getDB(ctx, r.client.db)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(event).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create llm usage event: %w", err)
	}
	return nil
}

func (r *LLMUsageEventRepository) GetTokenUsage(ctx context.Context, userID string, startInclusive, endExclusive time.Time) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.LLMUsageEventRepository.GetTokenUsage")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var total int64
	if err := db.Model(&entity.LLMUsageEvent{}).
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, startInclusive, endExclusive).
		Select("COALESCE(SUM(COALESCE(tokens_prompt,0) + COALESCE(tokens_completion,0)),0)").
		Scan(&total).Error; err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to get llm usage: %w", err)
	}
	return total, nil
}
