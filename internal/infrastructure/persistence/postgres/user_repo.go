// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"content-gen-api/internal/domain/entity"
	"content-gen-api/internal/domain/repository"
)

// UserRepository 用户仓储实现
type UserRepository struct {
	client *Client
}

// NewUserRepository 创建用户仓储
func NewUserRepository(client *Client) *UserRepository {
	return &UserRepository{client: client}
}

// Create 创建用户
func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	ctx, span := tracer.Start(ctx, "postgres.UserRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(user).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取用户
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	ctx, span := tracer.Start(ctx, "postgres.UserRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var user entity.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetByEmail 根据邮箱获取用户
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	ctx, span := tracer.Start(ctx, "postgres.UserRepository.GetByEmail")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var user entity.User
	if err := db.First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

// Debit 条件扣减额度
// SET 子句中引用的是更新前的列值，补充额度优先扣减
func (r *UserRepository) Debit(ctx context.Context, id string, cost int) (*entity.User, error) {
	ctx, span := tracer.Start(ctx, "postgres.UserRepository.Debit")
	defer span.End()

	if cost <= 0 {
		return r.GetByID(ctx, id)
	}

	db := getDB(ctx, r.client.db)
	res := db.Model(&entity.User{}).
		Where("id = ? AND requests_used + ? <= requests_limit + flexy_requests", id, cost).
		Updates(map[string]any{
			"flexy_requests": gorm.Expr("CASE WHEN flexy_requests >= ? THEN flexy_requests - ? ELSE 0 END", cost, cost),
			"requests_used":  gorm.Expr("CASE WHEN flexy_requests >= ? THEN requests_used ELSE requests_used + ? - flexy_requests END", cost, cost),
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		span.RecordError(res.Error)
		return nil, fmt.Errorf("failed to debit user quota: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, repository.ErrQuotaConflict
	}

	var user entity.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to reload user after debit: %w", err)
	}
	return &user, nil
}
