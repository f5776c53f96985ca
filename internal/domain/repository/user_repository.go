// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"errors"

	"content-gen-api/internal/domain/entity"
)

// ErrQuotaConflict 条件扣减未命中：用户不存在或额度已不足
var ErrQuotaConflict = errors.New("quota debit conflict")

// UserRepository 用户仓储接口
type UserRepository interface {
	// Create 创建用户
	Create(ctx context.Context, user *entity.User) error

	// GetByID 根据 ID 获取用户，不存在返回 nil
	GetByID(ctx context.Context, id string) (*entity.User, error)

	// GetByEmail 根据邮箱获取用户
	GetByEmail(ctx context.Context, email string) (*entity.User, error)

	// Debit 以条件更新原子扣减额度，先扣补充额度
	// 额度不足时返回 ErrQuotaConflict，成功返回扣减后的用户
	Debit(ctx context.Context, id string, cost int) (*entity.User, error)
}
