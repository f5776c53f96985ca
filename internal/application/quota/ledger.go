// Package quota 提供用户生成额度的准入检查与结算
package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"content-gen-api/internal/config"
	"content-gen-api/internal/domain/entity"
	"content-gen-api/internal/domain/repository"
	"content-gen-api/pkg/logger"
	"content-gen-api/pkg/metrics"
	"content-gen-api/pkg/tracer"
)

// DefaultCost 未配置时一次长文生成的扣减额度
const DefaultCost = 4

// UserNotFoundError 用户不存在
type UserNotFoundError struct {
	UserID string
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("user not found: %s", e.UserID)
}

// InsufficientQuotaError 结算时额度不足（并发请求已先行扣减）
type InsufficientQuotaError struct {
	UserID string
	Cost   int
}

func (e *InsufficientQuotaError) Error() string {
	return fmt.Sprintf("insufficient quota: user=%s cost=%d", e.UserID, e.Cost)
}

// Snapshot 用户额度快照
type Snapshot struct {
	UserID        string          `json:"userId"`
	RequestsUsed  int             `json:"requestsUsed"`
	RequestsLimit int             `json:"requestsLimit"`
	FlexyRequests int             `json:"flexyRequests"`
	PlanType      entity.PlanType `json:"planType"`
	Remaining     int             `json:"remaining"`
}

func snapshotOf(u *entity.User) Snapshot {
	return Snapshot{
		UserID:        u.ID,
		RequestsUsed:  u.RequestsUsed,
		RequestsLimit: u.RequestsLimit,
		FlexyRequests: u.FlexyRequests,
		PlanType:      u.PlanType,
		Remaining:     u.Remaining(),
	}
}

// Admission 准入结果；额度不足不是错误
type Admission struct {
	Admitted  bool
	Remaining int
	PlanType  entity.PlanType
	State     Snapshot
	// Message 拒绝时给用户的升级提示
	Message string
}

// Settlement 结算结果
type Settlement struct {
	Record    *entity.GeneratedContent
	Remaining int
}

// SnapshotCache 额度快照缓存
type SnapshotCache interface {
	GetOrLoad(ctx context.Context, key string, ttl time.Duration, loader func(ctx context.Context) (any, error)) ([]byte, error)
	Delete(ctx context.Context, keys ...string) error
}

// SnapshotKey 用户额度快照缓存键
func SnapshotKey(userID string) string {
	return "quota:snapshot:" + userID
}

// Ledger 额度账本：准入为乐观预检，结算事务内的条件扣减才是最终约束
type Ledger struct {
	users    repository.UserRepository
	contents repository.GeneratedContentRepository
	tx       repository.Transactor
	cache    SnapshotCache
	cacheTTL time.Duration
	cost     int
}

// NewLedger 创建额度账本，cache 可为 nil
func NewLedger(users repository.UserRepository, contents repository.GeneratedContentRepository, tx repository.Transactor, cache SnapshotCache, cfg *config.GenerationConfig) *Ledger {
	l := &Ledger{
		users:    users,
		contents: contents,
		tx:       tx,
		cache:    cache,
		cost:     DefaultCost,
		cacheTTL: 30 * time.Second,
	}
	if cfg != nil {
		if cfg.Cost > 0 {
			l.cost = cfg.Cost
		}
		if cfg.QuotaCacheTTL > 0 {
			l.cacheTTL = cfg.QuotaCacheTTL
		}
	}
	return l
}

// Cost 一次生成的扣减额度
func (l *Ledger) Cost() int {
	return l.cost
}

// CheckAdmission 检查用户能否承担一次生成
func (l *Ledger) CheckAdmission(ctx context.Context, userID string) (*Admission, error) {
	ctx, span := tracer.Start(ctx, "quota.CheckAdmission",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	user, err := l.users.GetByID(ctx, userID)
	if err != nil {
		tracer.Fail(span, err)
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, &UserNotFoundError{UserID: userID}
	}

	state := snapshotOf(user)
	adm := &Admission{
		Admitted:  user.CanAfford(l.cost),
		Remaining: state.Remaining,
		PlanType:  user.PlanType,
		State:     state,
	}
	span.SetAttributes(attribute.Bool("quota.admitted", adm.Admitted), attribute.Int("quota.remaining", adm.Remaining))
	if !adm.Admitted {
		adm.Message = denialMessage(user.PlanType, state.Remaining, l.cost)
		metrics.QuotaDenialsTotal.WithLabelValues(string(user.PlanType)).Inc()
		logger.Info(ctx, "generation denied by quota",
			"plan_type", string(user.PlanType),
			"remaining", state.Remaining,
			"cost", l.cost,
		)
	}
	return adm, nil
}

func denialMessage(plan entity.PlanType, remaining, cost int) string {
	if plan == entity.PlanTypeFree {
		return fmt.Sprintf("You have %d requests left and this generation needs %d. Upgrade your plan to keep creating content.", remaining, cost)
	}
	return fmt.Sprintf("You have %d requests left and this generation needs %d. Add more requests to your plan to continue.", remaining, cost)
}

// Settle 在同一事务内写入生成记录并扣减 record.Cost。
// 任一步失败整体回滚；失败记录 Cost 为 0，不扣额度。
func (l *Ledger) Settle(ctx context.Context, record *entity.GeneratedContent) (*Settlement, error) {
	if record == nil {
		return nil, fmt.Errorf("record is nil")
	}
	ctx, span := tracer.Start(ctx, "quota.Settle", trace.WithAttributes(
		attribute.String("user.id", record.UserID),
		attribute.String("content.status", string(record.Status)),
		attribute.Int("quota.cost", record.Cost),
	))
	defer span.End()

	var remaining int
	err := l.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := l.contents.Create(txCtx, record); err != nil {
			return fmt.Errorf("failed to create content record: %w", err)
		}

		var user *entity.User
		var err error
		if record.Cost > 0 {
			user, err = l.users.Debit(txCtx, record.UserID, record.Cost)
			if errors.Is(err, repository.ErrQuotaConflict) {
				return &InsufficientQuotaError{UserID: record.UserID, Cost: record.Cost}
			}
		} else {
			user, err = l.users.GetByID(txCtx, record.UserID)
		}
		if err != nil {
			return fmt.Errorf("failed to debit quota: %w", err)
		}
		if user == nil {
			return &UserNotFoundError{UserID: record.UserID}
		}
		remaining = user.Remaining()
		return nil
	})
	if err != nil {
		metrics.SettlementTotal.WithLabelValues(string(record.Status), "error").Inc()
		tracer.Fail(span, err)
		return nil, err
	}
	metrics.SettlementTotal.WithLabelValues(string(record.Status), "committed").Inc()

	l.invalidate(ctx, record.UserID)
	return &Settlement{Record: record, Remaining: remaining}, nil
}

// Snapshot 返回额度快照，优先读缓存
func (l *Ledger) Snapshot(ctx context.Context, userID string) (*Snapshot, error) {
	load := func(ctx context.Context) (any, error) {
		user, err := l.users.GetByID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load user: %w", err)
		}
		if user == nil {
			return nil, &UserNotFoundError{UserID: userID}
		}
		return snapshotOf(user), nil
	}

	if l.cache == nil {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		snap := v.(Snapshot)
		return &snap, nil
	}

	raw, err := l.cache.GetOrLoad(ctx, SnapshotKey(userID), l.cacheTTL, load)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode quota snapshot: %w", err)
	}
	return &snap, nil
}

func (l *Ledger) invalidate(ctx context.Context, userID string) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Delete(ctx, SnapshotKey(userID)); err != nil {
		logger.Warn(ctx, "failed to invalidate quota snapshot", "error", err.Error())
	}
}
