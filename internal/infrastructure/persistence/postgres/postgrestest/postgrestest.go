// Package postgrestest 提供基于内存 SQLite 的仓储测试支撑
package postgrestest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"content-gen-api/internal/domain/repository"
	"content-gen-api/internal/infrastructure/persistence/postgres"
)

// NewClient 创建已迁移表结构的内存数据库客户端，测试结束时自动关闭
func NewClient(t testing.TB) *postgres.Client {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	client := postgres.NewClientWithDB(db)
	if err := client.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// ErrInjected 注入的事务故障
var ErrInjected = errors.New("injected transaction fault")

// InjectedTransactor 包装真实事务管理器，支持故障注入
type InjectedTransactor struct {
	Inner repository.Transactor

	mu sync.Mutex
	// FailBeforeBody 在执行事务体前失败
	FailBeforeBody error
	// FailAfterBody 事务体成功后、提交前失败，模拟提交阶段中断
	FailAfterBody error

	Calls int
}

var _ repository.Transactor = (*InjectedTransactor)(nil)

// WithTransaction 实现 repository.Transactor
func (r *InjectedTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	r.Calls++
	failBefore, failAfter := r.FailBeforeBody, r.FailAfterBody
	r.mu.Unlock()

	if failBefore != nil {
		return failBefore
	}
	return r.Inner.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := fn(txCtx); err != nil {
			return err
		}
		return failAfter
	})
}
