//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"content-gen-api/internal/application/quota"
	"content-gen-api/internal/config"
	"content-gen-api/internal/domain/repository"
	"content-gen-api/internal/infrastructure/llm"
	"content-gen-api/internal/infrastructure/persistence/postgres"
	"content-gen-api/internal/infrastructure/persistence/redis"
	"content-gen-api/internal/interfaces/http/handler"
	"content-gen-api/internal/interfaces/http/middleware"
	"content-gen-api/internal/interfaces/http/router"
)

// InitializeApp 初始化 HTTP 应用
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		MessagingSet,
		GenerationSet,
		RouterSet,
	)
	return nil, nil, nil
}

// InitializePostgresOnly 仅初始化 PostgreSQL 数据层（用于 bootstrap）
func InitializePostgresOnly(ctx context.Context, cfg *config.Config) (*PostgresOnlyDataLayer, func(), error) {
	wire.Build(
		PostgresSet,
		wire.Struct(new(PostgresOnlyDataLayer), "*"),
	)
	return nil, nil, nil
}

// InitializeUsageWorker 初始化用量消费者
func InitializeUsageWorker(ctx context.Context, cfg *config.Config) (*UsageWorker, func(), error) {
	wire.Build(
		PostgresSet,
		wire.Bind(new(repository.LLMUsageEventRepository), new(*postgres.LLMUsageEventRepository)),
		ProvideRedisClient,
		quota.NewLLMUsageRecorder,
		ProvideUsageConsumer,
		wire.Struct(new(UsageWorker), "*"),
	)
	return nil, nil, nil
}

// PostgresSet PostgreSQL 提供者集合
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewUserRepository,
	postgres.NewGeneratedContentRepository,
	postgres.NewLLMUsageEventRepository,
)

// RepoSet 具体实现与接口绑定
var RepoSet = wire.NewSet(
	PostgresSet,
	wire.Bind(new(repository.Transactor), new(*postgres.TxManager)),
	wire.Bind(new(repository.UserRepository), new(*postgres.UserRepository)),
	wire.Bind(new(repository.GeneratedContentRepository), new(*postgres.GeneratedContentRepository)),
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	redis.NewCache,
	redis.NewRateLimiter,
	wire.Bind(new(quota.SnapshotCache), new(*redis.Cache)),
	wire.Bind(new(middleware.RateLimiter), new(*redis.RateLimiter)),
)

// MessagingSet 消息队列提供者集合
var MessagingSet = wire.NewSet(
	ProvideMessagingProducer,
	ProvideGenerationEventPublisher,
)

// GenerationSet 生成流水线提供者集合
var GenerationSet = wire.NewSet(
	llm.NewEinoFactory,
	llm.NewOutlineProvider,
	llm.NewContentProvider,
	ProvideLedger,
	ProvideOutlineGenerator,
	ProvideContentGenerator,
	ProvideGenerationService,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideAuthConfig,
	handler.NewHealthHandler,
	handler.NewGenerationHandler,
	wire.Struct(new(router.RouterHandlers), "*"),
	router.NewWithDeps,
)
