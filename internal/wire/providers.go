package wire

import (
	"context"

	"content-gen-api/internal/application/generation"
	"content-gen-api/internal/application/quota"
	"content-gen-api/internal/config"
	"content-gen-api/internal/domain/repository"
	"content-gen-api/internal/domain/service"
	"content-gen-api/internal/infrastructure/messaging"
	"content-gen-api/internal/infrastructure/persistence/postgres"
	"content-gen-api/internal/infrastructure/persistence/redis"
	"content-gen-api/internal/interfaces/http/middleware"
	workflowport "content-gen-api/internal/workflow/port"
	"content-gen-api/pkg/logger"
)

// PostgresOnlyDataLayer 仅包含 PostgreSQL 的数据层（用于 bootstrap）
type PostgresOnlyDataLayer struct {
	PgClient     *postgres.Client
	TxManager    *postgres.TxManager
	UserRepo     *postgres.UserRepository
	ContentRepo  *postgres.GeneratedContentRepository
	LLMUsageRepo *postgres.LLMUsageEventRepository
}

// UsageWorker 用量消费者及其依赖
type UsageWorker struct {
	Consumer *messaging.Consumer
	Recorder *quota.LLMUsageRecorder
}

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	return messaging.NewProducer(redisClient.Redis(), cfg.Messaging.RedisStream.MaxLen)
}

// ProvideGenerationEventPublisher 事件流关闭时不发布
func ProvideGenerationEventPublisher(ctx context.Context, cfg *config.Config, producer *messaging.Producer) service.GenerationEventPublisher {
	if !cfg.Messaging.RedisStream.Enabled {
		logger.Info(ctx, "generation events disabled")
		return nil
	}
	return producer
}

// ProvideUsageConsumer 提供生成事件消费者
func ProvideUsageConsumer(cfg *config.Config, redisClient *redis.Client) *messaging.Consumer {
	rs := cfg.Messaging.RedisStream
	return messaging.NewConsumer(redisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamContentGenerated,
		Group:         messaging.ConsumerGroupUsageRecorder,
		ConsumerName:  messaging.DefaultConsumerName(),
		BlockTimeout:  rs.BlockTimeout,
		ClaimInterval: rs.ClaimInterval,
		RetryLimit:    rs.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    rs.RetryBackoff.Initial,
			Max:        rs.RetryBackoff.Max,
			Multiplier: rs.RetryBackoff.Multiplier,
		},
	})
}

// ProvideLedger 提供额度账本
func ProvideLedger(cfg *config.Config, users repository.UserRepository, contents repository.GeneratedContentRepository, tx repository.Transactor, cache quota.SnapshotCache) *quota.Ledger {
	return quota.NewLedger(users, contents, tx, cache, &cfg.Generation)
}

// ProvideOutlineGenerator 提供大纲生成器
func ProvideOutlineGenerator(cfg *config.Config, provider workflowport.OutlineProvider) *generation.OutlineGenerator {
	return generation.NewOutlineGenerator(provider, cfg.LLM.OutlineProvider, cfg.Generation.Outline)
}

// ProvideContentGenerator 提供正文生成器
func ProvideContentGenerator(cfg *config.Config, provider workflowport.ContentProvider) *generation.ContentGenerator {
	return generation.NewContentGenerator(provider, cfg.LLM.ContentProvider, cfg.Generation.Content)
}

// ProvideGenerationService 提供生成流水线
func ProvideGenerationService(
	ledger *quota.Ledger,
	contents repository.GeneratedContentRepository,
	outlines *generation.OutlineGenerator,
	writer *generation.ContentGenerator,
	events service.GenerationEventPublisher,
) *generation.Service {
	return generation.NewService(ledger, contents, outlines, writer, events)
}

// ProvideAuthConfig 提供认证配置
func ProvideAuthConfig(cfg *config.Config) middleware.AuthConfig {
	return middleware.AuthConfig{
		Secret:    cfg.Security.JWT.Secret,
		Issuer:    cfg.Security.JWT.Issuer,
		SkipPaths: middleware.DefaultSkipPaths,
	}
}
