// Package messaging 提供基于 Redis Streams 的消息队列实现
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"content-gen-api/pkg/logger"
	"content-gen-api/pkg/metrics"
)

var errMaxRetries = errors.New("message exceeded max retries")

// MessageHandler 消息处理函数
type MessageHandler func(ctx context.Context, msg *Message) error

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	Stream        Stream
	Group         ConsumerGroup
	ConsumerName  string
	BlockTimeout  time.Duration
	ClaimInterval time.Duration
	RetryLimit    int
	Backoff       BackoffConfig
}

// Consumer 消息消费者，支持待处理消息重投与死信队列
type Consumer struct {
	client *redis.Client
	cfg    ConsumerConfig
	// reclaimIdle 其他消费者持有的消息空闲超过该值后被接管
	reclaimIdle time.Duration

	handlers map[string]MessageHandler
	mu       sync.RWMutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewConsumer 创建消息消费者
func NewConsumer(client *redis.Client, cfg ConsumerConfig) *Consumer {
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	if cfg.ClaimInterval <= 0 {
		cfg.ClaimInterval = 30 * time.Second
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = 3
	}
	if cfg.Backoff.Initial <= 0 {
		cfg.Backoff = DefaultBackoffConfig()
	}
	if cfg.ConsumerName == "" {
		cfg.ConsumerName = DefaultConsumerName()
	}

	return &Consumer{
		client:      client,
		cfg:         cfg,
		reclaimIdle: max(5*time.Minute, cfg.Backoff.Max*2),
		handlers:    make(map[string]MessageHandler),
	}
}

// DefaultConsumerName 以主机名与随机后缀生成消费者名
func DefaultConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}

// RegisterHandler 注册消息处理器
func (c *Consumer) RegisterHandler(msgType string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[msgType] = handler
}

// Start 启动消费者
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("consumer already running")
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	c.mu.Unlock()

	err := c.client.XGroupCreateMkStream(ctx, string(c.cfg.Stream), string(c.cfg.Group), "0").Err()
	if err != nil && !redis.HasErrorPrefix(err, "BUSYGROUP") {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	go c.run(ctx)
	return nil
}

// Stop 停止消费者并等待消费循环退出
func (c *Consumer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	done := c.doneCh
	c.mu.Unlock()
	<-done
}

// run 消费循环
func (c *Consumer) run(ctx context.Context) {
	defer close(c.doneCh)

	logger.Info(ctx, "consumer started",
		"stream", c.cfg.Stream,
		"group", c.cfg.Group,
		"consumer", c.cfg.ConsumerName,
	)

	lastClaim := time.Now().Add(-c.cfg.ClaimInterval)
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "consumer stopped due to context cancellation")
			return
		case <-c.stopCh:
			logger.Info(ctx, "consumer stopped")
			return
		default:
		}

		c.processDuePending(ctx)
		if time.Since(lastClaim) >= c.cfg.ClaimInterval {
			c.reclaimStale(ctx)
			lastClaim = time.Now()
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    string(c.cfg.Group),
			Consumer: c.cfg.ConsumerName,
			Streams:  []string{string(c.cfg.Stream), ">"},
			Count:    10,
			Block:    c.cfg.BlockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			logger.Error(ctx, "failed to read from stream", err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, xmsg := range stream.Messages {
				c.processMessage(ctx, xmsg)
			}
		}
	}
}

// processMessage 处理单条消息
func (c *Consumer) processMessage(ctx context.Context, xmsg redis.XMessage) {
	ctx, span := msgTracer.Start(ctx, "consumer.processMessage",
		trace.WithAttributes(
			attribute.String("stream", string(c.cfg.Stream)),
			attribute.String("stream.message_id", xmsg.ID),
		))
	defer span.End()

	msg, err := decodeMessage(xmsg.Values)
	if err != nil {
		logger.Error(ctx, "invalid message format", err, "message_id", xmsg.ID)
		c.observe("invalid")
		c.ack(ctx, xmsg.ID)
		return
	}

	if msg.UserID != "" {
		ctx = logger.WithContext(ctx, logger.UserIDKey, msg.UserID)
	}
	if reqID := msg.GetMetadata("request_id"); reqID != "" {
		ctx = logger.WithContext(ctx, logger.RequestIDKey, reqID)
	}
	if traceID := msg.GetMetadata("trace_id"); traceID != "" {
		ctx = logger.WithContext(ctx, logger.TraceIDKey, traceID)
	}
	span.SetAttributes(
		attribute.String("message.id", msg.ID),
		attribute.String("message.type", msg.Type),
		attribute.String("user_id", msg.UserID),
	)

	c.mu.RLock()
	handler, exists := c.handlers[msg.Type]
	c.mu.RUnlock()
	if !exists {
		logger.Warn(ctx, "no handler for message type", "type", msg.Type)
		c.observe("unhandled")
		c.ack(ctx, xmsg.ID)
		return
	}

	if err := handler(ctx, msg); err != nil {
		span.RecordError(err)
		logger.Error(ctx, "handler failed", err, "message_id", msg.ID)
		c.observe("failed")
		c.handleFailure(ctx, xmsg.ID, msg, err)
		return
	}

	c.observe("success")
	c.ack(ctx, xmsg.ID)
}

func (c *Consumer) observe(status string) {
	metrics.RedisStreamProcessed.WithLabelValues(string(c.cfg.Stream), status).Inc()
}

// ack 确认消息
func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, string(c.cfg.Stream), string(c.cfg.Group), id).Err(); err != nil {
		logger.Error(ctx, "failed to ack message", err, "message_id", id)
	}
}

// handleFailure 超过重试上限的消息移入死信队列，否则保留在 pending 中等待重投
func (c *Consumer) handleFailure(ctx context.Context, streamID string, msg *Message, err error) {
	retryCount := c.getRetryCount(ctx, streamID)
	if retryCount >= c.cfg.RetryLimit {
		logger.Warn(ctx, "message moved to DLQ after max retries",
			"message_id", msg.ID,
			"retry_count", retryCount,
		)
		c.moveToDLQ(ctx, msg, err)
		c.ack(ctx, streamID)
		return
	}
	logger.Info(ctx, "message left pending for retry",
		"message_id", msg.ID,
		"retry_count", retryCount,
	)
}

// getRetryCount 通过 XPENDING 获取消息的投递次数
func (c *Consumer) getRetryCount(ctx context.Context, messageID string) int {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: string(c.cfg.Stream),
		Group:  string(c.cfg.Group),
		Start:  messageID,
		End:    messageID,
		Count:  1,
	}).Result()
	if err != nil || len(pending) == 0 {
		return 0
	}
	return int(pending[0].RetryCount)
}

// moveToDLQ 移入死信队列
func (c *Consumer) moveToDLQ(ctx context.Context, msg *Message, cause error) {
	data, err := json.Marshal(map[string]any{
		"original_stream": string(c.cfg.Stream),
		"data":            msg,
		"error":           cause.Error(),
		"failed_at":       time.Now().Unix(),
	})
	if err != nil {
		logger.Error(ctx, "failed to marshal DLQ entry", err, "message_id", msg.ID)
		return
	}
	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.Stream.DLQStream(),
		Values: map[string]any{"data": string(data)},
	}).Err(); err != nil {
		logger.Error(ctx, "failed to write DLQ entry", err, "message_id", msg.ID)
		return
	}
	c.observe("dead_lettered")
}

// claim 将 pending 消息转给当前消费者
func (c *Consumer) claim(ctx context.Context, id string, minIdle time.Duration) ([]redis.XMessage, error) {
	return c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   string(c.cfg.Stream),
		Group:    string(c.cfg.Group),
		Consumer: c.cfg.ConsumerName,
		MinIdle:  minIdle,
		Messages: []string{id},
	}).Result()
}

// deadLetter 接管并直接移入死信队列
func (c *Consumer) deadLetter(ctx context.Context, id string, minIdle time.Duration) {
	claimed, err := c.claim(ctx, id, minIdle)
	if err != nil {
		logger.Error(ctx, "failed to claim pending message for DLQ", err, "message_id", id)
		return
	}
	for _, xmsg := range claimed {
		if msg, decodeErr := decodeMessage(xmsg.Values); decodeErr == nil {
			c.moveToDLQ(ctx, msg, errMaxRetries)
		}
		c.ack(ctx, xmsg.ID)
	}
}

// redeliver 接管并重新处理
func (c *Consumer) redeliver(ctx context.Context, id string, minIdle time.Duration) {
	claimed, err := c.claim(ctx, id, minIdle)
	if err != nil {
		logger.Error(ctx, "failed to claim pending message", err, "message_id", id)
		return
	}
	for _, xmsg := range claimed {
		c.processMessage(ctx, xmsg)
	}
}

func (c *Consumer) pending(ctx context.Context, consumer string) []redis.XPendingExt {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   string(c.cfg.Stream),
		Group:    string(c.cfg.Group),
		Start:    "-",
		End:      "+",
		Count:    20,
		Consumer: consumer,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Error(ctx, "failed to query pending messages", err)
		}
		return nil
	}
	return pending
}

// processDuePending 对本消费者名下退避期已满的消息重投
func (c *Consumer) processDuePending(ctx context.Context) {
	for _, p := range c.pending(ctx, c.cfg.ConsumerName) {
		retryCount := int(p.RetryCount)
		if retryCount >= c.cfg.RetryLimit {
			c.deadLetter(ctx, p.ID, 0)
			continue
		}
		backoff := c.cfg.Backoff.CalculateBackoff(retryCount)
		if p.Idle < backoff {
			continue
		}
		c.redeliver(ctx, p.ID, backoff)
	}
}

// reclaimStale 接管其他消费者长时间未确认的消息
func (c *Consumer) reclaimStale(ctx context.Context) {
	for _, p := range c.pending(ctx, "") {
		if p.Consumer == c.cfg.ConsumerName || p.Idle < c.reclaimIdle {
			continue
		}
		if int(p.RetryCount) >= c.cfg.RetryLimit {
			c.deadLetter(ctx, p.ID, c.reclaimIdle)
			continue
		}
		c.redeliver(ctx, p.ID, c.reclaimIdle)
	}
}
