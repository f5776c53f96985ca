// Package messaging 提供基于 Redis Streams 的消息队列实现
package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"content-gen-api/internal/domain/service"
	"content-gen-api/pkg/logger"
	"content-gen-api/pkg/metrics"
	"content-gen-api/pkg/tracer"
)

var msgTracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
}

var _ service.GenerationEventPublisher = (*Producer)(nil)

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{
		client: client,
		maxLen: maxLen,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := msgTracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{"data": string(data)},
	}).Result()
	if err != nil {
		span.RecordError(err)
		metrics.RedisStreamProcessed.WithLabelValues(string(stream), "publish_error").Inc()
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	metrics.RedisStreamProcessed.WithLabelValues(string(stream), "published").Inc()
	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PublishGenerationEvent 发布生成结算事件
func (p *Producer) PublishGenerationEvent(ctx context.Context, evt *service.GenerationEvent) error {
	msg, err := NewMessage(evt.ContentID, MessageTypeContentGenerated, evt.UserID, evt)
	if err != nil {
		return err
	}
	msg.SetMetadata("request_id", logger.RequestIDFromContext(ctx))
	msg.SetMetadata("trace_id", tracer.TraceID(ctx))
	msg.SetMetadata("status", evt.Status)

	_, err = p.Publish(ctx, StreamContentGenerated, msg)
	return err
}
