package messaging

import (
	"context"
	"fmt"

	"content-gen-api/internal/domain/service"
)

// GenerationEventHandler 将生成事件处理函数适配为 MessageHandler
func GenerationEventHandler(fn func(ctx context.Context, evt *service.GenerationEvent) error) MessageHandler {
	return func(ctx context.Context, msg *Message) error {
		var evt service.GenerationEvent
		if err := msg.UnmarshalPayload(&evt); err != nil {
			return fmt.Errorf("failed to decode generation event %s: %w", msg.ID, err)
		}
		if evt.UserID == "" {
			evt.UserID = msg.UserID
		}
		return fn(ctx, &evt)
	}
}
