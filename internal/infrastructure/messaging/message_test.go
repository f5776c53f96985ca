package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"content-gen-api/internal/domain/service"
)

func TestBackoffConfig_CalculateBackoff(t *testing.T) {
	cfg := BackoffConfig{Initial: time.Second, Max: 10 * time.Second, Multiplier: 2}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second}
	for retry, w := range want {
		if got := cfg.CalculateBackoff(retry); got != w {
			t.Errorf("CalculateBackoff(%d) = %v, want %v", retry, got, w)
		}
	}
}

func TestDecodeMessage(t *testing.T) {
	msg, err := NewMessage("c-1", MessageTypeContentGenerated, "u-1", map[string]any{"status": "completed"})
	if err != nil {
		t.Fatalf("NewMessage() error = %v", err)
	}
	msg.SetMetadata("request_id", "req-1")
	msg.SetMetadata("trace_id", "")

	raw, _ := json.Marshal(msg)
	got, err := decodeMessage(map[string]any{"data": string(raw)})
	if err != nil {
		t.Fatalf("decodeMessage() error = %v", err)
	}
	if got.UserID != "u-1" || got.GetMetadata("request_id") != "req-1" {
		t.Fatalf("unexpected message: %+v", got)
	}
	if _, ok := got.Metadata["trace_id"]; ok {
		t.Fatal("empty metadata values must not be stored")
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := got.UnmarshalPayload(&payload); err != nil || payload.Status != "completed" {
		t.Fatalf("payload = %+v, err = %v", payload, err)
	}

	if _, err := decodeMessage(map[string]any{"data": 42}); err == nil {
		t.Fatal("expected error for non-string data")
	}
}

func TestGenerationEventHandler(t *testing.T) {
	evt := &service.GenerationEvent{
		ContentID: "c-1",
		Status:    "completed",
		Usage:     []service.LLMUsageInput{{EventID: "e-1", PromptTokens: 3}},
	}
	msg, err := NewMessage(evt.ContentID, MessageTypeContentGenerated, "u-1", evt)
	if err != nil {
		t.Fatalf("NewMessage() error = %v", err)
	}

	var got *service.GenerationEvent
	h := GenerationEventHandler(func(_ context.Context, e *service.GenerationEvent) error {
		got = e
		return nil
	})
	if err := h(context.Background(), msg); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if got == nil || got.UserID != "u-1" || len(got.Usage) != 1 || got.Usage[0].EventID != "e-1" {
		t.Fatalf("decoded event = %+v", got)
	}

	msg.Payload = []byte("{broken")
	if err := h(context.Background(), msg); err == nil {
		t.Fatal("expected decode error")
	}
}
