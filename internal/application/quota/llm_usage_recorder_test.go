package quota_test

import (
	"context"
	"testing"
	"time"

	"content-gen-api/internal/application/quota"
	"content-gen-api/internal/domain/service"
	"content-gen-api/internal/infrastructure/persistence/postgres"
	"content-gen-api/internal/infrastructure/persistence/postgres/postgrestest"
)

func TestLLMUsageRecorder_RecordIsIdempotent(t *testing.T) {
	client := postgrestest.NewClient(t)
	repo := postgres.NewLLMUsageEventRepository(client)
	rec := quota.NewLLMUsageRecorder(repo)
	ctx := context.Background()

	in := service.LLMUsageInput{
		EventID:          "7f1c1c52-6a43-5d0c-9a39-0c0b3e1f6d10",
		UserID:           "5a3f0e5e-2c1b-4a8e-9b7d-111111111111",
		ContentID:        "5a3f0e5e-2c1b-4a8e-9b7d-222222222222",
		Workflow:         service.WorkflowContent,
		Provider:         "anthropic",
		Model:            "claude-sonnet-4-5",
		PromptTokens:     100,
		CompletionTokens: 900,
		DurationMs:       1500,
	}
	for i := 0; i < 2; i++ {
		if err := rec.Record(ctx, in); err != nil {
			t.Fatalf("Record error: %v", err)
		}
	}

	total, err := repo.GetTokenUsage(ctx, in.UserID, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("GetTokenUsage error: %v", err)
	}
	if total != 1000 {
		t.Fatalf("total tokens = %d, want 1000", total)
	}
}

func TestLLMUsageRecorder_SkipsAnonymousAndRejectsNegative(t *testing.T) {
	client := postgrestest.NewClient(t)
	rec := quota.NewLLMUsageRecorder(postgres.NewLLMUsageEventRepository(client))

	if err := rec.Record(context.Background(), service.LLMUsageInput{PromptTokens: 5}); err != nil {
		t.Fatalf("anonymous usage should be skipped, got %v", err)
	}
	if err := rec.Record(context.Background(), service.LLMUsageInput{UserID: "u", PromptTokens: -1}); err == nil {
		t.Fatal("expected error for negative tokens")
	}
}

func TestLLMUsageRecorder_RecordGenerationEventRedelivery(t *testing.T) {
	client := postgrestest.NewClient(t)
	repo := postgres.NewLLMUsageEventRepository(client)
	rec := quota.NewLLMUsageRecorder(repo)
	ctx := context.Background()

	userID := "5a3f0e5e-2c1b-4a8e-9b7d-333333333333"
	evt := &service.GenerationEvent{
		ContentID: "5a3f0e5e-2c1b-4a8e-9b7d-444444444444",
		UserID:    userID,
		Status:    "completed",
		Usage: []service.LLMUsageInput{
			{EventID: "0b7a8d0e-1f5e-5c9b-8f3e-000000000001", Workflow: service.WorkflowOutlineFull, PromptTokens: 50, CompletionTokens: 50},
			{EventID: "0b7a8d0e-1f5e-5c9b-8f3e-000000000002", Workflow: service.WorkflowContent, PromptTokens: 200, CompletionTokens: 700},
		},
	}
	// 消费者重投同一事件
	for i := 0; i < 2; i++ {
		if err := rec.RecordGenerationEvent(ctx, evt); err != nil {
			t.Fatalf("RecordGenerationEvent error: %v", err)
		}
	}

	total, err := repo.GetTokenUsage(ctx, userID, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("GetTokenUsage error: %v", err)
	}
	if total != 1000 {
		t.Fatalf("total tokens = %d, want 1000", total)
	}
}
