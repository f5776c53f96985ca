package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"content-gen-api/internal/domain/entity"
	"content-gen-api/internal/domain/repository"
	"content-gen-api/internal/infrastructure/persistence/postgres"
	"content-gen-api/internal/infrastructure/persistence/postgres/postgrestest"
)

func seedUser(t *testing.T, repo *postgres.UserRepository, used, limit, flexy int) *entity.User {
	t.Helper()
	u := entity.NewUser(t.Name()+"@example.com", "tester", entity.PlanTypeFree, limit)
	u.RequestsUsed = used
	u.FlexyRequests = flexy
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestUserRepository_Debit(t *testing.T) {
	cases := []struct {
		name                string
		used, limit, flexy  int
		cost                int
		wantUsed, wantFlexy int
		wantConflict        bool
	}{
		{name: "plan only", used: 0, limit: 10, cost: 4, wantUsed: 4},
		{name: "exact boundary", used: 6, limit: 10, cost: 4, wantUsed: 10},
		{name: "insufficient", used: 8, limit: 10, cost: 4, wantConflict: true},
		{name: "flexy covers cost", used: 3, limit: 10, flexy: 5, cost: 4, wantUsed: 3, wantFlexy: 1},
		{name: "flexy partially covers", used: 3, limit: 10, flexy: 1, cost: 4, wantUsed: 6},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := postgrestest.NewClient(t)
			repo := postgres.NewUserRepository(client)
			u := seedUser(t, repo, tc.used, tc.limit, tc.flexy)

			got, err := repo.Debit(context.Background(), u.ID, tc.cost)
			if tc.wantConflict {
				if !errors.Is(err, repository.ErrQuotaConflict) {
					t.Fatalf("expected ErrQuotaConflict, got %v", err)
				}
				reloaded, _ := repo.GetByID(context.Background(), u.ID)
				if reloaded.RequestsUsed != tc.used || reloaded.FlexyRequests != tc.flexy {
					t.Fatalf("counters changed on conflict: %+v", reloaded)
				}
				return
			}
			if err != nil {
				t.Fatalf("Debit() error = %v", err)
			}
			if got.RequestsUsed != tc.wantUsed || got.FlexyRequests != tc.wantFlexy {
				t.Fatalf("got used=%d flexy=%d, want used=%d flexy=%d",
					got.RequestsUsed, got.FlexyRequests, tc.wantUsed, tc.wantFlexy)
			}
		})
	}
}

func TestUserRepository_DebitUnknownUser(t *testing.T) {
	repo := postgres.NewUserRepository(postgrestest.NewClient(t))
	if _, err := repo.Debit(context.Background(), "00000000-0000-0000-0000-000000000000", 4); !errors.Is(err, repository.ErrQuotaConflict) {
		t.Fatalf("expected ErrQuotaConflict, got %v", err)
	}
	u, err := repo.GetByID(context.Background(), "00000000-0000-0000-0000-000000000000")
	if err != nil || u != nil {
		t.Fatalf("GetByID() = %v, %v; want nil, nil", u, err)
	}
}

func TestTxManager_RollsBackOnError(t *testing.T) {
	client := postgrestest.NewClient(t)
	users := postgres.NewUserRepository(client)
	contents := postgres.NewGeneratedContentRepository(client)
	tx := postgres.NewTxManager(client)
	u := seedUser(t, users, 0, 10, 0)

	boom := errors.New("boom")
	err := tx.WithTransaction(context.Background(), func(ctx context.Context) error {
		if err := contents.Create(ctx, &entity.GeneratedContent{UserID: u.ID, Status: entity.ContentStatusCompleted}); err != nil {
			return err
		}
		if _, err := users.Debit(ctx, u.ID, 4); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	page, err := contents.ListByUser(context.Background(), u.ID, repository.NewPagination(1, 10))
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if page.Total != 0 {
		t.Fatalf("expected no records after rollback, got %d", page.Total)
	}
	reloaded, _ := users.GetByID(context.Background(), u.ID)
	if reloaded.RequestsUsed != 0 {
		t.Fatalf("expected no debit after rollback, got used=%d", reloaded.RequestsUsed)
	}
}

func TestGeneratedContentRepository_ListByUser(t *testing.T) {
	client := postgrestest.NewClient(t)
	users := postgres.NewUserRepository(client)
	contents := postgres.NewGeneratedContentRepository(client)
	u := seedUser(t, users, 0, 10, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := contents.Create(ctx, &entity.GeneratedContent{UserID: u.ID, Status: entity.ContentStatusCompleted, Content: "x"}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if err := contents.Create(ctx, &entity.GeneratedContent{UserID: "11111111-1111-1111-1111-111111111111", Status: entity.ContentStatusFailed}); err != nil {
		t.Fatalf("create other: %v", err)
	}

	page, err := contents.ListByUser(ctx, u.ID, repository.NewPagination(1, 2))
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if page.Total != 3 || len(page.Items) != 2 || page.TotalPages != 2 {
		t.Fatalf("unexpected page: total=%d items=%d pages=%d", page.Total, len(page.Items), page.TotalPages)
	}
}

func TestLLMUsageEventRepository_CreateIsIdempotent(t *testing.T) {
	repo := postgres.NewLLMUsageEventRepository(postgrestest.NewClient(t))
	ctx := context.Background()
	evt := func() *entity.LLMUsageEvent {
		return &entity.LLMUsageEvent{
			ID: "22222222-2222-2222-2222-222222222222", UserID: "u", Workflow: "content",
			Provider: "anthropic", Model: "m", TokensPrompt: 10, TokensCompletion: 5,
		}
	}

	if err := repo.Create(ctx, evt()); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := repo.Create(ctx, evt()); err != nil {
		t.Fatalf("duplicate create: %v", err)
	}

	now := time.Now()
	total, err := repo.GetTokenUsage(ctx, "u", now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetTokenUsage() error = %v", err)
	}
	if total != 15 {
		t.Fatalf("total tokens = %d, want 15", total)
	}
}
