package quota_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"content-gen-api/internal/application/quota"
	"content-gen-api/internal/config"
	"content-gen-api/internal/domain/entity"
	"content-gen-api/internal/domain/repository"
	"content-gen-api/internal/infrastructure/persistence/postgres"
	"content-gen-api/internal/infrastructure/persistence/postgres/postgrestest"
)

type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	loads   int
	deleted []string
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) GetOrLoad(ctx context.Context, key string, _ time.Duration, loader func(ctx context.Context) (any, error)) ([]byte, error) {
	c.mu.Lock()
	if v, ok := c.data[key]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.loads++
	c.mu.Unlock()

	v, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.data[key] = raw
	c.mu.Unlock()
	return raw, nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
		c.deleted = append(c.deleted, k)
	}
	return nil
}

type fixture struct {
	users    *postgres.UserRepository
	contents *postgres.GeneratedContentRepository
	tx       *postgrestest.InjectedTransactor
	cache    *memCache
	ledger   *quota.Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := postgrestest.NewClient(t)
	f := &fixture{
		users:    postgres.NewUserRepository(client),
		contents: postgres.NewGeneratedContentRepository(client),
		tx:       &postgrestest.InjectedTransactor{Inner: postgres.NewTxManager(client)},
		cache:    newMemCache(),
	}
	f.ledger = quota.NewLedger(f.users, f.contents, f.tx, f.cache, &config.GenerationConfig{Cost: 4})
	return f
}

func (f *fixture) seed(t *testing.T, used, limit, flexy int) *entity.User {
	t.Helper()
	u := entity.NewUser(t.Name()+"@example.com", "tester", entity.PlanTypeFree, limit)
	u.RequestsUsed = used
	u.FlexyRequests = flexy
	if err := f.users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func completedRecord(userID string, cost int) *entity.GeneratedContent {
	return &entity.GeneratedContent{
		UserID:  userID,
		Status:  entity.ContentStatusCompleted,
		Topic:   "valid 10+ char topic",
		Content: "# Title\n\nbody",
		Cost:    cost,
	}
}

func TestLedger_CheckAdmission(t *testing.T) {
	cases := []struct {
		name               string
		used, limit, flexy int
		wantAdmitted       bool
		wantRemaining      int
	}{
		{name: "fresh user", used: 0, limit: 10, wantAdmitted: true, wantRemaining: 10},
		{name: "exact boundary", used: 6, limit: 10, wantAdmitted: true, wantRemaining: 4},
		{name: "one short", used: 7, limit: 10, wantAdmitted: false, wantRemaining: 3},
		{name: "denied", used: 8, limit: 10, wantAdmitted: false, wantRemaining: 2},
		{name: "flexy rescues", used: 8, limit: 10, flexy: 2, wantAdmitted: true, wantRemaining: 4},
		{name: "over used", used: 12, limit: 10, wantAdmitted: false, wantRemaining: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			u := f.seed(t, tc.used, tc.limit, tc.flexy)

			adm, err := f.ledger.CheckAdmission(context.Background(), u.ID)
			if err != nil {
				t.Fatalf("CheckAdmission error: %v", err)
			}
			if adm.Admitted != tc.wantAdmitted || adm.Remaining != tc.wantRemaining {
				t.Fatalf("admission = %+v, want admitted=%v remaining=%d", adm, tc.wantAdmitted, tc.wantRemaining)
			}
			if !adm.Admitted && adm.Message == "" {
				t.Fatal("denial must carry a message")
			}
			if adm.PlanType != entity.PlanTypeFree {
				t.Fatalf("plan type = %s", adm.PlanType)
			}
		})
	}
}

func TestLedger_CheckAdmissionUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.CheckAdmission(context.Background(), "00000000-0000-0000-0000-000000000000")
	var nf *quota.UserNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want UserNotFoundError", err)
	}
}

func TestLedger_SettleCommitsRecordAndDebit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seed(t, 0, 10, 0)

	res, err := f.ledger.Settle(ctx, completedRecord(u.ID, f.ledger.Cost()))
	if err != nil {
		t.Fatalf("Settle error: %v", err)
	}
	if res.Remaining != 6 {
		t.Fatalf("remaining = %d, want 6", res.Remaining)
	}
	stored, err := f.contents.GetByID(ctx, res.Record.ID)
	if err != nil || stored == nil {
		t.Fatalf("record not stored: %v", err)
	}
	reloaded, _ := f.users.GetByID(ctx, u.ID)
	if reloaded.RequestsUsed != 4 {
		t.Fatalf("requests_used = %d, want 4", reloaded.RequestsUsed)
	}
	if len(f.cache.deleted) != 1 || f.cache.deleted[0] != quota.SnapshotKey(u.ID) {
		t.Fatalf("cache invalidation = %v", f.cache.deleted)
	}
}

func TestLedger_SettleIsAtomicOnInjectedFault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seed(t, 2, 10, 3)
	f.tx.FailAfterBody = postgrestest.ErrInjected

	record := completedRecord(u.ID, 4)
	_, err := f.ledger.Settle(ctx, record)
	if !errors.Is(err, postgrestest.ErrInjected) {
		t.Fatalf("err = %v, want injected fault", err)
	}

	if record.ID != "" {
		if stored, _ := f.contents.GetByID(ctx, record.ID); stored != nil {
			t.Fatal("content record survived a rolled back settlement")
		}
	}
	page, err := f.contents.ListByUser(ctx, u.ID, repositoryPage())
	if err != nil {
		t.Fatalf("ListByUser error: %v", err)
	}
	if page.Total != 0 {
		t.Fatalf("records = %d, want 0", page.Total)
	}
	reloaded, _ := f.users.GetByID(ctx, u.ID)
	if reloaded.RequestsUsed != 2 || reloaded.FlexyRequests != 3 {
		t.Fatalf("quota changed after rollback: used=%d flexy=%d", reloaded.RequestsUsed, reloaded.FlexyRequests)
	}
	if len(f.cache.deleted) != 0 {
		t.Fatal("cache must not be invalidated on rollback")
	}
}

func TestLedger_SettleRejectsWhenQuotaRaced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seed(t, 8, 10, 0)

	_, err := f.ledger.Settle(ctx, completedRecord(u.ID, 4))
	var insufficient *quota.InsufficientQuotaError
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want InsufficientQuotaError", err)
	}
	page, _ := f.contents.ListByUser(ctx, u.ID, repositoryPage())
	if page.Total != 0 {
		t.Fatalf("records = %d, want 0", page.Total)
	}
}

func TestLedger_SettleFailedRecordDoesNotDebit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seed(t, 8, 10, 0)

	record := &entity.GeneratedContent{
		UserID:       u.ID,
		Status:       entity.ContentStatusFailed,
		ErrorMessage: "content generation failed",
	}
	res, err := f.ledger.Settle(ctx, record)
	if err != nil {
		t.Fatalf("Settle error: %v", err)
	}
	if res.Remaining != 2 {
		t.Fatalf("remaining = %d, want 2", res.Remaining)
	}
	reloaded, _ := f.users.GetByID(ctx, u.ID)
	if reloaded.RequestsUsed != 8 {
		t.Fatalf("requests_used = %d, want 8", reloaded.RequestsUsed)
	}
}

func TestLedger_SnapshotUsesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seed(t, 1, 10, 2)

	for i := 0; i < 3; i++ {
		snap, err := f.ledger.Snapshot(ctx, u.ID)
		if err != nil {
			t.Fatalf("Snapshot error: %v", err)
		}
		if snap.Remaining != 11 || snap.FlexyRequests != 2 {
			t.Fatalf("snapshot = %+v", snap)
		}
	}
	if f.cache.loads != 1 {
		t.Fatalf("loads = %d, want 1", f.cache.loads)
	}

	if _, err := f.ledger.Settle(ctx, completedRecord(u.ID, 4)); err != nil {
		t.Fatalf("Settle error: %v", err)
	}
	snap, err := f.ledger.Snapshot(ctx, u.ID)
	if err != nil {
		t.Fatalf("Snapshot error: %v", err)
	}
	if snap.Remaining != 7 || f.cache.loads != 2 {
		t.Fatalf("snapshot after settle = %+v loads=%d", snap, f.cache.loads)
	}
}

func repositoryPage() repository.Pagination {
	return repository.NewPagination(1, 20)
}
