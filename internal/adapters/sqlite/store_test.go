package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/chorerules/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/chorerules/internal/core/domain"
	"github.com/atvirokodosprendimai/chorerules/migrations"
)

func openTestDB(t *testing.T) (*gormsqlite.DB, *sql.DB) {
	t.Helper()
	db, err := gormsqlite.Open(filepath.Join(t.TempDir(), "chorerules.sqlite"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	wdb, err := db.WriteSQLDB()
	if err != nil {
		t.Fatalf("writer sql db: %v", err)
	}
	if err := migrations.Up(context.Background(), wdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db, wdb
}

func newTestConfig(t *testing.T, familyID string) domain.FamilyConfig {
	t.Helper()
	cfg, err := domain.NewFamilyConfig(familyID, "parent", domain.StrictnessNormal, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("new config: %v", err)
	}
	return cfg
}

func TestConfigStoreCreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	db, wdb := openTestDB(t)
	store := NewConfigStore(db)

	if _, err := store.Get(ctx, "fam-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	cfg := newTestConfig(t, "fam-1")
	cfg.CustomMessages = map[string]string{"title": "Name the chore"}
	if _, err := store.Create(ctx, cfg, domain.ChangeMetadata{Actor: "parent"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Create(ctx, cfg, domain.ChangeMetadata{}); !errors.Is(err, domain.ErrConfigExists) {
		t.Fatalf("expected config exists, got %v", err)
	}

	got, err := store.Get(ctx, "fam-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Version != 1 || *got.ChoreRules.Title.MaxLength != *cfg.ChoreRules.Title.MaxLength || got.CustomMessages["title"] != "Name the chore" {
		t.Fatalf("unexpected round trip %+v", got)
	}

	updated, err := store.Update(ctx, "fam-1", domain.ChangeMetadata{Actor: "other"}, func(c *domain.FamilyConfig) error {
		c.IsEnabled = false
		c.Bump(domain.ActionReset, "other", "", time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC), 0)
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != 2 || updated.IsEnabled {
		t.Fatalf("unexpected update result %+v", updated)
	}

	rows, err := wdb.QueryContext(ctx, "SELECT topic, payload_json FROM outbox_events ORDER BY id")
	if err != nil {
		t.Fatalf("query outbox: %v", err)
	}
	defer rows.Close()
	var topics []string
	for rows.Next() {
		var topic, payload string
		if err := rows.Scan(&topic, &payload); err != nil {
			t.Fatalf("scan: %v", err)
		}
		var env domain.EventEnvelope
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		if env.FamilyID != "fam-1" || env.EventID == "" {
			t.Fatalf("unexpected envelope %+v", env)
		}
		topics = append(topics, topic)
	}
	want := []string{"families.fam-1.validation_config.created", "families.fam-1.validation_config.reset"}
	if strings.Join(topics, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected topics %v", topics)
	}
}

func TestConfigStoreUpdateCallbackErrorRollsBack(t *testing.T) {
	ctx := context.Background()
	db, wdb := openTestDB(t)
	store := NewConfigStore(db)
	if _, err := store.Create(ctx, newTestConfig(t, "fam-1"), domain.ChangeMetadata{}); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := store.Update(ctx, "fam-1", domain.ChangeMetadata{}, func(c *domain.FamilyConfig) error {
		return domain.ErrInvalidConfig
	})
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected callback error, got %v", err)
	}
	assertTableCount(t, ctx, wdb, "outbox_events", 1)

	if _, err := store.Update(ctx, "fam-x", domain.ChangeMetadata{}, func(*domain.FamilyConfig) error { return nil }); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConfigStoreOutboxFailureRollsBackWrite(t *testing.T) {
	ctx := context.Background()
	db, wdb := openTestDB(t)
	store := NewConfigStore(db)

	if _, err := wdb.ExecContext(ctx, `
		CREATE TRIGGER trg_fail_outbox_insert
		BEFORE INSERT ON outbox_events
		BEGIN
			SELECT RAISE(ABORT, 'forced outbox failure');
		END;
	`); err != nil {
		t.Fatalf("create failure trigger: %v", err)
	}

	_, err := store.Create(ctx, newTestConfig(t, "fam-1"), domain.ChangeMetadata{})
	if err == nil || !strings.Contains(err.Error(), "forced outbox failure") {
		t.Fatalf("expected forced outbox failure, got: %v", err)
	}
	assertTableCount(t, ctx, wdb, "family_validation_configs", 0)
	assertTableCount(t, ctx, wdb, "outbox_events", 0)
}

func TestPresetRepositoryVisibilityAndUsage(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDB(t)
	repo := NewPresetRepository(db)
	base := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	maxPoints := 20.0

	seed := []domain.Preset{
		{ID: "public-1", Name: "Little kids", IsPublic: true, CreatedBy: "system", CreatedAt: base,
			Config: domain.ConfigPatch{ChoreRules: &domain.ChoreRulesPatch{Points: &domain.RuleConfigPatch{Max: &maxPoints}}}},
		{ID: "other-private", OwnerFamilyID: "fam-2", Name: "Hidden", CreatedBy: "x", CreatedAt: base.Add(time.Minute)},
		{ID: "own", OwnerFamilyID: "fam-1", Name: "Ours", Tags: []string{"teen"}, CreatedBy: "parent", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, p := range seed {
		if _, err := repo.Create(ctx, p); err != nil {
			t.Fatalf("create %s: %v", p.ID, err)
		}
	}

	list, err := repo.ListVisible(ctx, "fam-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "own" || list[1].ID != "public-1" {
		t.Fatalf("unexpected list %+v", list)
	}
	if list[0].Tags[0] != "teen" || *list[1].Config.ChoreRules.Points.Max != 20 {
		t.Fatalf("unexpected decoded presets %+v", list)
	}

	found, err := repo.FindPublicByName(ctx, "Little kids")
	if err != nil || found.ID != "public-1" {
		t.Fatalf("find public: %v %+v", err, found)
	}
	if _, err := repo.FindPublicByName(ctx, "Hidden"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected private preset to be skipped, got %v", err)
	}

	if err := repo.IncrementUsage(ctx, "public-1"); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := repo.IncrementUsage(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if p, _ := repo.Get(ctx, "public-1"); p.UsageCount != 1 {
		t.Fatalf("expected usage 1, got %d", p.UsageCount)
	}
}

func TestAnalyticsRepositoryAccumulates(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDB(t)
	repo := NewAnalyticsRepository(db)
	at := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

	empty, err := repo.Get(ctx, "fam-1")
	if err != nil || empty.TotalValidations != 0 || empty.LastValidatedAt != nil {
		t.Fatalf("unexpected empty analytics %+v (%v)", empty, err)
	}

	deltas := []domain.AnalyticsDelta{
		{Validations: 2, Failures: 1, FieldErrors: map[string]int64{"title": 1}, At: at},
		{Validations: 1, Failures: 1, FieldErrors: map[string]int64{"title": 1, "points": 1}, At: at.Add(-time.Hour)},
		{},
	}
	for _, d := range deltas {
		if err := repo.Apply(ctx, "fam-1", d); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}

	got, err := repo.Get(ctx, "fam-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TotalValidations != 3 || got.FailedValidations != 2 {
		t.Fatalf("unexpected totals %+v", got)
	}
	if got.FieldErrorCounts["title"] != 2 || got.FieldErrorCounts["points"] != 1 {
		t.Fatalf("unexpected field counts %v", got.FieldErrorCounts)
	}
	if got.LastValidatedAt == nil || !got.LastValidatedAt.Equal(at) {
		t.Fatalf("expected latest timestamp to win, got %v", got.LastValidatedAt)
	}
}

func TestOutboxRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDB(t)
	store := NewConfigStore(db)
	repo := NewOutboxRepository(db)
	repo.now = func() time.Time { return time.Date(2030, 1, 1, 0, 0, 1, 0, time.UTC) }

	if _, err := store.Create(ctx, newTestConfig(t, "fam-1"), domain.ChangeMetadata{OccurredAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Create(ctx, newTestConfig(t, "fam-2"), domain.ChangeMetadata{OccurredAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}); err != nil {
		t.Fatalf("create: %v", err)
	}

	pending, err := repo.FetchPending(ctx, 10)
	if err != nil || len(pending) != 2 {
		t.Fatalf("expected two pending events, got %d (%v)", len(pending), err)
	}
	if pending[0].FamilyID != "fam-1" {
		t.Fatalf("unexpected first event %+v", pending[0])
	}

	if err := repo.MarkDispatched(ctx, pending[0].ID); err != nil {
		t.Fatalf("mark dispatched: %v", err)
	}
	later := time.Date(2030, 1, 1, 1, 0, 0, 0, time.UTC).Format(time.RFC3339Nano)
	if err := repo.MarkFailed(ctx, pending[1].ID, 1, later, "boom"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if next, _ := repo.FetchPending(ctx, 10); len(next) != 0 {
		t.Fatalf("expected backoff to hide the failed event, got %+v", next)
	}

	repo.now = func() time.Time { return time.Date(2030, 1, 1, 2, 0, 0, 0, time.UTC) }
	next, _ := repo.FetchPending(ctx, 10)
	if len(next) != 1 || next[0].Attempts != 1 || next[0].LastError != "boom" {
		t.Fatalf("expected retried event, got %+v", next)
	}
	if err := repo.MarkDead(ctx, next[0].ID, 2, "gave up"); err != nil {
		t.Fatalf("mark dead: %v", err)
	}
	if rest, _ := repo.FetchPending(ctx, 10); len(rest) != 0 {
		t.Fatalf("dead events must not be fetched, got %+v", rest)
	}
	if err := repo.MarkFailed(ctx, 1, 1, "not-a-time", ""); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestOutboxHoldsFamilyBehindScheduledRetry(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDB(t)
	store := NewConfigStore(db)
	repo := NewOutboxRepository(db)
	start := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return start.Add(time.Minute) }

	for _, family := range []string{"fam-1", "fam-2"} {
		if _, err := store.Create(ctx, newTestConfig(t, family), domain.ChangeMetadata{OccurredAt: start}); err != nil {
			t.Fatalf("create %s: %v", family, err)
		}
	}
	_, err := store.Update(ctx, "fam-1", domain.ChangeMetadata{OccurredAt: start}, func(c *domain.FamilyConfig) error {
		c.Bump(domain.ActionUpdated, "parent", "", start, 0)
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	pending, err := repo.FetchPending(ctx, 10)
	if err != nil || len(pending) != 3 {
		t.Fatalf("expected three pending events, got %d (%v)", len(pending), err)
	}
	retryAt := start.Add(time.Hour).Format(time.RFC3339Nano)
	if err := repo.MarkFailed(ctx, pending[0].ID, 1, retryAt, "subscriber down"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	due, err := repo.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(due) != 1 || due[0].FamilyID != "fam-2" {
		t.Fatalf("expected fam-1 to wait for its retry, got %+v", due)
	}

	repo.now = func() time.Time { return start.Add(2 * time.Hour) }
	due, _ = repo.FetchPending(ctx, 10)
	if len(due) != 3 || due[0].ID != pending[0].ID || due[2].Topic != domain.ChangeTopic("fam-1", domain.ActionUpdated) {
		t.Fatalf("expected fam-1 events back in order, got %+v", due)
	}
}

func assertTableCount(t *testing.T, ctx context.Context, wdb *sql.DB, table string, want int) {
	t.Helper()
	var got int
	row := wdb.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table)
	if err := row.Scan(&got); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	if got != want {
		t.Fatalf("unexpected %s count: got %d want %d", table, got, want)
	}
}
