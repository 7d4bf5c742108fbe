package stores

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })
	return store
}

// allStores returns every Store implementation, ready for use
func allStores(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"sqlite": setupTestStore(t),
		"memory": NewMemoryStore(),
	}
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: filepath.Join(t.TempDir(), "cache.db"),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	// Migrating twice is a no-op.
	for i := 0; i < 2; i++ {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("migration %d failed: %v", i, err)
		}
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("expected error for empty path")
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, table := range []string{"compiled_configs", "compile_runs"} {
		var count int
		if err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}
}

func TestCompiledCRUD(t *testing.T) {
	for name, store := range allStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Millisecond)

			rec := &CompiledRecord{
				Key:        "abc123",
				AppDir:     "/app",
				Files:      []string{"/app/config/app.yml", "/app/config/lib.yml"},
				Services:   3,
				Parameters: 5,
				Data:       `{"services":{}}`,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := store.PutCompiled(ctx, rec); err != nil {
				t.Fatalf("failed to put compiled config: %v", err)
			}

			got, err := store.GetCompiled(ctx, "abc123")
			if err != nil {
				t.Fatalf("failed to get compiled config: %v", err)
			}
			if diff := cmp.Diff(rec.Files, got.Files); diff != "" {
				t.Errorf("files mismatch (-want +got):\n%s", diff)
			}
			if got.Data != rec.Data {
				t.Errorf("expected data %s, got %s", rec.Data, got.Data)
			}
			if got.Services != 3 || got.Parameters != 5 {
				t.Errorf("expected 3 services and 5 parameters, got %d and %d", got.Services, got.Parameters)
			}

			// Hits
			if err := store.RecordHit(ctx, "abc123"); err != nil {
				t.Fatalf("failed to record hit: %v", err)
			}
			got, _ = store.GetCompiled(ctx, "abc123")
			if got.Hits != 1 {
				t.Errorf("expected 1 hit, got %d", got.Hits)
			}
			if got.LastHitAt == nil {
				t.Error("expected last hit time to be set")
			}

			// Last writer wins, hit count survives
			rec.Data = `{"services":{"a":{}}}`
			rec.UpdatedAt = now.Add(time.Second)
			if err := store.PutCompiled(ctx, rec); err != nil {
				t.Fatalf("failed to replace compiled config: %v", err)
			}
			got, _ = store.GetCompiled(ctx, "abc123")
			if got.Data != rec.Data {
				t.Errorf("expected replaced data, got %s", got.Data)
			}
			if got.Hits != 1 {
				t.Errorf("expected hits to survive replacement, got %d", got.Hits)
			}

			// Delete
			if err := store.DeleteCompiled(ctx, "abc123"); err != nil {
				t.Fatalf("failed to delete compiled config: %v", err)
			}
			if _, err := store.GetCompiled(ctx, "abc123"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
			if err := store.DeleteCompiled(ctx, "abc123"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound on second delete, got %v", err)
			}
			if err := store.RecordHit(ctx, "abc123"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound recording a hit, got %v", err)
			}
		})
	}
}

func TestListAndClearCompiled(t *testing.T) {
	for name, store := range allStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Now().UTC().Truncate(time.Millisecond)

			for i, key := range []string{"k1", "k2", "k3"} {
				ts := base.Add(time.Duration(i) * time.Minute)
				rec := &CompiledRecord{Key: key, Data: "{}", CreatedAt: ts, UpdatedAt: ts}
				if err := store.PutCompiled(ctx, rec); err != nil {
					t.Fatalf("failed to put %s: %v", key, err)
				}
			}

			list, err := store.ListCompiled(ctx, 2, 0)
			if err != nil {
				t.Fatalf("failed to list: %v", err)
			}
			keys := make([]string, len(list))
			for i, rec := range list {
				keys[i] = rec.Key
			}
			if diff := cmp.Diff([]string{"k3", "k2"}, keys); diff != "" {
				t.Errorf("list order mismatch (-want +got):\n%s", diff)
			}

			n, err := store.ClearCompiled(ctx)
			if err != nil {
				t.Fatalf("failed to clear: %v", err)
			}
			if n != 3 {
				t.Errorf("expected 3 deleted, got %d", n)
			}
			list, _ = store.ListCompiled(ctx, 10, 0)
			if len(list) != 0 {
				t.Errorf("expected empty cache, got %d records", len(list))
			}
		})
	}
}

func TestRuns(t *testing.T) {
	for name, store := range allStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Millisecond)

			runs := []*Run{
				{ID: "run-001", CacheKey: "k", Status: RunStatusRunning, StartedAt: now},
				{ID: "run-002", CacheKey: "k", Status: RunStatusRunning, StartedAt: now.Add(time.Second)},
			}
			for _, run := range runs {
				if err := store.CreateRun(ctx, run); err != nil {
					t.Fatalf("failed to create run: %v", err)
				}
			}

			if err := store.CompleteRun(ctx, "run-001", RunStatusCompleted, true, nil, nil); err != nil {
				t.Fatalf("failed to complete run: %v", err)
			}
			msg, kind := "boom", "config"
			if err := store.CompleteRun(ctx, "run-002", RunStatusFailed, false, &msg, &kind); err != nil {
				t.Fatalf("failed to fail run: %v", err)
			}

			first, err := store.GetRun(ctx, "run-001")
			if err != nil {
				t.Fatalf("failed to get run: %v", err)
			}
			if first.Status != RunStatusCompleted || !first.CacheHit {
				t.Errorf("expected completed cache hit, got %s hit=%v", first.Status, first.CacheHit)
			}
			if first.CompletedAt == nil {
				t.Error("expected completion time")
			}

			second, _ := store.GetRun(ctx, "run-002")
			if second.Error == nil || *second.Error != "boom" {
				t.Errorf("expected error boom, got %v", second.Error)
			}
			if second.ErrorKind == nil || *second.ErrorKind != "config" {
				t.Errorf("expected error kind config, got %v", second.ErrorKind)
			}

			list, err := store.ListRuns(ctx, 10, 0)
			if err != nil {
				t.Fatalf("failed to list runs: %v", err)
			}
			if len(list) != 2 || list[0].ID != "run-002" {
				t.Errorf("expected run-002 first, got %d runs", len(list))
			}

			if _, err := store.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
			if err := store.CompleteRun(ctx, "missing", RunStatusCompleted, false, nil, nil); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestRunDuration(t *testing.T) {
	start := time.Now()
	run := &Run{StartedAt: start}
	if run.Duration() != 0 {
		t.Errorf("expected zero duration while running, got %v", run.Duration())
	}
	end := start.Add(1500 * time.Millisecond)
	run.CompletedAt = &end
	if run.Duration() != 1500*time.Millisecond {
		t.Errorf("expected 1.5s, got %v", run.Duration())
	}
}
