package stores_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/openfroyo/syringe/pkg/stores"
)

// ExampleNewSQLiteStore demonstrates creating and initializing a new SQLite store.
func ExampleNewSQLiteStore() {
	store, err := stores.NewSQLiteStore(stores.Config{
		Path: ":memory:", // Use in-memory database for example
	})
	if err != nil {
		log.Fatal(err)
	}

	// Initialize the database connection
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	defer store.Close()

	fmt.Println("Store initialized successfully")
	// Output: Store initialized successfully
}

// ExampleSQLiteStore_PutCompiled demonstrates caching a compiled configuration.
func ExampleSQLiteStore_PutCompiled() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	now := time.Now()
	rec := &stores.CompiledRecord{
		Key:       "5e0c…",
		AppDir:    "/srv/app",
		Files:     []string{"/srv/app/config/app.yml"},
		Services:  12,
		Data:      `{"services":{}}`,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.PutCompiled(ctx, rec); err != nil {
		log.Fatal(err)
	}
	_ = store.RecordHit(ctx, rec.Key)

	cached, err := store.GetCompiled(ctx, rec.Key)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Services: %d, Hits: %d\n", cached.Services, cached.Hits)
	// Output: Services: 12, Hits: 1
}

// ExampleMemoryStore demonstrates recording a compile run.
func ExampleMemoryStore() {
	store := stores.NewMemoryStore()
	ctx := context.Background()

	_ = store.CreateRun(ctx, &stores.Run{
		ID:        "run-001",
		CacheKey:  "5e0c…",
		Status:    stores.RunStatusRunning,
		StartedAt: time.Now(),
	})
	_ = store.CompleteRun(ctx, "run-001", stores.RunStatusCompleted, true, nil, nil)

	run, _ := store.GetRun(ctx, "run-001")
	fmt.Printf("Run ID: %s, Status: %s, Cache hit: %v\n", run.ID, run.Status, run.CacheHit)
	// Output: Run ID: run-001, Status: completed, Cache hit: true
}
