package syringe

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/openfroyo/syringe/pkg/compiler"
	"github.com/openfroyo/syringe/pkg/engine"
	"github.com/openfroyo/syringe/pkg/resolver"
	"github.com/openfroyo/syringe/pkg/stores"
	"github.com/openfroyo/syringe/pkg/telemetry"
)

const appYAML = `
parameters:
  greeting: hello
  env: $APP_ENV$
services:
  greeter:
    class: Greeter
    arguments: ["%greeting%", "%env%"]
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func newRequest(dir string) compiler.Request {
	return compiler.Request{
		AppDir: dir,
		Files:  []compiler.FileSpec{{Path: "app.yml"}},
	}
}

func newTestBuilder(store stores.Store, validate bool, env resolver.MapEnvironment) *Builder {
	return New(Options{
		Store:         store,
		ValidateCache: validate,
		Compiler:      []compiler.Option{compiler.WithEnvironment(env)},
	})
}

func greeterArgs(t *testing.T, res *Result) []any {
	t.Helper()
	def, ok := res.Config.Service("greeter")
	if !ok {
		t.Fatalf("expected greeter service")
	}
	return def.Arguments
}

func TestBuild_NoStore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.yml"), appYAML)

	b := newTestBuilder(nil, false, resolver.MapEnvironment{"APP_ENV": "test"})
	res, err := b.Build(context.Background(), newRequest(dir))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if res.CacheHit {
		t.Errorf("expected no cache hit without a store")
	}
	if res.RunID == "" || res.CacheKey == "" {
		t.Errorf("expected run ID and cache key, got %q/%q", res.RunID, res.CacheKey)
	}
	if diff := cmp.Diff([]any{"hello", "test"}, greeterArgs(t, res)); diff != "" {
		t.Errorf("arguments mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_CacheHit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.yml"), appYAML)
	ctx := context.Background()

	store := stores.NewMemoryStore()
	b := newTestBuilder(store, true, resolver.MapEnvironment{"APP_ENV": "test"})

	first, err := b.Build(ctx, newRequest(dir))
	if err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	if first.CacheHit {
		t.Errorf("expected first build to miss")
	}

	second, err := b.Build(ctx, newRequest(dir))
	if err != nil {
		t.Fatalf("second Build failed: %v", err)
	}
	if !second.CacheHit {
		t.Errorf("expected second build to hit")
	}
	if first.CacheKey != second.CacheKey {
		t.Errorf("expected equal cache keys, got %s and %s", first.CacheKey, second.CacheKey)
	}
	if diff := cmp.Diff(first.Config.Parameters, second.Config.Parameters); diff != "" {
		t.Errorf("cached parameters mismatch (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first.Config.Files, second.Config.Files); diff != "" {
		t.Errorf("cached files mismatch (-first +second):\n%s", diff)
	}

	rec, err := store.GetCompiled(ctx, first.CacheKey)
	if err != nil {
		t.Fatalf("GetCompiled failed: %v", err)
	}
	if rec.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", rec.Hits)
	}
	if rec.Services != 1 || rec.AppDir != dir {
		t.Errorf("expected 1 service in %s, got %d in %s", dir, rec.Services, rec.AppDir)
	}

	run, err := store.GetRun(ctx, second.RunID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != stores.RunStatusCompleted || !run.CacheHit {
		t.Errorf("expected completed cache-hit run, got %s hit=%v", run.Status, run.CacheHit)
	}
}

func TestBuild_Invalidation(t *testing.T) {
	tests := []struct {
		name     string
		validate bool
		change   func(t *testing.T, dir string, env resolver.MapEnvironment)
		wantHit  bool
		wantArgs []any
	}{
		{
			name:     "file edited",
			validate: true,
			change: func(t *testing.T, dir string, _ resolver.MapEnvironment) {
				writeFile(t, filepath.Join(dir, "app.yml"), appYAML+"\n  extra:\n    class: Extra\n")
			},
			wantArgs: []any{"hello", "test"},
		},
		{
			name:     "environment changed",
			validate: true,
			change: func(_ *testing.T, _ string, env resolver.MapEnvironment) {
				env["APP_ENV"] = "prod"
			},
			wantArgs: []any{"hello", "prod"},
		},
		{
			name:     "unvalidated cache serves stale entry",
			validate: false,
			change: func(_ *testing.T, _ string, env resolver.MapEnvironment) {
				env["APP_ENV"] = "prod"
			},
			wantHit:  true,
			wantArgs: []any{"hello", "test"},
		},
		{
			name:     "unrelated variable",
			validate: true,
			change: func(_ *testing.T, _ string, env resolver.MapEnvironment) {
				env["OTHER"] = "x"
			},
			wantHit:  true,
			wantArgs: []any{"hello", "test"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, "app.yml"), appYAML)
			env := resolver.MapEnvironment{"APP_ENV": "test"}
			b := newTestBuilder(stores.NewMemoryStore(), tt.validate, env)
			ctx := context.Background()

			if _, err := b.Build(ctx, newRequest(dir)); err != nil {
				t.Fatalf("first Build failed: %v", err)
			}
			tt.change(t, dir, env)

			res, err := b.Build(ctx, newRequest(dir))
			if err != nil {
				t.Fatalf("second Build failed: %v", err)
			}
			if res.CacheHit != tt.wantHit {
				t.Errorf("expected cache hit %v, got %v", tt.wantHit, res.CacheHit)
			}
			if diff := cmp.Diff(tt.wantArgs, greeterArgs(t, res)); diff != "" {
				t.Errorf("arguments mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuild_CorruptEntry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.yml"), appYAML)
	ctx := context.Background()

	store := stores.NewMemoryStore()
	b := newTestBuilder(store, false, resolver.MapEnvironment{"APP_ENV": "test"})
	req := newRequest(dir)

	key, err := req.CacheKey()
	if err != nil {
		t.Fatalf("CacheKey failed: %v", err)
	}
	if err := store.PutCompiled(ctx, &stores.CompiledRecord{Key: key, Data: "{not json"}); err != nil {
		t.Fatalf("PutCompiled failed: %v", err)
	}

	res, err := b.Build(ctx, req)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if res.CacheHit {
		t.Errorf("expected corrupt entry to be recompiled")
	}

	rec, err := store.GetCompiled(ctx, key)
	if err != nil {
		t.Fatalf("GetCompiled failed: %v", err)
	}
	if rec.Services != 1 {
		t.Errorf("expected entry to be replaced, got %d services", rec.Services)
	}
}

func TestBuild_Failure(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store := stores.NewMemoryStore()
	b := newTestBuilder(store, true, resolver.MapEnvironment{})

	_, err := b.Build(ctx, newRequest(dir))
	if !engine.IsLoaderError(err) {
		t.Fatalf("expected loader error, got %v", err)
	}

	runs, err := store.ListRuns(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].Status != stores.RunStatusFailed {
		t.Errorf("expected failed run, got %s", runs[0].Status)
	}
	if runs[0].ErrorKind == nil || *runs[0].ErrorKind != string(engine.KindLoader) {
		t.Errorf("expected error kind loader, got %v", runs[0].ErrorKind)
	}

	if _, err := b.Build(ctx, compiler.Request{}); !errors.Is(err, engine.ErrConfig) {
		t.Errorf("expected config error for empty request, got %v", err)
	}
}

func TestBuild_SQLiteStore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.yml"), appYAML)
	ctx := context.Background()

	store, err := stores.NewSQLiteStore(stores.Config{Path: filepath.Join(t.TempDir(), "cache.db")})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	b := newTestBuilder(store, true, resolver.MapEnvironment{"APP_ENV": "test"})
	if _, err := b.Build(ctx, newRequest(dir)); err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	res, err := b.Build(ctx, newRequest(dir))
	if err != nil {
		t.Fatalf("second Build failed: %v", err)
	}
	if !res.CacheHit {
		t.Errorf("expected cache hit from sqlite store")
	}
	if diff := cmp.Diff([]any{"hello", "test"}, greeterArgs(t, res)); diff != "" {
		t.Errorf("arguments mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_Telemetry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.yml"), appYAML)

	cfg := telemetry.DefaultConfig()
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		t.Fatalf("failed to create telemetry: %v", err)
	}
	defer tel.Shutdown(context.Background())

	var types []string
	tel.Events.Subscribe(func(e telemetry.Event) { types = append(types, e.Type) }, nil)

	b := New(Options{
		Store:     stores.NewMemoryStore(),
		Telemetry: tel,
		Compiler:  []compiler.Option{compiler.WithEnvironment(resolver.MapEnvironment{"APP_ENV": "test"})},
	})
	for range 2 {
		if _, err := b.Build(context.Background(), newRequest(dir)); err != nil {
			t.Fatalf("Build failed: %v", err)
		}
	}

	want := []string{
		telemetry.EventTypeCompileStarted, telemetry.EventTypeCacheMiss, telemetry.EventTypeCompileCompleted,
		telemetry.EventTypeCompileStarted, telemetry.EventTypeCacheHit, telemetry.EventTypeCompileCompleted,
	}
	if diff := cmp.Diff(want, types); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

// runlessStore caches normally but cannot record runs.
type runlessStore struct {
	*stores.MemoryStore
}

func (runlessStore) CreateRun(context.Context, *stores.Run) error {
	return errors.New("disk full")
}

func TestBuild_StoreWarningsCarryCompileID(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.yml"), appYAML)

	var buf bytes.Buffer
	tel := telemetry.Nop()
	tel.Logger = telemetry.NewLoggerWithWriter(telemetry.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	b := New(Options{
		Store:     runlessStore{stores.NewMemoryStore()},
		Telemetry: tel,
		Compiler:  []compiler.Option{compiler.WithEnvironment(resolver.MapEnvironment{"APP_ENV": "test"})},
	})
	res, err := b.Build(context.Background(), newRequest(dir))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"failed to record compile run", "disk full", `"compile_id":"` + res.RunID + `"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log output to contain %q, got:\n%s", want, out)
		}
	}
}
