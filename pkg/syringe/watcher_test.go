package syringe

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/openfroyo/syringe/pkg/compiler"
	"github.com/openfroyo/syringe/pkg/resolver"
	"github.com/openfroyo/syringe/pkg/stores"
)

type buildOutcome struct {
	res *Result
	err error
}

func startWatcher(t *testing.T, w *Watcher) <-chan buildOutcome {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan buildOutcome, 8)
	done := make(chan error, 1)

	go func() {
		done <- w.Run(ctx, func(res *Result, err error) {
			out <- buildOutcome{res, err}
		})
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run returned error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Errorf("watcher did not stop")
		}
	})
	return out
}

func nextOutcome(t *testing.T, out <-chan buildOutcome) buildOutcome {
	t.Helper()
	select {
	case o := <-out:
		return o
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for build")
		return buildOutcome{}
	}
}

func TestWatcher_RebuildsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.yml"), appYAML+"imports: [extra.yml]\n")
	writeFile(t, filepath.Join(dir, "extra.yml"), "parameters:\n  extra: one\n")

	// A cache that is never validated on Build still must not serve stale
	// entries to the watcher.
	b := newTestBuilder(stores.NewMemoryStore(), false, resolver.MapEnvironment{"APP_ENV": "test"})
	out := startWatcher(t, b.NewWatcher(newRequest(dir), WithDebounce(50*time.Millisecond)))

	first := nextOutcome(t, out)
	if first.err != nil {
		t.Fatalf("initial build failed: %v", first.err)
	}
	if first.res.Config.Parameters["extra"] != "one" {
		t.Fatalf("expected extra=one, got %v", first.res.Config.Parameters["extra"])
	}

	// Imported files are watched too.
	writeFile(t, filepath.Join(dir, "extra.yml"), "parameters:\n  extra: two\n")
	second := nextOutcome(t, out)
	if second.err != nil {
		t.Fatalf("rebuild failed: %v", second.err)
	}
	if second.res.CacheHit {
		t.Errorf("expected rebuild to recompile")
	}
	if diff := cmp.Diff("two", second.res.Config.Parameters["extra"]); diff != "" {
		t.Errorf("extra mismatch (-want +got):\n%s", diff)
	}
}

func TestWatcher_RecoversFromError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.yml"), "services:\n  broken:\n    arguments: []\n")

	b := newTestBuilder(nil, false, resolver.MapEnvironment{"APP_ENV": "test"})
	out := startWatcher(t, b.NewWatcher(newRequest(dir), WithDebounce(50*time.Millisecond)))

	first := nextOutcome(t, out)
	if first.err == nil {
		t.Fatalf("expected initial build to fail")
	}

	writeFile(t, filepath.Join(dir, "app.yml"), appYAML)
	second := nextOutcome(t, out)
	if second.err != nil {
		t.Fatalf("expected rebuild to succeed, got %v", second.err)
	}
	if _, ok := second.res.Config.Service("greeter"); !ok {
		t.Errorf("expected greeter after fix")
	}
}

func TestRequestFiles(t *testing.T) {
	dir := t.TempDir()
	other := t.TempDir()
	writeFile(t, filepath.Join(other, "app.yml"), appYAML)

	req := compiler.Request{
		AppDir:      dir,
		SearchPaths: []string{dir, other},
		Files: []compiler.FileSpec{
			{Path: "app.yml"},
			{Path: "/abs/missing.yml"},
			{Path: "nowhere.yml"},
		},
	}

	got := requestFiles(req)
	want := []string{filepath.Join(other, "app.yml"), "/abs/missing.yml"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}
}
