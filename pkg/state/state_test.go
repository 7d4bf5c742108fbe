package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openfroyo/syringe/pkg/engine"
)

type mapEnv map[string]string

func (m mapEnv) LookupEnv(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

type mapConstants map[string]any

func (m mapConstants) LookupConstant(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

func writeFile(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("failed to set mtime on %s: %v", path, err)
	}
}

func TestOSInspector(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.yml")
	writeFile(t, path, "parameters: {}\n", time.Unix(1700000000, 0))

	fs, err := OSInspector{}.Inspect(path)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if len(fs.Hash) != 64 {
		t.Errorf("expected 64 hex characters, got %q", fs.Hash)
	}
	if !fs.ModTime.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("expected mtime 1700000000, got %v", fs.ModTime)
	}

	if _, err := (OSInspector{}).Inspect(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCapture_MissingFile(t *testing.T) {
	_, err := Capture(nil, "", []string{filepath.Join(t.TempDir(), "missing.yml")}, nil, nil)
	if !engine.IsLoaderError(err) {
		t.Errorf("expected loader error, got %v", err)
	}
}

func TestSnapshot_FilePolicies(t *testing.T) {
	original := time.Unix(1700000000, 0)
	later := original.Add(time.Hour)

	tests := []struct {
		name       string
		policy     Policy
		newContent string
		newMtime   time.Time
		want       bool
	}{
		{"hash: untouched", PolicyContentHash, "a: 1\n", original, true},
		{"hash: touched only", PolicyContentHash, "a: 1\n", later, true},
		{"hash: content changed, same mtime", PolicyContentHash, "a: 2\n", original, false},
		{"hash: both changed", PolicyContentHash, "a: 2\n", later, false},
		{"legacy: touched only", PolicyLegacy, "a: 1\n", later, true},
		{"legacy: content changed, same mtime", PolicyLegacy, "a: 2\n", original, true},
		{"legacy: both changed", PolicyLegacy, "a: 2\n", later, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "app.yml")
			writeFile(t, path, "a: 1\n", original)

			snap, err := Capture(OSInspector{}, tt.policy, []string{path}, nil, nil)
			if err != nil {
				t.Fatalf("Capture failed: %v", err)
			}

			writeFile(t, path, tt.newContent, tt.newMtime)
			if got := snap.IsValid(mapEnv{}, mapConstants{}, OSInspector{}); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSnapshot_DeletedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.yml")
	writeFile(t, path, "a: 1\n", time.Unix(1700000000, 0))
	snap, err := Capture(nil, PolicyLegacy, []string{path}, nil, nil)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	ok, reason := snap.Check(mapEnv{}, mapConstants{}, nil)
	if ok {
		t.Fatal("expected invalid snapshot")
	}
	if reason == "" {
		t.Error("expected a reason")
	}
}

func TestSnapshot_EnvAndConstants(t *testing.T) {
	snap, err := Capture(nil, "", nil,
		map[string]string{"HOME": "/home/app", "UNSET": ""},
		map[string]any{"MAX": 10, "LIST": []any{1, "a"}})
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	tests := []struct {
		name      string
		env       mapEnv
		constants mapConstants
		want      bool
	}{
		{"unchanged", mapEnv{"HOME": "/home/app"}, mapConstants{"MAX": 10, "LIST": []any{1, "a"}}, true},
		{"numeric type drift", mapEnv{"HOME": "/home/app"}, mapConstants{"MAX": 10.0, "LIST": []any{1.0, "a"}}, true},
		{"empty env now set", mapEnv{"HOME": "/home/app", "UNSET": "x"}, mapConstants{"MAX": 10, "LIST": []any{1, "a"}}, false},
		{"env changed", mapEnv{"HOME": "/root"}, mapConstants{"MAX": 10, "LIST": []any{1, "a"}}, false},
		{"env removed", mapEnv{}, mapConstants{"MAX": 10, "LIST": []any{1, "a"}}, false},
		{"constant changed", mapEnv{"HOME": "/home/app"}, mapConstants{"MAX": 11, "LIST": []any{1, "a"}}, false},
		{"constant removed", mapEnv{"HOME": "/home/app"}, mapConstants{"LIST": []any{1, "a"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := snap.IsValid(tt.env, tt.constants, nil); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSnapshot_Nil(t *testing.T) {
	var snap *Snapshot
	if snap.IsValid(mapEnv{}, mapConstants{}, nil) {
		t.Error("expected nil snapshot to be invalid")
	}
}
