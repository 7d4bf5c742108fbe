package stores

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements the Store interface in process memory. It keeps
// nothing across restarts and suits tests and one-shot compiles.
type MemoryStore struct {
	mu       sync.RWMutex
	compiled map[string]*CompiledRecord
	runs     map[string]*Run
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		compiled: make(map[string]*CompiledRecord),
		runs:     make(map[string]*Run),
	}
}

// Init is a no-op
func (s *MemoryStore) Init(context.Context) error { return nil }

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }

// Migrate is a no-op
func (s *MemoryStore) Migrate(context.Context) error { return nil }

// PutCompiled inserts or replaces a compiled configuration
func (s *MemoryStore) PutCompiled(_ context.Context, rec *CompiledRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *rec
	c.Files = append([]string(nil), rec.Files...)
	if existing, ok := s.compiled[rec.Key]; ok {
		c.CreatedAt = existing.CreatedAt
		c.Hits = existing.Hits
		c.LastHitAt = existing.LastHitAt
	} else {
		c.Hits = 0
		c.LastHitAt = nil
	}
	s.compiled[rec.Key] = &c
	return nil
}

// GetCompiled retrieves a compiled configuration by cache key
func (s *MemoryStore) GetCompiled(_ context.Context, key string) (*CompiledRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.compiled[key]
	if !ok {
		return nil, fmt.Errorf("compiled config %s: %w", key, ErrNotFound)
	}
	c := *rec
	return &c, nil
}

// RecordHit counts a cache hit
func (s *MemoryStore) RecordHit(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.compiled[key]
	if !ok {
		return fmt.Errorf("compiled config %s: %w", key, ErrNotFound)
	}
	now := time.Now().UTC()
	rec.Hits++
	rec.LastHitAt = &now
	return nil
}

// ListCompiled lists cached configurations, most recently updated first
func (s *MemoryStore) ListCompiled(_ context.Context, limit, offset int) ([]*CompiledRecord, error) {
	s.mu.RLock()
	records := make([]*CompiledRecord, 0, len(s.compiled))
	for _, rec := range s.compiled {
		c := *rec
		records = append(records, &c)
	}
	s.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if !records[i].UpdatedAt.Equal(records[j].UpdatedAt) {
			return records[i].UpdatedAt.After(records[j].UpdatedAt)
		}
		return records[i].Key < records[j].Key
	})
	return page(records, limit, offset), nil
}

// DeleteCompiled deletes a compiled configuration
func (s *MemoryStore) DeleteCompiled(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.compiled[key]; !ok {
		return fmt.Errorf("compiled config %s: %w", key, ErrNotFound)
	}
	delete(s.compiled, key)
	return nil
}

// ClearCompiled deletes every compiled configuration
func (s *MemoryStore) ClearCompiled(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.compiled))
	s.compiled = make(map[string]*CompiledRecord)
	return n, nil
}

// CreateRun creates a new run record
func (s *MemoryStore) CreateRun(_ context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; ok {
		return fmt.Errorf("failed to create run: duplicate id %s", run.ID)
	}
	c := *run
	s.runs[run.ID] = &c
	return nil
}

// CompleteRun records the outcome of a run
func (s *MemoryStore) CompleteRun(_ context.Context, id string, status RunStatus, cacheHit bool, errMsg, errKind *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	now := time.Now().UTC()
	run.Status = status
	run.CacheHit = cacheHit
	run.Error = errMsg
	run.ErrorKind = errKind
	run.CompletedAt = &now
	return nil
}

// GetRun retrieves a run by ID
func (s *MemoryStore) GetRun(_ context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	c := *run
	return &c, nil
}

// ListRuns lists runs, most recent first
func (s *MemoryStore) ListRuns(_ context.Context, limit, offset int) ([]*Run, error) {
	s.mu.RLock()
	runs := make([]*Run, 0, len(s.runs))
	for _, run := range s.runs {
		c := *run
		runs = append(runs, &c)
	}
	s.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID < runs[j].ID
	})
	return page(runs, limit, offset), nil
}

// HealthCheck always succeeds
func (s *MemoryStore) HealthCheck(context.Context) error { return nil }

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit >= 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
