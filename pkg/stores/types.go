package stores

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// RunStatus represents the status of a compile run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// CompiledRecord is a cached compiled configuration
type CompiledRecord struct {
	Key        string     `json:"cache_key"`
	AppDir     string     `json:"app_dir"`
	Files      []string   `json:"files"`
	Services   int        `json:"services"`
	Parameters int        `json:"parameters"`
	Data       string     `json:"data"` // JSON blob
	Hits       int        `json:"hits"`
	LastHitAt  *time.Time `json:"last_hit_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Run represents one compile request served through the cache
type Run struct {
	ID          string     `json:"id"`
	CacheKey    string     `json:"cache_key"`
	Status      RunStatus  `json:"status"`
	CacheHit    bool       `json:"cache_hit"`
	Error       *string    `json:"error,omitempty"`
	ErrorKind   *string    `json:"error_kind,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// Store defines the interface for the compile cache
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Compiled config operations. Concurrent writers of the same key are
	// last-writer-wins.
	PutCompiled(ctx context.Context, rec *CompiledRecord) error
	GetCompiled(ctx context.Context, key string) (*CompiledRecord, error)
	RecordHit(ctx context.Context, key string) error
	ListCompiled(ctx context.Context, limit, offset int) ([]*CompiledRecord, error)
	DeleteCompiled(ctx context.Context, key string) error
	ClearCompiled(ctx context.Context) (int64, error)

	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	CompleteRun(ctx context.Context, id string, status RunStatus, cacheHit bool, errMsg, errKind *string) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
