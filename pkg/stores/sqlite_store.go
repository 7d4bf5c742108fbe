package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	jsoniter "github.com/json-iterator/go"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	// Every connection to :memory: opens a separate database.
	if isMemory(cfg.Path) {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	pragmas := []string{"_pragma=foreign_keys(1)", "_pragma=busy_timeout(5000)", "_txlock=immediate"}
	if !isMemory(s.cfg.Path) {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)", "_pragma=synchronous(NORMAL)")
	}
	dsn := s.cfg.Path + "?" + strings.Join(pragmas, "&")

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	// Create migration source from embedded FS
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// PutCompiled inserts or replaces a compiled configuration
func (s *SQLiteStore) PutCompiled(ctx context.Context, rec *CompiledRecord) error {
	files, err := json.MarshalToString(rec.Files)
	if err != nil {
		return fmt.Errorf("failed to encode files: %w", err)
	}

	query := `
		INSERT INTO compiled_configs (
			cache_key, app_dir, files, services, parameters, data, hits, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			app_dir = excluded.app_dir,
			files = excluded.files,
			services = excluded.services,
			parameters = excluded.parameters,
			data = excluded.data,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		rec.Key,
		rec.AppDir,
		files,
		rec.Services,
		rec.Parameters,
		rec.Data,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store compiled config: %w", err)
	}

	return nil
}

// GetCompiled retrieves a compiled configuration by cache key
func (s *SQLiteStore) GetCompiled(ctx context.Context, key string) (*CompiledRecord, error) {
	query := `
		SELECT cache_key, app_dir, files, services, parameters, data, hits, last_hit_at, created_at, updated_at
		FROM compiled_configs
		WHERE cache_key = ?
	`

	rec, err := scanCompiled(s.db.QueryRowContext(ctx, query, key))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("compiled config %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get compiled config: %w", err)
	}

	return rec, nil
}

// RecordHit counts a cache hit
func (s *SQLiteStore) RecordHit(ctx context.Context, key string) error {
	query := `
		UPDATE compiled_configs
		SET hits = hits + 1, last_hit_at = ?
		WHERE cache_key = ?
	`

	result, err := s.db.ExecContext(ctx, query, time.Now().UTC(), key)
	if err != nil {
		return fmt.Errorf("failed to record cache hit: %w", err)
	}

	return requireRow(result, "compiled config", key)
}

// ListCompiled lists cached configurations, most recently updated first
func (s *SQLiteStore) ListCompiled(ctx context.Context, limit, offset int) ([]*CompiledRecord, error) {
	query := `
		SELECT cache_key, app_dir, files, services, parameters, data, hits, last_hit_at, created_at, updated_at
		FROM compiled_configs
		ORDER BY updated_at DESC, cache_key
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list compiled configs: %w", err)
	}
	defer rows.Close()

	records := []*CompiledRecord{}
	for rows.Next() {
		rec, err := scanCompiled(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan compiled config: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating compiled configs: %w", err)
	}

	return records, nil
}

// DeleteCompiled deletes a compiled configuration
func (s *SQLiteStore) DeleteCompiled(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM compiled_configs WHERE cache_key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete compiled config: %w", err)
	}

	return requireRow(result, "compiled config", key)
}

// ClearCompiled deletes every compiled configuration
func (s *SQLiteStore) ClearCompiled(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM compiled_configs")
	if err != nil {
		return 0, fmt.Errorf("failed to clear compiled configs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// CreateRun creates a new run record
func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO compile_runs (id, cache_key, status, cache_hit, error, error_kind, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.CacheKey,
		run.Status,
		run.CacheHit,
		run.Error,
		run.ErrorKind,
		run.StartedAt,
		run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// CompleteRun records the outcome of a run
func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, status RunStatus, cacheHit bool, errMsg, errKind *string) error {
	query := `
		UPDATE compile_runs
		SET status = ?, cache_hit = ?, error = ?, error_kind = ?, completed_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query, status, cacheHit, errMsg, errKind, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	return requireRow(result, "run", id)
}

// GetRun retrieves a run by ID
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `
		SELECT id, cache_key, status, cache_hit, error, error_kind, started_at, completed_at
		FROM compile_runs
		WHERE id = ?
	`

	run, err := scanRun(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// ListRuns lists runs, most recent first
func (s *SQLiteStore) ListRuns(ctx context.Context, limit, offset int) ([]*Run, error) {
	query := `
		SELECT id, cache_key, status, cache_hit, error, error_kind, started_at, completed_at
		FROM compile_runs
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// HealthCheck verifies the database connection
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCompiled(row scanner) (*CompiledRecord, error) {
	rec := &CompiledRecord{}
	var files string
	err := row.Scan(
		&rec.Key,
		&rec.AppDir,
		&files,
		&rec.Services,
		&rec.Parameters,
		&rec.Data,
		&rec.Hits,
		&rec.LastHitAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.UnmarshalFromString(files, &rec.Files); err != nil {
		return nil, fmt.Errorf("failed to decode files: %w", err)
	}
	return rec, nil
}

func scanRun(row scanner) (*Run, error) {
	run := &Run{}
	err := row.Scan(
		&run.ID,
		&run.CacheKey,
		&run.Status,
		&run.CacheHit,
		&run.Error,
		&run.ErrorKind,
		&run.StartedAt,
		&run.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}

func requireRow(result sql.Result, what, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}

	return nil
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:")
}
