package syringe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/openfroyo/syringe/pkg/compiler"
)

// DefaultDebounce is how long the watcher waits for changes to settle.
const DefaultDebounce = 500 * time.Millisecond

// ChangeFunc receives the result of every build the watcher runs.
type ChangeFunc func(res *Result, err error)

// Watcher rebuilds a request whenever one of its source files changes.
// Rebuilds always validate the cache, so a stale entry is never served.
type Watcher struct {
	builder  *Builder
	req      compiler.Request
	debounce time.Duration
	logger   zerolog.Logger

	fsw   *fsnotify.Watcher
	files map[string]bool
	dirs  map[string]bool
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce sets how long to wait after the last change before rebuilding.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher for req.
func (b *Builder) NewWatcher(req compiler.Request, opts ...WatchOption) *Watcher {
	w := &Watcher{
		builder:  b,
		req:      req,
		debounce: DefaultDebounce,
		logger:   b.logger.With().Str("component", "watcher").Logger(),
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run builds the request once, then rebuilds on every settled change until
// ctx is done. fn is called after each build, including failed ones.
func (w *Watcher) Run(ctx context.Context, fn ChangeFunc) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()
	w.fsw = fsw

	w.rebuild(ctx, fn)
	w.logger.Info().Int("files", len(w.files)).Msg("watching configuration files")

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending = make(map[string]bool)
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			path, relevant := w.relevant(event)
			if !relevant {
				continue
			}
			w.logger.Debug().Str("file", path).Str("op", event.Op.String()).Msg("configuration file changed")
			pending[path] = true
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			fire = timer.C

		case <-fire:
			fire = nil
			changed := make([]string, 0, len(pending))
			for path := range pending {
				changed = append(changed, path)
			}
			sort.Strings(changed)
			clear(pending)

			_ = w.builder.tel.Events.PublishFilesChanged(changed)
			w.builder.tel.Metrics.RecordRecompile()
			w.rebuild(ctx, fn)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("watcher error")
		}
	}
}

// rebuild compiles the request and refreshes the watched set from the
// result. A failed build keeps the previous set so a fix is noticed.
func (w *Watcher) rebuild(ctx context.Context, fn ChangeFunc) {
	res, err := w.builder.run(ctx, w.req, true)
	if err == nil {
		w.watch(res.Config.Files)
	} else if len(w.files) == 0 {
		w.watch(requestFiles(w.req))
	}
	if fn != nil {
		fn(res, err)
	}
}

// watch replaces the watched file set. Directories are watched rather than
// files so editors that replace files on save are still seen.
func (w *Watcher) watch(files []string) {
	clear(w.files)
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			continue
		}
		w.files[abs] = true

		dir := filepath.Dir(abs)
		if w.dirs[dir] {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			w.logger.Warn().Err(err).Str("path", dir).Msg("failed to watch directory")
			continue
		}
		w.dirs[dir] = true
	}
}

func (w *Watcher) relevant(event fsnotify.Event) (string, bool) {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) &&
		!event.Op.Has(fsnotify.Rename) && !event.Op.Has(fsnotify.Remove) {
		return "", false
	}
	path, err := filepath.Abs(event.Name)
	if err != nil {
		return "", false
	}
	return path, w.files[path]
}

// requestFiles guesses the top-level files of a request that has never
// compiled, so they can be watched until it does.
func requestFiles(req compiler.Request) []string {
	searchPaths := req.SearchPaths
	if len(searchPaths) == 0 {
		searchPaths = []string{"."}
		if req.AppDir != "" {
			searchPaths = []string{req.AppDir}
		}
	}

	var files []string
	for _, spec := range req.Files {
		if filepath.IsAbs(spec.Path) {
			files = append(files, spec.Path)
			continue
		}
		for _, dir := range searchPaths {
			candidate := filepath.Join(dir, spec.Path)
			if _, err := os.Stat(candidate); err == nil {
				files = append(files, candidate)
				break
			}
		}
	}
	return files
}
