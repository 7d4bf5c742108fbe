package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a notable occurrence during compilation.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// CompileID is the associated compile run, if any.
	CompileID string `json:"compile_id,omitempty"`

	// CacheKey is the associated request cache key, if any.
	CacheKey string `json:"cache_key,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]any `json:"data,omitempty"`
}

// Event types.
const (
	EventTypeCompileStarted   = "compile.started"
	EventTypeCompileCompleted = "compile.completed"
	EventTypeCompileFailed    = "compile.failed"
	EventTypeCacheHit         = "cache.hit"
	EventTypeCacheMiss        = "cache.miss"
	EventTypeCacheInvalid     = "cache.invalid"
	EventTypeFilesChanged     = "files.changed"
)

// Event severity levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber handles an event.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher fans events out to subscribers. In synchronous mode
// subscribers run on the publishing goroutine, in order.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	ctx, cancel := context.WithCancel(context.Background())
	ep := &EventPublisher{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}
	if !cfg.Enabled || !cfg.EnableAsync {
		return ep, nil
	}

	if cfg.BufferSize <= 0 {
		cancel()
		return nil, fmt.Errorf("event buffer size must be positive, got: %d", cfg.BufferSize)
	}
	if ep.config.MaxBatchSize <= 0 {
		ep.config.MaxBatchSize = 1
	}
	ep.buffer = make(chan Event, cfg.BufferSize)
	ep.wg.Add(1)
	go ep.processEvents()
	return ep, nil
}

// Publish sends an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if ep == nil || !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if !ep.config.EnableAsync {
		ep.deliverEvent(event)
		return nil
	}

	select {
	case <-ep.ctx.Done():
		return fmt.Errorf("event publisher stopped")
	default:
	}
	select {
	case ep.buffer <- event:
		return nil
	default:
		return fmt.Errorf("event buffer full, event dropped")
	}
}

// PublishCompileStarted publishes a compile started event.
func (ep *EventPublisher) PublishCompileStarted(compileID, cacheKey string, files int) error {
	return ep.Publish(Event{
		Type:      EventTypeCompileStarted,
		CompileID: compileID,
		CacheKey:  cacheKey,
		Message:   fmt.Sprintf("Compile %s started for %d file(s)", compileID, files),
		Level:     EventLevelInfo,
		Data:      map[string]any{"files": files},
	})
}

// PublishCompileCompleted publishes a compile completed event.
func (ep *EventPublisher) PublishCompileCompleted(compileID, cacheKey string, services int, cacheHit bool, duration time.Duration) error {
	return ep.Publish(Event{
		Type:      EventTypeCompileCompleted,
		CompileID: compileID,
		CacheKey:  cacheKey,
		Message:   fmt.Sprintf("Compile %s completed with %d service(s)", compileID, services),
		Level:     EventLevelInfo,
		Data: map[string]any{
			"services":  services,
			"cache_hit": cacheHit,
			"duration":  duration.Seconds(),
		},
	})
}

// PublishCompileFailed publishes a compile failed event.
func (ep *EventPublisher) PublishCompileFailed(compileID, cacheKey string, err error) error {
	return ep.Publish(Event{
		Type:      EventTypeCompileFailed,
		CompileID: compileID,
		CacheKey:  cacheKey,
		Message:   fmt.Sprintf("Compile %s failed: %v", compileID, err),
		Level:     EventLevelError,
		Data:      map[string]any{"error": err.Error()},
	})
}

// PublishCacheLookup publishes the result of a cache lookup. reason explains
// an invalid entry and is empty otherwise.
func (ep *EventPublisher) PublishCacheLookup(compileID, cacheKey, result, reason string) error {
	event := Event{
		CompileID: compileID,
		CacheKey:  cacheKey,
		Level:     EventLevelInfo,
	}
	switch result {
	case CacheHit:
		event.Type = EventTypeCacheHit
		event.Message = "Compiled configuration served from cache"
	case CacheInvalid:
		event.Type = EventTypeCacheInvalid
		event.Message = fmt.Sprintf("Cached configuration is stale: %s", reason)
		event.Level = EventLevelWarning
		event.Data = map[string]any{"reason": reason}
	default:
		event.Type = EventTypeCacheMiss
		event.Message = "No cached configuration"
	}
	return ep.Publish(event)
}

// PublishFilesChanged publishes a watched file change.
func (ep *EventPublisher) PublishFilesChanged(paths []string) error {
	return ep.Publish(Event{
		Type:    EventTypeFilesChanged,
		Message: fmt.Sprintf("%d source file(s) changed", len(paths)),
		Level:   EventLevelInfo,
		Data:    map[string]any{"paths": paths},
	})
}

// Subscribe adds a subscriber. A nil filter accepts every event.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	var tick <-chan time.Time
	if ep.config.FlushInterval > 0 {
		ticker := time.NewTicker(ep.config.FlushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	batch := make([]Event, 0, ep.config.MaxBatchSize)
	flush := func() {
		for _, event := range batch {
			ep.deliverEvent(event)
		}
		batch = batch[:0]
	}

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)
			if len(batch) >= ep.config.MaxBatchSize {
				flush()
			}
		case <-tick:
			flush()
		case <-ep.ctx.Done():
			for {
				select {
				case event := <-ep.buffer:
					batch = append(batch, event)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown stops the publisher after delivering buffered events.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if ep == nil {
		return nil
	}
	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// FilterByLevel allows events of minLevel or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}
	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType allows events of the given types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}
