// Package events provides the process-wide publish/subscribe bus connecting
// application code to plugin listeners.
//
// Listeners are grouped by event name. Several specs with the same name merge
// their listener lists. Emit calls listeners sequentially in registration
// order, keeps going past failures and reports them together.
package events

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/artpar/adminkit/core/schema"
	"github.com/rs/zerolog"
)

// Wildcard listeners receive every event, after the listeners of its name.
const Wildcard = "*"

// SchemaReader gives listeners read access to the frozen registry.
type SchemaReader interface {
	Resource(slug string) (schema.ResourceData, bool)
	Resources() []schema.ResourceData
	Permissions() []string
}

// Event is what a listener receives.
type Event struct {
	// Name is the event name (e.g., "user::registered", "post::created").
	Name string

	// Payload is the value passed to Emit.
	Payload any

	// Schema is the registry bound to the bus, nil before orchestration ends.
	Schema SchemaReader
}

// Listener processes an event. Request-scoped data travels on ctx.
type Listener func(ctx context.Context, event Event) error

// Recorder observes emissions. Implemented by the metrics adapter.
type Recorder interface {
	ObserveEmit(event string, listeners, failures int, duration time.Duration)
}

// Option configures a Bus.
type Option func(*Bus)

// WithRecorder sets the emission recorder.
func WithRecorder(rec Recorder) Option {
	return func(b *Bus) { b.recorder = rec }
}

// Bus is a publish/subscribe event bus keyed by event name.
type Bus struct {
	mu        sync.RWMutex
	listeners map[string][]Listener
	schema    SchemaReader
	sealed    bool
	recorder  Recorder
	logger    zerolog.Logger
}

// NewBus creates a new event bus.
func NewBus(logger zerolog.Logger, opts ...Option) *Bus {
	b := &Bus{
		listeners: make(map[string][]Listener),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register merges the listeners of each spec into the bus.
func (b *Bus) Register(specs ...*Spec) error {
	for _, s := range specs {
		if s.name == "" {
			return ErrInvalidEventName
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sealed {
		return ErrBusSealed
	}
	for _, s := range specs {
		b.listeners[s.name] = append(b.listeners[s.name], s.listeners...)
	}
	return nil
}

// Listen registers a single listener.
func (b *Bus) Listen(name string, fn Listener) error {
	return b.Register(On(name).Listen(fn))
}

// Bind sets the registry handed to listeners.
func (b *Bus) Bind(reader SchemaReader) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.schema = reader
}

// Seal rejects further registrations. Emission is unaffected.
func (b *Bus) Seal() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sealed = true
}

// Sealed reports whether Seal was called.
func (b *Bus) Sealed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sealed
}

// HasListeners reports whether emitting name would call any listener.
func (b *Bus) HasListeners(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[name]) > 0 || len(b.listeners[Wildcard]) > 0
}

// Names returns the registered event names, sorted.
func (b *Bus) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.listeners))
	for name := range b.listeners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Emit calls every listener registered under name, then the wildcard
// listeners, one at a time in registration order. A failing or panicking
// listener does not stop the others; after all have run, Emit returns an
// *EmitError describing every failure. Emitting a name without listeners is
// a no-op.
//
// Listeners may emit further events. Listeners registered while an emission
// is in progress are not called by it.
func (b *Bus) Emit(ctx context.Context, name string, payload any) error {
	if name == "" {
		return ErrInvalidEventName
	}

	b.mu.RLock()
	matched := make([]Listener, 0, len(b.listeners[name])+len(b.listeners[Wildcard]))
	matched = append(matched, b.listeners[name]...)
	if name != Wildcard {
		matched = append(matched, b.listeners[Wildcard]...)
	}
	event := Event{Name: name, Payload: payload, Schema: b.schema}
	b.mu.RUnlock()

	if len(matched) == 0 {
		return nil
	}

	b.logger.Debug().
		Str("event", name).
		Int("listeners", len(matched)).
		Msg("event emitted")

	start := time.Now()
	var failures []*ListenerError
	for i, fn := range matched {
		if err := b.invoke(ctx, fn, i, event); err != nil {
			b.logger.Error().
				Err(err).
				Str("event", name).
				Int("listener", i).
				Msg("event listener failed")
			failures = append(failures, err)
		}
	}

	if b.recorder != nil {
		b.recorder.ObserveEmit(name, len(matched), len(failures), time.Since(start))
	}

	if len(failures) > 0 {
		return &EmitError{Event: name, Failures: failures}
	}
	return nil
}

// invoke runs one listener, turning a panic into a failure.
func (b *Bus) invoke(ctx context.Context, fn Listener, index int, event Event) (lerr *ListenerError) {
	defer func() {
		if r := recover(); r != nil {
			lerr = &ListenerError{
				Event: event.Name,
				Index: index,
				Err:   fmt.Errorf("panic: %v", r),
				Panic: r,
			}
		}
	}()

	if err := fn(ctx, event); err != nil {
		return &ListenerError{Event: event.Name, Index: index, Err: err}
	}
	return nil
}

// EmitAsync runs Emit on a new goroutine. The returned channel receives the
// result of Emit and is then closed.
func (b *Bus) EmitAsync(ctx context.Context, name string, payload any) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- b.Emit(ctx, name, payload)
	}()
	return done
}
