package events

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBusSealed is returned when listeners are registered after orchestration.
	ErrBusSealed = errors.New("event bus is sealed")

	// ErrInvalidEventName is returned for an empty event name.
	ErrInvalidEventName = errors.New("event name is required")
)

// Spec declares listeners for one event name.
type Spec struct {
	name      string
	listeners []Listener
}

// On starts a spec for the named event.
func On(name string) *Spec {
	return &Spec{name: strings.TrimSpace(name)}
}

// Name returns the event name.
func (s *Spec) Name() string { return s.name }

// Listen appends a listener.
func (s *Spec) Listen(fn Listener) *Spec {
	s.listeners = append(s.listeners, fn)
	return s
}

// Len returns the number of listeners.
func (s *Spec) Len() int { return len(s.listeners) }

// ListenerError is one failed listener invocation.
type ListenerError struct {
	Event string
	Index int // position among the listeners called
	Err   error
	Panic any // recovered value when the listener panicked
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("event %q listener %d: %v", e.Event, e.Index, e.Err)
}

func (e *ListenerError) Unwrap() error { return e.Err }

// EmitError aggregates the failures of one Emit call.
type EmitError struct {
	Event    string
	Failures []*ListenerError
}

func (e *EmitError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("event %q: %d listener(s) failed:\n  - %s", e.Event, len(e.Failures), strings.Join(msgs, "\n  - "))
}

// Unwrap exposes every failure to errors.Is and errors.As.
func (e *EmitError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}
