// Package idgen provides record id generators for the store.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// UUID is the default generator for record ids.
type UUID struct{}

func (UUID) New() string {
	return uuid.New().String()
}

// Func adapts a plain function to a generator.
type Func func() string

func (f Func) New() string { return f() }

// Sequential generates prefixed sequential ids, mostly for tests and
// fixtures that want stable ids.
type Sequential struct {
	prefix  string
	counter uint64
}

// NewSequential creates a sequential id generator.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New generates the next sequential id.
func (s *Sequential) New() string {
	n := atomic.AddUint64(&s.counter, 1)
	return s.prefix + strconv.FormatUint(n, 10)
}

// Reset restarts the sequence.
func (s *Sequential) Reset() {
	atomic.StoreUint64(&s.counter, 0)
}
