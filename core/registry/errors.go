package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrFrozen is wrapped by every FrozenError.
	ErrFrozen = errors.New("registry is frozen")

	// ErrNotFound is returned when a slug names no registered resource.
	ErrNotFound = errors.New("not found")
)

// DuplicateSlugError is returned when two resources or two dashboards claim
// the same slug.
type DuplicateSlugError struct {
	Kind     string // "resource" or "dashboard"
	Slug     string
	Name     string
	Existing string
}

func (e *DuplicateSlugError) Error() string {
	return fmt.Sprintf("%s slug %q of %q already claimed by %q", e.Kind, e.Slug, e.Name, e.Existing)
}

// FrozenError is returned by structural mutations after Freeze.
type FrozenError struct {
	Op string
}

func (e *FrozenError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, ErrFrozen)
}

func (e *FrozenError) Unwrap() error { return ErrFrozen }

// TableConflictError is returned when two resources derive the same storage table.
type TableConflictError struct {
	Table    string
	Resource string
	Existing string
}

func (e *TableConflictError) Error() string {
	return fmt.Sprintf("table %q of resource %q already claimed by resource %q", e.Table, e.Resource, e.Existing)
}
