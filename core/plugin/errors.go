package plugin

import (
	"errors"
	"fmt"
)

var (
	// ErrExtensionExpired is returned when a plugin uses its Extension after
	// the hook that received it returned.
	ErrExtensionExpired = errors.New("extension used after its hook returned")

	// ErrInvalidID is returned for a plugin whose id is empty.
	ErrInvalidID = errors.New("plugin id is required")
)

// DuplicatePluginError is returned when two plugins share an id. Nothing has
// run when it is returned.
type DuplicatePluginError struct {
	ID     string
	First  string
	Second string
}

func (e *DuplicatePluginError) Error() string {
	return fmt.Sprintf("plugin id %q declared by both %q and %q", e.ID, e.First, e.Second)
}

// PhaseError reports the plugin and phase that aborted orchestration.
type PhaseError struct {
	Plugin string
	Phase  Phase
	Err    error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("plugin %q %s: %v", e.Plugin, e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }
