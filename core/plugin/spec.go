package plugin

import (
	"context"
	"strings"

	"github.com/artpar/adminkit/core/convention"
)

// Phase is a stage of plugin orchestration.
type Phase string

const (
	// PhaseRegister runs first for every plugin: static schema contributions.
	PhaseRegister Phase = "register"
	// PhaseBoot runs once every plugin has registered: dynamic wiring.
	PhaseBoot Phase = "boot"
)

// Hook is a plugin lifecycle function. The Extension is only valid until the
// hook returns.
type Hook func(ctx context.Context, ext Extension) error

// Spec declares a plugin.
type Spec struct {
	name        string
	id          string
	register    Hook
	boot        Hook
	permissions []string
	extra       map[string]any
}

// New starts a plugin declaration. The id is derived from the name.
func New(name string) *Spec {
	return &Spec{name: strings.TrimSpace(name), extra: make(map[string]any)}
}

// Name returns the display name.
func (s *Spec) Name() string { return s.name }

// ID returns the plugin id.
func (s *Spec) ID() string {
	if s.id != "" {
		return s.id
	}
	return convention.ParamCase(s.name)
}

// WithID overrides the derived id.
func (s *Spec) WithID(id string) *Spec {
	s.id = convention.ParamCase(id)
	return s
}

// Register sets the register-phase hook.
func (s *Spec) Register(fn Hook) *Spec { s.register = fn; return s }

// Boot sets the boot-phase hook.
func (s *Spec) Boot(fn Hook) *Spec { s.boot = fn; return s }

// Permissions declares permissions the plugin grants or checks. They are
// merged into the registry during the register phase.
func (s *Spec) Permissions(perms ...string) *Spec {
	s.permissions = append(s.permissions, perms...)
	return s
}

// Extra merges plugin-specific configuration.
func (s *Spec) Extra(values map[string]any) *Spec {
	for k, v := range values {
		s.extra[k] = v
	}
	return s
}

// Config returns a copy of the extra configuration.
func (s *Spec) Config() map[string]any {
	out := make(map[string]any, len(s.extra))
	for k, v := range s.extra {
		out[k] = v
	}
	return out
}

func (s *Spec) hook(phase Phase) Hook {
	if phase == PhaseRegister {
		return s.register
	}
	return s.boot
}
