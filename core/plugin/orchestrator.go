// Package plugin runs plugins through their register and boot phases.
//
// Every plugin registers before any plugin boots, and within each phase
// plugins run one at a time in declaration order. A plugin that fails aborts
// startup; nothing it or earlier plugins did is rolled back. In particular,
// assets registered by a plugin whose boot later fails stay in the manifest.
package plugin

import (
	"context"
	"fmt"
	"time"

	"github.com/artpar/adminkit/core/asset"
	"github.com/artpar/adminkit/core/events"
	"github.com/artpar/adminkit/core/registry"
	"github.com/artpar/adminkit/core/route"
	"github.com/rs/zerolog"
)

// Recorder observes phase execution. Implemented by the metrics adapter.
type Recorder interface {
	ObservePhase(plugin string, phase Phase, duration time.Duration, err error)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRoutes sets the routing table plugins extend.
func WithRoutes(t *route.Table) Option {
	return func(o *Orchestrator) { o.routes = t }
}

// WithAssets sets the asset manifest plugins extend.
func WithAssets(m *asset.Manifest) Option {
	return func(o *Orchestrator) { o.assets = m }
}

// WithRecorder sets the phase recorder.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// Orchestrator sequences plugins through their lifecycle.
type Orchestrator struct {
	routes   *route.Table
	assets   *asset.Manifest
	recorder Recorder
	logger   zerolog.Logger
}

// NewOrchestrator creates an orchestrator with an empty routing table and
// asset manifest unless options supply them.
func NewOrchestrator(logger zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{logger: logger}
	for _, opt := range opts {
		opt(o)
	}
	if o.routes == nil {
		o.routes = route.NewTable()
	}
	if o.assets == nil {
		o.assets = asset.NewManifest()
	}
	return o
}

// Routes returns the routing table.
func (o *Orchestrator) Routes() *route.Table { return o.routes }

// Assets returns the asset manifest.
func (o *Orchestrator) Assets() *asset.Manifest { return o.assets }

// Run executes the register phase then the boot phase of every plugin and
// freezes the registry. On success the frozen registry is returned, the
// route table and asset manifest are frozen, and the bus is bound to the
// registry and sealed. On failure nil is returned with the error;
// the registry must not be served.
//
// Run checks ctx between plugins but never interrupts a running hook.
func (o *Orchestrator) Run(ctx context.Context, plugins []*Spec, reg *registry.Registry, bus *events.Bus) (*registry.Registry, error) {
	if err := checkIDs(plugins); err != nil {
		return nil, err
	}

	// Application declarations must be valid before plugin code runs.
	if err := reg.Compile(); err != nil {
		return nil, fmt.Errorf("compile registry: %w", err)
	}

	if err := o.runPhase(ctx, PhaseRegister, plugins, reg, bus); err != nil {
		return nil, err
	}

	// Boot hooks see every resource contributed during register.
	if err := reg.Compile(); err != nil {
		return nil, fmt.Errorf("compile registry after %s phase: %w", PhaseRegister, err)
	}

	if err := o.runPhase(ctx, PhaseBoot, plugins, reg, bus); err != nil {
		return nil, err
	}

	if err := reg.Freeze(); err != nil {
		return nil, err
	}
	o.routes.Freeze()
	o.assets.Freeze()
	bus.Bind(reg)
	bus.Seal()

	o.logger.Info().
		Int("plugins", len(plugins)).
		Int("resources", len(reg.Resources())).
		Int("routes", len(o.routes.Routes())).
		Msg("orchestration complete")

	return reg, nil
}

func (o *Orchestrator) runPhase(ctx context.Context, phase Phase, plugins []*Spec, reg *registry.Registry, bus *events.Bus) error {
	for _, p := range plugins {
		if err := ctx.Err(); err != nil {
			return &PhaseError{Plugin: p.ID(), Phase: phase, Err: err}
		}

		if phase == PhaseRegister && len(p.permissions) > 0 {
			if err := reg.AddPermissions(p.permissions...); err != nil {
				return &PhaseError{Plugin: p.ID(), Phase: phase, Err: err}
			}
		}

		hook := p.hook(phase)
		if hook == nil {
			continue
		}

		start := time.Now()
		err := o.invoke(ctx, phase, p, hook, reg, bus)
		if o.recorder != nil {
			o.recorder.ObservePhase(p.ID(), phase, time.Since(start), err)
		}
		if err != nil {
			o.logger.Error().
				Err(err).
				Str("plugin", p.ID()).
				Str("phase", string(phase)).
				Msg("plugin failed")
			return &PhaseError{Plugin: p.ID(), Phase: phase, Err: err}
		}

		o.logger.Debug().
			Str("plugin", p.ID()).
			Str("phase", string(phase)).
			Dur("duration", time.Since(start)).
			Msg("plugin phase complete")
	}
	return nil
}

// invoke runs one hook with a fresh extension and expires it afterwards.
// A panicking hook fails its phase like a returned error.
func (o *Orchestrator) invoke(ctx context.Context, phase Phase, p *Spec, hook Hook, reg *registry.Registry, bus *events.Bus) (err error) {
	ext := &extension{
		spec:   p,
		phase:  phase,
		reg:    reg,
		bus:    bus,
		routes: o.routes,
		assets: o.assets,
		logger: o.logger.With().Str("plugin", p.ID()).Str("phase", string(phase)).Logger(),
	}
	defer ext.expire()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return hook(ctx, ext)
}

// checkIDs fails on the first empty or repeated plugin id.
func checkIDs(plugins []*Spec) error {
	seen := make(map[string]*Spec, len(plugins))
	for _, p := range plugins {
		id := p.ID()
		if id == "" {
			return fmt.Errorf("plugin %q: %w", p.Name(), ErrInvalidID)
		}
		if first, ok := seen[id]; ok {
			return &DuplicatePluginError{ID: id, First: first.Name(), Second: p.Name()}
		}
		seen[id] = p
	}
	return nil
}
