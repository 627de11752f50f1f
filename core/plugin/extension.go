package plugin

import (
	"context"
	"sync/atomic"

	"github.com/artpar/adminkit/core/asset"
	"github.com/artpar/adminkit/core/events"
	"github.com/artpar/adminkit/core/registry"
	"github.com/artpar/adminkit/core/route"
	"github.com/artpar/adminkit/core/schema"
	"github.com/rs/zerolog"
)

// RegistryReader is the read-only view of the registry given to plugins.
type RegistryReader interface {
	Has(slug string) bool
	Frozen() bool
	Resource(slug string) (schema.ResourceData, bool)
	Resources() []schema.ResourceData
	Dashboard(slug string) (schema.DashboardData, bool)
	Dashboards() []schema.DashboardData
	Permissions() []string
}

// EventBus lets plugins subscribe to and emit events. Sealing and binding
// stay with the orchestrator.
type EventBus interface {
	Listen(name string, fn events.Listener) error
	Emit(ctx context.Context, name string, payload any) error
	EmitAsync(ctx context.Context, name string, payload any) <-chan error
}

// Extension is the capability set handed to a plugin hook. It is the only way
// plugin code mutates shared state. Once the hook that received it returns,
// mutating methods fail with ErrExtensionExpired and Registry and Events
// return nil. Views obtained during the hook stay readable, and their
// Listen fails once the hook has returned.
type Extension interface {
	// Plugin returns the id of the plugin being run.
	Plugin() string
	// Phase returns the phase being run.
	Phase() Phase
	// Extra returns the plugin's configuration bag.
	Extra() map[string]any

	// Script registers a dashboard script served under name.
	Script(name, absPath string) error
	// Style registers a dashboard stylesheet served under name.
	Style(name, absPath string) error
	// ExtendRoutes appends HTTP routes to the routing table.
	ExtendRoutes(routes ...route.Route) error
	// ExtendResources adds resources to the registry.
	ExtendResources(resources ...*schema.ResourceSpec) error
	// ExtendDashboards adds dashboards to the registry.
	ExtendDashboards(dashboards ...*schema.DashboardSpec) error
	// ExtendPermissions adds permissions to the registry.
	ExtendPermissions(perms ...string) error
	// Resource returns the builder of a registered resource for modification.
	Resource(slug string) (*schema.ResourceSpec, error)

	// Registry gives read access to compiled resources.
	Registry() RegistryReader
	// Events returns the bus for subscribing and emitting.
	Events() EventBus
	// Logger returns a logger tagged with the plugin and phase.
	Logger() zerolog.Logger
}

type extension struct {
	spec    *Spec
	phase   Phase
	reg     *registry.Registry
	bus     *events.Bus
	routes  *route.Table
	assets  *asset.Manifest
	logger  zerolog.Logger
	expired atomic.Bool
}

func (e *extension) expire() { e.expired.Store(true) }

func (e *extension) check() error {
	if e.expired.Load() {
		return ErrExtensionExpired
	}
	return nil
}

func (e *extension) Plugin() string         { return e.spec.ID() }
func (e *extension) Phase() Phase           { return e.phase }
func (e *extension) Extra() map[string]any  { return e.spec.Config() }
func (e *extension) Logger() zerolog.Logger { return e.logger }

func (e *extension) Script(name, absPath string) error {
	if err := e.check(); err != nil {
		return err
	}
	return e.assets.Script(e.spec.ID(), name, absPath)
}

func (e *extension) Style(name, absPath string) error {
	if err := e.check(); err != nil {
		return err
	}
	return e.assets.Style(e.spec.ID(), name, absPath)
}

func (e *extension) ExtendRoutes(routes ...route.Route) error {
	if err := e.check(); err != nil {
		return err
	}
	owned := make([]route.Route, len(routes))
	for i, r := range routes {
		r.Plugin = e.spec.ID()
		owned[i] = r
	}
	return e.routes.Add(owned...)
}

func (e *extension) ExtendResources(resources ...*schema.ResourceSpec) error {
	if err := e.check(); err != nil {
		return err
	}
	return e.reg.Add(resources...)
}

func (e *extension) ExtendDashboards(dashboards ...*schema.DashboardSpec) error {
	if err := e.check(); err != nil {
		return err
	}
	return e.reg.AddDashboards(dashboards...)
}

func (e *extension) ExtendPermissions(perms ...string) error {
	if err := e.check(); err != nil {
		return err
	}
	return e.reg.AddPermissions(perms...)
}

func (e *extension) Resource(slug string) (*schema.ResourceSpec, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	return e.reg.Extend(slug)
}

func (e *extension) Registry() RegistryReader {
	if e.check() != nil {
		return nil
	}
	return registryView{reg: e.reg}
}

func (e *extension) Events() EventBus {
	if e.check() != nil {
		return nil
	}
	return eventsView{ext: e}
}

// registryView hides the mutating registry methods.
type registryView struct{ reg *registry.Registry }

func (v registryView) Has(slug string) bool { return v.reg.Has(slug) }
func (v registryView) Frozen() bool         { return v.reg.Frozen() }
func (v registryView) Resources() []schema.ResourceData {
	return v.reg.Resources()
}
func (v registryView) Resource(slug string) (schema.ResourceData, bool) {
	return v.reg.Resource(slug)
}
func (v registryView) Dashboards() []schema.DashboardData { return v.reg.Dashboards() }
func (v registryView) Dashboard(slug string) (schema.DashboardData, bool) {
	return v.reg.Dashboard(slug)
}
func (v registryView) Permissions() []string { return v.reg.Permissions() }

type eventsView struct{ ext *extension }

func (v eventsView) Listen(name string, fn events.Listener) error {
	if err := v.ext.check(); err != nil {
		return err
	}
	return v.ext.bus.Listen(name, fn)
}

func (v eventsView) Emit(ctx context.Context, name string, payload any) error {
	return v.ext.bus.Emit(ctx, name, payload)
}

func (v eventsView) EmitAsync(ctx context.Context, name string, payload any) <-chan error {
	return v.ext.bus.EmitAsync(ctx, name, payload)
}
