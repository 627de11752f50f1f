// Package registry holds the resources, dashboards and permissions of an
// application. It is mutable while plugins run, then frozen and shared
// read-only with every transport.
package registry

import (
	"fmt"
	"sync"

	"github.com/artpar/adminkit/core/schema"
)

// Schema is the serialized form of a registry, consumed by REST, dashboard
// and OpenAPI layers.
type Schema struct {
	Resources   []schema.ResourceData  `json:"resources" yaml:"resources"`
	Dashboards  []schema.DashboardData `json:"dashboards" yaml:"dashboards"`
	Permissions []string               `json:"permissions" yaml:"permissions"`
}

// Registry manages registered resources and dashboards.
//
// Reads return the snapshot of the last successful Compile. Compiled data is
// shared, so callers must not modify the slices it contains.
type Registry struct {
	mu sync.RWMutex

	// builders in registration order
	resources  []*schema.ResourceSpec
	dashboards []*schema.DashboardSpec

	// slug index of builders
	bySlug map[string]*schema.ResourceSpec

	// permissions added outside resources, in insertion order
	extraPermissions []string

	// last compiled snapshot
	compiled      []schema.ResourceData
	compiledIndex map[string]int
	compiledDash  []schema.DashboardData
	permissions   []string

	frozen bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		bySlug:        make(map[string]*schema.ResourceSpec),
		compiledIndex: make(map[string]int),
	}
}

// Add registers resources. The slug of each must be unique.
func (r *Registry) Add(specs ...*schema.ResourceSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return &FrozenError{Op: "add resource"}
	}

	// Check the whole batch before registering any of it.
	batch := make(map[string]string, len(specs))
	for _, spec := range specs {
		slug := spec.ID()
		if existing, ok := r.bySlug[slug]; ok {
			return &DuplicateSlugError{Kind: "resource", Slug: slug, Name: spec.Name(), Existing: existing.Name()}
		}
		if existing, ok := batch[slug]; ok {
			return &DuplicateSlugError{Kind: "resource", Slug: slug, Name: spec.Name(), Existing: existing}
		}
		batch[slug] = spec.Name()
	}

	for _, spec := range specs {
		r.resources = append(r.resources, spec)
		r.bySlug[spec.ID()] = spec
	}
	return nil
}

// AddDashboards registers dashboards. The slug of each must be unique.
func (r *Registry) AddDashboards(specs ...*schema.DashboardSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return &FrozenError{Op: "add dashboard"}
	}

	seen := make(map[string]string, len(r.dashboards)+len(specs))
	for _, d := range r.dashboards {
		seen[d.ID()] = d.Name()
	}
	for _, d := range specs {
		if existing, ok := seen[d.ID()]; ok {
			return &DuplicateSlugError{Kind: "dashboard", Slug: d.ID(), Name: d.Name(), Existing: existing}
		}
		seen[d.ID()] = d.Name()
	}

	r.dashboards = append(r.dashboards, specs...)
	return nil
}

// AddPermissions adds permissions not derived from any resource, such as
// plugin-specific grants.
func (r *Registry) AddPermissions(perms ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return &FrozenError{Op: "add permission"}
	}
	r.extraPermissions = append(r.extraPermissions, perms...)
	return nil
}

// Extend returns the builder of a registered resource so it can be modified
// before freeze.
func (r *Registry) Extend(slug string) (*schema.ResourceSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.frozen {
		return nil, &FrozenError{Op: "extend resource " + slug}
	}
	spec, ok := r.bySlug[slug]
	if !ok {
		return nil, fmt.Errorf("resource %q: %w", slug, ErrNotFound)
	}
	return spec, nil
}

// Has reports whether a resource with the slug is registered.
func (r *Registry) Has(slug string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.bySlug[slug]
	return ok
}

// Compile compiles every resource and dashboard and replaces the snapshot.
// On error the previous snapshot is kept.
func (r *Registry) Compile() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.compileLocked()
}

func (r *Registry) compileLocked() error {
	resources := make([]schema.ResourceData, 0, len(r.resources))
	index := make(map[string]int, len(r.resources))
	tables := make(map[string]string, len(r.resources))
	bySlug := make(map[string]*schema.ResourceSpec, len(r.resources))

	for _, spec := range r.resources {
		data, err := spec.Compile()
		if err != nil {
			return err
		}

		// Slugs can change after Add through Extend.
		if i, ok := index[data.Slug]; ok {
			return &DuplicateSlugError{Kind: "resource", Slug: data.Slug, Name: data.Name, Existing: resources[i].Name}
		}
		if existing, ok := tables[data.Table]; ok {
			return &TableConflictError{Table: data.Table, Resource: data.Name, Existing: existing}
		}

		index[data.Slug] = len(resources)
		tables[data.Table] = data.Name
		bySlug[data.Slug] = spec
		resources = append(resources, data)
	}

	dashboards := make([]schema.DashboardData, 0, len(r.dashboards))
	for _, d := range r.dashboards {
		data, err := d.Compile()
		if err != nil {
			return err
		}
		dashboards = append(dashboards, data)
	}

	r.compiled = resources
	r.compiledIndex = index
	r.compiledDash = dashboards
	r.bySlug = bySlug
	r.permissions = mergePermissions(resources, r.extraPermissions)
	return nil
}

// Freeze compiles the registry and rejects all further structural mutation.
// Freezing a frozen registry is a no-op.
func (r *Registry) Freeze() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return nil
	}
	if err := r.compileLocked(); err != nil {
		return fmt.Errorf("freeze: %w", err)
	}
	r.frozen = true
	return nil
}

// Frozen reports whether Freeze has completed.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.frozen
}

// Resources returns the compiled resources in registration order.
func (r *Registry) Resources() []schema.ResourceData {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]schema.ResourceData(nil), r.compiled...)
}

// Resource returns a compiled resource by slug.
func (r *Registry) Resource(slug string) (schema.ResourceData, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.compiledIndex[slug]
	if !ok {
		return schema.ResourceData{}, false
	}
	return r.compiled[i], true
}

// Dashboards returns the compiled dashboards in registration order.
func (r *Registry) Dashboards() []schema.DashboardData {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]schema.DashboardData(nil), r.compiledDash...)
}

// Dashboard returns a compiled dashboard by slug.
func (r *Registry) Dashboard(slug string) (schema.DashboardData, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.compiledDash {
		if d.Slug == slug {
			return d, true
		}
	}
	return schema.DashboardData{}, false
}

// Permissions returns the merged permission set: resource permissions in
// resource order, then added permissions, without duplicates.
func (r *Registry) Permissions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.permissions...)
}

// Serialize returns the JSON-compatible schema of the registry.
func (r *Registry) Serialize() Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Schema{
		Resources:   append([]schema.ResourceData{}, r.compiled...),
		Dashboards:  append([]schema.DashboardData{}, r.compiledDash...),
		Permissions: append([]string{}, r.permissions...),
	}
}

func mergePermissions(resources []schema.ResourceData, extra []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, res := range resources {
		for _, p := range res.Permissions {
			add(p)
		}
	}
	for _, p := range extra {
		add(p)
	}
	return out
}
