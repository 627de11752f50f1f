// Package formatter renders a serialized registry and command errors for the
// CLI in table, json or yaml form.
package formatter

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/artpar/adminkit/core/registry"
	"github.com/artpar/adminkit/core/schema"
)

// Formatter converts structured data to a specific output format.
type Formatter interface {
	// Name returns the formatter name (e.g., "table", "json", "yaml").
	Name() string

	// Description returns a human-readable description.
	Description() string

	// FormatSchema writes a serialized registry.
	FormatSchema(w io.Writer, s registry.Schema, opts FormatOptions) error

	// FormatList writes one page of records with the total match count.
	FormatList(w io.Writer, res schema.ResourceData, records []map[string]any, total int64, opts FormatOptions) error

	// FormatRecord writes a single record.
	FormatRecord(w io.Writer, res schema.ResourceData, record map[string]any, opts FormatOptions) error

	// FormatError writes an error.
	FormatError(w io.Writer, err error) error
}

// FormatOptions configures formatting behavior.
type FormatOptions struct {
	// NoHeader disables header rows for tabular formats.
	NoHeader bool

	// Compact minimizes whitespace (json).
	Compact bool

	// MaxWidth truncates long cell values (0 = no limit).
	MaxWidth int

	// Columns restricts record output to these database fields.
	Columns []string
}

// Columns returns the database fields shown for res: the requested ones, or
// id followed by every stored field visible on index (list) or detail.
// Password fields are never shown.
func Columns(res schema.ResourceData, requested []string, detail bool) []string {
	if len(requested) > 0 {
		return requested
	}
	cols := []string{"id"}
	for _, f := range res.StoredFields() {
		if f.Type == schema.FieldTypePassword {
			continue
		}
		if (detail && f.ShowOnDetail) || (!detail && f.ShowOnIndex) {
			cols = append(cols, f.DatabaseField)
		}
	}
	return cols
}

// project keeps only cols of record.
func project(record map[string]any, cols []string) map[string]any {
	out := make(map[string]any, len(cols))
	for _, c := range cols {
		if v, ok := record[c]; ok {
			out[c] = v
		}
	}
	return out
}

// Registry manages registered formatters.
type Registry struct {
	mu         sync.RWMutex
	formatters map[string]Formatter
	defaultFmt string
}

// NewRegistry creates a registry holding the built-in formatters.
func NewRegistry() *Registry {
	r := &Registry{
		formatters: make(map[string]Formatter),
		defaultFmt: "table",
	}
	for _, f := range []Formatter{NewTableFormatter(), NewJSONFormatter(), NewYAMLFormatter()} {
		r.formatters[f.Name()] = f
	}
	return r
}

// Register adds a formatter to the registry.
func (r *Registry) Register(f Formatter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.formatters[f.Name()]; exists {
		return fmt.Errorf("formatter %q already registered", f.Name())
	}

	r.formatters[f.Name()] = f
	return nil
}

// Get returns a formatter by name.
func (r *Registry) Get(name string) (Formatter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.formatters[name]
	return f, ok
}

// Default returns the default formatter.
func (r *Registry) Default() Formatter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.formatters[r.defaultFmt]
}

// List returns all registered formatter names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.formatters))
	for name := range r.formatters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Get returns a formatter from the default registry.
func Get(name string) (Formatter, bool) {
	return DefaultRegistry.Get(name)
}

// Lookup returns the named formatter or an error listing the valid names.
func Lookup(name string) (Formatter, error) {
	if name == "" {
		return DefaultRegistry.Default(), nil
	}
	if f, ok := DefaultRegistry.Get(name); ok {
		return f, nil
	}
	return nil, fmt.Errorf("unknown output format %q (available: %v)", name, DefaultRegistry.List())
}
