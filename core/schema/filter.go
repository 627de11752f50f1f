package schema

import (
	"context"
	"strings"

	"github.com/artpar/adminkit/core/convention"
)

// Operation names the request kind a filter condition is evaluated for.
type Operation string

const (
	OperationIndex  Operation = "index"
	OperationFetch  Operation = "fetch"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
	OperationAction Operation = "action"
)

// Args holds the runtime arguments supplied for a filter.
type Args map[string]any

// Condition produces the constraint a filter contributes to a query.
type Condition func(ctx context.Context, args Args, op Operation) Where

// FilterSpec builds a named, reusable query condition.
type FilterSpec struct {
	name          string
	shortName     string
	isDefault     bool
	dashboardView bool
	args          bool
	cond          Condition
	description   string
}

// FilterData is the compiled filter.
type FilterData struct {
	Name          string    `json:"name" yaml:"name"`
	ShortName     string    `json:"shortName" yaml:"shortName"`
	Slug          string    `json:"slug" yaml:"slug"`
	Default       bool      `json:"default" yaml:"default"`
	DashboardView bool      `json:"dashboardView" yaml:"dashboardView"`
	Args          bool      `json:"args" yaml:"args"`
	Description   string    `json:"description,omitempty" yaml:"description,omitempty"`
	Cond          Condition `json:"-" yaml:"-"`
}

// Filter starts a filter. Filters take runtime arguments unless NoArgs is set.
func Filter(name string) *FilterSpec {
	return &FilterSpec{name: strings.TrimSpace(name), args: true}
}

// Name returns the display name.
func (f *FilterSpec) Name() string { return f.name }

// ShortName overrides the derived camelCase short name.
func (f *FilterSpec) ShortName(s string) *FilterSpec { f.shortName = s; return f }

// Default marks the filter as applied when the client selects none.
func (f *FilterSpec) Default() *FilterSpec { f.isDefault = true; return f }

// DashboardView exposes the filter on dashboard views.
func (f *FilterSpec) DashboardView() *FilterSpec { f.dashboardView = true; return f }

// NoArgs declares the filter takes no runtime arguments.
func (f *FilterSpec) NoArgs() *FilterSpec { f.args = false; return f }

// Cond sets the condition function.
func (f *FilterSpec) Cond(fn Condition) *FilterSpec { f.cond = fn; return f }

// Where sets a condition that always yields w.
func (f *FilterSpec) Where(w Where) *FilterSpec {
	return f.Cond(func(context.Context, Args, Operation) Where { return w })
}

func (f *FilterSpec) Description(text string) *FilterSpec { f.description = text; return f }

func (f *FilterSpec) data() FilterData {
	short := f.shortName
	if short == "" {
		short = convention.CamelCase(f.name)
	}
	return FilterData{
		Name:          f.name,
		ShortName:     short,
		Slug:          convention.ParamCase(f.name),
		Default:       f.isDefault,
		DashboardView: f.dashboardView,
		Args:          f.args,
		Description:   f.description,
		Cond:          f.cond,
	}
}

// Apply evaluates the condition. A filter without a condition constrains
// nothing.
func (f FilterData) Apply(ctx context.Context, args Args, op Operation) Where {
	if f.Cond == nil {
		return nil
	}
	if !f.Args {
		args = nil
	}
	return f.Cond(ctx, args, op)
}

// Matches reports whether key names this filter by short name or slug.
func (f FilterData) Matches(key string) bool {
	return key == f.ShortName || key == f.Slug || strings.EqualFold(key, f.Name)
}
