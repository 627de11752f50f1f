package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/artpar/adminkit/core/convention"
)

// PublishedAtField is the name of the field injected into publishable resources.
const PublishedAtField = "Published At"

// Default CRUD permission verbs, in serialization order.
var DefaultPermissionVerbs = []string{"create", "read", "update", "delete", "index"}

// DefaultPerPageOptions is used when a resource declares none.
var DefaultPerPageOptions = []int{10, 25, 50}

// ResourceSpec builds a resource declaration.
//
// Builders are mutable until the registry holding them is frozen. Compile may
// be called any number of times and always derives the snapshot afresh.
type ResourceSpec struct {
	name             string
	slug             string
	label            string
	pluralLabel      string
	fields           []*FieldSpec
	filters          []*FilterSpec
	actions          []*ActionSpec
	displayField     string
	perPageOptions   []int
	permissions      []string
	group            string
	description      string
	hideOnNavigation bool

	publishable bool
	// Synthetic artifacts, created once per resource so toggling never
	// duplicates them and removal never touches user declarations.
	publishedAt *FieldSpec
	published   *FilterSpec
	drafted     *FilterSpec
}

// ResourceData is the immutable, serializable snapshot of a resource.
type ResourceData struct {
	Name             string       `json:"name" yaml:"name"`
	Slug             string       `json:"slug" yaml:"slug"`
	Label            string       `json:"label" yaml:"label"`
	PluralLabel      string       `json:"pluralLabel" yaml:"pluralLabel"`
	Table            string       `json:"table" yaml:"table"`
	Fields           []FieldData  `json:"fields" yaml:"fields"`
	Filters          []FilterData `json:"filters" yaml:"filters"`
	Actions          []ActionData `json:"actions" yaml:"actions"`
	DisplayField     string       `json:"displayField" yaml:"displayField"`
	PerPageOptions   []int        `json:"perPageOptions" yaml:"perPageOptions"`
	Permissions      []string     `json:"permissions" yaml:"permissions"`
	Publishable      bool         `json:"publishable" yaml:"publishable"`
	Group            string       `json:"group,omitempty" yaml:"group,omitempty"`
	Description      string       `json:"description,omitempty" yaml:"description,omitempty"`
	HideOnNavigation bool         `json:"hideOnNavigation" yaml:"hideOnNavigation"`
}

// Resource starts a resource declaration.
func Resource(name string) *ResourceSpec {
	r := &ResourceSpec{name: strings.TrimSpace(name)}
	r.publishedAt = Timestamp(PublishedAtField).Nullable().Sortable()
	r.published = Filter("Published").NoArgs().Cond(func(context.Context, Args, Operation) Where {
		return NotNull(convention.SnakeCase(PublishedAtField))
	})
	r.drafted = Filter("Drafted").NoArgs().Cond(func(context.Context, Args, Operation) Where {
		return IsNull(convention.SnakeCase(PublishedAtField))
	})
	return r
}

// Name returns the display name.
func (r *ResourceSpec) Name() string { return r.name }

// ID returns the current slug, derived from the name unless overridden.
func (r *ResourceSpec) ID() string {
	if r.slug != "" {
		return r.slug
	}
	return convention.ParamCase(r.name)
}

// Slug overrides the derived slug.
func (r *ResourceSpec) Slug(slug string) *ResourceSpec {
	r.slug = convention.ParamCase(slug)
	return r
}

func (r *ResourceSpec) Label(label string) *ResourceSpec       { r.label = label; return r }
func (r *ResourceSpec) PluralLabel(label string) *ResourceSpec { r.pluralLabel = label; return r }
func (r *ResourceSpec) Group(group string) *ResourceSpec       { r.group = group; return r }
func (r *ResourceSpec) Description(text string) *ResourceSpec  { r.description = text; return r }
func (r *ResourceSpec) HideOnNavigation() *ResourceSpec        { r.hideOnNavigation = true; return r }

// Fields appends fields. Order is the default column and form order.
func (r *ResourceSpec) Fields(fields ...*FieldSpec) *ResourceSpec {
	r.fields = append(r.fields, fields...)
	return r
}

// Filters appends filters.
func (r *ResourceSpec) Filters(filters ...*FilterSpec) *ResourceSpec {
	r.filters = append(r.filters, filters...)
	return r
}

// Actions appends actions.
func (r *ResourceSpec) Actions(actions ...*ActionSpec) *ResourceSpec {
	r.actions = append(r.actions, actions...)
	return r
}

// DisplayField names the field used as a record's title.
func (r *ResourceSpec) DisplayField(name string) *ResourceSpec {
	r.displayField = name
	return r
}

// PerPageOptions sets the page sizes offered to clients. The first is the default.
func (r *ResourceSpec) PerPageOptions(sizes ...int) *ResourceSpec {
	r.perPageOptions = append([]int(nil), sizes...)
	return r
}

// Permissions replaces the derived permission set.
func (r *ResourceSpec) Permissions(perms ...string) *ResourceSpec {
	r.permissions = append([]string(nil), perms...)
	return r
}

// Publishable injects the "Published At" field and the Published/Drafted filters.
func (r *ResourceSpec) Publishable() *ResourceSpec {
	r.publishable = true
	return r
}

// NotPublishable removes the artifacts injected by Publishable.
func (r *ResourceSpec) NotPublishable() *ResourceSpec {
	r.publishable = false
	return r
}

// IsPublishable reports the current toggle.
func (r *ResourceSpec) IsPublishable() bool { return r.publishable }

// FieldByName returns the declared field with the given name, or nil.
// Plugins use it to adjust fields of resources they did not declare.
func (r *ResourceSpec) FieldByName(name string) *FieldSpec {
	for _, f := range r.fields {
		if f.name == name {
			return f
		}
	}
	return nil
}

// RemoveField drops a declared field by name and reports whether it existed.
func (r *ResourceSpec) RemoveField(name string) bool {
	for i, f := range r.fields {
		if f.name == name {
			r.fields = append(r.fields[:i:i], r.fields[i+1:]...)
			return true
		}
	}
	return false
}

// allFields returns user fields followed by the synthetic field when publishable.
func (r *ResourceSpec) allFields() []*FieldSpec {
	out := append([]*FieldSpec(nil), r.fields...)
	if r.publishable {
		out = append(out, r.publishedAt)
	}
	return out
}

func (r *ResourceSpec) allFilters() []*FilterSpec {
	out := append([]*FilterSpec(nil), r.filters...)
	if r.publishable {
		out = append(out, r.published, r.drafted)
	}
	return out
}

// Compile validates the declaration and returns its snapshot.
func (r *ResourceSpec) Compile() (ResourceData, error) {
	if r.name == "" {
		return ResourceData{}, fmt.Errorf("resource: %w", ErrEmptyName)
	}
	slug := r.ID()

	fields := r.allFields()
	fieldData := make([]FieldData, 0, len(fields))
	seen := make(map[string]string, len(fields))
	for _, f := range fields {
		if err := f.validate(r.name); err != nil {
			return ResourceData{}, err
		}
		fd := f.data()
		if existing, ok := seen[fd.DatabaseField]; ok {
			return ResourceData{}, &DuplicateFieldError{
				Resource:      r.name,
				Field:         fd.Name,
				Existing:      existing,
				DatabaseField: fd.DatabaseField,
			}
		}
		seen[fd.DatabaseField] = fd.Name
		fieldData = append(fieldData, fd)
	}

	display, err := r.resolveDisplayField(fieldData)
	if err != nil {
		return ResourceData{}, err
	}

	filters := r.allFilters()
	filterData := make([]FilterData, 0, len(filters))
	for _, f := range filters {
		if f.name == "" {
			return ResourceData{}, &InvalidFieldError{Resource: r.name, Field: "filter", Reason: ErrEmptyName.Error()}
		}
		filterData = append(filterData, f.data())
	}

	actionData := make([]ActionData, 0, len(r.actions))
	for _, a := range r.actions {
		ad, err := a.compile(r.name)
		if err != nil {
			return ResourceData{}, err
		}
		actionData = append(actionData, ad)
	}

	perPage := r.perPageOptions
	if len(perPage) == 0 {
		perPage = DefaultPerPageOptions
	}

	label := r.label
	if label == "" {
		label = r.name
	}
	plural := r.pluralLabel
	if plural == "" {
		plural = pluralLabel(label)
	}

	return ResourceData{
		Name:             r.name,
		Slug:             slug,
		Label:            label,
		PluralLabel:      plural,
		Table:            convention.Table(r.name),
		Fields:           fieldData,
		Filters:          filterData,
		Actions:          actionData,
		DisplayField:     display,
		PerPageOptions:   append([]int(nil), perPage...),
		Permissions:      r.resolvePermissions(slug),
		Publishable:      r.publishable,
		Group:            r.group,
		Description:      r.description,
		HideOnNavigation: r.hideOnNavigation,
	}, nil
}

// resolveDisplayField accepts a field name or database field. An unset display
// field falls back to the first field.
func (r *ResourceSpec) resolveDisplayField(fields []FieldData) (string, error) {
	if r.displayField == "" {
		if len(fields) == 0 {
			return "", nil
		}
		return fields[0].Name, nil
	}
	for _, f := range fields {
		if f.Name == r.displayField || f.DatabaseField == r.displayField {
			return f.Name, nil
		}
	}
	return "", &InvalidDisplayFieldError{Resource: r.name, DisplayField: r.displayField}
}

func (r *ResourceSpec) resolvePermissions(slug string) []string {
	if r.permissions != nil {
		return append([]string(nil), r.permissions...)
	}
	return Permissions(slug)
}

// Permissions returns the derived CRUD permission set for a slug.
func Permissions(slug string) []string {
	out := make([]string, len(DefaultPermissionVerbs))
	for i, verb := range DefaultPermissionVerbs {
		out[i] = verb + ":" + slug
	}
	return out
}

// pluralLabel pluralizes the last word of a label.
func pluralLabel(label string) string {
	i := strings.LastIndex(label, " ")
	return label[:i+1] + convention.Pluralize(label[i+1:])
}

// Field returns the compiled field with the given name.
func (d ResourceData) Field(name string) (FieldData, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldData{}, false
}

// FieldByDatabaseField returns the compiled field stored under column.
func (d ResourceData) FieldByDatabaseField(column string) (FieldData, bool) {
	for _, f := range d.Fields {
		if f.DatabaseField == column {
			return f, true
		}
	}
	return FieldData{}, false
}

// StoredFields returns the fields backed by a column, in declaration order.
func (d ResourceData) StoredFields() []FieldData {
	out := make([]FieldData, 0, len(d.Fields))
	for _, f := range d.Fields {
		if !f.Virtual {
			out = append(out, f)
		}
	}
	return out
}

// Filter returns the first filter matching key by short name, slug or name.
func (d ResourceData) Filter(key string) (FilterData, bool) {
	for _, f := range d.Filters {
		if f.Matches(key) {
			return f, true
		}
	}
	return FilterData{}, false
}

// DefaultFilters returns the filters applied when a client selects none.
func (d ResourceData) DefaultFilters() []FilterData {
	var out []FilterData
	for _, f := range d.Filters {
		if f.Default {
			out = append(out, f)
		}
	}
	return out
}

// Action returns the action with the given slug.
func (d ResourceData) Action(slug string) (ActionData, bool) {
	for _, a := range d.Actions {
		if a.Slug == slug {
			return a, true
		}
	}
	return ActionData{}, false
}

// Permission returns the permission for verb, or "" if the resource does not
// grant it.
func (d ResourceData) Permission(verb string) string {
	want := verb + ":" + d.Slug
	for _, p := range d.Permissions {
		if p == want {
			return p
		}
	}
	return ""
}
