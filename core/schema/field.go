package schema

import (
	"strings"

	"github.com/artpar/adminkit/core/convention"
)

// FieldType is the kind of value a field holds.
type FieldType string

const (
	// Scalar types
	FieldTypeText      FieldType = "text"
	FieldTypeTextarea  FieldType = "textarea"
	FieldTypePassword  FieldType = "password"
	FieldTypeNumber    FieldType = "number"
	FieldTypeInteger   FieldType = "integer"
	FieldTypeBoolean   FieldType = "boolean"
	FieldTypeDate      FieldType = "date"
	FieldTypeTimestamp FieldType = "timestamp"
	FieldTypeSelect    FieldType = "select" // Requires options
	FieldTypeJSON      FieldType = "json"

	// Relation types
	FieldTypeBelongsTo     FieldType = "belongs-to"      // Stored as <name>_id
	FieldTypeHasOne        FieldType = "has-one"         // Virtual
	FieldTypeHasMany       FieldType = "has-many"        // Virtual
	FieldTypeBelongsToMany FieldType = "belongs-to-many" // Virtual
)

// IsRelation reports whether the type links to another resource.
func (t FieldType) IsRelation() bool {
	switch t {
	case FieldTypeBelongsTo, FieldTypeHasOne, FieldTypeHasMany, FieldTypeBelongsToMany:
		return true
	}
	return false
}

// IsVirtual reports whether values of this type live outside the resource's
// own table.
func (t FieldType) IsVirtual() bool {
	switch t {
	case FieldTypeHasOne, FieldTypeHasMany, FieldTypeBelongsToMany:
		return true
	}
	return false
}

// IsValid reports whether t is a known field type.
func (t FieldType) IsValid() bool {
	switch t {
	case FieldTypeText, FieldTypeTextarea, FieldTypePassword, FieldTypeNumber,
		FieldTypeInteger, FieldTypeBoolean, FieldTypeDate, FieldTypeTimestamp,
		FieldTypeSelect, FieldTypeJSON:
		return true
	}
	return t.IsRelation()
}

// component returns the default UI renderer name for the type.
func (t FieldType) component() string {
	return strings.ReplaceAll(convention.TitleCase(string(t)), " ", "")
}

// Option is one entry of a select field.
type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// Components names the UI renderers bound to a field. The names are opaque to
// the core; the dashboard resolves them.
type Components struct {
	Default string `json:"default" yaml:"default"`
	Index   string `json:"index" yaml:"index"`
	Detail  string `json:"detail" yaml:"detail"`
	Form    string `json:"form" yaml:"form"`
}

// FieldSpec builds the description of one resource attribute.
// Methods mutate the spec and return it for chaining.
type FieldSpec struct {
	name          string
	fieldType     FieldType
	databaseField string

	rules         []string
	creationRules []string
	updateRules   []string

	searchable bool
	sortable   bool
	unique     bool
	nullable   bool

	showOnIndex    bool
	showOnDetail   bool
	showOnCreation bool
	showOnUpdate   bool

	components   Components
	options      []Option
	defaultValue any
	related      string
	description  string
}

// FieldData is the compiled, serializable form of a field.
type FieldData struct {
	Name            string     `json:"name" yaml:"name"`
	Type            FieldType  `json:"fieldType" yaml:"fieldType"`
	DatabaseField   string     `json:"databaseField" yaml:"databaseField"`
	Rules           []string   `json:"rules" yaml:"rules"`
	CreationRules   []string   `json:"creationRules" yaml:"creationRules"`
	UpdateRules     []string   `json:"updateRules" yaml:"updateRules"`
	Searchable      bool       `json:"searchable" yaml:"searchable"`
	Sortable        bool       `json:"sortable" yaml:"sortable"`
	Unique          bool       `json:"unique" yaml:"unique"`
	Nullable        bool       `json:"nullable" yaml:"nullable"`
	ShowOnIndex     bool       `json:"showOnIndex" yaml:"showOnIndex"`
	ShowOnDetail    bool       `json:"showOnDetail" yaml:"showOnDetail"`
	ShowOnCreation  bool       `json:"showOnCreation" yaml:"showOnCreation"`
	ShowOnUpdate    bool       `json:"showOnUpdate" yaml:"showOnUpdate"`
	Component       Components `json:"component" yaml:"component"`
	SelectOptions   []Option   `json:"selectOptions,omitempty" yaml:"selectOptions,omitempty"`
	DefaultValue    any        `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	RelatedResource string     `json:"relatedResource,omitempty" yaml:"relatedResource,omitempty"`
	Virtual         bool       `json:"virtual" yaml:"virtual"`
	Description     string     `json:"description,omitempty" yaml:"description,omitempty"`
}

// IsRequired reports whether a value must be supplied when creating a record.
func (f FieldData) IsRequired() bool {
	return hasRule(f.Rules, RuleRequired) || hasRule(f.CreationRules, RuleRequired)
}

// CreateRules returns the rules applied when a record is created.
func (f FieldData) CreateRules() []string {
	return concat(f.Rules, f.CreationRules)
}

// EditRules returns the rules applied when a record is updated.
func (f FieldData) EditRules() []string {
	return concat(f.Rules, f.UpdateRules)
}

// NewField starts a field of the given type.
func NewField(name string, t FieldType) *FieldSpec {
	c := t.component()
	return &FieldSpec{
		name:           strings.TrimSpace(name),
		fieldType:      t,
		nullable:       true,
		showOnIndex:    true,
		showOnDetail:   true,
		showOnCreation: true,
		showOnUpdate:   true,
		components:     Components{Default: c, Index: c, Detail: c, Form: c},
	}
}

// Text declares a single-line string field.
func Text(name string) *FieldSpec { return NewField(name, FieldTypeText) }

// Textarea declares a multi-line string field. Hidden on index by default.
func Textarea(name string) *FieldSpec { return NewField(name, FieldTypeTextarea).HideOnIndex() }

// Password declares a write-only secret field.
func Password(name string) *FieldSpec {
	return NewField(name, FieldTypePassword).HideOnIndex().HideOnDetail()
}

// Number declares a floating point field.
func Number(name string) *FieldSpec { return NewField(name, FieldTypeNumber) }

// Integer declares an integer field.
func Integer(name string) *FieldSpec { return NewField(name, FieldTypeInteger) }

// Boolean declares a true/false field.
func Boolean(name string) *FieldSpec { return NewField(name, FieldTypeBoolean) }

// Date declares a calendar date field.
func Date(name string) *FieldSpec { return NewField(name, FieldTypeDate) }

// Timestamp declares a date-time field.
func Timestamp(name string) *FieldSpec { return NewField(name, FieldTypeTimestamp) }

// Select declares a field holding one of a fixed set of options.
func Select(name string) *FieldSpec { return NewField(name, FieldTypeSelect) }

// JSON declares a field holding arbitrary JSON.
func JSON(name string) *FieldSpec { return NewField(name, FieldTypeJSON).HideOnIndex() }

// BelongsTo declares a to-one relation stored on this resource.
// The related resource defaults to the field name.
func BelongsTo(name string) *FieldSpec { return relation(name, FieldTypeBelongsTo) }

// HasOne declares a to-one relation stored on the related resource.
func HasOne(name string) *FieldSpec { return relation(name, FieldTypeHasOne) }

// HasMany declares a to-many relation stored on the related resource.
func HasMany(name string) *FieldSpec { return relation(name, FieldTypeHasMany).HideOnIndex() }

// BelongsToMany declares a many-to-many relation.
func BelongsToMany(name string) *FieldSpec {
	return relation(name, FieldTypeBelongsToMany).HideOnIndex()
}

func relation(name string, t FieldType) *FieldSpec {
	f := NewField(name, t)
	resource := name
	if t == FieldTypeHasMany || t == FieldTypeBelongsToMany {
		resource = convention.Singularize(name)
	}
	f.related = convention.ParamCase(resource)
	return f
}

// Name returns the display name of the field.
func (f *FieldSpec) Name() string { return f.name }

// Type returns the field type.
func (f *FieldSpec) Type() FieldType { return f.fieldType }

// DatabaseField overrides the derived storage identifier.
func (f *FieldSpec) DatabaseField(column string) *FieldSpec {
	f.databaseField = column
	return f
}

// Rules appends validation rules applied on both creation and update.
// A rule string may hold several rules separated by "|".
func (f *FieldSpec) Rules(rules ...string) *FieldSpec {
	f.rules = appendRules(f.rules, rules)
	return f
}

// CreationRules appends rules applied only when creating a record.
func (f *FieldSpec) CreationRules(rules ...string) *FieldSpec {
	f.creationRules = appendRules(f.creationRules, rules)
	return f
}

// UpdateRules appends rules applied only when updating a record.
func (f *FieldSpec) UpdateRules(rules ...string) *FieldSpec {
	f.updateRules = appendRules(f.updateRules, rules)
	return f
}

// Required is shorthand for Rules("required").
func (f *FieldSpec) Required() *FieldSpec {
	if !hasRule(f.rules, RuleRequired) {
		f.rules = append(f.rules, string(RuleRequired))
	}
	return f
}

func (f *FieldSpec) Searchable() *FieldSpec { f.searchable = true; return f }
func (f *FieldSpec) Sortable() *FieldSpec   { f.sortable = true; return f }
func (f *FieldSpec) Unique() *FieldSpec     { f.unique = true; return f }

// Nullable allows the stored value to be null. Fields are nullable by default.
func (f *FieldSpec) Nullable() *FieldSpec { f.nullable = true; return f }

// NotNullable forbids null values in storage.
func (f *FieldSpec) NotNullable() *FieldSpec { f.nullable = false; return f }

func (f *FieldSpec) HideOnIndex() *FieldSpec  { f.showOnIndex = false; return f }
func (f *FieldSpec) HideOnDetail() *FieldSpec { f.showOnDetail = false; return f }
func (f *FieldSpec) HideOnCreate() *FieldSpec { f.showOnCreation = false; return f }
func (f *FieldSpec) HideOnUpdate() *FieldSpec { f.showOnUpdate = false; return f }
func (f *FieldSpec) ShowOnIndex() *FieldSpec  { f.showOnIndex = true; return f }
func (f *FieldSpec) ShowOnDetail() *FieldSpec { f.showOnDetail = true; return f }
func (f *FieldSpec) ShowOnCreate() *FieldSpec { f.showOnCreation = true; return f }
func (f *FieldSpec) ShowOnUpdate() *FieldSpec { f.showOnUpdate = true; return f }

// HideOnForms hides the field on creation and update forms.
func (f *FieldSpec) HideOnForms() *FieldSpec {
	return f.HideOnCreate().HideOnUpdate()
}

// OnlyOnForms shows the field on creation and update forms only.
func (f *FieldSpec) OnlyOnForms() *FieldSpec {
	return f.HideOnIndex().HideOnDetail().ShowOnCreate().ShowOnUpdate()
}

// OnlyOnIndex shows the field on the index table only.
func (f *FieldSpec) OnlyOnIndex() *FieldSpec {
	return f.ShowOnIndex().HideOnDetail().HideOnForms()
}

// HideFromAll hides the field in every context. Combined with a required
// rule this fails compilation.
func (f *FieldSpec) HideFromAll() *FieldSpec {
	return f.HideOnIndex().HideOnDetail().HideOnForms()
}

// Component binds the default renderer, and every context renderer still
// following the previous default.
func (f *FieldSpec) Component(name string) *FieldSpec {
	prev := f.components.Default
	f.components.Default = name
	if f.components.Index == prev {
		f.components.Index = name
	}
	if f.components.Detail == prev {
		f.components.Detail = name
	}
	if f.components.Form == prev {
		f.components.Form = name
	}
	return f
}

func (f *FieldSpec) IndexComponent(name string) *FieldSpec  { f.components.Index = name; return f }
func (f *FieldSpec) DetailComponent(name string) *FieldSpec { f.components.Detail = name; return f }
func (f *FieldSpec) FormComponent(name string) *FieldSpec   { f.components.Form = name; return f }

// Options appends select options in order.
func (f *FieldSpec) Options(opts ...Option) *FieldSpec {
	f.options = append(f.options, opts...)
	return f
}

// OptionValues appends select options labelled by title-casing each value.
func (f *FieldSpec) OptionValues(values ...string) *FieldSpec {
	for _, v := range values {
		f.options = append(f.options, Option{Value: v, Label: convention.TitleCase(v)})
	}
	return f
}

// Default sets the value used when none is supplied.
func (f *FieldSpec) Default(v any) *FieldSpec {
	f.defaultValue = v
	return f
}

// Related overrides the related resource of a relation field.
func (f *FieldSpec) Related(resource string) *FieldSpec {
	f.related = convention.ParamCase(resource)
	return f
}

// Description sets help text shown next to the field.
func (f *FieldSpec) Description(text string) *FieldSpec {
	f.description = text
	return f
}

// resolvedDatabaseField returns the override or the derived identifier.
func (f *FieldSpec) resolvedDatabaseField() string {
	if f.databaseField != "" {
		return f.databaseField
	}
	if f.fieldType == FieldTypeBelongsTo {
		return convention.ForeignKey(f.name)
	}
	return convention.SnakeCase(f.name)
}

// hiddenEverywhere reports whether no context would render the field.
func (f *FieldSpec) hiddenEverywhere() bool {
	return !f.showOnIndex && !f.showOnDetail && !f.showOnCreation && !f.showOnUpdate
}

// data builds the snapshot. Slices are copied so later builder calls cannot
// reach into compiled output.
func (f *FieldSpec) data() FieldData {
	return FieldData{
		Name:            f.name,
		Type:            f.fieldType,
		DatabaseField:   f.resolvedDatabaseField(),
		Rules:           copyStrings(f.rules),
		CreationRules:   copyStrings(f.creationRules),
		UpdateRules:     copyStrings(f.updateRules),
		Searchable:      f.searchable,
		Sortable:        f.sortable,
		Unique:          f.unique,
		Nullable:        f.nullable,
		ShowOnIndex:     f.showOnIndex,
		ShowOnDetail:    f.showOnDetail,
		ShowOnCreation:  f.showOnCreation,
		ShowOnUpdate:    f.showOnUpdate,
		Component:       f.components,
		SelectOptions:   append([]Option(nil), f.options...),
		DefaultValue:    f.defaultValue,
		RelatedResource: f.related,
		Virtual:         f.fieldType.IsVirtual(),
		Description:     f.description,
	}
}

// validate checks the field on its own; cross-field checks live in the
// resource compiler.
func (f *FieldSpec) validate(resource string) error {
	if f.name == "" {
		return &InvalidFieldError{Resource: resource, Field: f.name, Reason: ErrEmptyName.Error()}
	}
	if !f.fieldType.IsValid() {
		return &InvalidFieldError{Resource: resource, Field: f.name, Reason: "unknown type " + string(f.fieldType)}
	}
	if f.fieldType == FieldTypeSelect && len(f.options) == 0 {
		return &InvalidFieldError{Resource: resource, Field: f.name, Reason: "select requires options"}
	}
	if f.fieldType.IsRelation() && f.related == "" {
		return &InvalidFieldError{Resource: resource, Field: f.name, Reason: "relation requires a related resource"}
	}
	if f.hiddenEverywhere() && (hasRule(f.rules, RuleRequired) || hasRule(f.creationRules, RuleRequired)) {
		return &HiddenRequiredFieldError{Resource: resource, Field: f.name}
	}
	return nil
}

func appendRules(dst []string, rules []string) []string {
	for _, r := range rules {
		for _, part := range strings.Split(r, "|") {
			if part = strings.TrimSpace(part); part != "" {
				dst = append(dst, part)
			}
		}
	}
	return dst
}

func copyStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func concat(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
