package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Declaration is the YAML form of a resource.
//
//	resource: Post
//	displayField: Title
//	publishable: true
//	fields:
//	  - name: Title
//	    type: text
//	    rules: required|max:120
//	    searchable: true
//	  - name: Status
//	    type: select
//	    options: [draft, review]
//	filters:
//	  - name: In Review
//	    where: {status: review}
type Declaration struct {
	Resource       string              `yaml:"resource"`
	Slug           string              `yaml:"slug,omitempty"`
	Label          string              `yaml:"label,omitempty"`
	Group          string              `yaml:"group,omitempty"`
	Description    string              `yaml:"description,omitempty"`
	DisplayField   string              `yaml:"displayField,omitempty"`
	Publishable    bool                `yaml:"publishable,omitempty"`
	PerPageOptions []int               `yaml:"perPageOptions,omitempty"`
	Permissions    []string            `yaml:"permissions,omitempty"`
	Fields         []FieldDeclaration  `yaml:"fields"`
	Filters        []FilterDeclaration `yaml:"filters,omitempty"`
}

// FieldDeclaration is the YAML form of a field.
type FieldDeclaration struct {
	Name          string    `yaml:"name"`
	Type          FieldType `yaml:"type"`
	DatabaseField string    `yaml:"databaseField,omitempty"`
	Rules         string    `yaml:"rules,omitempty"`
	CreationRules string    `yaml:"creationRules,omitempty"`
	UpdateRules   string    `yaml:"updateRules,omitempty"`
	Searchable    bool      `yaml:"searchable,omitempty"`
	Sortable      bool      `yaml:"sortable,omitempty"`
	Unique        bool      `yaml:"unique,omitempty"`
	NotNullable   bool      `yaml:"notNullable,omitempty"`
	Hide          []string  `yaml:"hide,omitempty"` // index, detail, create, update
	Component     string    `yaml:"component,omitempty"`
	Options       []string  `yaml:"options,omitempty"`
	Default       any       `yaml:"default,omitempty"`
	Related       string    `yaml:"related,omitempty"`
	Description   string    `yaml:"description,omitempty"`
}

// FilterDeclaration is the YAML form of a static filter.
type FilterDeclaration struct {
	Name          string `yaml:"name"`
	ShortName     string `yaml:"shortName,omitempty"`
	Default       bool   `yaml:"default,omitempty"`
	DashboardView bool   `yaml:"dashboardView,omitempty"`
	Where         Where  `yaml:"where"`
}

// ParseFile parses a resource declaration from a YAML file.
func ParseFile(path string) (*ResourceSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}

	spec, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// Parse parses a resource declaration from YAML bytes.
func Parse(data []byte) (*ResourceSpec, error) {
	var decl Declaration
	if err := yaml.Unmarshal(data, &decl); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	if err := Validate(decl); err != nil {
		return nil, fmt.Errorf("validate resource %q: %w", decl.Resource, err)
	}

	return decl.Build(), nil
}

// ParseDir parses all resource declarations in a directory, including
// subdirectories, in lexical file order.
func ParseDir(dir string) ([]*ResourceSpec, error) {
	var specs []*ResourceSpec

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			sub, err := ParseDir(path)
			if err != nil {
				return nil, err
			}
			specs = append(specs, sub...)
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		spec, err := ParseFile(path)
		if err != nil {
			return nil, err
		}

		specs = append(specs, spec)
	}

	return specs, nil
}

// Validate checks a declaration for problems the builders cannot express,
// collecting every error rather than stopping at the first.
func Validate(decl Declaration) error {
	var errs []string

	if strings.TrimSpace(decl.Resource) == "" {
		errs = append(errs, "resource name is required")
	}

	if len(decl.Fields) == 0 {
		errs = append(errs, "at least one field is required")
	}

	for i, f := range decl.Fields {
		if strings.TrimSpace(f.Name) == "" {
			errs = append(errs, fmt.Sprintf("field %d: name is required", i))
			continue
		}
		if !f.Type.IsValid() {
			errs = append(errs, fmt.Sprintf("field %q: unknown type %q", f.Name, f.Type))
		}
		if f.Type == FieldTypeSelect && len(f.Options) == 0 {
			errs = append(errs, fmt.Sprintf("field %q: select type requires options", f.Name))
		}
		for _, h := range f.Hide {
			if !isVisibilityContext(h) {
				errs = append(errs, fmt.Sprintf("field %q: unknown hide context %q", f.Name, h))
			}
		}
		for _, r := range ParseRules(f.Rules, f.CreationRules, f.UpdateRules) {
			if !r.Known() {
				errs = append(errs, fmt.Sprintf("field %q: unknown rule %q", f.Name, r.Raw))
			}
		}
	}

	for i, f := range decl.Filters {
		if strings.TrimSpace(f.Name) == "" {
			errs = append(errs, fmt.Sprintf("filter %d: name is required", i))
		}
		if len(f.Where) == 0 {
			errs = append(errs, fmt.Sprintf("filter %q: where is required", f.Name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Build converts the declaration to a builder.
func (d Declaration) Build() *ResourceSpec {
	r := Resource(d.Resource)
	if d.Slug != "" {
		r.Slug(d.Slug)
	}
	if d.Label != "" {
		r.Label(d.Label)
	}
	r.Group(d.Group).Description(d.Description).DisplayField(d.DisplayField)
	if len(d.PerPageOptions) > 0 {
		r.PerPageOptions(d.PerPageOptions...)
	}
	if len(d.Permissions) > 0 {
		r.Permissions(d.Permissions...)
	}
	if d.Publishable {
		r.Publishable()
	}

	for _, fd := range d.Fields {
		r.Fields(fd.build())
	}
	for _, fd := range d.Filters {
		f := Filter(fd.Name).NoArgs().Where(fd.Where)
		if fd.ShortName != "" {
			f.ShortName(fd.ShortName)
		}
		if fd.Default {
			f.Default()
		}
		if fd.DashboardView {
			f.DashboardView()
		}
		r.Filters(f)
	}
	return r
}

func (fd FieldDeclaration) build() *FieldSpec {
	var f *FieldSpec
	switch fd.Type {
	case FieldTypeBelongsTo:
		f = BelongsTo(fd.Name)
	case FieldTypeHasOne:
		f = HasOne(fd.Name)
	case FieldTypeHasMany:
		f = HasMany(fd.Name)
	case FieldTypeBelongsToMany:
		f = BelongsToMany(fd.Name)
	case FieldTypeTextarea:
		f = Textarea(fd.Name)
	case FieldTypePassword:
		f = Password(fd.Name)
	case FieldTypeJSON:
		f = JSON(fd.Name)
	default:
		f = NewField(fd.Name, fd.Type)
	}

	if fd.DatabaseField != "" {
		f.DatabaseField(fd.DatabaseField)
	}
	f.Rules(fd.Rules).CreationRules(fd.CreationRules).UpdateRules(fd.UpdateRules)
	if fd.Searchable {
		f.Searchable()
	}
	if fd.Sortable {
		f.Sortable()
	}
	if fd.Unique {
		f.Unique()
	}
	if fd.NotNullable {
		f.NotNullable()
	}
	for _, h := range fd.Hide {
		switch h {
		case "index":
			f.HideOnIndex()
		case "detail":
			f.HideOnDetail()
		case "create":
			f.HideOnCreate()
		case "update":
			f.HideOnUpdate()
		}
	}
	if fd.Component != "" {
		f.Component(fd.Component)
	}
	if len(fd.Options) > 0 {
		f.OptionValues(fd.Options...)
	}
	if fd.Default != nil {
		f.Default(fd.Default)
	}
	if fd.Related != "" {
		f.Related(fd.Related)
	}
	return f.Description(fd.Description)
}

func isVisibilityContext(s string) bool {
	switch s {
	case "index", "detail", "create", "update":
		return true
	}
	return false
}
