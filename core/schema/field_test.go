package schema

import (
	"reflect"
	"testing"
)

func TestFieldConstructors(t *testing.T) {
	tests := []struct {
		field       *FieldSpec
		wantType    FieldType
		wantColumn  string
		wantVirtual bool
		wantRelated string
		wantIndex   bool
	}{
		{Text("Title"), FieldTypeText, "title", false, "", true},
		{Textarea("Body"), FieldTypeTextarea, "body", false, "", false},
		{Number("Price"), FieldTypeNumber, "price", false, "", true},
		{Boolean("Is Active"), FieldTypeBoolean, "is_active", false, "", true},
		{Date("Born On"), FieldTypeDate, "born_on", false, "", true},
		{JSON("Meta"), FieldTypeJSON, "meta", false, "", false},
		{BelongsTo("Author"), FieldTypeBelongsTo, "author_id", false, "author", true},
		{HasOne("Profile"), FieldTypeHasOne, "profile", true, "profile", true},
		{HasMany("Comments"), FieldTypeHasMany, "comments", true, "comment", false},
		{BelongsToMany("Tags"), FieldTypeBelongsToMany, "tags", true, "tag", false},
		{BelongsTo("Writer").Related("User"), FieldTypeBelongsTo, "writer_id", false, "user", true},
	}

	for _, tt := range tests {
		t.Run(tt.field.Name(), func(t *testing.T) {
			d := tt.field.data()
			if d.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", d.Type, tt.wantType)
			}
			if d.DatabaseField != tt.wantColumn {
				t.Errorf("DatabaseField = %q, want %q", d.DatabaseField, tt.wantColumn)
			}
			if d.Virtual != tt.wantVirtual {
				t.Errorf("Virtual = %v, want %v", d.Virtual, tt.wantVirtual)
			}
			if d.RelatedResource != tt.wantRelated {
				t.Errorf("RelatedResource = %q, want %q", d.RelatedResource, tt.wantRelated)
			}
			if d.ShowOnIndex != tt.wantIndex {
				t.Errorf("ShowOnIndex = %v, want %v", d.ShowOnIndex, tt.wantIndex)
			}
		})
	}
}

func TestFieldDefaults(t *testing.T) {
	d := Text("Title").data()
	if !d.Nullable {
		t.Error("fields should be nullable by default")
	}
	if d.Searchable || d.Sortable || d.Unique {
		t.Errorf("flags should default to false: %+v", d)
	}
	if !d.ShowOnIndex || !d.ShowOnDetail || !d.ShowOnCreation || !d.ShowOnUpdate {
		t.Errorf("visibility should default to true: %+v", d)
	}
	want := Components{Default: "Text", Index: "Text", Detail: "Text", Form: "Text"}
	if d.Component != want {
		t.Errorf("Component = %+v, want %+v", d.Component, want)
	}

	if Text("Title").NotNullable().data().Nullable {
		t.Error("NotNullable() should clear nullable")
	}
	if got := BelongsTo("User").data().Component.Default; got != "BelongsTo" {
		t.Errorf("BelongsTo component = %q", got)
	}
}

func TestFieldRules(t *testing.T) {
	f := Text("Password").
		Rules("required|min:8").
		CreationRules("confirmed").
		UpdateRules("max:64")
	d := f.data()

	if !reflect.DeepEqual(d.Rules, []string{"required", "min:8"}) {
		t.Errorf("Rules = %v", d.Rules)
	}
	if !reflect.DeepEqual(d.CreateRules(), []string{"required", "min:8", "confirmed"}) {
		t.Errorf("CreateRules() = %v", d.CreateRules())
	}
	if !reflect.DeepEqual(d.EditRules(), []string{"required", "min:8", "max:64"}) {
		t.Errorf("EditRules() = %v", d.EditRules())
	}

	r := Text("Name").Required().Required().data()
	if !reflect.DeepEqual(r.Rules, []string{"required"}) {
		t.Errorf("Required() twice = %v", r.Rules)
	}
	if Text("Name").UpdateRules("required").data().IsRequired() {
		t.Error("update-only required should not make a field required on create")
	}
}

func TestFieldVisibility(t *testing.T) {
	tests := []struct {
		name                           string
		field                          *FieldSpec
		index, detail, create, update bool
	}{
		{"default", Text("A"), true, true, true, true},
		{"hide on index", Text("A").HideOnIndex(), false, true, true, true},
		{"only on forms", Text("A").OnlyOnForms(), false, false, true, true},
		{"only on index", Text("A").OnlyOnIndex(), true, false, false, false},
		{"hide on forms", Text("A").HideOnForms(), true, true, false, false},
		{"hide from all", Text("A").HideFromAll(), false, false, false, false},
		{"password", Password("A"), false, false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.field.data()
			got := []bool{d.ShowOnIndex, d.ShowOnDetail, d.ShowOnCreation, d.ShowOnUpdate}
			want := []bool{tt.index, tt.detail, tt.create, tt.update}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("visibility = %v, want %v", got, want)
			}
		})
	}
}

func TestFieldComponents(t *testing.T) {
	d := Text("Bio").IndexComponent("Truncated").Component("Markdown").data()
	want := Components{Default: "Markdown", Index: "Truncated", Detail: "Markdown", Form: "Markdown"}
	if d.Component != want {
		t.Errorf("Component = %+v, want %+v", d.Component, want)
	}
}

func TestFieldOptions(t *testing.T) {
	d := Select("Status").
		OptionValues("draft", "in_review").
		Options(Option{Value: "live", Label: "Live!"}).
		Default("draft").
		data()

	want := []Option{
		{Value: "draft", Label: "Draft"},
		{Value: "in_review", Label: "In Review"},
		{Value: "live", Label: "Live!"},
	}
	if !reflect.DeepEqual(d.SelectOptions, want) {
		t.Errorf("SelectOptions = %v, want %v", d.SelectOptions, want)
	}
	if d.DefaultValue != "draft" {
		t.Errorf("DefaultValue = %v", d.DefaultValue)
	}
}

func TestParseRules(t *testing.T) {
	rules := ParseRules("required|min:8", "in:a, b,c", "regex:^[a-z,]+$", "", "custom_rule")
	want := []Rule{
		{Kind: RuleRequired, Raw: "required"},
		{Kind: RuleMin, Args: []string{"8"}, Raw: "min:8"},
		{Kind: RuleIn, Args: []string{"a", "b", "c"}, Raw: "in:a, b,c"},
		{Kind: RuleRegex, Args: []string{"^[a-z,]+$"}, Raw: "regex:^[a-z,]+$"},
		{Kind: "custom_rule", Raw: "custom_rule"},
	}
	if !reflect.DeepEqual(rules, want) {
		t.Fatalf("ParseRules() = %+v\nwant %+v", rules, want)
	}
	if rules[4].Known() {
		t.Error("custom_rule should not be known")
	}
	if rules[1].Arg(0) != "8" || rules[1].Arg(1) != "" {
		t.Errorf("Arg() = %q/%q", rules[1].Arg(0), rules[1].Arg(1))
	}
}
