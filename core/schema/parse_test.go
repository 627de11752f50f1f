package schema

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const postYAML = `
resource: Post
displayField: Title
publishable: true
perPageOptions: [20, 40]
fields:
  - name: Title
    type: text
    rules: required|max:120
    searchable: true
  - name: Body
    type: textarea
  - name: Status
    type: select
    options: [draft, in_review]
    default: draft
  - name: Author
    type: belongs-to
    related: User
    hide: [index]
filters:
  - name: In Review
    default: true
    where:
      status: in_review
`

func TestParse(t *testing.T) {
	spec, err := Parse([]byte(postYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !spec.IsPublishable() {
		t.Error("expected publishable")
	}

	d := mustCompile(t, spec)
	if got := fieldNames(d); !reflect.DeepEqual(got, []string{"Title", "Body", "Status", "Author", "Published At"}) {
		t.Errorf("fields = %v", got)
	}
	if got := filterNames(d); !reflect.DeepEqual(got, []string{"In Review", "Published", "Drafted"}) {
		t.Errorf("filters = %v", got)
	}
	if !reflect.DeepEqual(d.PerPageOptions, []int{20, 40}) {
		t.Errorf("PerPageOptions = %v", d.PerPageOptions)
	}

	title, _ := d.Field("Title")
	if !reflect.DeepEqual(title.Rules, []string{"required", "max:120"}) || !title.Searchable {
		t.Errorf("Title = %+v", title)
	}
	author, _ := d.Field("Author")
	if author.DatabaseField != "author_id" || author.RelatedResource != "user" || author.ShowOnIndex {
		t.Errorf("Author = %+v", author)
	}
	status, _ := d.Field("Status")
	if len(status.SelectOptions) != 2 || status.SelectOptions[1].Label != "In Review" || status.DefaultValue != "draft" {
		t.Errorf("Status = %+v", status)
	}

	defaults := d.DefaultFilters()
	if len(defaults) != 1 || defaults[0].ShortName != "inReview" || defaults[0].Args {
		t.Fatalf("DefaultFilters() = %+v", defaults)
	}
	if w := defaults[0].Apply(context.Background(), nil, OperationIndex); !reflect.DeepEqual(w, Where{"status": "in_review"}) {
		t.Errorf("where = %v", w)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing resource", "fields: [{name: A, type: text}]", "resource name is required"},
		{"no fields", "resource: Post", "at least one field"},
		{"unknown type", "resource: Post\nfields: [{name: A, type: blob}]", `unknown type "blob"`},
		{"select without options", "resource: Post\nfields: [{name: A, type: select}]", "requires options"},
		{"unknown rule", "resource: Post\nfields: [{name: A, type: text, rules: required|shiny}]", `unknown rule "shiny"`},
		{"bad hide", "resource: Post\nfields: [{name: A, type: text, hide: [list]}]", `unknown hide context "list"`},
		{"filter without where", "resource: Post\nfields: [{name: A, type: text}]\nfilters: [{name: F}]", "where is required"},
		{"bad yaml", "resource: [", "parse yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse() error = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestParseDir(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, content string) {
		t.Helper()
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("a_post.yaml", postYAML)
	write("nested/tag.yml", "resource: Tag\nfields: [{name: Label, type: text}]")
	write("README.md", "ignored")

	specs, err := ParseDir(dir)
	if err != nil {
		t.Fatalf("ParseDir() error = %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("ParseDir() returned %d specs, want 2", len(specs))
	}
	if specs[0].Name() != "Post" || specs[1].Name() != "Tag" {
		t.Errorf("order = %q, %q", specs[0].Name(), specs[1].Name())
	}

	write("broken.yaml", "resource: Broken")
	if _, err := ParseDir(dir); err == nil || !strings.Contains(err.Error(), "broken.yaml") {
		t.Errorf("ParseDir() error = %v, want mention of broken.yaml", err)
	}
}
