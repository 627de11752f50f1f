package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/artpar/adminkit/core/events"
	"github.com/artpar/adminkit/core/registry"
	"github.com/artpar/adminkit/core/schema"
	"github.com/artpar/adminkit/core/storage"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type prefixHasher struct{}

func (prefixHasher) Hash(plaintext string) (string, error) { return "hashed:" + plaintext, nil }

type fixture struct {
	reg   *registry.Registry
	store *storage.SQLiteStore
	bus   *events.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := storage.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	reg := registry.New()
	err = reg.Add(
		schema.Resource("Post").Fields(
			schema.Text("Title").Rules("required|max:80").Searchable().Sortable(),
			schema.Integer("Views"),
			schema.Text("Author"),
			schema.Select("Status").OptionValues("visible", "hidden").Default("visible"),
		).Filters(
			schema.Filter("Visible").Default().NoArgs().Where(schema.Cond("status", schema.OpNe, "hidden")),
			schema.Filter("By Author").Cond(func(ctx context.Context, args schema.Args, op schema.Operation) schema.Where {
				return schema.Eq("author", args["author"])
			}),
		).Actions(
			schema.Action("Hide").Handler(func(ctx context.Context, req schema.ActionRequest) (schema.ActionResult, error) {
				for _, rec := range req.Records {
					if _, err := store.Update(ctx, "post", rec["id"].(string), map[string]any{"status": "hidden"}); err != nil {
						return schema.ActionResult{}, err
					}
				}
				return schema.Notify("hidden"), nil
			}),
			schema.Action("Purge").Destructive().ConfirmText("Purge these posts?"),
			schema.Action("Export"),
		),
		schema.Resource("Account").Fields(
			schema.Text("Email").Rules("required|email").Unique(),
			schema.Password("Password").Rules("required|min:8|confirmed"),
		),
	)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := reg.Freeze(); err != nil {
		t.Fatalf("Freeze() error = %v", err)
	}

	for _, res := range reg.Resources() {
		if err := store.CreateTable(context.Background(), res); err != nil {
			t.Fatalf("CreateTable(%s) error = %v", res.Slug, err)
		}
	}

	return &fixture{reg: reg, store: store, bus: events.NewBus(zerolog.Nop())}
}

// run executes args against a fresh command tree and returns stdout and
// stderr.
func (f *fixture) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmds, err := New(f.reg, f.store, f.bus, WithHasher(prefixHasher{})).Commands()
	if err != nil {
		t.Fatalf("Commands() error = %v", err)
	}

	root := &cobra.Command{Use: "adminkit", SilenceUsage: true}
	root.AddCommand(cmds...)

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func (f *fixture) create(t *testing.T, args ...string) map[string]any {
	t.Helper()
	out, errOut, err := f.run(t, append([]string{"post", "create", "-o", "json"}, args...)...)
	if err != nil {
		t.Fatalf("create error = %v\n%s", err, errOut)
	}
	var body struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &body); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	return body.Data
}

func TestCommands_RequiresFrozenRegistry(t *testing.T) {
	if _, err := New(registry.New(), nil, nil).Commands(); !errors.Is(err, ErrRegistryNotFrozen) {
		t.Errorf("Commands() error = %v, want ErrRegistryNotFrozen", err)
	}
}

func TestChannel_Name(t *testing.T) {
	if got := New(registry.New(), nil, nil).Name(); got != "cli" {
		t.Errorf("Name() = %q", got)
	}
}

func TestCommands_Tree(t *testing.T) {
	f := newFixture(t)
	cmds, err := New(f.reg, f.store, f.bus).Commands()
	if err != nil {
		t.Fatal(err)
	}

	if len(cmds) != 2 || cmds[0].Name() != "post" || cmds[1].Name() != "account" {
		t.Fatalf("commands = %v", cmds)
	}

	var subs []string
	for _, c := range cmds[0].Commands() {
		subs = append(subs, c.Name())
	}
	// cobra sorts subcommands by name.
	if got := strings.Join(subs, ","); got != "create,delete,export,get,hide,list,purge,update" {
		t.Errorf("post subcommands = %s", got)
	}

	create, _, err := cmds[1].Find([]string{"create"})
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"email", "password", "password-confirmation", "data", "output"} {
		if create.Flags().Lookup(name) == nil {
			t.Errorf("account create missing --%s", name)
		}
	}
}

func TestCRUD(t *testing.T) {
	f := newFixture(t)

	created := f.create(t, "--title", "Hello", "--views", "3")
	id, _ := created["id"].(string)
	if id == "" || created["title"] != "Hello" {
		t.Fatalf("created = %v", created)
	}

	out, _, err := f.run(t, "post", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Hello") || !strings.Contains(out, "1 of 1 Posts") {
		t.Errorf("list output:\n%s", out)
	}

	out, _, err = f.run(t, "post", "get", id)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Title:") || !strings.Contains(out, "Hello") {
		t.Errorf("get output:\n%s", out)
	}

	out, _, err = f.run(t, "post", "update", id, "--title", "World")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "Updated Post: "+id {
		t.Errorf("update output = %q", out)
	}

	out, _, err = f.run(t, "post", "delete", id)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "use --force") {
		t.Errorf("delete without --force = %q", out)
	}
	if _, err := f.store.Get(context.Background(), "post", id); err != nil {
		t.Fatalf("record removed without --force: %v", err)
	}

	if _, _, err := f.run(t, "post", "delete", id, "--force"); err != nil {
		t.Fatal(err)
	}
	_, errOut, err := f.run(t, "post", "get", id)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("get after delete error = %v", err)
	}
	if !strings.Contains(errOut, "Error:") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestCreate_Errors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing required", nil, "title"},
		{"bad integer", []string{"--title", "x", "--views", "many"}, "--views"},
		{"bad data", []string{"--data", "{"}, "invalid --data"},
		{"unknown field", []string{"--data", `{"title":"x","color":"red"}`}, "color"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errOut, err := f.run(t, append([]string{"post", "create"}, tt.args...)...)
			if err == nil {
				t.Fatal("create should fail")
			}
			if !strings.Contains(errOut, tt.want) {
				t.Errorf("stderr missing %q: %s", tt.want, errOut)
			}
		})
	}
}

func TestCreate_DataAndFlags(t *testing.T) {
	f := newFixture(t)

	created := f.create(t, "--data", `{"title":"From data","author":"ann"}`, "--title", "From flag")
	if created["title"] != "From flag" {
		t.Errorf("flag should win over --data, title = %v", created["title"])
	}

	rec, err := f.store.Get(context.Background(), "post", created["id"].(string))
	if err != nil {
		t.Fatal(err)
	}
	if rec["author"] != "ann" {
		t.Errorf("author = %v", rec["author"])
	}
}

func TestCreate_PasswordHashedAndHidden(t *testing.T) {
	f := newFixture(t)

	out, errOut, err := f.run(t, "account", "create", "-o", "json",
		"--email", "a@example.com", "--password", "secret123", "--password-confirmation", "secret123")
	if err != nil {
		t.Fatalf("create error = %v\n%s", err, errOut)
	}
	if strings.Contains(out, "secret123") || strings.Contains(out, "password") {
		t.Errorf("password leaked: %s", out)
	}

	records, _, err := f.store.List(context.Background(), "account", storage.ListOptions{})
	if err != nil || len(records) != 1 {
		t.Fatalf("List() = %v, %v", records, err)
	}
	if records[0]["password"] != "hashed:secret123" {
		t.Errorf("stored password = %v", records[0]["password"])
	}

	_, _, err = f.run(t, "account", "create", "--email", "b@example.com", "--password", "secret123")
	if err == nil {
		t.Error("create without confirmation should fail")
	}
}

func TestList_Filters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, data := range []map[string]any{
		{"title": "a", "author": "ann"},
		{"title": "b", "author": "bob"},
		{"title": "c", "author": "ann", "status": "hidden"},
	} {
		if _, err := f.store.Create(ctx, "post", data); err != nil {
			t.Fatal(err)
		}
	}

	count := func(args ...string) int {
		t.Helper()
		out, errOut, err := f.run(t, append([]string{"post", "list", "-o", "json"}, args...)...)
		if err != nil {
			t.Fatalf("list %v error = %v\n%s", args, err, errOut)
		}
		var page struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal([]byte(out), &page); err != nil {
			t.Fatal(err)
		}
		return page.Count
	}

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"default filter", nil, 2},
		{"selected filter replaces default", []string{"--filter", "By Author", "--arg", "author=ann"}, 2},
		{"search", []string{"--search", "b"}, 1},
		{"limit", []string{"--limit", "1"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := count(tt.args...); got != tt.want {
				t.Errorf("count = %d, want %d", got, tt.want)
			}
		})
	}

	if _, _, err := f.run(t, "post", "list", "--filter", "missing"); err == nil {
		t.Error("unknown filter should fail")
	}
}

func TestGet_ScopedByFilters(t *testing.T) {
	f := newFixture(t)
	rec, err := f.store.Create(context.Background(), "post", map[string]any{"title": "a", "author": "ann"})
	if err != nil {
		t.Fatal(err)
	}
	id := rec["id"].(string)

	if _, _, err := f.run(t, "post", "get", id, "--filter", "By Author", "--arg", "author=bob"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("scoped get error = %v", err)
	}
	if _, _, err := f.run(t, "post", "get", id, "--filter", "By Author", "--arg", "author=ann"); err != nil {
		t.Errorf("matching scoped get error = %v", err)
	}

	hidden, err := f.store.Create(context.Background(), "post", map[string]any{"title": "h", "author": "ann", "status": "hidden"})
	if err != nil {
		t.Fatal(err)
	}
	hid := hidden["id"].(string)
	for _, args := range [][]string{
		{"post", "get", hid},
		{"post", "update", hid, "--title", "leaked"},
		{"post", "delete", hid, "--force"},
		{"post", "hide", hid},
	} {
		if _, _, err := f.run(t, args...); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("%v on hidden post error = %v, want ErrNotFound", args[1:2], err)
		}
	}
	if _, _, err := f.run(t, "post", "get", hid, "--filter", "By Author", "--arg", "author=ann"); err != nil {
		t.Errorf("explicit filter should replace defaults, error = %v", err)
	}
}

func TestActions(t *testing.T) {
	f := newFixture(t)
	rec, err := f.store.Create(context.Background(), "post", map[string]any{"title": "a"})
	if err != nil {
		t.Fatal(err)
	}
	id := rec["id"].(string)

	out, _, err := f.run(t, "post", "hide", id)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "hidden" {
		t.Errorf("hide output = %q", out)
	}
	got, _ := f.store.Get(context.Background(), "post", id)
	if got["status"] != "hidden" {
		t.Errorf("status = %v", got["status"])
	}

	out, _, err = f.run(t, "post", "purge", id)
	if err != nil || !strings.Contains(out, "Purge these posts?") {
		t.Errorf("destructive action without --force = %q, %v", out, err)
	}

	if _, _, err := f.run(t, "post", "export", id); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("export of hidden post error = %v, want ErrNotFound", err)
	}
	other := f.create(t, "--title", "b")["id"].(string)
	if _, _, err := f.run(t, "post", "export", other); !errors.Is(err, schema.ErrNoHandler) {
		t.Errorf("export error = %v, want ErrNoHandler", err)
	}
	if _, _, err := f.run(t, "post", "hide", "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("hide missing error = %v", err)
	}
}

func TestCRUD_EmitsEvents(t *testing.T) {
	f := newFixture(t)

	var mu sync.Mutex
	var got []string
	if err := f.bus.Listen(events.Wildcard, func(ctx context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		rec := e.Payload.(map[string]any)
		got = append(got, e.Name+":"+rec["title"].(string))
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := f.bus.Listen("post::created", func(ctx context.Context, e events.Event) error {
		return errors.New("listener failure")
	}); err != nil {
		t.Fatal(err)
	}

	id := f.create(t, "--title", "A")["id"].(string)
	if _, _, err := f.run(t, "post", "update", id, "--title", "B"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := f.run(t, "post", "delete", id, "-f"); err != nil {
		t.Fatal(err)
	}

	want := "post::created:A,post::updated:B,post::deleted:B"
	if strings.Join(got, ",") != want {
		t.Errorf("events = %v, want %s", got, want)
	}
}

func TestUpdate_NoFields(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "--title", "A")["id"].(string)

	if _, errOut, err := f.run(t, "post", "update", id); err == nil || !strings.Contains(errOut, "no fields to update") {
		t.Errorf("update without fields = %v, %q", err, errOut)
	}
}

func TestConvertInput(t *testing.T) {
	tests := []struct {
		val     string
		typ     schema.FieldType
		want    any
		wantErr bool
	}{
		{"42", schema.FieldTypeInteger, int64(42), false},
		{"4.5", schema.FieldTypeNumber, 4.5, false},
		{"true", schema.FieldTypeBoolean, true, false},
		{"hello", schema.FieldTypeText, "hello", false},
		{"null", schema.FieldTypeText, nil, false},
		{"x", schema.FieldTypeInteger, nil, true},
		{"maybe", schema.FieldTypeBoolean, nil, true},
	}

	for _, tt := range tests {
		got, err := convertInput(tt.val, tt.typ)
		if (err != nil) != tt.wantErr {
			t.Errorf("convertInput(%q, %s) error = %v", tt.val, tt.typ, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("convertInput(%q, %s) = %v (%T), want %v", tt.val, tt.typ, got, got, tt.want)
		}
	}

	v, err := convertInput(`{"a":[1,2]}`, schema.FieldTypeJSON)
	if err != nil {
		t.Fatal(err)
	}
	if m, ok := v.(map[string]any); !ok || len(m["a"].([]any)) != 2 {
		t.Errorf("json value = %v", v)
	}
}
