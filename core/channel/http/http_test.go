package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/artpar/adminkit/core/asset"
	"github.com/artpar/adminkit/core/events"
	"github.com/artpar/adminkit/core/registry"
	"github.com/artpar/adminkit/core/route"
	"github.com/artpar/adminkit/core/schema"
	"github.com/artpar/adminkit/core/storage"
	"github.com/rs/zerolog"
)

type prefixHasher struct{}

func (prefixHasher) Hash(plaintext string) (string, error) { return "hashed:" + plaintext, nil }

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) ObserveRecord(resource, operation string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	result := "ok"
	if err != nil {
		result = "error"
	}
	o.calls = append(o.calls, resource+":"+operation+":"+result)
}

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
			schema.Textarea("Body"),
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
			schema.Action("Export"),
		).Publishable(),
		schema.Resource("Account").Fields(
			schema.Text("Email").Rules("required|email").Unique(),
			schema.Password("Password").Rules("required|min:8|confirmed"),
		),
	)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	err = reg.AddDashboards(schema.Dashboard("Main").Cards(
		schema.Card("Posts").Resolve(func(ctx context.Context) (any, error) {
			return store.Count(ctx, "post", nil)
		}),
		schema.Card("Broken").Resolve(func(ctx context.Context) (any, error) {
			return nil, errors.New("unavailable")
		}),
	))
	if err != nil {
		t.Fatalf("AddDashboards() error = %v", err)
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

func (f *fixture) handler(t *testing.T, opts ...Option) http.Handler {
	t.Helper()
	h, err := New(f.reg, f.store, f.bus, zerolog.Nop(), opts...).Handler()
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	return h
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHandler_RequiresFrozenRegistry(t *testing.T) {
	_, err := New(registry.New(), nil, nil, zerolog.Nop()).Handler()
	if !errors.Is(err, ErrRegistryNotFrozen) {
		t.Errorf("Handler() error = %v, want ErrRegistryNotFrozen", err)
	}
}

func TestChannel_Name(t *testing.T) {
	c := New(nil, nil, nil, zerolog.Nop())
	if c.Name() != "http" {
		t.Errorf("Name() = %q", c.Name())
	}
	if c.BasePath() != "/api" {
		t.Errorf("BasePath() = %q", c.BasePath())
	}
	if New(nil, nil, nil, zerolog.Nop(), WithBasePath("admin/")).BasePath() != "/admin" {
		t.Error("WithBasePath should normalize slashes")
	}
}

func TestChannel_Stop_NotStarted(t *testing.T) {
	if err := New(nil, nil, nil, zerolog.Nop()).Stop(context.Background()); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestCRUD(t *testing.T) {
	f := newFixture(t)
	obs := &recordingObserver{}
	h := f.handler(t, WithObserver(obs))

	rec := do(t, h, http.MethodPost, "/api/post", map[string]any{"title": "Hello", "author": "ada"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body)
	}
	created := decode[RecordResponse](t, rec).Data
	id, _ := created["id"].(string)
	if id == "" || created["status"] != "visible" {
		t.Fatalf("created = %v", created)
	}

	rec = do(t, h, http.MethodGet, "/api/post/"+id, nil)
	if rec.Code != http.StatusOK || decode[RecordResponse](t, rec).Data["title"] != "Hello" {
		t.Fatalf("get status = %d, body = %s", rec.Code, rec.Body)
	}

	rec = do(t, h, http.MethodPatch, "/api/post/"+id, map[string]any{"title": "Updated"})
	if rec.Code != http.StatusOK || decode[RecordResponse](t, rec).Data["title"] != "Updated" {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body)
	}

	rec = do(t, h, http.MethodDelete, "/api/post/"+id, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/post/"+id, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", rec.Code)
	}
	if body := decode[ErrorBody](t, rec); body.Error.Code != "not_found" {
		t.Errorf("error code = %q", body.Error.Code)
	}

	want := []string{"post:create:ok", "post:get:ok", "post:update:ok", "post:delete:ok", "post:get:error"}
	if strings.Join(obs.calls, ",") != strings.Join(want, ",") {
		t.Errorf("observed = %v, want %v", obs.calls, want)
	}
}

func TestCreate_Errors(t *testing.T) {
	f := newFixture(t)
	h := f.handler(t)

	tests := []struct {
		name     string
		path     string
		body     any
		raw      string
		wantCode int
		wantErr  string
	}{
		{"missing required", "/api/post", map[string]any{"body": "x"}, "", http.StatusUnprocessableEntity, "validation_failed"},
		{"unknown field", "/api/post", map[string]any{"title": "x", "nope": 1}, "", http.StatusUnprocessableEntity, "validation_failed"},
		{"bad select", "/api/post", map[string]any{"title": "x", "status": "gone"}, "", http.StatusUnprocessableEntity, "validation_failed"},
		{"invalid json", "/api/post", nil, "{", http.StatusBadRequest, "invalid_json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec *httptest.ResponseRecorder
			if tt.raw != "" {
				rec = httptest.NewRecorder()
				h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.raw)))
			} else {
				rec = do(t, h, http.MethodPost, tt.path, tt.body)
			}
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body)
			}
			if got := decode[ErrorBody](t, rec).Error.Code; got != tt.wantErr {
				t.Errorf("error code = %q, want %q", got, tt.wantErr)
			}
		})
	}
}

func TestCreate_ValidationDetails(t *testing.T) {
	f := newFixture(t)
	h := f.handler(t)

	rec := do(t, h, http.MethodPost, "/api/post", map[string]any{})
	body := decode[struct {
		Error struct {
			Details []struct {
				Field string `json:"field"`
				Rule  string `json:"rule"`
			} `json:"details"`
		} `json:"error"`
	}](t, rec)
	if len(body.Error.Details) != 1 || body.Error.Details[0].Field != "title" || body.Error.Details[0].Rule != "required" {
		t.Errorf("details = %+v", body.Error.Details)
	}
}

func TestCreate_Conflict(t *testing.T) {
	f := newFixture(t)
	h := f.handler(t)

	account := map[string]any{"email": "ada@example.com", "password": "longenough", "password_confirmation": "longenough"}
	if rec := do(t, h, http.MethodPost, "/api/account", account); rec.Code != http.StatusCreated {
		t.Fatalf("first create status = %d, body = %s", rec.Code, rec.Body)
	}
	if rec := do(t, h, http.MethodPost, "/api/account", account); rec.Code != http.StatusConflict {
		t.Errorf("duplicate create status = %d, body = %s", rec.Code, rec.Body)
	}
}

func TestCreate_PasswordHashedAndHidden(t *testing.T) {
	f := newFixture(t)
	h := f.handler(t, WithHasher(prefixHasher{}))

	rec := do(t, h, http.MethodPost, "/api/account", map[string]any{
		"email":                 "ada@example.com",
		"password":              "longenough",
		"password_confirmation": "longenough",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	data := decode[RecordResponse](t, rec).Data
	if _, ok := data["password"]; ok {
		t.Error("password must not be returned")
	}

	stored, err := f.store.Get(context.Background(), "account", data["id"].(string))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored["password"] != "hashed:longenough" {
		t.Errorf("stored password = %v", stored["password"])
	}

	rec = do(t, h, http.MethodPost, "/api/account", map[string]any{
		"email":                 "bob@example.com",
		"password":              "longenough",
		"password_confirmation": "different",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("mismatched confirmation status = %d", rec.Code)
	}
}

func TestList(t *testing.T) {
	f := newFixture(t)
	h := f.handler(t)
	ctx := context.Background()

	seed := []map[string]any{
		{"title": "Go", "author": "ada"},
		{"title": "Rust", "author": "bob"},
		{"title": "Zig", "author": "ada", "status": "hidden"},
		{"title": "Gleam", "author": "ada", "published_at": "2024-01-01T00:00:00Z"},
	}
	for _, s := range seed {
		if _, err := f.store.Create(ctx, "post", s); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantTotal int64
		wantLen   int
	}{
		{"default filters hide hidden", "", http.StatusOK, 3, 3},
		{"explicit filter replaces defaults", "?filters=drafted", http.StatusOK, 3, 3},
		{"published", "?filters=published", http.StatusOK, 1, 1},
		{"filter with args", "?filters=by-author&author=ada", http.StatusOK, 3, 3},
		{"combined filters", "?filters=byAuthor,visible&author=ada", http.StatusOK, 2, 2},
		{"search", "?search=us", http.StatusOK, 1, 1},
		{"paging", "?perPage=10&page=2", http.StatusOK, 3, 0},
		{"unknown filter", "?filters=nope", http.StatusBadRequest, 0, 0},
		{"perPage not allowed", "?perPage=7", http.StatusBadRequest, 0, 0},
		{"page not positive", "?page=0", http.StatusBadRequest, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/api/post"+tt.query, nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			body := decode[ListResponse](t, rec)
			if body.Total != tt.wantTotal || len(body.Data) != tt.wantLen {
				t.Errorf("total = %d, len = %d, want %d, %d", body.Total, len(body.Data), tt.wantTotal, tt.wantLen)
			}
			if body.PerPage != 10 {
				t.Errorf("perPage = %d, want first option", body.PerPage)
			}
		})
	}
}

func TestList_Sort(t *testing.T) {
	f := newFixture(t)
	h := f.handler(t)
	for _, title := range []string{"b", "c", "a"} {
		if _, err := f.store.Create(context.Background(), "post", map[string]any{"title": title}); err != nil {
			t.Fatal(err)
		}
	}

	body := decode[ListResponse](t, do(t, h, http.MethodGet, "/api/post?sort=title&direction=desc", nil))
	var got []string
	for _, r := range body.Data {
		got = append(got, r["title"].(string))
	}
	if strings.Join(got, "") != "cba" {
		t.Errorf("order = %v", got)
	}
}

func TestGet_ScopedByFilters(t *testing.T) {
	f := newFixture(t)
	h := f.handler(t)

	rec, err := f.store.Create(context.Background(), "post", map[string]any{"title": "Draft"})
	if err != nil {
		t.Fatal(err)
	}
	id := rec["id"].(string)

	if got := do(t, h, http.MethodGet, "/api/post/"+id+"?filters=drafted", nil).Code; got != http.StatusOK {
		t.Errorf("drafted scope status = %d", got)
	}
	if got := do(t, h, http.MethodGet, "/api/post/"+id+"?filters=published", nil).Code; got != http.StatusNotFound {
		t.Errorf("published scope status = %d", got)
	}
	if got := do(t, h, http.MethodDelete, "/api/post/"+id+"?filters=published", nil).Code; got != http.StatusNotFound {
		t.Errorf("scoped delete status = %d", got)
	}
	if got := do(t, h, http.MethodGet, "/api/post/"+id+"?filters=bogus", nil).Code; got != http.StatusBadRequest {
		t.Errorf("unknown filter status = %d", got)
	}
}

func TestGet_ScopedByDefaultFilters(t *testing.T) {
	f := newFixture(t)
	h := f.handler(t)

	rec, err := f.store.Create(context.Background(), "post", map[string]any{"title": "Secret", "status": "hidden"})
	if err != nil {
		t.Fatal(err)
	}
	id := rec["id"].(string)

	list := decode[struct {
		Total int `json:"total"`
	}](t, do(t, h, http.MethodGet, "/api/post", nil))
	if list.Total != 0 {
		t.Fatalf("hidden post listed, total = %d", list.Total)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"get", http.MethodGet, "/api/post/" + id, nil, http.StatusNotFound},
		{"update", http.MethodPatch, "/api/post/" + id, map[string]any{"title": "Leaked"}, http.StatusNotFound},
		{"action", http.MethodPost, "/api/post/actions/hide", map[string]any{"ids": []string{id}}, http.StatusNotFound},
		{"delete", http.MethodDelete, "/api/post/" + id, nil, http.StatusNotFound},
		{"explicit filter replaces defaults", http.MethodGet, "/api/post/" + id + "?filters=drafted", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := do(t, h, tt.method, tt.path, tt.body).Code; got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}

	if _, err := f.store.Get(context.Background(), "post", id); err != nil {
		t.Errorf("hidden post should survive, Get() error = %v", err)
	}
	stored, _ := f.store.Get(context.Background(), "post", id)
	if stored["title"] != "Secret" {
		t.Errorf("title = %v, want unchanged", stored["title"])
	}
}

func TestActions(t *testing.T) {
	f := newFixture(t)
	h := f.handler(t)

	rec, err := f.store.Create(context.Background(), "post", map[string]any{"title": "Hello"})
	if err != nil {
		t.Fatal(err)
	}
	id := rec["id"].(string)

	resp := do(t, h, http.MethodPost, "/api/post/actions/hide", map[string]any{"ids": []string{id}})
	if resp.Code != http.StatusOK {
		t.Fatalf("action status = %d, body = %s", resp.Code, resp.Body)
	}
	result := decode[schema.ActionResult](t, resp)
	if result.Type != schema.ResultNotify || result.Message != "hidden" {
		t.Errorf("result = %+v", result)
	}

	stored, _ := f.store.Get(context.Background(), "post", id)
	if stored["status"] != "hidden" {
		t.Errorf("status after action = %v", stored["status"])
	}

	visible, err := f.store.Create(context.Background(), "post", map[string]any{"title": "Still visible"})
	if err != nil {
		t.Fatal(err)
	}
	other := visible["id"].(string)

	tests := []struct {
		name string
		path string
		ids  []string
		want int
	}{
		{"no handler", "/api/post/actions/export", []string{other}, http.StatusNotImplemented},
		{"hidden by default filter", "/api/post/actions/export", []string{id}, http.StatusNotFound},
		{"unknown action", "/api/post/actions/nope", nil, http.StatusNotFound},
		{"missing record", "/api/post/actions/hide", []string{"missing"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := do(t, h, http.MethodPost, tt.path, map[string]any{"ids": tt.ids}).Code; got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
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

	h := f.handler(t)
	rec := do(t, h, http.MethodPost, "/api/post", map[string]any{"title": "A"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create should succeed despite listener failure, status = %d", rec.Code)
	}
	id := decode[RecordResponse](t, rec).Data["id"].(string)
	do(t, h, http.MethodPatch, "/api/post/"+id, map[string]any{"title": "B"})
	do(t, h, http.MethodDelete, "/api/post/"+id, nil)

	want := "post::created:A,post::updated:B,post::deleted:B"
	if strings.Join(got, ",") != want {
		t.Errorf("events = %v, want %s", got, want)
	}
}

func TestIntrospection(t *testing.T) {
	f := newFixture(t)
	h := f.handler(t, WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("metrics"))
	})))

	tests := []struct {
		path     string
		wantCode int
		contains string
	}{
		{"/health", http.StatusOK, `"status":"ok"`},
		{"/metrics", http.StatusOK, "metrics"},
		{"/api/_schema", http.StatusOK, `"permissions"`},
		{"/api/_schema/post", http.StatusOK, `"slug":"post"`},
		{"/api/_schema/nope", http.StatusNotFound, "not_found"},
		{"/openapi.json", http.StatusOK, `"/api/post/{id}"`},
		{"/api/_dashboards/main", http.StatusOK, `"error":"unavailable"`},
		{"/api/_dashboards/nope", http.StatusNotFound, "not_found"},
		{"/api/_assets", http.StatusOK, `"scripts":[]`},
		{"/nowhere", http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.path, nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("body %s missing %s", rec.Body, tt.contains)
			}
		})
	}
}

func TestDashboard_ResolvesCards(t *testing.T) {
	f := newFixture(t)
	h := f.handler(t)
	if _, err := f.store.Create(context.Background(), "post", map[string]any{"title": "A"}); err != nil {
		t.Fatal(err)
	}

	body := decode[DashboardResponse](t, do(t, h, http.MethodGet, "/api/_dashboards/main", nil))
	if len(body.Cards) != 2 {
		t.Fatalf("cards = %+v", body.Cards)
	}
	if body.Cards[0].Value != float64(1) {
		t.Errorf("posts card = %v, want 1", body.Cards[0].Value)
	}
}

func TestRequestID(t *testing.T) {
	f := newFixture(t)
	h := f.handler(t)

	rec := do(t, h, http.MethodGet, "/health", nil)
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("response should carry a request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-Id") != "abc" {
		t.Errorf("request id = %q, want client id", rec.Header().Get("X-Request-Id"))
	}
}

func TestPluginRoutesAndAssets(t *testing.T) {
	f := newFixture(t)

	dir := t.TempDir()
	script := filepath.Join(dir, "dashboard.js")
	if err := os.WriteFile(script, []byte("console.log(1)"), 0o644); err != nil {
		t.Fatal(err)
	}
	assets := asset.NewManifest()
	if err := assets.Script("cms", "dashboard.js", script); err != nil {
		t.Fatal(err)
	}

	routes := route.NewTable()
	if err := routes.Add(route.Get("/hello/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hi"))
	})); err != nil {
		t.Fatal(err)
	}

	h := f.handler(t, WithRoutes(routes), WithAssets(assets))

	if rec := do(t, h, http.MethodGet, "/hello/ada", nil); rec.Body.String() != "hi" {
		t.Errorf("plugin route body = %q", rec.Body)
	}

	rec := do(t, h, http.MethodGet, "/assets/dashboard.js", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "console.log(1)" {
		t.Errorf("asset status = %d, body = %q", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/javascript") {
		t.Errorf("content type = %q", ct)
	}
	if rec := do(t, h, http.MethodGet, "/assets/missing.js", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing asset status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/_assets", nil); !strings.Contains(rec.Body.String(), `"name":"dashboard.js"`) {
		t.Errorf("assets listing = %s", rec.Body)
	}
}

func TestPluginRoutes_Reserved(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/api/custom", "/health", "/swagger/extra", "/assets/x"} {
		t.Run(path, func(t *testing.T) {
			routes := route.NewTable()
			rt := route.Get(path, func(w http.ResponseWriter, r *http.Request) {})
			rt.Plugin = "rogue"
			if err := routes.Add(rt); err != nil {
				t.Fatal(err)
			}

			_, err := New(f.reg, f.store, f.bus, zerolog.Nop(), WithRoutes(routes)).Handler()
			var rerr *route.ReservedError
			if !errors.As(err, &rerr) {
				t.Fatalf("Handler() error = %v, want route.ReservedError", err)
			}
		})
	}
}

func TestReservedPrefixes_RejectAtAdd(t *testing.T) {
	routes := route.NewTable()
	routes.Reserve(ReservedPrefixes("/admin-api", "/prom")...)

	for _, path := range []string{"/admin-api/x", "/prom", "/openapi.json", "/assets/app.js"} {
		var rerr *route.ReservedError
		if err := routes.Add(route.Get(path, func(http.ResponseWriter, *http.Request) {})); !errors.As(err, &rerr) {
			t.Errorf("Add(%s) error = %v, want route.ReservedError", path, err)
		}
	}
	if err := routes.Add(route.Get("/api/custom", func(http.ResponseWriter, *http.Request) {})); err != nil {
		t.Errorf("/api is free under a custom base path, Add() error = %v", err)
	}
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)
	c := New(f.reg, f.store, f.bus, zerolog.Nop())

	if err := c.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	addr := c.Addr()
	if addr == "" {
		t.Fatal("Addr() empty after Start")
	}

	resp, err := http.Get("http://" + addr + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	if err := c.Stop(context.Background()); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if c.Addr() != "" {
		t.Error("Addr() should be empty after Stop")
	}
}
