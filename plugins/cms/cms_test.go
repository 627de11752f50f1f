package cms_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/artpar/adminkit/adapters/hasher"
	channel "github.com/artpar/adminkit/core/channel/http"
	"github.com/artpar/adminkit/core/events"
	"github.com/artpar/adminkit/core/plugin"
	"github.com/artpar/adminkit/core/registry"
	"github.com/artpar/adminkit/core/schema"
	"github.com/artpar/adminkit/core/storage"
	"github.com/artpar/adminkit/plugins/auth"
	"github.com/artpar/adminkit/plugins/cms"
	"github.com/rs/zerolog"
)

type env struct {
	store   *storage.SQLiteStore
	reg     *registry.Registry
	orch    *plugin.Orchestrator
	bus     *events.Bus
	handler http.Handler
}

func setup(t *testing.T) *env {
	t.Helper()

	store, err := storage.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	reg := registry.New()
	if err := reg.Add(schema.Resource("Post").Fields(schema.Text("Title"))); err != nil {
		t.Fatal(err)
	}

	plugins := []*plugin.Spec{
		auth.New(store, hasher.Fake{}),
		cms.New(store).Extra(map[string]any{"assets_dir": t.TempDir()}),
	}
	orch := plugin.NewOrchestrator(zerolog.Nop())
	bus := events.NewBus(zerolog.Nop())
	if _, err := orch.Run(context.Background(), plugins, reg, bus); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, res := range reg.Resources() {
		if err := store.CreateTable(context.Background(), res); err != nil {
			t.Fatal(err)
		}
	}

	h, err := channel.New(reg, store, bus, zerolog.Nop(),
		channel.WithRoutes(orch.Routes()),
		channel.WithAssets(orch.Assets()),
	).Handler()
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	return &env{store: store, reg: reg, orch: orch, bus: bus, handler: h}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func TestRegister_RequiresUserResource(t *testing.T) {
	store, err := storage.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	_, err = plugin.NewOrchestrator(zerolog.Nop()).Run(context.Background(),
		[]*plugin.Spec{cms.New(store)}, registry.New(), events.NewBus(zerolog.Nop()))

	if !errors.Is(err, cms.ErrUserResourceMissing) {
		t.Errorf("Run() error = %v, want ErrUserResourceMissing", err)
	}
	var perr *plugin.PhaseError
	if !errors.As(err, &perr) || perr.Phase != plugin.PhaseRegister {
		t.Errorf("error should be a register phase error, got %v", err)
	}
}

func TestRegister_AddsRoleField(t *testing.T) {
	e := setup(t)

	user, _ := e.reg.Resource("user")
	role, ok := user.FieldByDatabaseField("role")
	if !ok {
		t.Fatal("user resource has no role field")
	}
	if len(role.SelectOptions) != 2 || role.DefaultValue != cms.RoleEditor {
		t.Errorf("role field = %+v", role)
	}
}

func TestBoot_DashboardCountsResources(t *testing.T) {
	e := setup(t)
	if _, err := e.store.Create(context.Background(), "post", map[string]any{"title": "a"}); err != nil {
		t.Fatal(err)
	}

	d, ok := e.reg.Dashboard("main")
	if !ok {
		t.Fatal("main dashboard not registered")
	}
	if len(d.Cards) != 2 {
		t.Fatalf("cards = %d, want one per resource", len(d.Cards))
	}

	rec := e.do(t, http.MethodGet, "/api/_dashboards/main", nil)
	var body channel.DashboardResponse
	json.Unmarshal(rec.Body.Bytes(), &body)

	values := map[string]any{}
	for _, c := range body.Cards {
		values[c.Slug] = c.Value
	}
	if values["posts"] != float64(1) || values["users"] != float64(0) {
		t.Errorf("card values = %v", values)
	}
}

func TestBoot_ServesAssets(t *testing.T) {
	e := setup(t)

	if n := len(e.orch.Assets().Scripts()); n != 1 {
		t.Errorf("scripts = %d", n)
	}
	if n := len(e.orch.Assets().Styles()); n != 1 {
		t.Errorf("styles = %d", n)
	}

	rec := e.do(t, http.MethodGet, "/assets/"+cms.StyleName, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "adminkit-card") {
		t.Errorf("style status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/css") {
		t.Errorf("content type = %q", ct)
	}
}

func TestRoles_AdminHoldsEveryPermission(t *testing.T) {
	e := setup(t)

	rec := e.do(t, http.MethodGet, "/cms/roles", nil)
	var body struct {
		Roles       []string            `json:"roles"`
		Permissions map[string][]string `json:"permissions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if strings.Join(body.Roles, ",") != "admin,editor" {
		t.Errorf("roles = %v", body.Roles)
	}
	if len(body.Permissions[cms.RoleAdmin]) != len(e.reg.Permissions()) {
		t.Errorf("admin permissions = %v, want %v", body.Permissions[cms.RoleAdmin], e.reg.Permissions())
	}

	has := map[string]bool{}
	for _, p := range body.Permissions[cms.RoleAdmin] {
		has[p] = true
	}
	for _, want := range []string{cms.PermissionAccess, auth.PermissionManageUsers, "delete:post", "update:user"} {
		if !has[want] {
			t.Errorf("admin role missing %s", want)
		}
	}
}

func TestFirstRegisteredUserBecomesAdmin(t *testing.T) {
	e := setup(t)

	var ids []string
	for _, email := range []string{"ada@example.com", "bob@example.com"} {
		rec := e.do(t, http.MethodPost, "/auth/register", map[string]any{
			"name":                  "User",
			"email":                 email,
			"password":              "password1",
			"password_confirmation": "password1",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("register status = %d, body = %s", rec.Code, rec.Body)
		}
		var body struct {
			Data map[string]any `json:"data"`
		}
		json.Unmarshal(rec.Body.Bytes(), &body)
		ids = append(ids, body.Data["id"].(string))
	}

	want := []string{cms.RoleAdmin, cms.RoleEditor}
	for i, id := range ids {
		u, err := e.store.Get(context.Background(), "user", id)
		if err != nil {
			t.Fatal(err)
		}
		if u["role"] != want[i] {
			t.Errorf("user %d role = %v, want %s", i, u["role"], want[i])
		}
	}
}

func TestConcurrentRegistrationsPromoteOneAdmin(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	// Both users exist before either listener runs.
	var users []map[string]any
	for _, email := range []string{"ada@example.com", "bob@example.com", "cy@example.com"} {
		u, err := e.store.Create(ctx, "user", map[string]any{"name": "U", "email": email, "password": "x", "role": cms.RoleEditor})
		if err != nil {
			t.Fatal(err)
		}
		users = append(users, u)
	}

	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(u map[string]any) {
			defer wg.Done()
			if err := e.bus.Emit(ctx, auth.EventRegistered, u); err != nil {
				t.Errorf("Emit() error = %v", err)
			}
		}(u)
	}
	wg.Wait()

	admins, err := e.store.Count(ctx, "user", schema.Eq("role", cms.RoleAdmin))
	if err != nil {
		t.Fatal(err)
	}
	if admins != 1 {
		t.Errorf("admins = %d, want exactly 1", admins)
	}
}
