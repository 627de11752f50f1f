// Package cms is the built-in admin panel plugin. During register it binds an
// admin role to the User resource contributed by the auth plugin; at boot it
// adds the main dashboard, its script and stylesheet, and the role endpoint.
package cms

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/artpar/adminkit/core/events"
	"github.com/artpar/adminkit/core/plugin"
	"github.com/artpar/adminkit/core/registry"
	"github.com/artpar/adminkit/core/route"
	"github.com/artpar/adminkit/core/schema"
	"github.com/artpar/adminkit/core/storage"
	"github.com/rs/zerolog"
)

//go:embed assets/*
var assetFS embed.FS

const (
	// ID is the plugin id.
	ID = "cms"

	// RoleAdmin is granted every permission of the frozen registry.
	RoleAdmin = "admin"

	// RoleEditor is the role of users registered after the first.
	RoleEditor = "editor"

	// PermissionAccess guards the admin panel.
	PermissionAccess = "access:admin"

	// Asset names.
	ScriptName = "cms.js"
	StyleName  = "cms.css"
)

// ErrUserResourceMissing is returned when the auth plugin did not run first.
var ErrUserResourceMissing = errors.New("cms requires a user resource; enable the auth plugin before cms")

type cmsPlugin struct {
	store storage.Store

	mu       sync.RWMutex
	registry plugin.RegistryReader
	logger   zerolog.Logger

	// promote serializes the admin check with the promotion.
	promote sync.Mutex
}

// New returns the cms plugin. The extra bag may set "assets_dir", the
// directory the dashboard assets are written to (default under the system
// temp directory).
func New(store storage.Store) *plugin.Spec {
	p := &cmsPlugin{store: store}
	return plugin.New("CMS").
		Permissions(PermissionAccess).
		Register(p.register).
		Boot(p.boot)
}

func (p *cmsPlugin) register(ctx context.Context, ext plugin.Extension) error {
	user, err := ext.Resource("user")
	if errors.Is(err, registry.ErrNotFound) {
		return ErrUserResourceMissing
	}
	if err != nil {
		return err
	}

	if user.FieldByName("Role") == nil {
		user.Fields(
			schema.Select("Role").
				OptionValues(RoleAdmin, RoleEditor).
				Default(RoleEditor).
				Description("Admin users hold every permission"),
		)
	}

	return ext.Events().Listen("user::registered", p.onUserRegistered)
}

func (p *cmsPlugin) boot(ctx context.Context, ext plugin.Extension) error {
	reg := ext.Registry()

	p.mu.Lock()
	p.registry = reg
	p.logger = ext.Logger()
	p.mu.Unlock()

	cards := make([]*schema.CardSpec, 0, len(reg.Resources()))
	for _, res := range reg.Resources() {
		if res.HideOnNavigation {
			continue
		}
		slug := res.Slug
		cards = append(cards, schema.Card(res.PluralLabel).
			Component("metric").
			Width(3).
			Description(fmt.Sprintf("Number of %s", res.PluralLabel)).
			Resolve(func(ctx context.Context) (any, error) {
				return p.store.Count(ctx, slug, nil)
			}))
	}
	if err := ext.ExtendDashboards(schema.Dashboard("Main").Cards(cards...)); err != nil {
		return err
	}

	dir, err := writeAssets(assetsDir(ext.Extra()))
	if err != nil {
		return err
	}
	if err := ext.Script(ScriptName, filepath.Join(dir, ScriptName)); err != nil {
		return err
	}
	if err := ext.Style(StyleName, filepath.Join(dir, StyleName)); err != nil {
		return err
	}

	return ext.ExtendRoutes(route.Get("/cms/roles", p.handleRoles))
}

// Roles returns the permission set of each role. The admin binding covers the
// complete permission set, so it is computed from the registry once frozen.
func (p *cmsPlugin) Roles() map[string][]string {
	p.mu.RLock()
	reg := p.registry
	p.mu.RUnlock()

	out := map[string][]string{RoleEditor: {PermissionAccess}}
	if reg != nil && reg.Frozen() {
		out[RoleAdmin] = append([]string(nil), reg.Permissions()...)
	}
	return out
}

// onUserRegistered makes the registered user an admin when no admin exists
// yet, so exactly one of several concurrent first registrations wins.
func (p *cmsPlugin) onUserRegistered(ctx context.Context, event events.Event) error {
	user, ok := event.Payload.(map[string]any)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	id, _ := user["id"].(string)
	if id == "" {
		return errors.New("registered user has no id")
	}

	p.promote.Lock()
	defer p.promote.Unlock()

	n, err := p.store.Count(ctx, "user", schema.Eq("role", RoleAdmin))
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if n > 0 {
		return nil
	}

	if _, err := p.store.Update(ctx, "user", id, map[string]any{"role": RoleAdmin}); err != nil {
		return fmt.Errorf("promote first user: %w", err)
	}

	p.mu.RLock()
	logger := p.logger
	p.mu.RUnlock()
	logger.Info().Str("user_id", id).Msg("first user promoted to admin")
	return nil
}

func (p *cmsPlugin) handleRoles(w http.ResponseWriter, r *http.Request) {
	roles := p.Roles()
	names := make([]string, 0, len(roles))
	for name := range roles {
		names = append(names, name)
	}
	sort.Strings(names)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"roles": names, "permissions": roles})
}

func assetsDir(extra map[string]any) string {
	if dir, ok := extra["assets_dir"].(string); ok && dir != "" {
		return dir
	}
	return filepath.Join(os.TempDir(), "adminkit-cms")
}

// writeAssets copies the embedded assets to dir and returns its absolute path.
func writeAssets(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("create assets dir: %w", err)
	}
	for _, name := range []string{ScriptName, StyleName} {
		data, err := assetFS.ReadFile("assets/" + name)
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(filepath.Join(abs, name), data, 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", name, err)
		}
	}
	return abs, nil
}
