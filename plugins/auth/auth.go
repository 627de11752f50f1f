// Package auth is the built-in account plugin. It registers the User
// resource and, at boot, the registration, login and session endpoints.
// Login returns a signed token that /auth/me accepts as a bearer token.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/artpar/adminkit/adapters/hasher"
	"github.com/artpar/adminkit/adapters/token"
	"github.com/artpar/adminkit/core/plugin"
	"github.com/artpar/adminkit/core/route"
	"github.com/artpar/adminkit/core/schema"
	"github.com/artpar/adminkit/core/storage"
	"github.com/artpar/adminkit/core/validation"
	"github.com/rs/zerolog"
)

const (
	// ID is the plugin id.
	ID = "auth"

	// UserResource is the slug of the resource holding accounts.
	UserResource = "user"

	// EventRegistered is emitted with the new user, password removed.
	EventRegistered = "user::registered"

	// PermissionManageUsers is contributed to the registry.
	PermissionManageUsers = "manage:users"
)

// Config is read from the plugin's extra bag.
type Config struct {
	// MinPasswordLength is the minimum password length (default 8).
	MinPasswordLength int

	// TokenSecret signs session tokens. Empty generates a per-process secret.
	TokenSecret string

	// TokenTTL is the session token lifetime (default 24h).
	TokenTTL time.Duration
}

func configFrom(extra map[string]any) Config {
	cfg := Config{MinPasswordLength: 8, TokenTTL: token.DefaultTTL}
	switch v := extra["min_password_length"].(type) {
	case int:
		cfg.MinPasswordLength = v
	case float64:
		cfg.MinPasswordLength = int(v)
	}
	if v, ok := extra["token_secret"].(string); ok {
		cfg.TokenSecret = v
	}
	if v, ok := extra["token_ttl"].(string); ok {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.TokenTTL = d
		}
	}
	return cfg
}

type authPlugin struct {
	store  storage.Store
	hasher hasher.Hasher

	// set at boot
	tokens   *token.Service
	registry plugin.RegistryReader
	bus      plugin.EventBus
	logger   zerolog.Logger
}

// New returns the auth plugin. The store must have the user table by the
// time requests are served.
func New(store storage.Store, h hasher.Hasher) *plugin.Spec {
	p := &authPlugin{store: store, hasher: h}
	return plugin.New("Auth").
		Permissions(PermissionManageUsers).
		Register(p.register).
		Boot(p.boot)
}

// UserSpec builds the User resource.
func UserSpec(cfg Config) *schema.ResourceSpec {
	return schema.Resource("User").
		Fields(userFields(cfg)...).
		DisplayField("Email").
		Group("Accounts")
}

func userFields(cfg Config) []*schema.FieldSpec {
	return []*schema.FieldSpec{
		schema.Text("Name").Rules("required|max:120").Searchable().Sortable(),
		schema.Text("Email").Rules("required|email").Unique().Searchable().Sortable(),
		schema.Password("Password").Rules(fmt.Sprintf("required|min:%d|confirmed", cfg.MinPasswordLength)),
	}
}

func (p *authPlugin) register(ctx context.Context, ext plugin.Extension) error {
	cfg := configFrom(ext.Extra())

	// An application may declare its own User resource; make sure it carries
	// the fields the endpoints rely on.
	if ext.Registry().Has(UserResource) {
		spec, err := ext.Resource(UserResource)
		if err != nil {
			return err
		}
		for _, f := range userFields(cfg) {
			if spec.FieldByName(f.Name()) == nil {
				spec.Fields(f)
			}
		}
		logger := ext.Logger()
		logger.Debug().Msg("extended existing user resource")
		return nil
	}

	return ext.ExtendResources(UserSpec(cfg))
}

func (p *authPlugin) boot(ctx context.Context, ext plugin.Extension) error {
	p.registry = ext.Registry()
	p.bus = ext.Events()
	p.logger = ext.Logger()

	cfg := configFrom(ext.Extra())
	if cfg.TokenSecret == "" {
		p.logger.Warn().Msg("no token_secret configured; sessions end on restart")
	}
	p.tokens = token.NewService(cfg.TokenSecret, cfg.TokenTTL)

	return ext.ExtendRoutes(
		route.Post("/auth/register", p.handleRegister),
		route.Post("/auth/login", p.handleLogin),
		route.Get("/auth/me", p.handleMe),
	)
}

type registerRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (p *authPlugin) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		authWriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body", nil)
		return
	}

	res, ok := p.registry.Resource(UserResource)
	if !ok {
		authWriteError(w, http.StatusInternalServerError, "internal_error", "user resource not registered", nil)
		return
	}

	data := map[string]any{
		"name":                  req.Name,
		"email":                 strings.ToLower(strings.TrimSpace(req.Email)),
		"password":              req.Password,
		"password_confirmation": req.PasswordConfirmation,
	}
	var verr *validation.Error
	if err := validation.ValidateCreate(res, data).Err(); errors.As(err, &verr) {
		authWriteError(w, http.StatusUnprocessableEntity, "validation_failed", "validation failed", verr.Errors)
		return
	}
	delete(data, "password_confirmation")

	hash, err := p.hasher.Hash(req.Password)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to hash password")
		authWriteError(w, http.StatusInternalServerError, "internal_error", "failed to process password", nil)
		return
	}
	data["password"] = hash

	user, err := p.store.Create(r.Context(), UserResource, data)
	if errors.Is(err, storage.ErrConflict) {
		authWriteError(w, http.StatusConflict, "email_taken", "email already registered", nil)
		return
	}
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to create user")
		authWriteError(w, http.StatusInternalServerError, "internal_error", "failed to create user", nil)
		return
	}

	user = withoutPassword(user)
	if err := p.bus.Emit(r.Context(), EventRegistered, user); err != nil {
		p.logger.Warn().Err(err).Str("event", EventRegistered).Msg("registration listeners failed")
	}

	p.logger.Info().Str("user_id", fmt.Sprint(user["id"])).Msg("user registered")
	authWriteJSON(w, http.StatusCreated, map[string]any{"data": user})
}

func (p *authPlugin) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		authWriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body", nil)
		return
	}

	users, _, err := p.store.List(r.Context(), UserResource, storage.ListOptions{
		Limit: 1,
		Where: schema.Eq("email", strings.ToLower(strings.TrimSpace(req.Email))),
	})
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to look up user")
		authWriteError(w, http.StatusInternalServerError, "internal_error", "failed to look up user", nil)
		return
	}

	// Same response for unknown email and wrong password.
	if len(users) == 0 {
		authWriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password", nil)
		return
	}
	hash, _ := users[0]["password"].(string)
	if !p.hasher.Compare(hash, req.Password) {
		authWriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password", nil)
		return
	}

	user := users[0]
	signed, expiresAt, err := p.tokens.Issue(fmt.Sprint(user["id"]), fmt.Sprint(user["email"]))
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to issue token")
		authWriteError(w, http.StatusInternalServerError, "internal_error", "failed to issue token", nil)
		return
	}

	authWriteJSON(w, http.StatusOK, map[string]any{
		"data":       withoutPassword(user),
		"token":      signed,
		"expires_at": expiresAt.Format(time.RFC3339),
	})
}

// handleMe returns the user named by the bearer token.
func (p *authPlugin) handleMe(w http.ResponseWriter, r *http.Request) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		authWriteError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token", nil)
		return
	}

	claims, err := p.tokens.Validate(raw)
	if err != nil {
		authWriteError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token", nil)
		return
	}

	user, err := p.store.Get(r.Context(), UserResource, claims.Subject)
	if errors.Is(err, storage.ErrNotFound) {
		authWriteError(w, http.StatusUnauthorized, "unauthorized", "user no longer exists", nil)
		return
	}
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to load user")
		authWriteError(w, http.StatusInternalServerError, "internal_error", "failed to load user", nil)
		return
	}

	authWriteJSON(w, http.StatusOK, map[string]any{"data": withoutPassword(user)})
}

func withoutPassword(user map[string]any) map[string]any {
	out := make(map[string]any, len(user))
	for k, v := range user {
		if k != "password" {
			out[k] = v
		}
	}
	return out
}

func authWriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func authWriteError(w http.ResponseWriter, status int, code, message string, details any) {
	body := map[string]any{"code": code, "message": message}
	if details != nil {
		body["details"] = details
	}
	authWriteJSON(w, status, map[string]any{"error": body})
}
