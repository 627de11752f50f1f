// Package http provides the HTTP channel that serves a frozen registry as a
// REST API. It generates list, get, create, update, delete and action
// endpoints per resource, mounts plugin routes and assets, and exposes the
// schema, OpenAPI document, health and metrics endpoints.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/artpar/adminkit/core/asset"
	"github.com/artpar/adminkit/core/events"
	"github.com/artpar/adminkit/core/openapi"
	"github.com/artpar/adminkit/core/registry"
	"github.com/artpar/adminkit/core/route"
	"github.com/artpar/adminkit/core/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// ErrRegistryNotFrozen is returned when the channel is built before
// orchestration finished.
var ErrRegistryNotFrozen = errors.New("registry must be frozen before serving")

// ReservedPrefixes lists the paths the channel serves itself for the given
// base and metrics paths. Reserve them on the route table before plugins run
// so a clash fails the owning plugin's phase.
func ReservedPrefixes(basePath, metricsPath string) []string {
	return []string{basePath, "/health", metricsPath, "/openapi.json", "/swagger", "/assets"}
}

// Observer records CRUD outcomes. Implemented by the metrics adapter.
type Observer interface {
	ObserveRecord(resource, operation string, err error)
}

// PasswordHasher hashes password fields before they are stored.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
}

// Option configures a Channel.
type Option func(*Channel)

// WithRoutes mounts the plugin routing table.
func WithRoutes(t *route.Table) Option {
	return func(c *Channel) { c.routes = t }
}

// WithAssets serves the plugin asset manifest.
func WithAssets(m *asset.Manifest) Option {
	return func(c *Channel) { c.assets = m }
}

// WithObserver sets the CRUD observer.
func WithObserver(o Observer) Option {
	return func(c *Channel) { c.observer = o }
}

// WithMetricsHandler serves h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(c *Channel) { c.metrics = h }
}

// WithMetricsPath moves the metrics endpoint.
func WithMetricsPath(path string) Option {
	return func(c *Channel) { c.metricsPath = "/" + strings.Trim(path, "/") }
}

// WithMiddleware appends middleware after the built-in stack.
func WithMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(c *Channel) { c.middleware = append(c.middleware, mw...) }
}

// WithBasePath sets the prefix of the resource API (default /api).
func WithBasePath(path string) Option {
	return func(c *Channel) { c.basePath = "/" + strings.Trim(path, "/") }
}

// WithOpenAPI sets the swag instance the OpenAPI document is published under.
func WithOpenAPI(instance string, info openapi.Info) Option {
	return func(c *Channel) {
		c.openapiInstance = instance
		c.openapiInfo = info
	}
}

// WithHasher hashes password fields on create and update.
func WithHasher(h PasswordHasher) Option {
	return func(c *Channel) { c.hasher = h }
}

// WithTimeout bounds request handling (default 60s, 0 disables).
func WithTimeout(d time.Duration) Option {
	return func(c *Channel) { c.timeout = d }
}

// WithDocs toggles /openapi.json and the Swagger UI (default on).
func WithDocs(enabled bool) Option {
	return func(c *Channel) { c.docs = enabled }
}

// WithServerTimeouts sets the read and write timeouts of the server started
// by Start.
func WithServerTimeouts(read, write time.Duration) Option {
	return func(c *Channel) {
		c.readTimeout = read
		c.writeTimeout = write
	}
}

// Channel serves a frozen registry over HTTP.
type Channel struct {
	registry *registry.Registry
	store    storage.Store
	bus      *events.Bus
	logger   zerolog.Logger

	routes          *route.Table
	assets          *asset.Manifest
	observer        Observer
	metrics         http.Handler
	metricsPath     string
	middleware      []func(http.Handler) http.Handler
	basePath        string
	openapiInstance string
	openapiInfo     openapi.Info
	hasher          PasswordHasher
	timeout         time.Duration
	readTimeout     time.Duration
	docs            bool
	writeTimeout    time.Duration

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New creates an HTTP channel.
func New(reg *registry.Registry, store storage.Store, bus *events.Bus, logger zerolog.Logger, opts ...Option) *Channel {
	c := &Channel{
		registry:        reg,
		store:           store,
		bus:             bus,
		logger:          logger,
		basePath:        "/api",
		openapiInstance: openapi.DefaultInstance,
		timeout:         60 * time.Second,
		docs:            true,
		metricsPath:     "/metrics",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the channel name.
func (c *Channel) Name() string {
	return "http"
}

// BasePath returns the resource API prefix.
func (c *Channel) BasePath() string {
	return c.basePath
}

// Handler builds the router. The registry must be frozen.
func (c *Channel) Handler() (http.Handler, error) {
	if c.registry == nil || !c.registry.Frozen() {
		return nil, ErrRegistryNotFrozen
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(c.logger))
	r.Use(middleware.Recoverer)
	r.Use(c.middleware...)
	if c.timeout > 0 {
		r.Use(middleware.Timeout(c.timeout))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no route for "+r.URL.Path, nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" is not allowed on "+r.URL.Path, nil)
	})

	r.Get("/health", c.handleHealth)
	if c.metrics != nil {
		r.Handle(c.metricsPath, c.metrics)
	}

	if c.docs {
		gen := openapi.NewGenerator(c.registry.Resources(), c.basePath)
		if c.openapiInfo.Title != "" {
			gen.SetInfo(c.openapiInfo)
		}
		if err := openapi.Publish(c.openapiInstance, gen.Generate()); err != nil {
			return nil, err
		}
		r.Get("/openapi.json", c.handleOpenAPI)
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/openapi.json")))
	}
	r.Get("/assets/{name}", c.handleAsset)

	r.Route(c.basePath, func(r chi.Router) {
		r.Get("/_schema", c.handleSchema)
		r.Get("/_schema/{resource}", c.handleResourceSchema)
		r.Get("/_assets", c.handleAssets)
		r.Get("/_dashboards/{dashboard}", c.handleDashboard)

		for _, res := range c.registry.Resources() {
			c.mountResource(r, res)
		}
	})

	if c.routes != nil {
		// Tables reserved before orchestration never hold these; others may.
		guard := route.NewTable()
		guard.Reserve(ReservedPrefixes(c.basePath, c.metricsPath)...)
		for _, rt := range c.routes.Routes() {
			if prefix, ok := guard.Reserved(rt.Path); ok {
				return nil, &route.ReservedError{Route: rt, Prefix: prefix}
			}
			r.Method(rt.Method, rt.Path, rt.Handler)
		}
	}

	return r, nil
}

// Start builds the handler and serves it on addr in the background.
func (c *Channel) Start(addr string) error {
	handler, err := c.Handler()
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       c.readTimeout,
		WriteTimeout:      c.writeTimeout,
	}

	c.mu.Lock()
	c.server = srv
	c.listener = ln
	c.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error().Err(err).Msg("http server error")
		}
	}()

	c.logger.Info().Str("addr", ln.Addr().String()).Str("base_path", c.basePath).Msg("http channel started")
	return nil
}

// Addr returns the listening address, or "" before Start.
func (c *Channel) Addr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listener == nil {
		return ""
	}
	return c.listener.Addr().String()
}

// Stop gracefully shuts the server down.
func (c *Channel) Stop(ctx context.Context) error {
	c.mu.Lock()
	srv := c.server
	c.server = nil
	c.listener = nil
	c.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// requestID stores a uuid request id on the context, reusing the id sent by
// the client.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// NewLoggingMiddleware logs HTTP requests.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// Skip logging for health checks and metrics
			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

func (c *Channel) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"resources": len(c.registry.Resources()),
	})
}

func (c *Channel) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	doc, err := openapi.Read(c.openapiInstance)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "openapi_unavailable", err.Error(), nil)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Write([]byte(doc))
}

func (c *Channel) handleAsset(w http.ResponseWriter, r *http.Request) {
	if c.assets == nil {
		writeError(w, http.StatusNotFound, "not_found", "no assets registered", nil)
		return
	}
	a, ok := c.assets.Lookup(chi.URLParam(r, "name"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "asset not found", nil)
		return
	}
	w.Header().Set("Content-Type", a.ContentType())
	http.ServeFile(w, r, a.Path)
}
