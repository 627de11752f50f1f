// Package bootstrap wires all dependencies and starts the application.
// The registry is assembled from declarative resources and the enabled
// plugins, frozen by the orchestrator, and served by the HTTP and CLI
// channels.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artpar/adminkit/adapters/clock"
	"github.com/artpar/adminkit/adapters/hasher"
	"github.com/artpar/adminkit/adapters/idgen"
	"github.com/artpar/adminkit/adapters/metrics"
	"github.com/artpar/adminkit/config"
	"github.com/artpar/adminkit/core/channel/cli"
	channel "github.com/artpar/adminkit/core/channel/http"
	"github.com/artpar/adminkit/core/events"
	"github.com/artpar/adminkit/core/openapi"
	"github.com/artpar/adminkit/core/plugin"
	"github.com/artpar/adminkit/core/registry"
	"github.com/artpar/adminkit/core/route"
	"github.com/artpar/adminkit/core/schema"
	"github.com/artpar/adminkit/core/storage"
	"github.com/rs/zerolog"
)

// App represents the running application.
type App struct {
	Config       *config.Config
	Logger       zerolog.Logger
	Store        *storage.SQLiteStore
	Registry     *registry.Registry
	Bus          *events.Bus
	Orchestrator *plugin.Orchestrator
	Metrics      *metrics.Collector
	Channel      *channel.Channel
	CLI          *cli.Channel

	holder *config.Holder
}

// Options adds code-declared resources and plugins to the ones named by the
// configuration.
type Options struct {
	// Resources are added to the registry before any plugin runs.
	Resources []*schema.ResourceSpec

	// Plugins run after the enabled built-in plugins, in order.
	Plugins []*plugin.Spec
}

// New builds the application: it opens the store, assembles the registry,
// runs the plugin phases and creates a table for every resource. The
// returned app is ready to Start.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*App, error) {
	logger.Info().Str("dsn", cfg.Database.DSN).Msg("initializing adminkit")

	store, err := storage.NewSQLiteStore(cfg.Database.DSN,
		storage.WithIDGenerator(idgen.UUID{}),
		storage.WithClock(clock.Real{}),
	)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		Metrics: metrics.New(),
	}

	if err := a.assemble(ctx, opts); err != nil {
		store.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) assemble(ctx context.Context, opts Options) error {
	cfg := a.Config

	resources, err := LoadResources(cfg.Resources.Dir)
	if err != nil {
		return fmt.Errorf("load resources: %w", err)
	}
	resources = append(resources, opts.Resources...)

	a.Registry = registry.New()
	if err := a.Registry.Add(resources...); err != nil {
		return fmt.Errorf("add resources: %w", err)
	}

	h := hasher.NewBcrypt(cfg.Security.BcryptCost)
	builtins, err := Plugins(cfg.Plugins, Deps{Store: a.Store, Hasher: h})
	if err != nil {
		return err
	}
	plugins := append(builtins, opts.Plugins...)

	a.Bus = events.NewBus(a.Logger, events.WithRecorder(a.Metrics))
	routes := route.NewTable()
	routes.Reserve(channel.ReservedPrefixes(cfg.Server.BasePath, cfg.Metrics.Path)...)
	a.Orchestrator = plugin.NewOrchestrator(a.Logger,
		plugin.WithRoutes(routes),
		plugin.WithRecorder(a.Metrics),
	)
	if _, err := a.Orchestrator.Run(ctx, plugins, a.Registry, a.Bus); err != nil {
		return fmt.Errorf("run plugins: %w", err)
	}

	for _, res := range a.Registry.Resources() {
		if err := a.Store.CreateTable(ctx, res); err != nil {
			return fmt.Errorf("create table for %s: %w", res.Slug, err)
		}
	}
	a.Metrics.Resources.Set(float64(len(a.Registry.Resources())))

	channelOpts := []channel.Option{
		channel.WithRoutes(a.Orchestrator.Routes()),
		channel.WithAssets(a.Orchestrator.Assets()),
		channel.WithObserver(a.Metrics),
		channel.WithMiddleware(a.Metrics.Middleware),
		channel.WithHasher(h),
		channel.WithBasePath(cfg.Server.BasePath),
		channel.WithMetricsPath(cfg.Metrics.Path),
		channel.WithTimeout(cfg.Server.RequestTimeout),
		channel.WithServerTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		channel.WithDocs(cfg.OpenAPI.Enabled),
		channel.WithOpenAPI(openapi.DefaultInstance, openapi.Info{
			Title:   cfg.OpenAPI.Title,
			Version: cfg.OpenAPI.Version,
		}),
	}
	if cfg.Metrics.Enabled {
		channelOpts = append(channelOpts,
			channel.WithMetricsHandler(a.Metrics.Handler()),
		)
	}
	a.Channel = channel.New(a.Registry, a.Store, a.Bus, a.Logger, channelOpts...)
	a.CLI = cli.New(a.Registry, a.Store, a.Bus, cli.WithHasher(h), cli.WithLogger(a.Logger))

	a.Logger.Info().
		Int("resources", len(a.Registry.Resources())).
		Int("plugins", len(plugins)).
		Int("routes", len(a.Orchestrator.Routes().Routes())).
		Msg("registry frozen")
	return nil
}

// LoadResources parses the declarations in dir. An empty dir yields none.
func LoadResources(dir string) ([]*schema.ResourceSpec, error) {
	if dir == "" {
		return nil, nil
	}
	return schema.ParseDir(dir)
}

// WatchConfig hot-reloads the log level from holder. Other changes are
// logged by the holder and need a restart.
func (a *App) WatchConfig(holder *config.Holder) error {
	a.holder = holder
	holder.SetRecorder(a.Metrics)
	holder.OnChange(func(old, new *config.Config) {
		if old.Logging.Level == new.Logging.Level {
			return
		}
		if err := ApplyLogLevel(new.Logging.Level); err != nil {
			a.Logger.Error().Err(err).Msg("failed to apply log level")
		}
	})

	if err := holder.WatchFile(); err != nil {
		return err
	}
	holder.WatchSignals()
	return nil
}

// Start serves the HTTP channel in the background.
func (a *App) Start() error {
	return a.Channel.Start(a.Config.Server.Addr())
}

// Run starts the HTTP channel and blocks until ctx is done or the process
// receives SIGINT or SIGTERM.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(); err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-ctx.Done():
		a.Logger.Info().Msg("context cancelled, shutting down")
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if a.holder != nil {
		a.holder.Stop()
	}

	if a.Channel != nil {
		if err := a.Channel.Stop(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http channel shutdown error")
			errs = append(errs, err)
		}
	}

	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("store close error")
			errs = append(errs, err)
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return errors.Join(errs...)
}
