package pagecraft

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/pagecraft/pagecraft/pkg/events"
	"github.com/pagecraft/pagecraft/pkg/metrics"
	"github.com/pagecraft/pagecraft/pkg/mutation"
	"github.com/pagecraft/pagecraft/pkg/registry"
	"github.com/pagecraft/pagecraft/pkg/store"
	"github.com/pagecraft/pagecraft/pkg/store/badger"
	"github.com/pagecraft/pagecraft/pkg/store/postgres"
	"github.com/pagecraft/pagecraft/pkg/store/sqlite"
	"github.com/pagecraft/pagecraft/pkg/store/surrealdb"
)

const shutdownTimeout = 5 * time.Second

// App holds the application state: the store, the engine and everything
// the HTTP layer needs around them.
type App struct {
	config   *Config
	log      zerolog.Logger
	store    *store.ReadOnlyStore
	registry *registry.Registry
	engine   *mutation.Engine
	bus      *events.Bus
	metrics  *metrics.Metrics
	prom     *prometheus.Registry
	gate     *Gate
	hub      *Hub
	readOnly atomic.Bool
}

// OpenStore connects to the backend named in cfg. The schema is not
// migrated.
func OpenStore(ctx context.Context, cfg *Config, log zerolog.Logger) (store.Store, error) {
	switch cfg.Backend {
	case BackendBadger:
		bc := badger.DefaultConfig(cfg.DataDir)
		bl := log.With().Str("component", "badger").Logger()
		bc.Logger = &bl
		return badger.Open(bc)
	case BackendMemory:
		return badger.Open(badger.InMemoryConfig())
	case BackendSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath)
	case BackendPostgres:
		return postgres.Open(cfg.PostgresDSN)
	case BackendSurrealDB:
		return surrealdb.Open(ctx, surrealdb.Config{
			URL:       cfg.SurrealDB.URL,
			Namespace: cfg.SurrealDB.Namespace,
			Database:  cfg.SurrealDB.Database,
			Username:  cfg.SurrealDB.Username,
			Password:  cfg.SurrealDB.Password,
		})
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// LoadRegistry returns the registry from cfg.Registry, or the built-in one.
func LoadRegistry(cfg *Config) (*registry.Registry, error) {
	if cfg.Registry == "" {
		return registry.Default()
	}
	return registry.Open(cfg.Registry)
}

// New opens the configured store, migrates it and wires the engine.
func New(ctx context.Context, cfg *Config, log zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	st, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate %s store: %w", cfg.Backend, err)
	}
	log.Info().Str("backend", cfg.Backend).Msg("store ready")

	app, err := NewWithStore(cfg, st, log)
	if err != nil {
		st.Close()
		return nil, err
	}
	return app, nil
}

// NewWithStore wires an App around an already open, migrated store. The
// App takes ownership of st.
func NewWithStore(cfg *Config, st store.Store, log zerolog.Logger) (*App, error) {
	reg, err := LoadRegistry(cfg)
	if err != nil {
		return nil, fmt.Errorf("load block types: %w", err)
	}

	prom := prometheus.NewRegistry()
	prom.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(prom)
	bus := &events.Bus{}

	app := &App{
		config:   cfg,
		log:      log,
		registry: reg,
		bus:      bus,
		metrics:  m,
		prom:     prom,
		gate:     NewGate(),
		hub:      NewHub(bus, log, m, cfg.AllowedOrigins),
	}
	app.readOnly.Store(cfg.ReadOnly)
	app.store = store.NewReadOnlyStore(st, app.IsReadOnly)

	app.engine, err = mutation.New(mutation.Deps{
		Store:    app.store,
		Registry: reg,
		Logger:   log,
		Metrics:  m,
		Events:   bus,
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// Engine returns the mutation engine.
func (a *App) Engine() *mutation.Engine { return a.engine }

// Store returns the application store, wrapped with the read-only guard.
func (a *App) Store() store.Store { return a.store }

// Bus returns the event bus.
func (a *App) Bus() *events.Bus { return a.bus }

// SetReadOnly toggles rejection of writes at runtime.
func (a *App) SetReadOnly(readOnly bool) {
	a.readOnly.Store(readOnly)
	a.log.Info().Bool("read_only", readOnly).Msg("read-only mode changed")
}

// IsReadOnly reports whether writes are currently rejected.
func (a *App) IsReadOnly() bool { return a.readOnly.Load() }

// Serve runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully. When configured it also hot reloads the block type file.
func (a *App) Serve(ctx context.Context) error {
	if a.config.Registry != "" && a.config.WatchRegistry {
		go func() {
			if err := a.registry.Watch(ctx, a.config.Registry, a.log); err != nil && !errors.Is(err, context.Canceled) {
				a.log.Error().Err(err).Msg("registry watch stopped")
			}
		}()
	}

	srv := &http.Server{
		Addr:              a.config.Listen,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", srv.Addr).Msg("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	a.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.store.Close()
}
