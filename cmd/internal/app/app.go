// Package app wires the Ripple server runtime: config, logging, stores,
// the HTTP surface and the websocket gateway.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ripple/cmd/identity"
	authapi "ripple/cmd/internal/auth/api"
	"ripple/cmd/internal/auth/session"
	"ripple/cmd/internal/realtime"
	"ripple/cmd/security/password"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App is the Ripple server runtime. It owns the HTTP server wiring, the
// background janitor and the lifecycle of DB-backed resources.
type App struct {
	cfg Config
	log Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool

	users    identity.Store
	sessions *session.Service
	registry *realtime.Registry
	messages realtime.MessageStore

	ws      *realtime.WSGateway
	api     *authapi.Handler
	metrics *Metrics
	janitor *Janitor
}

// New constructs a fully wired App instance from config and logger.
// Without RIPPLE_DATABASE_URL everything runs on in-memory stores, which
// keeps dev and smoke environments self-contained.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	a := &App{cfg: cfg, log: log}

	if err := a.initStores(context.Background()); err != nil {
		return nil, err
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	pwCfg, err := password.FromEnv()
	if err != nil {
		return nil, err
	}

	codec, err := session.NewHS256Codec(sessCfg)
	if err != nil {
		return nil, err
	}

	var sessStore session.Store
	if a.dbEnabled {
		sessStore = session.NewPostgresStore(a.dbPool)
	} else {
		sessStore = session.NewMemoryStore()
	}

	a.sessions = session.NewService(sessCfg, sessStore, identity.NewDirectory(a.users), codec, pwCfg, log)
	a.registry = realtime.NewRegistry(log)

	apiHandler, err := authapi.NewHandler(log, authapi.LoadConfigFromEnv(), a.users, a.sessions, pwCfg, a.registry, a.messages)
	if err != nil {
		return nil, err
	}
	a.api = apiHandler

	a.ws = realtime.NewWSGateway(log, a.registry, a.messages, a.sessions)
	a.metrics = NewMetrics(func() float64 { return float64(a.registry.Len()) })
	a.api.SetObserver(a.metrics)
	a.janitor = NewJanitor(log, cfg, a.users, a.sessions)

	return a, nil
}

// Run starts the HTTP server and the janitor and blocks until context
// cancellation or a fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.ws, a.api, a.metrics)

	var handler http.Handler = mux
	handler = a.metrics.WithRequestMetrics(handler)
	handler = WithCORS(handler, a.cfg, a.log)
	handler = WithRequestLogging(handler, a.log)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go a.janitor.Run(janitorCtx)

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.closeStores()

	a.log.Info("server.stopped")
	return nil
}

// initStores decides between Postgres-backed persistence and the
// in-memory dev stores.
func (a *App) initStores(ctx context.Context) error {
	if a.cfg.DatabaseURL == "" {
		a.log.Info("db.disabled.inmemory_store")
		a.users = identity.NewMemoryStore()
		a.messages = realtime.NewInMemoryStore()
		return nil
	}

	pool, err := NewDBPool(ctx, a.cfg)
	if err != nil {
		return err
	}

	users, err := identity.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return err
	}
	msgs, err := realtime.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return err
	}

	a.log.Info("db.enabled.postgres_store")
	a.dbPool = pool
	a.dbEnabled = true
	a.users = users
	a.messages = msgs
	return nil
}

func (a *App) closeStores() {
	if a.messages != nil {
		_ = a.messages.Close()
	}
	if a.dbPool != nil {
		a.dbPool.Close()
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
