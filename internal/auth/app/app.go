package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harborview-digital/showcase/internal/auth/cache"
	httpapi "github.com/harborview-digital/showcase/internal/auth/http"
	"github.com/harborview-digital/showcase/internal/auth/notify"
	"github.com/harborview-digital/showcase/internal/auth/service"
	"github.com/harborview-digital/showcase/internal/auth/store"
	"github.com/harborview-digital/showcase/internal/auth/store/drivers/sqlite"
	"github.com/harborview-digital/showcase/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application wires the auth service together: storage, cache, services,
// and the HTTP surface.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db    store.Store
	cache cache.Cache

	notifier            *notify.Async
	sessionService      *service.SessionService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initCache(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initServices(); err != nil {
		_ = app.cache.Close()
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains the server and releases every resource in reverse
// dependency order.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()
	app.notifier.Close()

	if err := app.cache.Close(); err != nil {
		app.logger.Error("error closing cache", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// initDatabase opens the database and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initCache connects the revocation/attempt cache: redis when configured,
// the in-process store otherwise.
func (app *Application) initCache() error {
	if app.cfg.RedisAddr == "" {
		app.cache = cache.NewMemory()
		app.logger.Info("using in-memory cache (no REDIS_ADDR configured)")
		return nil
	}

	c := cache.NewRedis(app.cfg.RedisAddr, app.cfg.RedisPass, app.cfg.RedisDB)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		return fmt.Errorf("redis unreachable at %s: %w", app.cfg.RedisAddr, err)
	}

	app.cache = c
	app.logger.Info("connected to redis cache", "addr", app.cfg.RedisAddr)
	return nil
}

// initServices builds the token and session services.
func (app *Application) initServices() error {
	tokens, err := service.NewTokenService(service.TokenConfig{
		Issuer:              app.cfg.Issuer,
		Audience:            app.cfg.Audience,
		AccessSecret:        []byte(app.cfg.AccessSecret),
		RefreshSecret:       []byte(app.cfg.RefreshSecret),
		AccessTTL:           app.cfg.AccessTTL,
		RefreshTTL:          app.cfg.RefreshTTL,
		RememberMeTTL:       app.cfg.RememberMeTTL,
		EnforceSecretLength: app.cfg.Production(),
	})
	if err != nil {
		return err
	}

	app.notifier = notify.NewAsync(&notify.LogNotifier{Logger: app.logger}, app.logger, app.cfg.NotifyQueueSize)
	app.sessionService = service.NewSessionService(app.db, app.cache, tokens, app.notifier)
	app.housekeepingService = service.NewHousekeepingService(app.db, app.logger, app.cfg.HousekeepingInterval)

	return nil
}

// initHTTP builds the router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.sessionService,
		app.db,
		app.cache,
		BuildVersion,
		app.logger,
	)
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
