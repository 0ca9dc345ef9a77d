package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpapi "github.com/inkwellhq/inkwell/internal/auth/http"
	"github.com/inkwellhq/inkwell/internal/auth/mail"
	"github.com/inkwellhq/inkwell/internal/auth/service"
	"github.com/inkwellhq/inkwell/internal/auth/session"
	memorysessions "github.com/inkwellhq/inkwell/internal/auth/session/drivers/memory"
	redissessions "github.com/inkwellhq/inkwell/internal/auth/session/drivers/redis"
	"github.com/inkwellhq/inkwell/internal/auth/store"
	"github.com/inkwellhq/inkwell/internal/auth/store/drivers/postgres"
	"github.com/inkwellhq/inkwell/internal/auth/store/drivers/sqlite"
	"github.com/inkwellhq/inkwell/pkg/cryptox"
	"github.com/inkwellhq/inkwell/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	sessions session.Store

	// Services
	authService         *service.AuthService
	bruteForceService   *service.BruteForceService
	mfaService          *service.MFAService
	rememberService     *service.RememberService
	sessionService      *service.SessionService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "inkwell-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initSessions(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
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

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.sessions.Close(); err != nil {
		app.logger.Error("error closing session store", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// initDatabase initializes the configured database driver and applies
// migrations.
func (app *Application) initDatabase() error {
	switch app.cfg.StoreDriver {
	case "sqlite", "":
		host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
		db, err := sqlite.NewStore(host)
		if err != nil {
			return fmt.Errorf("failed to initialize sqlite database: %w", err)
		}
		app.db = db
	case "postgres":
		if app.cfg.DatabaseDSN == "" {
			return fmt.Errorf("AUTH_DATABASE_DSN is required for the postgres driver")
		}
		db, err := postgres.NewStore(context.Background(), app.cfg.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("failed to initialize postgres database: %w", err)
		}
		app.db = db
	default:
		return fmt.Errorf("unknown store driver %q", app.cfg.StoreDriver)
	}

	if err := app.db.ApplyMigrations(); err != nil {
		_ = app.db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.StoreDriver)
	return nil
}

// initSessions picks the session backend: Redis when configured, otherwise
// the in-process store.
func (app *Application) initSessions() error {
	if app.cfg.RedisAddr == "" {
		app.sessions = memorysessions.NewStore()
		app.logger.Info("using in-memory session store")
		return nil
	}

	sessions, err := redissessions.NewStore(context.Background(),
		app.cfg.RedisAddr, app.cfg.RedisPassword, app.cfg.RedisDB)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	app.sessions = sessions
	app.logger.Info("using redis session store", "addr", app.cfg.RedisAddr)
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.bruteForceService = &service.BruteForceService{
		Store:         app.db,
		Logger:        app.logger,
		Window:        app.cfg.FailureWindow,
		IPThreshold:   app.cfg.IPThreshold,
		LockThreshold: app.cfg.LockThreshold,
	}

	app.mfaService = &service.MFAService{
		Store:  app.db,
		Issuer: app.cfg.Issuer,
	}

	app.rememberService = &service.RememberService{
		Store: app.db,
		TTL:   app.cfg.RememberTokenTTL,
	}

	app.sessionService = &service.SessionService{
		Sessions:           app.sessions,
		Store:              app.db,
		Logger:             app.logger,
		Timeout:            app.cfg.SessionTimeout,
		RegenerateInterval: app.cfg.SessionRegenerateInterval,
		CheckIP:            app.cfg.SessionCheckIP,
	}

	app.authService = &service.AuthService{
		Store:      app.db,
		BruteForce: app.bruteForceService,
		MFA:        app.mfaService,
		Remember:   app.rememberService,
		Sessions:   app.sessionService,
		Mailer:     &mail.LogMailer{Logger: app.logger},
		Logger:     app.logger,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.sessions,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.EventRetention,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.cfg.SecureCookies, app.db, app.logger)

	// Wire services to router
	router.AuthService = app.authService
	router.MFAService = app.mfaService
	router.SessionService = app.sessionService
	router.RememberService = app.rememberService
	router.ApplyRoutes()

	app.router = router
	app.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.cfg.Port),
		Handler: router,
	}
}
