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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aussiebroadwan/tokenbridge/internal/bridge/clientauth"
	"github.com/aussiebroadwan/tokenbridge/internal/bridge/credential"
	httpapi "github.com/aussiebroadwan/tokenbridge/internal/bridge/http"
	"github.com/aussiebroadwan/tokenbridge/internal/bridge/metrics"
	"github.com/aussiebroadwan/tokenbridge/internal/bridge/provider"
	"github.com/aussiebroadwan/tokenbridge/internal/bridge/resolver"
	"github.com/aussiebroadwan/tokenbridge/internal/bridge/service"
	"github.com/aussiebroadwan/tokenbridge/internal/bridge/store"
	"github.com/aussiebroadwan/tokenbridge/internal/bridge/store/drivers/sqlite"
	"github.com/aussiebroadwan/tokenbridge/pkg/jwtx"
	"github.com/aussiebroadwan/tokenbridge/pkg/slogx"
)

// BuildVersion is overridden at build time with -ldflags "-X".
var BuildVersion = "v0.1.0"

// Application holds the token bridge and everything it depends on.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Optional: nil without AUDIT_DATABASE_FILE
	db store.Store

	registry *prometheus.Registry
	metrics  *metrics.Metrics

	orchestrator        *provider.Orchestrator
	exchangeService     *service.ExchangeService
	housekeepingService *service.HousekeepingService // Optional: only with an audit store

	server *http.Server
	router *httpapi.Router
}

// New builds an Application from a validated Config.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "tokenbridge",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initMetrics()

	if err := app.initServices(); err != nil {
		app.closeDatabase()
		return nil, err
	}

	app.initHTTP()

	return app, nil
}

// Handler exposes the configured router, mainly for tests.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	if app.housekeepingService != nil {
		app.housekeepingService.Start()
	}

	app.logger.Info("token bridge starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"hydra_public", app.cfg.HydraPublicURL,
		"hydra_admin", app.cfg.HydraAdminURL,
	)

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

// Shutdown drains in-flight exchanges and releases resources.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down token bridge...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if app.housekeepingService != nil {
		app.housekeepingService.Stop()
	}

	if err := app.closeDatabase(); err != nil {
		return err
	}

	app.logger.Info("token bridge stopped")
	return nil
}

func (app *Application) initDatabase() error {
	if app.cfg.AuditDatabaseFile == "" {
		app.logger.Info("audit log disabled")
		return nil
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.AuditDatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize audit database: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply audit database migrations: %w", err)
	}
	app.db = db

	app.logger.Info("audit database migrations applied successfully", "file", app.cfg.AuditDatabaseFile)
	return nil
}

func (app *Application) closeDatabase() error {
	if app.db == nil {
		return nil
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing audit database", "error", err)
		return err
	}
	return nil
}

func (app *Application) initMetrics() {
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metrics.New(app.registry)
}

func (app *Application) initServices() error {
	base := &http.Client{Timeout: app.cfg.FlowTimeout}

	orchestrator, err := provider.New(provider.Config{
		PublicURL:    app.cfg.HydraPublicURL,
		AdminURL:     app.cfg.HydraAdminURL,
		Client:       app.cfg.HydraClient(),
		RedirectURI:  app.cfg.HydraClientRedirectURI,
		PublicClient: app.protectedClient("public", app.cfg.HydraPublic, base),
		AdminClient:  app.protectedClient("admin", app.cfg.HydraAdmin, base),
		Timeout:      app.cfg.FlowTimeout,
		Logger:       app.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize provider flow: %w", err)
	}
	app.orchestrator = orchestrator

	subjects, err := app.newResolver(base)
	if err != nil {
		return err
	}

	app.exchangeService = &service.ExchangeService{
		Policy:            app.cfg.Policy.ServicePolicy(),
		Resolver:          subjects,
		Flow:              orchestrator,
		Metrics:           app.metrics,
		ExtraAccessClaims: app.cfg.Policy.Session.AccessToken,
		Logger:            app.logger,
	}

	if app.db != nil {
		app.exchangeService.Audit = app.db.Exchanges()
		app.housekeepingService = service.NewHousekeepingService(
			app.db,
			app.logger,
			app.cfg.HousekeepingInterval,
			app.cfg.AuditRetention,
		)
	}

	return nil
}

// protectedClient returns base, or a copy of it that authenticates with a
// cached client-credentials token when the surface is protected.
func (app *Application) protectedClient(surface string, cfg ProtectedClientConfig, base *http.Client) *http.Client {
	if !cfg.Enabled() {
		return base
	}

	cache := credential.New(credential.Config{
		TokenURL: cfg.TokenURL,
		Credentials: clientauth.Credentials{
			Method:       clientauth.Method(cfg.AuthMethod),
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
		},
		Scope:            cfg.Scope,
		Audience:         cfg.Audience,
		HTTPClient:       base,
		RefreshThreshold: app.cfg.CredentialRefreshThreshold,
		Timeout:          app.cfg.FlowTimeout,
		Logger:           app.logger.With("surface", surface),
		Observer:         app.metrics,
	})

	app.logger.Info("provider surface protected", "surface", surface, "token_url", cfg.TokenURL)
	return cache.Client(base)
}

func (app *Application) newResolver(client *http.Client) (resolver.Resolver, error) {
	var next resolver.Resolver

	switch app.cfg.ResolverMode {
	case "jwt":
		keys := jwtx.NewRemoteKeySet(app.cfg.ResolverJWKSURL, client, jwtx.DefaultMinRefreshInterval)
		verifier := jwtx.NewVerifier(keys, jwtx.VerifyOptions{
			Issuer:     app.cfg.ResolverIssuer,
			Audience:   app.cfg.ResolverAudience,
			Leeway:     30 * time.Second,
			RequireKID: true,
		})
		next = resolver.NewJWT(verifier, app.cfg.ResolverSubjectPrefix)
	case "userinfo":
		next = resolver.NewUserinfo(resolver.UserinfoConfig{
			URL:           app.cfg.ResolverUserinfoURL,
			SubjectPrefix: app.cfg.ResolverSubjectPrefix,
			HTTPClient:    client,
			Timeout:       app.cfg.FlowTimeout,
			Logger:        app.logger,
		})
	default:
		return nil, fmt.Errorf("unknown resolver mode %q", app.cfg.ResolverMode)
	}

	app.logger.Info("subject resolver configured", "mode", app.cfg.ResolverMode, "cache_ttl", app.cfg.ResolverCacheTTL)
	return resolver.NewCached(next, app.cfg.ResolverCacheTTL), nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)

	router.ExchangeService = app.exchangeService
	router.Provider = app.orchestrator
	router.Gatherer = app.registry
	router.MaxBodyBytes = app.cfg.MaxBodyBytes
	router.ExchangeLimit = app.cfg.ExchangeLimit
	router.ProbeLimit = app.cfg.ProbeLimit
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
