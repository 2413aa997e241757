// Command authcached serves authorization data (API keys, APIs, grants,
// usage) through a tiered read cache in front of a SQL origin.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jonwraymond/authcache/cache"
	"github.com/jonwraymond/authcache/config"
	"github.com/jonwraymond/authcache/health"
	"github.com/jonwraymond/authcache/keystore"
	"github.com/jonwraymond/authcache/observe"
	"github.com/jonwraymond/authcache/server"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "authcached:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  = flag.String("config", "", "path to authcached.toml (defaults apply when empty)")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("authcached", version)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs, err := observe.NewObserver(ctx, cfg.ObserverConfig(version))
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	logger := obs.Logger()

	db, err := gorm.Open(sqlite.Open(cfg.Database.DSN), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	origin, err := keystore.NewSQLStore(db)
	if err != nil {
		return err
	}
	if err := origin.AutoMigrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	tiers, err := buildTiers(cfg, obs)
	if err != nil {
		return err
	}
	tiered, err := cache.NewTiered(logger, tiers...)
	if err != nil {
		return err
	}
	store, err := keystore.NewCachedStore(origin, tiered, logger)
	if err != nil {
		return err
	}

	checks := health.NewAggregator()
	checks.Register("database", health.NewDatabaseChecker(db))
	checks.Register("cache", health.NewCacheChecker(tiers[0]))
	if endpoint := cfg.Cache.Edge.Endpoint; endpoint != "" {
		checks.Register("edge", health.NewEdgeChecker(endpoint, cfg.Cache.Edge.Timeout.Std()))
	}

	srv, err := server.New(store, checks, logger, server.WithAdminToken(cfg.AdminToken))
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "listening",
			observe.Field{Key: "addr", Value: cfg.Listen},
			observe.Field{Key: "version", Value: version},
		)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "http shutdown", observe.Field{Key: "error", Value: err.Error()})
	}

	// Let in-flight promotions and refreshes land before telemetry stops.
	tiered.Wait()

	if err := obs.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("observability shutdown: %w", err)
	}
	return nil
}

func buildTiers(cfg config.Config, obs observe.Observer) ([]cache.Tier, error) {
	windows := cache.Windows{
		Fresh: cfg.Cache.Fresh.Std(),
		Stale: cfg.Cache.Stale.Std(),
	}

	memory, err := cache.NewMemoryTier(windows, cfg.Cache.LocalCapacity)
	if err != nil {
		return nil, err
	}

	tiers := []cache.Tier{memory}
	if cfg.Cache.Edge.Endpoint != "" {
		edge, err := cache.NewEdgeTier(cache.EdgeConfig{
			Endpoint:      cfg.Cache.Edge.Endpoint,
			Token:         cfg.Cache.Edge.Token,
			SigningSecret: cfg.Cache.Edge.SigningSecret,
			Timeout:       cfg.Cache.Edge.Timeout.Std(),
			Windows:       windows,
		}, obs.Logger())
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, edge)
	}

	instrumented := make([]cache.Tier, 0, len(tiers))
	for _, tier := range tiers {
		metered, err := cache.NewMetricsTier(tier, obs.Meter())
		if err != nil {
			return nil, err
		}
		traced, err := cache.NewTracingTier(metered, obs.Tracer())
		if err != nil {
			return nil, err
		}
		instrumented = append(instrumented, traced)
	}
	return instrumented, nil
}
