// Package main runs the fravik exemption application service: the submission
// endpoint used by the form frontend and the internal review API.
package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redis "github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	app "github.com/oslobygg/fravik-service/internal/app"
	"github.com/oslobygg/fravik-service/internal/app/httpapi"
	"github.com/oslobygg/fravik-service/internal/app/metrics"
	"github.com/oslobygg/fravik-service/internal/app/storage/postgres"
	redisstore "github.com/oslobygg/fravik-service/internal/app/storage/redis"
	"github.com/oslobygg/fravik-service/internal/config"
	"github.com/oslobygg/fravik-service/internal/middleware"
	"github.com/oslobygg/fravik-service/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/services.yaml", "Path to YAML config")
	addr := flag.String("addr", "", "Listen address override")
	flag.Parse()

	// A local .env is optional; the environment always wins.
	_ = godotenv.Load()

	cfg, err := config.LoadFromPath(*configPath)
	if err != nil {
		logger.NewDefault("fravikd").WithError(err).Error("load config")
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	log := logger.New(logger.LoggingConfig{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Component: "fravikd",
	})

	stores, db, err := buildStores(cfg, log)
	if err != nil {
		log.WithError(err).Error("configure stores")
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	application, err := app.New(app.Options{
		Stores:        stores,
		DraftMaxAge:   time.Duration(cfg.Drafts.MaxAgeDays) * 24 * time.Hour,
		SweepSchedule: cfg.Drafts.SweepSchedule,
		Logger:        log,
	})
	if err != nil {
		log.WithError(err).Error("wire application")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("start application")
		os.Exit(1)
	}

	handler := buildHandler(application, cfg, log)
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("fravik service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		log.WithError(err).Error("server failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("application shutdown")
	}
}

// buildStores selects postgres/redis backends from the configuration,
// falling back to the in-memory store when unconfigured.
func buildStores(cfg *config.Config, log *logger.Logger) (app.Stores, *sql.DB, error) {
	var stores app.Stores
	var db *sql.DB

	if cfg.Database.URL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			return stores, nil, err
		}
		if cfg.Database.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		}
		if cfg.Database.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return stores, nil, err
		}

		store := postgres.New(db)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return stores, nil, err
		}
		stores.Applications = store
		log.Info("using postgres application store")
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ttl := time.Duration(cfg.Drafts.MaxAgeDays) * 24 * time.Hour
		stores.Drafts = redisstore.NewDraftStore(client, ttl)
		log.WithField("addr", cfg.Redis.Addr).Info("using redis draft store")
	}

	return stores, db, nil
}

func buildHandler(application *app.Application, cfg *config.Config, log *logger.Logger) http.Handler {
	api := httpapi.NewHandler(application, log.WithField("component", "httpapi"))

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)
	cors := middleware.NewCORS(cfg.CORS.AllowedOrigins)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", cors.Handler(limiter.Handler(api)))

	return metrics.InstrumentHandler(mux)
}
