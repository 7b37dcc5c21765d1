// Command server runs the sitemap backend: the HTTP admin API, the SQLite
// inventory, and the periodic incremental rebuild sweep.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-sitemap-backend/internal/catalog"
	"github.com/tbourn/go-sitemap-backend/internal/config"
	httpapi "github.com/tbourn/go-sitemap-backend/internal/http"
	"github.com/tbourn/go-sitemap-backend/internal/observability"
	"github.com/tbourn/go-sitemap-backend/internal/repo"
	"github.com/tbourn/go-sitemap-backend/internal/scheduler"
	"github.com/tbourn/go-sitemap-backend/internal/services"
	"github.com/tbourn/go-sitemap-backend/internal/sitemap"
	"github.com/tbourn/go-sitemap-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("setup opentelemetry")
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(c); err != nil {
			log.Warn().Err(err).Msg("opentelemetry shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			log.Warn().Err(err).Msg("enable database tracing")
		}
	}
	if err := repo.SeedCapacities(ctx, db, cfg.CompanyCap, cfg.DefaultCap); err != nil {
		log.Fatal().Err(err).Msg("seed segment capacities")
	}

	sink, err := sitemap.NewDirSink(cfg.OutputDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.OutputDir).Msg("create artifact sink")
	}

	cat := catalog.Catalog(&catalog.Static{})
	if cfg.CatalogSnapshot != "" {
		loaded, err := catalog.LoadSnapshot(cfg.CatalogSnapshot)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.CatalogSnapshot).Msg("load catalog snapshot")
		}
		cat = loaded
	}

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	regen := httpapi.RegisterRoutes(engine, httpapi.Deps{
		DB:      db,
		Sink:    sink,
		Catalog: cat,
		Locks:   services.NewLocks(),
	}, cfg)

	var sweeper *scheduler.Sweeper
	if cfg.Sweep.Enabled {
		sweeper = scheduler.NewSweeper(regen, cfg.Sweep.Spec, cfg.Sweep.Timeout)
		if err := sweeper.Start(); err != nil {
			log.Fatal().Err(err).Str("spec", cfg.Sweep.Spec).Msg("start sweep")
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	if sweeper != nil {
		sweeper.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
}
