// SPDX-License-Identifier: MIT
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

	"golang.org/x/sync/errgroup"

	"github.com/careshift/careshift/internal/api"
	"github.com/careshift/careshift/internal/cache"
	"github.com/careshift/careshift/internal/clinical"
	"github.com/careshift/careshift/internal/config"
	"github.com/careshift/careshift/internal/health"
	"github.com/careshift/careshift/internal/history"
	"github.com/careshift/careshift/internal/ingest"
	"github.com/careshift/careshift/internal/jobs"
	cslog "github.com/careshift/careshift/internal/log"
	"github.com/careshift/careshift/internal/scheduler"
	"github.com/careshift/careshift/internal/store"
	"github.com/careshift/careshift/internal/store/gormstore"
	"github.com/careshift/careshift/internal/store/sqlite"
	"github.com/careshift/careshift/internal/telemetry"
	"github.com/careshift/careshift/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	// Safe defaults until config is loaded.
	cslog.Configure(cslog.Config{
		Level:   "info",
		Service: "careshift",
		Version: version.Version,
	})
	logger := cslog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewLoader(*configPath, version.Version).Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
	}

	cslog.Configure(cslog.Config{
		Level:   cfg.LogLevel,
		Service: "careshift",
		Version: cfg.Version,
	})

	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("addr", cfg.Listen).
		Str("store_backend", cfg.StoreBackend).
		Str("environment", cfg.Environment).
		Msg("starting careshift")

	tracing, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.OTELEnabled,
		ServiceName:    "careshift",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		ExporterType:   cfg.OTELExporter,
		Endpoint:       cfg.OTELEndpoint,
		SamplingRate:   cfg.OTELSamplingRate,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "telemetry.init_failed").
			Msg("failed to initialize tracing")
	}
	defer func() {
		if err := tracing.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Str("event", "telemetry.shutdown_failed").Msg("tracer shutdown failed")
		}
	}()

	st, gormArchive, err := openStore(cfg)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "store.open_failed").
			Str("backend", cfg.StoreBackend).
			Msg("failed to open shift context store")
	}
	defer func() { _ = st.Close() }()

	planCache := openCache(cfg)

	hist, err := openHistory(cfg)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "history.open_failed").
			Str("dir", cfg.HistoryDir).
			Msg("failed to open plan archive")
	}
	defer func() { _ = hist.Close() }()

	sched := scheduler.New(cfg.SchedulerWeights())

	replanChecker := health.NewReplanChecker()
	healthMgr := health.NewManager(cfg.Version)
	healthMgr.RegisterChecker(health.NewStoreChecker(st))
	if cfg.IngestDir != "" {
		healthMgr.RegisterChecker(health.NewDirChecker("ingest-dir", cfg.IngestDir))
	}
	if cfg.ReplanEnabled {
		healthMgr.RegisterChecker(replanChecker)
	}

	srv := api.New(cfg, st, sched, planCache, hist, healthMgr)
	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("event", "http.listening").Str("addr", cfg.Listen).Msg("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if cfg.ReplanEnabled {
		var archive jobs.Archiver = hist
		if gormArchive != nil {
			archive = fanoutArchive{hist, gormArchive}
		}
		worker := jobs.NewReplanWorker(st, sched, planCache, archive, replanChecker, jobs.ReplanConfig{
			Debounce:   cfg.ReplanDebounce,
			ExportPath: cfg.ExportPath,
			CacheTTL:   cfg.CacheTTL,
		})
		g.Go(func() error { return worker.Run(ctx) })
	}

	if cfg.IngestDir != "" {
		watcher := ingest.NewWatcher(cfg.IngestDir, ingest.NewLoader(st))
		g.Go(func() error { return watcher.Run(ctx) })
	}

	if len(cfg.KafkaBrokers) > 0 {
		consumer := ingest.NewConsumer(ingest.ConsumerConfig{
			Brokers:            cfg.KafkaBrokers,
			Topic:              cfg.KafkaTopic,
			GroupID:            cfg.KafkaGroupID,
			MaxEventsPerSecond: cfg.KafkaMaxEventsPerS,
		}, st)
		g.Go(func() error { return consumer.Run(ctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().
			Err(err).
			Str("event", "daemon.failed").
			Msg("daemon exited with error")
	}
	logger.Info().Str("event", "shutdown").Msg("server exiting")
}

// openStore selects the configured backend. The gormstore return value is
// non-nil only for postgres, where generated plans are also archived in SQL.
func openStore(cfg config.AppConfig) (store.Store, *gormstore.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		return store.NewMemory(), nil, nil
	case config.StoreSQLite:
		s, err := sqlite.New(cfg.SQLitePath, sqlite.DefaultConfig())
		return s, nil, err
	case config.StorePostgres:
		s, err := gormstore.Open(cfg.PostgresDSN)
		return s, s, err
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// openCache prefers Redis when configured and falls back to the in-process
// cache when the server is unreachable.
func openCache(cfg config.AppConfig) cache.PlanCache {
	logger := cslog.WithComponent("cache")
	if cfg.RedisAddr == "" {
		return cache.NewMemory(time.Minute)
	}
	rc, err := cache.NewRedis(cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("event", "cache.redis_unavailable").
			Str("addr", cfg.RedisAddr).
			Msg("falling back to in-memory plan cache")
		return cache.NewMemory(time.Minute)
	}
	return rc
}

func openHistory(cfg config.AppConfig) (*history.Store, error) {
	if cfg.HistoryDir == "" {
		return history.OpenInMemory()
	}
	return history.Open(cfg.HistoryDir)
}

// fanoutArchive writes each plan to every archive; the first failure wins.
type fanoutArchive struct {
	badger *history.Store
	sql    *gormstore.Store
}

func (f fanoutArchive) Append(ctx context.Context, plan clinical.ScheduleResponse) error {
	if err := f.badger.Append(ctx, plan); err != nil {
		return err
	}
	return f.sql.ArchivePlan(ctx, plan)
}
