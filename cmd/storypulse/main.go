package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inkwell-labs/storypulse/internal/aggregation"
	v1 "github.com/inkwell-labs/storypulse/internal/api/v1"
	"github.com/inkwell-labs/storypulse/internal/completion"
	"github.com/inkwell-labs/storypulse/internal/core/analytics"
	corecfg "github.com/inkwell-labs/storypulse/internal/core/config"
	"github.com/inkwell-labs/storypulse/internal/core/storage/postgres"
	"github.com/inkwell-labs/storypulse/internal/ingestion"
	"github.com/inkwell-labs/storypulse/internal/migrations"
	"github.com/inkwell-labs/storypulse/internal/notify"
	"github.com/inkwell-labs/storypulse/internal/projection"
	"github.com/inkwell-labs/storypulse/internal/server"
	"github.com/inkwell-labs/storypulse/internal/story"
)

func main() {
	configPath := flag.String("config", "storypulse.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config", "config", cfg)

	snapshotInterval, err := time.ParseDuration(cfg.Analytics.EffectiveSnapshotInterval())
	if err != nil {
		slog.Error("Invalid snapshot interval", "value", cfg.Analytics.EffectiveSnapshotInterval(), "error", err)
		os.Exit(1)
	}

	trendPolicy, err := analytics.NewTrendPolicy(cfg.Analytics.TrendThreshold)
	if err != nil {
		slog.Error("Invalid trend threshold", "value", cfg.Analytics.TrendThreshold, "error", err)
		os.Exit(1)
	}

	// 2. Initialize Storage (PostgreSQL)
	dbAdapter, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer dbAdapter.Close()

	// 2.1. Run Database Migrations
	if err := migrations.RunMigrations(dbAdapter.DB(), cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	tallyStore := postgres.NewTallyAdapter(dbAdapter.DB())
	completionStore := postgres.NewCompletionAdapter(dbAdapter.DB())

	// 3. Initialize Story Catalog
	if cfg.Stories.SourceType != "filesystem" {
		slog.Error("Unsupported stories source type", "type", cfg.Stories.SourceType)
		os.Exit(1)
	}
	storyRepo, err := story.NewFileSystemRepository(cfg.Stories.Path)
	if err != nil {
		slog.Error("Failed to load story structures", "path", cfg.Stories.Path, "error", err)
		os.Exit(1)
	}
	catalog := story.NewCatalog(storyRepo)

	// 4. Initialize Core Services
	hub := notify.NewHub()
	hub.Subscribe(func(ev *v1.ChoiceEvent) {
		slog.Debug("Choice event ingested",
			"story_id", ev.StoryID,
			"decision_point_id", ev.DecisionPointID,
			"choice_id", ev.ChoiceID,
			"ingest_seq", ev.IngestSeq,
		)
	})

	aggregator := aggregation.NewAggregator(dbAdapter, tallyStore, trendPolicy)
	evaluator := completion.NewEvaluator(completionStore, catalog)

	// 5. Initialize Window Snapshot Scheduler
	scheduler := aggregation.NewScheduler(snapshotInterval, aggregator)
	slog.Info("Snapshot scheduler initialized", "interval", snapshotInterval)

	// 6. Initialize Ingestion (write API) and Projection (query API)
	ingestionSvc := ingestion.NewService(dbAdapter, aggregator, evaluator, hub, cfg.Server.MaxBodySizeMB)
	projectionSvc := projection.NewService(tallyStore, evaluator, trendPolicy)

	// 7. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), dbAdapter.DB(), cfg.Server.Mode)
	ingestionSvc.RegisterRoutes(srv.Engine)
	projectionSvc.RegisterRoutes(srv.Engine)

	// 8. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := scheduler.Start(ctx); err != nil {
			slog.Error("Scheduler stopped with error", "error", err)
		}
	}()

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
