package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net/http"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"station-pipeline/internal/export"
	"station-pipeline/internal/generator"
	"station-pipeline/internal/observability/metrics"
	"station-pipeline/internal/pipeline"
	"station-pipeline/internal/production"
	"station-pipeline/internal/staging"
	"station-pipeline/internal/warehouse"
)

func main() {
	skipGeneration := flag.Bool("skip-generation", false, "do not generate synthetic extracts before loading")
	skipViews := flag.Bool("skip-views", false, "do not publish analytics views")
	skipExport := flag.Bool("skip-export", false, "do not archive production tables")
	dataDir := flag.String("data-dir", "", "extract directory override")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := pipeline.LoadConfig()
	if err != nil {
		if errors.Is(err, pipeline.ErrMissingCredentials) {
			logger.Fatal("DB_PASS is required")
		}
		logger.Fatalf("config error: %v", err)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init()
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Infof("metrics listening on %s", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Warnf("metrics listener stopped: %v", err)
			}
		}()
	}

	now := time.Now()
	extractDir := cfg.ExtractDir(now)

	loader := staging.NewLoader(db, logger)
	cleaner := staging.NewCleaner(db, logger)
	promoter := production.NewPromoter(db, logger)
	builder := warehouse.NewBuilder(db, logger)
	publisher := warehouse.NewViewPublisher(db, logger)
	exporter := export.NewExporter(db, logger)
	gen := generator.New(logger)

	var steps []pipeline.Step
	if !*skipGeneration {
		steps = append(steps, pipeline.Step{
			Name: "generate_extracts",
			Run: func(ctx context.Context) (any, error) {
				return gen.Run(extractDir)
			},
		})
	}
	steps = append(steps,
		pipeline.Step{
			Name:     "load_staging",
			Required: true,
			Run: func(ctx context.Context) (any, error) {
				return loader.Run(ctx, extractDir)
			},
		},
		pipeline.Step{
			Name:     "clean_staging",
			Required: true,
			Run: func(ctx context.Context) (any, error) {
				return cleaner.Run(ctx)
			},
		},
		pipeline.Step{
			Name:     "promote_production",
			Required: true,
			Run: func(ctx context.Context) (any, error) {
				return promoter.Promote(ctx, cfg.RestoreConstraints)
			},
		},
		pipeline.Step{
			Name:     "rebuild_warehouse",
			Required: true,
			Run: func(ctx context.Context) (any, error) {
				return builder.Rebuild(ctx)
			},
		},
	)
	if !*skipViews {
		steps = append(steps, pipeline.Step{
			Name: "publish_views",
			Run: func(ctx context.Context) (any, error) {
				return publisher.PublishDir(ctx, cfg.ViewsDir)
			},
		})
	}
	if !*skipExport {
		steps = append(steps, pipeline.Step{
			Name: "archive_production",
			Run: func(ctx context.Context) (any, error) {
				return exporter.Run(ctx, cfg.HistoricalDir(now))
			},
		})
	}

	runner := pipeline.NewRunner(logger)
	report := runner.Execute(context.Background(), steps)

	jsonPath, pdfPath, err := pipeline.WriteRunReport(cfg.ReportDir, report)
	if err != nil {
		logger.Warnf("run report not written: %v", err)
	} else {
		logger.WithFields(logrus.Fields{"json": jsonPath, "pdf": pdfPath}).Info("run report written")
	}

	if !report.Succeeded {
		if step, ok := report.FailedStep(); ok {
			logger.Errorf("pipeline failed at %s", step)
		}
		os.Exit(1)
	}
}
