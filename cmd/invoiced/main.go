package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/kitchenledger/invoice-pipeline/internal/async"
	"github.com/kitchenledger/invoice-pipeline/internal/common"
	"github.com/kitchenledger/invoice-pipeline/internal/fifo"
	"github.com/kitchenledger/invoice-pipeline/internal/ingest"
	"github.com/kitchenledger/invoice-pipeline/internal/mapping"
	"github.com/kitchenledger/invoice-pipeline/internal/parser"
	"github.com/kitchenledger/invoice-pipeline/internal/pipeline"
	"github.com/kitchenledger/invoice-pipeline/internal/reconcile"
	"github.com/kitchenledger/invoice-pipeline/internal/repository"
	"github.com/kitchenledger/invoice-pipeline/internal/uom"
)

// invoiced watches a drop directory and runs every new invoice document
// through the pipeline, persisting FIFO layers to the configured database.
func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Batch.WatchDir == "" {
		logger.Error("WATCH_DIR is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	proc, cleanup, err := buildProcessor(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	queue := async.NewProcessorQueue(proc, logger,
		async.WithBaseContext(context.Background()),
		async.WithWorkers(cfg.Batch.Workers),
		async.WithQueueSize(cfg.Batch.QueueSize),
		async.WithProcessTimeout(cfg.Batch.ProcessTimeout),
	)

	paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{cfg.Batch.WatchDir},
		InitialScan: true,
		Debounce:    500 * time.Millisecond,
	}, logger)
	if err != nil {
		logger.Error("failed to start watcher", "dir", cfg.Batch.WatchDir, "error", err)
		os.Exit(1)
	}

	logger.Info("watching for invoice documents", "dir", cfg.Batch.WatchDir, "workers", cfg.Batch.Workers)

	for paths != nil || errs != nil {
		select {
		case path, ok := <-paths:
			if !ok {
				paths = nil
				continue
			}
			inv, hashHex, err := ingest.ReadInvoiceFile(path)
			if err != nil {
				logger.Warn("skipping unreadable invoice document", "path", path, "error", err)
				continue
			}
			logger.Debug("enqueueing invoice", "path", path, "hash", hashHex)
			_ = queue.Enqueue(ctx, async.Job{
				ID:          uuid.New(),
				Invoice:     inv,
				SourcePath:  path,
				SubmittedAt: time.Now().UTC(),
			})
		case _, ok := <-errs:
			if !ok {
				errs = nil
			}
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	queue.Shutdown(shutdownCtx)
	cancel()
	logger.Info("shutdown complete")
}

func buildProcessor(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*pipeline.Processor, func(), error) {
	var (
		itemBank   repository.ItemBankRepository
		vendorCats repository.VendorCategoryRepository
		rules      repository.MappingRuleRepository
		uoms       repository.UOMConversionRepository
		mq         repository.ManualMappingQueue
		layers     repository.FifoLayerRepository
		cleanup    = func() {}
	)

	if cfg.Database.DSN != "" {
		pool, err := repository.Open(ctx, repository.Config{
			DSN:              cfg.Database.DSN,
			MaxConns:         cfg.Database.MaxConns,
			MinConns:         cfg.Database.MinConns,
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
			DialTimeout:      cfg.Database.DialTimeout,
			StatementTimeout: cfg.Database.StatementTimeout,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := repository.HealthCheck(ctx, pool, cfg.Database.DialTimeout, logger); err != nil {
			repository.Close(pool, logger)
			return nil, nil, err
		}
		pg := repository.NewPostgresStore(pool, logger)
		itemBank, vendorCats, rules, uoms, mq, layers = pg, pg, pg, pg, pg, pg
		cleanup = func() { repository.Close(pool, logger) }
	} else {
		sq, err := repository.OpenSQLite(ctx, getenvDefault("SQLITE_PATH", "invoices.db"), logger)
		if err != nil {
			return nil, nil, err
		}
		itemBank, vendorCats, rules, uoms, mq, layers = sq, sq, sq, sq, sq, sq
		cleanup = func() { _ = sq.Close() }
	}

	conv := uom.NewConverter(uoms, logger)
	p := parser.New(conv, logger, parser.LineItemOptions{
		UnitPriceCeilingCents: cfg.Parser.UnitPriceCeilingCents,
	})
	m := mapping.NewMapper(itemBank, vendorCats, rules, mq, cfg.Parser.MinMappingConfidence, logger)
	r := reconcile.NewReconciler(cfg.Parser.SubtotalToleranceCents, logger)
	b := fifo.NewBuilder(layers, logger)
	return pipeline.NewProcessor(p, m, r, b, logger), cleanup, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
