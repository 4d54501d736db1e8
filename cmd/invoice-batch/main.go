package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/kitchenledger/invoice-pipeline/internal/async"
	"github.com/kitchenledger/invoice-pipeline/internal/common"
	"github.com/kitchenledger/invoice-pipeline/internal/entity"
	"github.com/kitchenledger/invoice-pipeline/internal/export"
	"github.com/kitchenledger/invoice-pipeline/internal/fifo"
	"github.com/kitchenledger/invoice-pipeline/internal/ingest"
	"github.com/kitchenledger/invoice-pipeline/internal/mapping"
	"github.com/kitchenledger/invoice-pipeline/internal/parser"
	"github.com/kitchenledger/invoice-pipeline/internal/pipeline"
	"github.com/kitchenledger/invoice-pipeline/internal/reconcile"
	repo "github.com/kitchenledger/invoice-pipeline/internal/repository"
	"github.com/kitchenledger/invoice-pipeline/internal/uom"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

// stores bundles the contract implementations the pipeline needs.
type stores struct {
	itemBank   repo.ItemBankRepository
	vendorCats repo.VendorCategoryRepository
	rules      repo.MappingRuleRepository
	uoms       repo.UOMConversionRepository
	queue      repo.ManualMappingQueue
	layers     repo.FifoLayerRepository
	cleanup    func()
}

func main() {
	_ = godotenv.Load()

	// Parse CLI flags
	var (
		dir     = flag.String("dir", "", "directory of invoice JSON documents to process (required)")
		out     = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		dbPath  = flag.String("db", "", "SQLite database path for reference data and FIFO layers")
		inmem   = flag.Bool("inmem", false, "use an in-memory store (default when no database is configured)")
		seed    = flag.String("seed", "", "JSON seed file with reference data (in-memory store only)")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		parentDir := filepath.Dir(*dir)
		*out = filepath.Join(parentDir, "invoices.xlsx")
	}

	// Setup logger
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	batchID := uuid.New().String()
	ctx := common.WithBatchID(context.Background(), batchID)
	logger = logger.With("batch_id", batchID)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if *inmem {
		// explicit -inmem overrides any configured database
		*dbPath = ""
		cfg.Database.DSN = ""
	}
	st, err := openStores(ctx, cfg, *dbPath, *seed, logger)
	if err != nil {
		logger.Error("failed to open stores", "error", err)
		os.Exit(1)
	}
	defer st.cleanup()

	proc := buildProcessor(cfg, st, logger)

	// Collect results as workers finish; order is irrelevant.
	var (
		mu      sync.Mutex
		parsed  []*entity.ParsedInvoice
		failed  int
		invalid int
	)
	queue := async.NewProcessorQueue(proc, logger,
		async.WithBaseContext(ctx),
		async.WithWorkers(cfg.Batch.Workers),
		async.WithQueueSize(cfg.Batch.QueueSize),
		async.WithProcessTimeout(cfg.Batch.ProcessTimeout),
		async.WithResultHandler(func(job async.Job, res *pipeline.Result, err error) {
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				if res != nil && res.Parsed != nil {
					parsed = append(parsed, res.Parsed)
				}
				return
			}
			parsed = append(parsed, res.Parsed)
			if !res.Parsed.Validation.IsValid {
				invalid++
			}
		}),
	)

	results, stats, err := ingest.ScanDirectory(ctx, *dir, true)
	if err != nil {
		logger.Error("directory scan failed", "dir", *dir, "error", err)
		os.Exit(1)
	}
	for _, r := range results {
		if r.Invoice == nil {
			if r.Err != "" {
				logger.Warn("skipping unreadable invoice document", "path", r.Path, "error", r.Err)
			}
			continue
		}
		_ = queue.Enqueue(ctx, async.Job{
			ID:          uuid.New(),
			Invoice:     r.Invoice,
			SourcePath:  r.Path,
			SubmittedAt: time.Now().UTC(),
		})
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	queue.Shutdown(shutdownCtx)
	cancel()

	xlsx, err := export.NewService(logger).ExportInvoicesXLSX(parsed)
	if err != nil {
		logger.Error("export failed", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsx, 0o644); err != nil {
		logger.Error("failed to write workbook", "path", *out, "error", err)
		os.Exit(1)
	}

	logger.Info("batch complete",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"deduplicated", stats.Deduplicated,
		"processed", len(parsed),
		"not_accepted", invalid,
		"failed", failed,
		"workbook", *out,
	)
	if failed > 0 {
		os.Exit(1)
	}
}

func openStores(ctx context.Context, cfg *common.Config, dbPath, seedPath string, logger *slog.Logger) (*stores, error) {
	switch {
	case cfg.Database.DSN != "":
		pool, err := repo.Open(ctx, repo.Config{
			DSN:              cfg.Database.DSN,
			MaxConns:         cfg.Database.MaxConns,
			MinConns:         cfg.Database.MinConns,
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
			DialTimeout:      cfg.Database.DialTimeout,
			StatementTimeout: cfg.Database.StatementTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		pg := repo.NewPostgresStore(pool, logger)
		return &stores{
			itemBank: pg, vendorCats: pg, rules: pg, uoms: pg, queue: pg, layers: pg,
			cleanup: func() { repo.Close(pool, logger) },
		}, nil

	case dbPath != "":
		sq, err := repo.OpenSQLite(ctx, dbPath, logger)
		if err != nil {
			return nil, err
		}
		return &stores{
			itemBank: sq, vendorCats: sq, rules: sq, uoms: sq, queue: sq, layers: sq,
			cleanup: func() { _ = sq.Close() },
		}, nil

	default:
		mem := repo.NewMemoryStore()
		if seedPath != "" {
			if err := repo.SeedFromFile(mem, seedPath); err != nil {
				return nil, err
			}
		}
		return &stores{
			itemBank: mem, vendorCats: mem, rules: mem, uoms: mem, queue: mem, layers: mem,
			cleanup: func() {},
		}, nil
	}
}

func buildProcessor(cfg *common.Config, st *stores, logger *slog.Logger) *pipeline.Processor {
	conv := uom.NewConverter(st.uoms, logger)
	p := parser.New(conv, logger, parser.LineItemOptions{
		UnitPriceCeilingCents: cfg.Parser.UnitPriceCeilingCents,
	})
	m := mapping.NewMapper(st.itemBank, st.vendorCats, st.rules, st.queue, cfg.Parser.MinMappingConfidence, logger)
	r := reconcile.NewReconciler(cfg.Parser.SubtotalToleranceCents, logger)
	b := fifo.NewBuilder(st.layers, logger)
	return pipeline.NewProcessor(p, m, r, b, logger)
}
