package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/kitchenledger/invoice-pipeline/internal/common"
	"github.com/kitchenledger/invoice-pipeline/internal/repository"
)

// dbhealth verifies database connectivity and prints a few row counts.
func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if cfg.Database.DSN == "" {
		logger.Error("DB_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         2,
		MinConns:         1,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer repository.Close(pool, logger)

	if err := repository.HealthCheck(ctx, pool, 5*time.Second, logger); err != nil {
		logger.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	logger.Info("database ping ok")

	for _, table := range []string{"item_bank", "mapping_rules", "vendor_categories", "uom_conversions", "manual_mapping_queue", "fifo_layers"} {
		var count int64
		q := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
		if err := pool.QueryRow(ctx, q).Scan(&count); err != nil {
			logger.Warn("count failed", "table", table, "error", err)
			continue
		}
		logger.Info("table row count", "table", table, "rows", count)
	}
}
