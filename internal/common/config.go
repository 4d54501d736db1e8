package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Parser   ParserConfig
	Batch    BatchConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ParserConfig holds the tunable knobs of the parse/validate pipeline.
type ParserConfig struct {
	// SubtotalToleranceCents is the allowed variance between the summed line
	// items and the declared subtotal before SUBTOTAL_MISMATCH fires.
	SubtotalToleranceCents int64
	// MinMappingConfidence is the floor below which a mapping-rule hit is
	// still queued for manual review.
	MinMappingConfidence float64
	// UnitPriceCeilingCents triggers a sanity warning, never an error.
	UnitPriceCeilingCents int64
}

// BatchConfig holds batch-run configuration
type BatchConfig struct {
	Workers        int
	QueueSize      int
	ProcessTimeout time.Duration
	WatchDir       string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Parser: ParserConfig{
			SubtotalToleranceCents: getEnvAsInt64("SUBTOTAL_TOLERANCE_CENTS", 50),
			MinMappingConfidence:   getEnvAsFloat64("MIN_MAPPING_CONFIDENCE", 0.95),
			UnitPriceCeilingCents:  getEnvAsInt64("UNIT_PRICE_CEILING_CENTS", 100_000_000),
		},
		Batch: BatchConfig{
			Workers:        getEnvAsInt("BATCH_WORKERS", 4),
			QueueSize:      getEnvAsInt("BATCH_QUEUE_SIZE", 256),
			ProcessTimeout: getEnvAsDuration("BATCH_PROCESS_TIMEOUT", time.Minute),
			WatchDir:       getEnv("WATCH_DIR", ""),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Parser.SubtotalToleranceCents < 0 {
		return NewAppError("CONFIG_ERROR", "SUBTOTAL_TOLERANCE_CENTS must be >= 0", ErrInvalidInput)
	}
	if c.Parser.MinMappingConfidence < 0 || c.Parser.MinMappingConfidence > 1 {
		return NewAppError("CONFIG_ERROR", "MIN_MAPPING_CONFIDENCE must be in [0,1]", ErrInvalidInput)
	}
	if c.Batch.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "BATCH_WORKERS must be > 0", ErrInvalidInput)
	}
	return nil
}
