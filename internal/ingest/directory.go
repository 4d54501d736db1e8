// Package ingest discovers raw invoice documents on disk and turns them into
// decoded records ready for the pipeline.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kitchenledger/invoice-pipeline/constants"
	"github.com/kitchenledger/invoice-pipeline/internal/entity"
	"github.com/kitchenledger/invoice-pipeline/internal/schema"
)

// FileResult is the per-file outcome of a directory scan.
type FileResult struct {
	Path         string
	Invoice      *entity.RawInvoice
	Deduplicated bool
	HashHex      string
	Err          string
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// ScanDirectory walks root, decodes every allowed invoice document, and
// dedupes by content hash within the run. Schema or decode failures are
// recorded per file; the walk always continues.
func ScanDirectory(ctx context.Context, root string, skipHidden bool) ([]FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []FileResult
	var stats DirStats
	seen := map[string]struct{}{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil // continue walking
		}
		if skipHidden && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := constants.NormalizeExt(filepath.Ext(path))
		if _, ok := constants.AllowedExtensions[ext]; !ok {
			return nil
		}
		stats.Matched++

		inv, hashHex, err := ReadInvoiceFile(path)
		if err != nil {
			results = append(results, FileResult{Path: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		if _, dup := seen[hashHex]; dup {
			results = append(results, FileResult{Path: path, Deduplicated: true, HashHex: hashHex})
			stats.Succeeded++
			stats.Deduplicated++
			return nil
		}
		seen[hashHex] = struct{}{}

		results = append(results, FileResult{Path: path, Invoice: inv, HashHex: hashHex})
		stats.Succeeded++
		return nil
	})

	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}

// ReadInvoiceFile reads, schema-validates and decodes one invoice document.
func ReadInvoiceFile(path string) (*entity.RawInvoice, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read: %w", err)
	}
	if err := schema.ValidateRawInvoice(data); err != nil {
		return nil, "", fmt.Errorf("validate: %w", err)
	}
	var inv entity.RawInvoice
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, "", fmt.Errorf("decode: %w", err)
	}
	sum := sha256.Sum256(data)
	return &inv, hex.EncodeToString(sum[:]), nil
}

func isHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}
