package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kitchenledger/invoice-pipeline/constants"
)

// WatchConfig configures recursive discovery of invoice documents dropped
// into the watched directories.
type WatchConfig struct {
	Roots       []string // directories to watch (recursive)
	AllowedExts map[string]struct{}
	InitialScan bool          // if true, walk roots and emit existing files
	Debounce    time.Duration // coalesce rapid write/rename bursts per file
}

// StartWatcher emits the path of every invoice document created or updated
// under the configured roots. Paths are emitted after the debounce window so
// half-written files settle before the pipeline reads them. The channels
// close when ctx is cancelled.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		return nil, nil, errors.New("no roots provided")
	}
	if cfg.AllowedExts == nil {
		cfg.AllowedExts = constants.AllowedExtensions
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}

	pathCh := make(chan string, 256)
	errCh := make(chan error, 1)

	emit := func(path string) {
		select {
		case pathCh <- path:
		default:
			logger.Warn("watcher channel full, dropping event", "path", path)
		}
	}

	// Register roots recursively; optionally surface files already present.
	addRoot := func(root string) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				return w.Add(path)
			}
			if cfg.InitialScan && allowedPath(path, cfg.AllowedExts) {
				emit(path)
			}
			return nil
		})
	}
	for _, r := range cfg.Roots {
		if err := addRoot(r); err != nil {
			logger.Error("failed to add watch root", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}

	go func() {
		defer w.Close()

		// Each path debounces on its own timer, so a file that keeps
		// receiving writes never delays the flush of a settled one.
		var mu sync.Mutex
		timers := map[string]*time.Timer{}
		done := false

		deliver := func(path string) {
			mu.Lock()
			defer mu.Unlock()
			if done {
				return
			}
			delete(timers, path)
			emit(path)
		}
		schedule := func(path string) {
			mu.Lock()
			defer mu.Unlock()
			if t, ok := timers[path]; ok {
				t.Reset(cfg.Debounce)
				return
			}
			timers[path] = time.AfterFunc(cfg.Debounce, func() { deliver(path) })
		}
		// The done flag keeps a timer that fires during shutdown from
		// sending on the closed channels.
		defer func() {
			mu.Lock()
			done = true
			for p, t := range timers {
				t.Stop()
				delete(timers, p)
			}
			mu.Unlock()
			close(pathCh)
			close(errCh)
		}()

		for {
			select {
			case <-ctx.Done():
				return

			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Op.Has(fsnotify.Create) {
					// New subdirectories need their own watch.
					if info, err := os.Stat(e.Name); err == nil && info.IsDir() {
						if err := w.Add(e.Name); err != nil {
							logger.Warn("failed to watch new directory", "path", e.Name, "error", err)
						}
						continue
					}
				}
				if !allowedPath(e.Name, cfg.AllowedExts) {
					continue
				}
				if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				if cfg.Debounce <= 0 {
					emit(e.Name)
					continue
				}
				schedule(e.Name)

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return pathCh, errCh, nil
}

func allowedPath(path string, exts map[string]struct{}) bool {
	ext := constants.NormalizeExt(filepath.Ext(path))
	_, ok := exts[ext]
	return ok
}
