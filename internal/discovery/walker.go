package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"scour/internal/logging"
	"scour/internal/store"
)

// registerBatchSize bounds how many rows a single UpsertFiles call
// carries so a huge tree never builds one giant transaction.
const registerBatchSize = 500

// Stats summarizes one discovery pass.
type Stats struct {
	Scanned     int64
	Matched     int64
	Registered  int64
	SkippedDirs int64
	ByType      map[string]int64
}

// Walker enrolls files under a root directory into a job.
type Walker struct {
	store      *store.Store
	logger     *slog.Logger
	extensions map[string]struct{}
}

func NewWalker(st *store.Store, logger *slog.Logger, extensions []string) *Walker {
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}
	return &Walker{
		store:      st,
		logger:     logging.WithComponent(logger, "discovery"),
		extensions: allowed,
	}
}

// Run walks root and registers every matching file with jobID.
// Unreadable directories are counted and skipped rather than failing
// the walk; only store errors and context cancellation abort it.
func (w *Walker) Run(ctx context.Context, jobID int64, root string) (Stats, error) {
	stats := Stats{ByType: make(map[string]int64)}

	root, err := filepath.Abs(root)
	if err != nil {
		return stats, fmt.Errorf("resolving root %s: %w", root, err)
	}

	// A bad root is a configuration error, not a skippable entry.
	info, err := os.Stat(root)
	if err != nil {
		return stats, fmt.Errorf("root directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return stats, fmt.Errorf("root path %s is not a directory", root)
	}

	batch := make([]store.FileInfo, 0, registerBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		inserted, err := w.store.UpsertFiles(ctx, jobID, batch)
		if err != nil {
			return fmt.Errorf("registering batch of %d files: %w", len(batch), err)
		}
		stats.Registered += inserted
		batch = batch[:0]
		return nil
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			if path == root {
				return fmt.Errorf("root directory %s: %w", root, err)
			}
			if d != nil && d.IsDir() {
				stats.SkippedDirs++
				w.logger.Warn("skipping unreadable directory",
					logging.String("path", path),
					logging.Error(err))
				return fs.SkipDir
			}
			stats.SkippedDirs++
			w.logger.Warn("skipping unreadable entry",
				logging.String("path", path),
				logging.Error(err))
			return nil
		}
		if d.IsDir() {
			return nil
		}

		stats.Scanned++
		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := w.extensions[ext]; !ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			w.logger.Warn("skipping unstattable file",
				logging.String("path", path),
				logging.Error(err))
			return nil
		}

		stats.Matched++
		stats.ByType[ext]++
		batch = append(batch, store.FileInfo{
			Path:       path,
			Size:       info.Size(),
			Type:       ext,
			ModifiedAt: info.ModTime(),
		})
		if len(batch) >= registerBatchSize {
			return flush()
		}
		return nil
	})
	if walkErr != nil {
		return stats, walkErr
	}
	if err := flush(); err != nil {
		return stats, err
	}

	w.logger.Info("discovery complete",
		logging.String("root", root),
		logging.Int64("scanned", stats.Scanned),
		logging.Int64("matched", stats.Matched),
		logging.Int64("registered", stats.Registered),
		logging.Int64("skipped_dirs", stats.SkippedDirs))
	return stats, nil
}
