package tasks

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// newImageCleanupTask removes downloaded and generated images older than
// images.max_age from images.dir. Subdirectories are left alone.
func newImageCleanupTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", ImageCleanup)

	return func(ctx context.Context) error {
		maxAge := deps.Config.Images.MaxAge
		if maxAge <= 0 {
			return nil
		}

		dir := deps.Config.Images.Dir
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read image directory %s: %w", dir, err)
		}

		cutoff := deps.now().Add(-maxAge)
		var removed int
		var errs []error
		for _, entry := range entries {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
				continue
			}
			removed++
		}

		log.InfoContext(ctx, "Removed old images", "removed", removed, "dir", dir, "failed", len(errs))
		return errors.Join(errs...)
	}
}
