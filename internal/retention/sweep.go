package retention

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tikgrab/tikgrab/internal/metrics"
)

// Sweep deletes regular files in dir last modified more than maxAge ago and
// returns how many were removed. It covers artifacts whose scheduled
// deletion was lost to a restart.
func Sweep(dir string, maxAge time.Duration, m metrics.Recorder) int {
	if m == nil {
		m = metrics.Noop{}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Error("sweep: failed to read storage dir", "dir", dir, "error", err)
		return 0
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, de := range entries {
		if !de.Type().IsRegular() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(dir, de.Name())
		ok, err := DeleteIfExists(path)
		if err != nil {
			slog.Error("sweep: failed to delete expired file", "path", path, "error", err)
			m.IncDeletions("sweep", "failed")
			continue
		}
		if ok {
			removed++
			m.IncDeletions("sweep", "deleted")
		}
	}
	if removed > 0 {
		slog.Info("sweep: removed expired files", "dir", dir, "count", removed)
	}
	return removed
}

// StartSweepLoop sweeps once immediately and then every interval until ctx
// is done.
func StartSweepLoop(ctx context.Context, dir string, maxAge, interval time.Duration, m metrics.Recorder) {
	go func() {
		Sweep(dir, maxAge, m)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Info("sweep: shutting down")
				return
			case <-ticker.C:
				Sweep(dir, maxAge, m)
			}
		}
	}()
}
