package utils

import (
	"context"
	"time"
)

// ImageRefLister returns every image reference still held by a post.
type ImageRefLister interface {
	ImageRefs(ctx context.Context) ([]string, error)
}

// OrphanSweeper removes upload files that no post references.
type OrphanSweeper interface {
	Sweep(referenced map[string]struct{}, grace time.Duration) ([]string, error)
}

// SweepOrphans removes unreferenced files older than grace once.
func SweepOrphans(ctx context.Context, refs ImageRefLister, files OrphanSweeper, grace time.Duration) ([]string, error) {
	list, err := refs.ImageRefs(ctx)
	if err != nil {
		return nil, err
	}
	referenced := make(map[string]struct{}, len(list))
	for _, ref := range list {
		referenced[ref] = struct{}{}
	}
	return files.Sweep(referenced, grace)
}

// StartOrphanCleaner launches a background goroutine that periodically
// removes orphaned upload files until ctx is cancelled. It is best-effort
// and logs failures.
func StartOrphanCleaner(ctx context.Context, refs ImageRefLister, files OrphanSweeper, interval, grace time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			// wait first so startup does not race in-flight uploads of a restarted process
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			removed, err := SweepOrphans(ctx, refs, files, grace)
			if err != nil {
				Sugar.Warnw("orphan sweep failed", "error", err)
				continue
			}
			if len(removed) > 0 {
				Sugar.Infow("orphan sweep removed files", "count", len(removed), "files", removed)
			}
		}
	}()
}
