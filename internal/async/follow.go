package async

import (
	"context"
	"log/slog"
)

// Follow moves watcher events into q until ctx is done or events closes.
// Events seen before ready is closed are held and enqueued in arrival order
// once it is, so a watcher started ahead of a batch run loses nothing that
// lands while the batch is still going.
func Follow(ctx context.Context, events <-chan string, errs <-chan error, ready <-chan struct{}, q Queue, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	var held []string
	enqueue := func(p string) {
		if err := q.Enqueue(ctx, Job{Path: p}); err != nil {
			logger.Warn("failed to enqueue file", "path", p, "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ready:
			ready = nil
			if len(held) > 0 {
				logger.Info("queueing files seen during batch", "count", len(held))
			}
			for _, p := range held {
				enqueue(p)
			}
			held = nil
		case p, ok := <-events:
			if !ok {
				return
			}
			if ready != nil {
				held = append(held, p)
				continue
			}
			enqueue(p)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watcher error", "error", err)
		}
	}
}
