package dispatcher

import (
	"context"
	"sync"
	"time"
)

// Loop runs a sweep function on a fixed interval until the context is
// canceled. The first sweep runs immediately so a restart picks up overdue
// posts without waiting a full interval. TryLock skips a tick when the
// previous sweep is still running instead of stacking sweeps.
func Loop(ctx context.Context, interval time.Duration, sweep func(context.Context) error, onError func(error)) {
	var mu sync.Mutex

	run := func() {
		if !mu.TryLock() {
			return
		}
		defer mu.Unlock()
		if err := sweep(ctx); err != nil && onError != nil {
			onError(err)
		}
	}

	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
