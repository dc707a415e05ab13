package scraper

import (
	"context"
	"math/rand"
	"time"

	"github.com/ternarybob/capto/internal/interfaces"
)

// humanDelay sleeps for a random duration in [min, max] or until the
// context is cancelled. A zero or inverted range is a no-op so tests
// can disable pacing entirely.
func humanDelay(ctx context.Context, min, max time.Duration) {
	if min <= 0 && max <= 0 {
		return
	}
	if max < min {
		max = min
	}
	d := min
	if span := max - min; span > 0 {
		d += time.Duration(rand.Int63n(int64(span)))
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// reachedFoundCap reports whether a run should end on its raw found
// count. With a sink callback attached the sink's stop signal is the
// cap; counting found items there would end batches short whenever the
// sink rejects cross-run duplicates.
func reachedFoundCap(onItem interfaces.OnItemFunc, limit, found int) bool {
	return onItem == nil && limit > 0 && found >= limit
}
