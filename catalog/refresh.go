package catalog

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

const refreshTimeout = 15 * time.Second

// StartRefresher keeps the app token warm in the background so the first
// enrichment after a quiet period doesn't pay the token round trip. The
// interval is jittered ±20% to avoid thundering the token endpoint when
// several instances restart together. Returns immediately; the loop stops
// with ctx.
func (ts *TokenSource) StartRefresher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	go func() {
		// Small initial delay so startup bursts don't all hit the token
		// endpoint at once.
		initial := time.Duration(rand.Int63n(int64(10 * time.Second)))
		timer := time.NewTimer(initial)
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}

			rctx, cancel := context.WithTimeout(ctx, refreshTimeout)
			if _, err := ts.Get(rctx); err != nil {
				slog.Warn("catalog token refresh failed", slog.Any("err", err))
			}
			cancel()

			jitter := 0.8 + 0.4*rand.Float64()
			timer.Reset(time.Duration(float64(interval) * jitter))
		}
	}()
}
