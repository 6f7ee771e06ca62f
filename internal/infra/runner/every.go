package runner

import (
	"context"
	"time"
)

// Every calls fn on a fixed cadence until ctx is done. Ticks are scheduled
// against the original anchor so the cadence does not drift. When a call
// overruns and the next slot is already more than maxLag in the past, the
// missed slots are collapsed into one immediate call and the schedule is
// re-anchored; onLag, if set, is told how many slots were dropped.
func Every(ctx context.Context, interval, maxLag time.Duration, fn func(ctx context.Context), onLag func(skipped int)) {
	if interval <= 0 {
		return
	}
	next := time.Now()
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		fn(ctx)
		next = next.Add(interval)
		now := time.Now()
		if behind := now.Sub(next); behind > maxLag {
			skipped := int(behind / interval)
			next = now
			if onLag != nil {
				onLag(skipped)
			}
		}
		timer.Reset(time.Until(next))
	}
}
