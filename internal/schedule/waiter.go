// Package schedule paces the batch controller between queue polls.
package schedule

import (
	"context"
	"time"
)

// Wakeup says why Sleep returned.
type Wakeup int

const (
	// Elapsed means the full duration passed.
	Elapsed Wakeup = iota
	// Woken means a token arrived on the wake channel.
	Woken
	// Cancelled means ctx was done; Sleep also returns ctx.Err().
	Cancelled
)

func (w Wakeup) String() string {
	switch w {
	case Elapsed:
		return "elapsed"
	case Woken:
		return "woken"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Sleep waits for d, a token on wake, or ctx cancellation, whichever comes
// first. A nil wake channel is never ready. Non-positive durations return
// Elapsed immediately unless ctx is already done.
func Sleep(ctx context.Context, d time.Duration, wake <-chan struct{}) (Wakeup, error) {
	if err := ctx.Err(); err != nil {
		return Cancelled, err
	}
	if d <= 0 {
		return Elapsed, nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Cancelled, ctx.Err()
	case <-wake:
		return Woken, nil
	case <-timer.C:
		return Elapsed, nil
	}
}
