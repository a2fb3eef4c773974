// Package deadline bounds every loop of a submission by one immutable budget.
package deadline

import (
	"context"
	"time"
)

// Deadline is a start instant plus a timeout. Every question about it is
// answered from the elapsed time since start, so suspension points never
// accumulate drift.
type Deadline struct {
	start   time.Time
	timeout time.Duration
	now     func() time.Time
}

// Start begins a deadline of timeout from now.
func Start(timeout time.Duration) Deadline {
	return StartAt(time.Now(), timeout, time.Now)
}

// StartAt builds a deadline with an explicit start and clock, for tests.
func StartAt(start time.Time, timeout time.Duration, now func() time.Time) Deadline {
	if now == nil {
		now = time.Now
	}
	return Deadline{start: start, timeout: timeout, now: now}
}

// StartedAt returns the start instant.
func (d Deadline) StartedAt() time.Time { return d.start }

// Timeout returns the configured budget.
func (d Deadline) Timeout() time.Duration { return d.timeout }

// Elapsed returns the time spent since start.
func (d Deadline) Elapsed() time.Duration {
	if d.now == nil {
		return time.Since(d.start)
	}
	return d.now().Sub(d.start)
}

// Remaining returns the budget left, never negative.
func (d Deadline) Remaining() time.Duration {
	left := d.timeout - d.Elapsed()
	if left < 0 {
		return 0
	}
	return left
}

// Expired reports whether the budget is spent.
func (d Deadline) Expired() bool {
	return d.Elapsed() >= d.timeout
}

// At returns the wall-clock instant the deadline expires.
func (d Deadline) At() time.Time { return d.start.Add(d.timeout) }

// WithContext derives a context cancelled when the deadline expires.
func (d Deadline) WithContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.Remaining())
}
