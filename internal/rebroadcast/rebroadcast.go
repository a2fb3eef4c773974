// Package rebroadcast resends a signed transaction until told to stop.
package rebroadcast

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mintkit/sdk-go/ledger"
)

// Rebroadcaster resubmits the same raw bytes at a fixed cadence. It never
// looks at confirmation status; delivery is best effort.
type Rebroadcaster struct {
	sender   ledger.Broadcaster
	raw      []byte
	interval time.Duration
	logger   *zap.Logger
}

// New creates a rebroadcaster for raw. A non-positive interval defaults to 500ms.
func New(sender ledger.Broadcaster, raw []byte, interval time.Duration, logger *zap.Logger) *Rebroadcaster {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rebroadcaster{sender: sender, raw: raw, interval: interval, logger: logger}
}

// Handle controls a running rebroadcast loop.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	sends  atomic.Int64
}

// Start launches the loop. It runs until Stop is called or ctx is cancelled.
func (r *Rebroadcaster) Start(ctx context.Context) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		r.run(ctx, h)
	}()
	return h
}

func (r *Rebroadcaster) run(ctx context.Context, h *Handle) {
	limiter := rate.NewLimiter(rate.Every(r.interval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			// Wait refuses early when ctx's deadline falls before the next token.
			<-ctx.Done()
			return
		}
		// Stop may have raced the limiter.
		if ctx.Err() != nil {
			return
		}
		h.sends.Add(1)
		if _, err := r.sender.SendRawTransaction(ctx, r.raw); err != nil && ctx.Err() == nil {
			r.logger.Debug("rebroadcast failed", zap.Error(err))
		}
	}
}

// Stop cancels the loop and waits for it to exit. No send starts after Stop
// returns. It returns the number of resubmissions made.
func (h *Handle) Stop() int {
	h.once.Do(h.cancel)
	<-h.done
	return int(h.sends.Load())
}

// Done is closed once the loop has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }
