package waittx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	clientconfig "github.com/mintkit/sdk-go/client/config"
	"github.com/mintkit/sdk-go/internal/deadline"
	"github.com/mintkit/sdk-go/ledger"
	"github.com/mintkit/sdk-go/types"
)

// Waiter races a subscription (push) against a poller (pull) and a deadline
// to observe a tx. The first terminal signal wins; the rest are discarded.
type Waiter struct {
	subscriber Source
	poller     Source
	logger     *zap.Logger
}

// New creates a waiter. sub may be nil to disable the push channel; polling
// follows cfg.EnablePolling.
func New(cfg clientconfig.SubmitConfig, sub ledger.Subscriber, querier ledger.StatusQuerier, logger *zap.Logger) (*Waiter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	normalized := cfg
	clientconfig.ApplySubmitDefaults(&normalized)

	w := &Waiter{logger: logger}
	if sub != nil {
		w.subscriber = newSubscriber(sub, logger)
	}
	if clientconfig.Enabled(normalized.EnablePolling, true) && querier != nil {
		w.poller = newPoller(querier, normalized, logger)
	}
	if w.subscriber == nil && w.poller == nil {
		return nil, fmt.Errorf("at least one confirmation channel is required")
	}
	return w, nil
}

type resolution struct {
	result Result
	err    error
}

// latch keeps the first resolution written to it.
type latch struct {
	once sync.Once
	done chan struct{}
	res  resolution
}

func newLatch() *latch {
	return &latch{done: make(chan struct{})}
}

func (l *latch) resolve(r resolution) bool {
	won := false
	l.once.Do(func() {
		l.res = r
		won = true
		close(l.done)
	})
	return won
}

// Wait blocks until a channel reports a terminal status, the deadline
// expires, or ctx ends. Both channels have stopped by the time it returns.
//
// A ledger failure is returned as *types.RejectionError. Expiry is not an
// error: it yields Result{TimedOut: true}.
func (w *Waiter) Wait(ctx context.Context, sig types.Signature, dl deadline.Deadline) (Result, error) {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	l := newLatch()
	var g errgroup.Group
	w.race(raceCtx, &g, l, ChannelSubscription, w.subscriber, sig)
	w.race(raceCtx, &g, l, ChannelPoll, w.poller, sig)

	// The timer is armed from the remaining budget, so setup time already
	// spent since the deadline started counts against it.
	timer := time.NewTimer(dl.Remaining())
	defer timer.Stop()

wait:
	for {
		select {
		case <-l.done:
			break wait
		case <-timer.C:
			if !dl.Expired() {
				timer.Reset(dl.Remaining())
				continue
			}
			if l.resolve(resolution{result: Result{Channel: ChannelDeadline, TimedOut: true}}) {
				w.logger.Info("timed out awaiting confirmation",
					zap.String("signature", sig.String()),
					zap.Duration("elapsed", dl.Elapsed()))
			}
			break wait
		case <-ctx.Done():
			l.resolve(resolution{err: ctx.Err()})
			break wait
		}
	}

	cancel()
	_ = g.Wait()
	return l.res.result, l.res.err
}

func (w *Waiter) race(ctx context.Context, g *errgroup.Group, l *latch, ch Channel, src Source, sig types.Signature) {
	if src == nil {
		return
	}
	g.Go(func() error {
		res, err := src.Wait(ctx, sig)
		var rejection *types.RejectionError
		switch {
		case err == nil, errors.As(err, &rejection):
			if !l.resolve(resolution{result: res, err: err}) {
				w.logger.Debug("late verdict discarded", zap.String("channel", string(ch)))
			}
		case ctx.Err() == nil:
			// The channel gave up; the sibling and the deadline still decide.
			w.logger.Warn("confirmation channel stopped",
				zap.String("channel", string(ch)),
				zap.String("signature", sig.String()),
				zap.Error(err))
		}
		return nil
	})
}
