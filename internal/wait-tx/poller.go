package waittx

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	clientconfig "github.com/mintkit/sdk-go/client/config"
	"github.com/mintkit/sdk-go/ledger"
	"github.com/mintkit/sdk-go/types"
)

type poller struct {
	querier          ledger.StatusQuerier
	backoff          Backoff
	maxTries         int
	minConfirmations uint64
	logger           *zap.Logger
}

type constantBackoff struct{ every time.Duration }

func (b constantBackoff) Next(int) time.Duration { return b.every }

type exponentialBackoff struct {
	initial    time.Duration
	multiplier float64
	max        time.Duration
	jitter     float64
	randFn     func() float64
}

func (b *exponentialBackoff) Next(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	// Cap values before converting to time.Duration to avoid overflow.
	const safetyMargin = 2048.0
	maxDurationFloat := float64(math.MaxInt64) - safetyMargin

	initial := b.initial
	if initial <= 0 {
		initial = 2 * time.Second
	}
	multiplier := b.multiplier
	if multiplier <= 1 {
		multiplier = 1
	}
	base := float64(initial) * math.Pow(multiplier, float64(attempt-1))
	if b.max > 0 {
		base = math.Min(base, math.Min(float64(b.max), maxDurationFloat))
	}
	base = math.Max(0, math.Min(base, maxDurationFloat))

	jitter := math.Max(0, math.Min(b.jitter, 1))
	if jitter > 0 {
		randFn := b.randFn
		if randFn == nil {
			randFn = rand.Float64
		}
		factor := math.Max(0, 1+(randFn()*2-1)*jitter)
		base = math.Min(base*factor, maxDurationFloat)
	}
	delay := time.Duration(base)
	if delay <= 0 {
		delay = time.Millisecond
	}
	return delay
}

func newPoller(q ledger.StatusQuerier, cfg clientconfig.SubmitConfig, logger *zap.Logger) *poller {
	return &poller{
		querier:          q,
		backoff:          NewBackoff(cfg),
		maxTries:         cfg.PollMaxRetries,
		minConfirmations: cfg.MinConfirmations,
		logger:           logger,
	}
}

// NewBackoff constructs a poller backoff from the submit configuration.
// With the defaults it is a constant PollInterval.
func NewBackoff(cfg clientconfig.SubmitConfig) Backoff {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	var backoff Backoff = constantBackoff{every: interval}
	if cfg.PollBackoffMultiplier > 1 || cfg.PollBackoffJitter > 0 || (cfg.PollBackoffMaxInterval > 0 && cfg.PollBackoffMaxInterval != interval) {
		backoff = &exponentialBackoff{
			initial:    interval,
			multiplier: cfg.PollBackoffMultiplier,
			max:        cfg.PollBackoffMaxInterval,
			jitter:     cfg.PollBackoffJitter,
		}
	}
	return backoff
}

func (p *poller) Wait(ctx context.Context, sig types.Signature) (Result, error) {
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		statuses, err := p.querier.GetSignatureStatuses(ctx, sig)
		var status *types.ConfirmationStatus
		if err == nil && len(statuses) > 0 {
			status = statuses[0]
		}
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			p.logger.Debug("status query failed", zap.String("signature", sig.String()), zap.Error(err))
		case status == nil:
			p.logger.Debug("no status yet", zap.String("signature", sig.String()))
		case status.Err != nil:
			p.logger.Info("rejected via poll",
				zap.String("signature", sig.String()),
				zap.Stringer("error", status.Err))
			return Result{Status: *status, Channel: ChannelPoll}, &types.RejectionError{Detail: status.Err, Slot: status.Slot}
		case status.Confirmed(p.minConfirmations):
			p.logger.Info("resolved via poll",
				zap.String("signature", sig.String()),
				zap.Uint64("slot", status.Slot),
				zap.Uint64("confirmations", status.Confirmations))
			return Result{Status: *status, Channel: ChannelPoll}, nil
		default:
			p.logger.Debug("not yet confirmed",
				zap.String("signature", sig.String()),
				zap.Uint64("confirmations", status.Confirmations))
		}

		attempt++
		if p.maxTries > 0 && attempt >= p.maxTries {
			return Result{}, fmt.Errorf("polling exhausted after %d attempts", attempt)
		}
		if !sleep(ctx, p.backoff.Next(attempt)) {
			return Result{}, ctx.Err()
		}
	}
}

// sleep waits for d or ctx, reporting whether the full delay elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
