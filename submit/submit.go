// Package submit broadcasts a signed transaction and decides, within a fixed
// budget, whether it landed.
//
// One Submit call broadcasts once, keeps resending the same bytes while a
// subscription and a status poller race for a verdict, and falls back to a
// simulation when neither answers in time. It always returns exactly one
// types.Outcome and never leaves background work running.
package submit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	clientconfig "github.com/mintkit/sdk-go/client/config"
	"github.com/mintkit/sdk-go/internal/deadline"
	"github.com/mintkit/sdk-go/internal/rebroadcast"
	"github.com/mintkit/sdk-go/internal/simulate"
	"github.com/mintkit/sdk-go/internal/telemetry"
	waittx "github.com/mintkit/sdk-go/internal/wait-tx"
	"github.com/mintkit/sdk-go/journal"
	"github.com/mintkit/sdk-go/ledger"
	"github.com/mintkit/sdk-go/types"
)

const journalWriteTimeout = 5 * time.Second

// Submitter runs submissions against one network handle.
type Submitter struct {
	net     ledger.Network
	cfg     clientconfig.SubmitConfig
	waiter  *waittx.Waiter
	logger  *zap.Logger
	journal journal.Store
	metrics *telemetry.Recorder
	hook    StateHook
	newID   func() string
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Submitter) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithJournal records every submission in store.
func WithJournal(store journal.Store) Option {
	return func(s *Submitter) {
		if store != nil {
			s.journal = store
		}
	}
}

// WithRecorder sets the telemetry recorder.
func WithRecorder(rec *telemetry.Recorder) Option {
	return func(s *Submitter) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithStateHook registers an observer for state transitions.
func WithStateHook(hook StateHook) Option {
	return func(s *Submitter) { s.hook = hook }
}

// New creates a Submitter. Zero values in cfg take the package defaults.
func New(net ledger.Network, cfg clientconfig.SubmitConfig, opts ...Option) (*Submitter, error) {
	if net == nil {
		return nil, fmt.Errorf("network is required")
	}
	clientconfig.ApplySubmitDefaults(&cfg)

	s := &Submitter{
		net:     net,
		cfg:     cfg,
		logger:  zap.NewNop(),
		journal: journal.Discard{},
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = telemetry.Nop()
	}

	w, err := waittx.New(cfg, net, net, s.logger)
	if err != nil {
		return nil, fmt.Errorf("confirmation watcher: %w", err)
	}
	s.waiter = w
	return s, nil
}

// Submit broadcasts raw and returns its verdict. The configured timeout is
// measured from entry; only the diagnostic simulation may run past it, bounded
// by SimulationTimeout.
func (s *Submitter) Submit(ctx context.Context, raw []byte) types.Outcome {
	dl := deadline.Start(s.cfg.Timeout)
	id := s.newID()
	ctx, span := s.metrics.StartSubmission(ctx, id)
	logger := s.logger.With(zap.String("submission_id", id))

	out := s.run(ctx, id, raw, dl, logger)
	out.SubmissionID = id
	out.Elapsed = dl.Elapsed()

	s.transition(logger, terminalState(out.Kind), out.Signature)
	if out.Signature != "" {
		// The verdict is recorded even when the caller has gone away.
		jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalWriteTimeout)
		if err := s.journal.Put(jctx, journal.FromOutcome(out)); err != nil {
			logger.Warn("journal write failed", zap.Error(err))
		}
		cancel()
	}
	s.metrics.RecordOutcome(ctx, span, out)

	logger.Info("submission finished",
		zap.String("signature", out.Signature.String()),
		zap.Stringer("outcome", out.Kind),
		zap.Uint64("slot", out.Slot),
		zap.String("reason", out.Reason),
		zap.Int("rebroadcasts", out.Rebroadcasts),
		zap.Duration("elapsed", out.Elapsed))
	return out
}

func (s *Submitter) run(ctx context.Context, id string, raw []byte, dl deadline.Deadline, logger *zap.Logger) types.Outcome {
	s.transition(logger, StateBroadcasting, "")
	if len(raw) == 0 {
		return types.Outcome{Kind: types.OutcomeSubmissionFailed, Reason: "empty transaction"}
	}

	sendCtx, cancel := dl.WithContext(ctx)
	sig, err := s.net.SendRawTransaction(sendCtx, raw)
	unanswered := err != nil && (sendCtx.Err() != nil ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled))
	cancel()
	if unanswered {
		// The node may have accepted the bytes before the reply was lost.
		logger.Warn("broadcast unanswered", zap.Error(err))
		return types.Outcome{
			Kind:      types.OutcomeAmbiguous,
			Signature: s.deriveSignature(raw, logger),
			Reason:    fmt.Sprintf("broadcast unanswered: %v", err),
		}
	}
	if err != nil {
		logger.Warn("broadcast failed", zap.Error(err))
		return types.Outcome{Kind: types.OutcomeSubmissionFailed, Reason: err.Error()}
	}
	logger = logger.With(zap.String("signature", sig.String()))
	logger.Info("started awaiting confirmation")

	if err := s.journal.Put(ctx, journal.Record{
		SubmissionID: id,
		Signature:    sig,
		State:        journal.StatePending,
		UpdatedAt:    time.Now().UTC(),
	}); err != nil {
		logger.Warn("journal write failed", zap.Error(err))
	}

	s.transition(logger, StateAwaitingConfirmation, sig)
	rb := rebroadcast.New(s.net, raw, s.cfg.RebroadcastInterval, logger).Start(ctx)
	defer rb.Stop()

	res, err := s.waiter.Wait(ctx, sig, dl)
	out := types.Outcome{Signature: sig, Rebroadcasts: rb.Stop()}

	var rejection *types.RejectionError
	switch {
	case errors.As(err, &rejection):
		out.Kind = types.OutcomeRejected
		out.Err = rejection.Detail
		out.Slot = rejection.Slot
		out.Reason = rejection.Detail.String()
	case err != nil:
		// The caller gave up; the transaction may still land.
		out.Kind = types.OutcomeAmbiguous
		out.Reason = err.Error()
	case res.TimedOut:
		s.diagnose(ctx, raw, &out, logger)
	default:
		out.Kind = types.OutcomeConfirmed
		out.Slot = res.Status.Slot
	}
	return out
}

// deriveSignature computes the signature of raw locally, when the network
// supports it, so an unanswered broadcast can still be re-queried.
func (s *Submitter) deriveSignature(raw []byte, logger *zap.Logger) types.Signature {
	d, ok := s.net.(ledger.SignatureDeriver)
	if !ok {
		return ""
	}
	sig, err := d.DeriveSignature(raw)
	if err != nil {
		logger.Debug("signature derivation failed", zap.Error(err))
		return ""
	}
	return sig
}

func (s *Submitter) diagnose(ctx context.Context, raw []byte, out *types.Outcome, logger *zap.Logger) {
	if !clientconfig.Enabled(s.cfg.SimulateOnTimeout, true) {
		// TimedOut is terminal here; Submit reports it.
		out.Kind = types.OutcomeTimedOut
		out.Reason = types.ErrTimeout.Error()
		return
	}

	s.transition(logger, StateTimedOut, out.Signature)
	s.transition(logger, StateSimulating, out.Signature)
	d := simulate.Diagnose(ctx, s.net, raw, simulate.Options{
		Timeout:          s.cfg.SimulationTimeout,
		ProgramLogPrefix: s.cfg.ProgramLogPrefix,
		Logger:           logger,
	})
	out.Simulation = d.Result
	if d.Verdict == simulate.VerdictFailed {
		out.Kind = types.OutcomeDiagnosedFailure
		out.Reason = d.Reason
		out.Err = d.Result.Err
		return
	}
	out.Kind = types.OutcomeAmbiguous
	out.Reason = d.Reason
}

func (s *Submitter) transition(logger *zap.Logger, state State, sig types.Signature) {
	logger.Debug("submission state", zap.Stringer("state", state))
	if s.hook != nil {
		s.hook(state, sig)
	}
}

// Submit is the one-shot entry point: it builds a Submitter with default
// settings, the given timeout and polling switch, and runs raw through it.
func Submit(ctx context.Context, raw []byte, timeout time.Duration, net ledger.Network, enablePolling bool) types.Outcome {
	cfg := clientconfig.DefaultSubmitConfig()
	cfg.Timeout = timeout
	cfg.EnablePolling = clientconfig.Bool(enablePolling)

	s, err := New(net, cfg)
	if err != nil {
		return types.Outcome{Kind: types.OutcomeSubmissionFailed, Reason: err.Error()}
	}
	return s.Submit(ctx, raw)
}
