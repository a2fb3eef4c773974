package submit

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mintkit/sdk-go/journal"
	"github.com/mintkit/sdk-go/types"
)

// Requery asks the network once for the current status of sig. It is the
// follow-up for TimedOut and Ambiguous outcomes: a caller should requery
// before re-submitting.
//
// A status the network reports is stored in the journal. When the network
// knows nothing and the journal has no record either, types.ErrNotFound is
// returned.
func (s *Submitter) Requery(ctx context.Context, sig types.Signature) (types.Outcome, error) {
	statuses, err := s.net.GetSignatureStatuses(ctx, sig)
	if err != nil {
		return types.Outcome{}, fmt.Errorf("get signature status: %w", err)
	}

	prev, jerr := s.journal.Get(ctx, sig)
	if jerr != nil && !errors.Is(jerr, types.ErrNotFound) {
		s.logger.Warn("journal read failed", zap.String("signature", sig.String()), zap.Error(jerr))
	}

	var status *types.ConfirmationStatus
	if len(statuses) > 0 {
		status = statuses[0]
	}

	out := types.Outcome{Signature: sig, SubmissionID: prev.SubmissionID}
	switch {
	case status == nil:
		if jerr != nil {
			return types.Outcome{}, types.ErrNotFound
		}
		// Known locally, unknown to the network: nothing changed.
		out.Kind = types.OutcomeAmbiguous
		out.Reason = "signature not found on ledger"
		out.Slot = prev.Slot
		return out, nil
	case status.Failed():
		out.Kind = types.OutcomeRejected
		out.Err = status.Err
		out.Slot = status.Slot
		out.Reason = status.Err.String()
	case status.Confirmed(s.cfg.MinConfirmations):
		out.Kind = types.OutcomeConfirmed
		out.Slot = status.Slot
	default:
		out.Kind = types.OutcomeAmbiguous
		out.Slot = status.Slot
		out.Reason = fmt.Sprintf("seen at slot %d, awaiting confirmation", status.Slot)
	}

	if err := s.journal.Put(ctx, journal.FromOutcome(out)); err != nil {
		s.logger.Warn("journal write failed", zap.String("signature", sig.String()), zap.Error(err))
	}
	return out, nil
}
