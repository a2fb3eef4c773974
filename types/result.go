package types

import (
	"fmt"
	"time"
)

// OutcomeKind tags the terminal state of a submission.
type OutcomeKind int

const (
	// OutcomeConfirmed means a confirmation channel observed the transaction land.
	OutcomeConfirmed OutcomeKind = iota
	// OutcomeSubmissionFailed means the first broadcast could not be sent.
	OutcomeSubmissionFailed
	// OutcomeRejected means a confirmation channel observed an explicit ledger error.
	OutcomeRejected
	// OutcomeDiagnosedFailure means the watcher timed out and simulation explained why.
	OutcomeDiagnosedFailure
	// OutcomeTimedOut means the watcher timed out and no simulation was run.
	OutcomeTimedOut
	// OutcomeAmbiguous means the watcher timed out and simulation was inconclusive.
	OutcomeAmbiguous
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeSubmissionFailed:
		return "submission_failed"
	case OutcomeRejected:
		return "rejected"
	case OutcomeDiagnosedFailure:
		return "diagnosed_failure"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeAmbiguous:
		return "ambiguous"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the single verdict of a submission.
type Outcome struct {
	Kind         OutcomeKind
	SubmissionID string
	Signature    Signature
	Slot         uint64
	// Reason is the human readable failure reason, empty on success.
	Reason string
	// Err is the ledger error for Rejected and DiagnosedFailure outcomes.
	Err *ErrorDetail
	// Simulation is set whenever the fallback simulation ran to completion.
	Simulation   *SimulationResult
	Elapsed      time.Duration
	Rebroadcasts int
}

// RetrySafe reports whether another attempt cannot double-submit.
func (o Outcome) RetrySafe() bool {
	switch o.Kind {
	case OutcomeSubmissionFailed, OutcomeRejected, OutcomeDiagnosedFailure:
		return true
	default:
		return false
	}
}

// RequiresRequery reports whether the ledger must be re-queried before a retry.
func (o Outcome) RequiresRequery() bool {
	return o.Kind == OutcomeTimedOut || o.Kind == OutcomeAmbiguous
}

// AsError maps the outcome onto the package sentinels; nil when confirmed.
func (o Outcome) AsError() error {
	switch o.Kind {
	case OutcomeConfirmed:
		return nil
	case OutcomeSubmissionFailed:
		return fmt.Errorf("%w: %s", ErrSubmission, o.Reason)
	case OutcomeRejected, OutcomeDiagnosedFailure:
		if o.Reason == "" {
			return ErrOnChainRejection
		}
		return fmt.Errorf("%w: %s", ErrOnChainRejection, o.Reason)
	case OutcomeTimedOut:
		return ErrTimeout
	default:
		if o.Reason == "" {
			return ErrAmbiguous
		}
		return fmt.Errorf("%w: %s", ErrAmbiguous, o.Reason)
	}
}
