package submit

import (
	"fmt"

	"github.com/mintkit/sdk-go/types"
)

// State is a step of the submission state machine:
//
//	Broadcasting → AwaitingConfirmation → Confirmed | Rejected
//	                                    → TimedOut → Simulating → DiagnosedFailure | Ambiguous
//	Broadcasting → SubmissionFailed
type State int

const (
	StateBroadcasting State = iota
	StateAwaitingConfirmation
	StateTimedOut
	StateSimulating
	StateConfirmed
	StateRejected
	StateSubmissionFailed
	StateDiagnosedFailure
	StateAmbiguous
)

func (s State) String() string {
	switch s {
	case StateBroadcasting:
		return "broadcasting"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	case StateTimedOut:
		return "timed_out"
	case StateSimulating:
		return "simulating"
	case StateConfirmed:
		return "confirmed"
	case StateRejected:
		return "rejected"
	case StateSubmissionFailed:
		return "submission_failed"
	case StateDiagnosedFailure:
		return "diagnosed_failure"
	case StateAmbiguous:
		return "ambiguous"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no transition leaves s. StateTimedOut is reported
// as non-terminal even though it ends submissions that skip simulation.
func (s State) Terminal() bool {
	return s >= StateConfirmed
}

// terminalState maps an outcome onto its final state.
func terminalState(k types.OutcomeKind) State {
	switch k {
	case types.OutcomeConfirmed:
		return StateConfirmed
	case types.OutcomeRejected:
		return StateRejected
	case types.OutcomeSubmissionFailed:
		return StateSubmissionFailed
	case types.OutcomeDiagnosedFailure:
		return StateDiagnosedFailure
	case types.OutcomeTimedOut:
		return StateTimedOut
	default:
		return StateAmbiguous
	}
}

// StateHook observes state transitions, e.g. to drive "sending…/sent" UI
// messages. sig is empty until the first broadcast succeeded. Hooks run on
// the submitting goroutine and must not block.
type StateHook func(state State, sig types.Signature)
