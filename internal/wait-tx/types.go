package waittx

import (
	"context"
	"time"

	"github.com/mintkit/sdk-go/types"
)

// Channel names the path that resolved a wait.
type Channel string

const (
	ChannelSubscription Channel = "subscription"
	ChannelPoll         Channel = "poll"
	ChannelDeadline     Channel = "deadline"
)

// Result represents the outcome produced by waiting on a tx.
type Result struct {
	// Status is the last status observed before resolution.
	Status   types.ConfirmationStatus
	Channel  Channel
	TimedOut bool
}

// Source abstracts a tx wait mechanism (poller, subscriber, etc).
//
// Wait returns a nil error once the transaction is confirmed and a
// *types.RejectionError when the ledger reports a failure. Any other error
// means the source gave up without a verdict.
type Source interface {
	Wait(ctx context.Context, sig types.Signature) (Result, error)
}

// Backoff controls polling cadence.
type Backoff interface {
	Next(attempt int) time.Duration
}
