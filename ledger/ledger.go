// Package ledger defines the network handle the submission engine rides on.
//
// A Network is passed explicitly to every operation; there is no process-wide
// connection. Adapters live in the solana and cometbft subpackages.
package ledger

import (
	"context"

	"github.com/mintkit/sdk-go/types"
)

// Broadcaster sends raw signed transaction bytes.
//
// Resending bytes that already landed must be harmless: the ledger deduplicates
// by signature.
type Broadcaster interface {
	SendRawTransaction(ctx context.Context, raw []byte) (types.Signature, error)
}

// StatusQuerier fetches signature statuses. A nil entry means the ledger has
// not seen that signature yet.
type StatusQuerier interface {
	GetSignatureStatuses(ctx context.Context, sigs ...types.Signature) ([]*types.ConfirmationStatus, error)
}

// Subscriber opens a push subscription for a single signature.
type Subscriber interface {
	SubscribeSignature(ctx context.Context, sig types.Signature) (Subscription, error)
}

// Subscription delivers status notifications for one signature.
type Subscription interface {
	// Recv blocks until the next notification, ctx cancellation or stream failure.
	Recv(ctx context.Context) (*types.ConfirmationStatus, error)
	// Unsubscribe releases the subscription. It is safe to call more than once.
	Unsubscribe()
}

// Simulator dry-runs a transaction without committing it.
type Simulator interface {
	GetRecentBlockhash(ctx context.Context) (string, error)
	// SimulateTransaction evaluates raw against current state, substituting
	// recentBlockhash when the ledger format carries one.
	SimulateTransaction(ctx context.Context, raw []byte, recentBlockhash string) (*types.SimulationResult, error)
}

// SignatureDeriver computes the signature the ledger will assign to raw
// without contacting it. Networks implement it optionally.
type SignatureDeriver interface {
	DeriveSignature(raw []byte) (types.Signature, error)
}

// Network is the full capability set the submission engine needs.
type Network interface {
	Broadcaster
	StatusQuerier
	Subscriber
	Simulator
}

// Closer is implemented by networks that hold connections.
type Closer interface {
	Close() error
}
