// Package solana adapts a Solana JSON-RPC and websocket endpoint to ledger.Network.
package solana

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	bin "github.com/gagliardetto/binary"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/mintkit/sdk-go/ledger"
	"github.com/mintkit/sdk-go/types"
)

// Config holds the connection settings.
type Config struct {
	RPCEndpoint string
	// WSEndpoint defaults to RPCEndpoint with the scheme switched to ws(s).
	WSEndpoint string
	// Commitment for status checks and subscriptions. Default "confirmed".
	Commitment string
	// SimulationCommitment for the diagnostic dry run. Default "processed".
	SimulationCommitment string
	SkipPreflight        bool
	// RequestTimeout bounds a single RPC call when ctx has no earlier deadline.
	RequestTimeout time.Duration
}

// Network talks to one Solana cluster.
type Network struct {
	rpc    *rpc.Client
	cfg    Config
	logger *zap.Logger

	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
}

var (
	_ ledger.Network          = (*Network)(nil)
	_ ledger.Closer           = (*Network)(nil)
	_ ledger.SignatureDeriver = (*Network)(nil)
)

// New creates a Network. No connection is made until the first call.
func New(cfg Config, logger *zap.Logger) (*Network, error) {
	if strings.TrimSpace(cfg.RPCEndpoint) == "" {
		return nil, fmt.Errorf("%w: rpc endpoint is required", types.ErrInvalidConfig)
	}
	if cfg.WSEndpoint == "" {
		cfg.WSEndpoint = WSEndpointFor(cfg.RPCEndpoint)
	}
	if cfg.Commitment == "" {
		cfg.Commitment = string(rpc.CommitmentConfirmed)
	}
	if cfg.SimulationCommitment == "" {
		cfg.SimulationCommitment = string(rpc.CommitmentProcessed)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Network{
		rpc:    rpc.New(cfg.RPCEndpoint),
		cfg:    cfg,
		logger: logger,
		subs:   make(map[*subscription]struct{}),
	}, nil
}

// WSEndpointFor derives the websocket URL serving the same cluster as an RPC URL.
func WSEndpointFor(rpcEndpoint string) string {
	switch {
	case strings.HasPrefix(rpcEndpoint, "https://"):
		return "wss://" + strings.TrimPrefix(rpcEndpoint, "https://")
	case strings.HasPrefix(rpcEndpoint, "http://"):
		return "ws://" + strings.TrimPrefix(rpcEndpoint, "http://")
	default:
		return rpcEndpoint
	}
}

func (n *Network) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if n.cfg.RequestTimeout <= 0 {
		return ctx, func() {}
	}
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < n.cfg.RequestTimeout {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, n.cfg.RequestTimeout)
}

// SendRawTransaction submits raw signed wire bytes.
func (n *Network) SendRawTransaction(ctx context.Context, raw []byte) (types.Signature, error) {
	ctx, cancel := n.withTimeout(ctx)
	defer cancel()

	sig, err := n.rpc.SendRawTransactionWithOpts(ctx, raw, rpc.TransactionOpts{
		SkipPreflight:       n.cfg.SkipPreflight,
		PreflightCommitment: rpc.CommitmentType(n.cfg.Commitment),
	})
	if err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}
	return types.Signature(sig.String()), nil
}

// DeriveSignature returns the fee payer signature of raw, which is the
// signature the cluster identifies the transaction by.
func (n *Network) DeriveSignature(raw []byte) (types.Signature, error) {
	tx, err := sol.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return "", fmt.Errorf("decode transaction: %w", err)
	}
	if len(tx.Signatures) == 0 {
		return "", fmt.Errorf("transaction carries no signature")
	}
	return types.Signature(tx.Signatures[0].String()), nil
}

// GetSignatureStatuses returns one entry per signature; nil when unknown.
func (n *Network) GetSignatureStatuses(ctx context.Context, sigs ...types.Signature) ([]*types.ConfirmationStatus, error) {
	parsed := make([]sol.Signature, len(sigs))
	for i, s := range sigs {
		p, err := sol.SignatureFromBase58(s.String())
		if err != nil {
			return nil, fmt.Errorf("invalid signature %q: %w", s, err)
		}
		parsed[i] = p
	}

	ctx, cancel := n.withTimeout(ctx)
	defer cancel()

	res, err := n.rpc.GetSignatureStatuses(ctx, false, parsed...)
	if err != nil {
		return nil, fmt.Errorf("get signature statuses: %w", err)
	}

	out := make([]*types.ConfirmationStatus, len(sigs))
	for i := range sigs {
		if res == nil || i >= len(res.Value) || res.Value[i] == nil {
			continue
		}
		out[i] = statusFromRPC(res.Value[i])
	}
	return out, nil
}

func statusFromRPC(v *rpc.SignatureStatusesResult) *types.ConfirmationStatus {
	st := &types.ConfirmationStatus{
		Slot: v.Slot,
		Err:  DecodeError(v.Err),
	}
	// The node reports a nil confirmation count once the slot is rooted.
	if v.Confirmations == nil || v.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
		st.Finalized = true
	} else {
		st.Confirmations = *v.Confirmations
	}
	return st
}

// GetRecentBlockhash returns the latest blockhash at the simulation commitment.
func (n *Network) GetRecentBlockhash(ctx context.Context) (string, error) {
	ctx, cancel := n.withTimeout(ctx)
	defer cancel()

	res, err := n.rpc.GetLatestBlockhash(ctx, rpc.CommitmentType(n.cfg.SimulationCommitment))
	if err != nil {
		return "", fmt.Errorf("get latest blockhash: %w", err)
	}
	if res == nil || res.Value == nil {
		return "", fmt.Errorf("get latest blockhash: empty response")
	}
	return res.Value.Blockhash.String(), nil
}

// SimulateTransaction decodes raw, swaps in recentBlockhash and dry-runs it
// with signature verification off.
func (n *Network) SimulateTransaction(ctx context.Context, raw []byte, recentBlockhash string) (*types.SimulationResult, error) {
	tx, err := sol.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	if recentBlockhash != "" {
		hash, err := sol.HashFromBase58(recentBlockhash)
		if err != nil {
			return nil, fmt.Errorf("invalid blockhash %q: %w", recentBlockhash, err)
		}
		tx.Message.RecentBlockhash = hash
	}

	ctx, cancel := n.withTimeout(ctx)
	defer cancel()

	res, err := n.rpc.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
		SigVerify:  false,
		Commitment: rpc.CommitmentType(n.cfg.SimulationCommitment),
	})
	if err != nil {
		return nil, fmt.Errorf("simulate transaction: %w", err)
	}
	if res == nil || res.Value == nil {
		return nil, fmt.Errorf("simulate transaction: empty response")
	}
	return &types.SimulationResult{
		Slot:          res.Context.Slot,
		Err:           DecodeError(res.Value.Err),
		Logs:          res.Value.Logs,
		UnitsConsumed: res.Value.UnitsConsumed,
	}, nil
}

// Close releases every open subscription.
func (n *Network) Close() error {
	n.mu.Lock()
	n.closed = true
	subs := make([]*subscription, 0, len(n.subs))
	for s := range n.subs {
		subs = append(subs, s)
	}
	n.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
	n.rpc.Close()
	return nil
}
