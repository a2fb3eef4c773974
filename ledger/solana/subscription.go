package solana

import (
	"context"
	"fmt"
	"sync"

	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"go.uber.org/zap"

	"github.com/mintkit/sdk-go/ledger"
	"github.com/mintkit/sdk-go/types"
)

// subscription owns a websocket connection dedicated to one signature.
type subscription struct {
	net    *Network
	client *ws.Client
	sub    *ws.SignatureSubscription
	once   sync.Once
}

// SubscribeSignature opens a signatureSubscribe stream at the configured
// commitment. The node sends a single notification once that commitment is
// reached.
func (n *Network) SubscribeSignature(ctx context.Context, sig types.Signature) (ledger.Subscription, error) {
	parsed, err := sol.SignatureFromBase58(sig.String())
	if err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", sig, err)
	}

	n.mu.Lock()
	closed := n.closed
	n.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("network closed")
	}

	client, err := ws.Connect(ctx, n.cfg.WSEndpoint)
	if err != nil {
		return nil, fmt.Errorf("connect websocket %s: %w", n.cfg.WSEndpoint, err)
	}
	sub, err := client.SignatureSubscribe(parsed, rpc.CommitmentType(n.cfg.Commitment))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("signature subscribe: %w", err)
	}

	s := &subscription{net: n, client: client, sub: sub}
	n.mu.Lock()
	n.subs[s] = struct{}{}
	n.mu.Unlock()
	n.logger.Debug("signature subscription opened", zap.String("signature", sig.String()))
	return s, nil
}

func (s *subscription) Recv(ctx context.Context) (*types.ConfirmationStatus, error) {
	got, err := s.sub.Recv(ctx)
	if err != nil {
		return nil, err
	}
	if got == nil {
		return nil, nil
	}
	st := &types.ConfirmationStatus{
		Slot: got.Context.Slot,
		Err:  DecodeError(got.Value.Err),
	}
	if rpc.CommitmentType(s.net.cfg.Commitment) == rpc.CommitmentFinalized {
		st.Finalized = true
	} else {
		st.Confirmations = 1
	}
	return st, nil
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.sub.Unsubscribe()
		s.client.Close()
		s.net.mu.Lock()
		delete(s.net.subs, s)
		s.net.mu.Unlock()
	})
}
