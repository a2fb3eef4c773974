package submit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mintkit/sdk-go/ledger"
	"github.com/mintkit/sdk-go/types"
)

// stubNetwork is a scriptable ledger.Network.
type stubNetwork struct {
	sig types.Signature

	mu        sync.Mutex
	sendErr   error // returned by the first send only
	sendHangs bool  // the first send waits for its ctx to end
	derived   types.Signature
	sends     int
	polls     int
	subs      int
	simulated int
	statuses  []*types.ConfirmationStatus // successive poll answers, the last one repeats

	push         *types.ConfirmationStatus
	pushAfter    time.Duration
	subscribeErr error
	unsubscribed atomic.Int32

	blockhashErr error
	sim          *types.SimulationResult
	simErr       error
	simDelay     time.Duration
}

var _ ledger.Network = (*stubNetwork)(nil)

func newStubNetwork() *stubNetwork {
	return &stubNetwork{sig: "5sig"}
}

func (n *stubNetwork) SendRawTransaction(ctx context.Context, raw []byte) (types.Signature, error) {
	n.mu.Lock()
	n.sends++
	first, hangs, sendErr := n.sends == 1, n.sendHangs, n.sendErr
	n.mu.Unlock()
	if first && hangs {
		<-ctx.Done()
		return "", fmt.Errorf("post sendTransaction: %w", ctx.Err())
	}
	if first && sendErr != nil {
		return "", sendErr
	}
	return n.sig, nil
}

func (n *stubNetwork) DeriveSignature(raw []byte) (types.Signature, error) {
	if n.derived == "" {
		return "", errors.New("not derivable")
	}
	return n.derived, nil
}

func (n *stubNetwork) GetSignatureStatuses(ctx context.Context, sigs ...types.Signature) ([]*types.ConfirmationStatus, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.polls++
	if len(n.statuses) == 0 {
		return []*types.ConfirmationStatus{nil}, nil
	}
	idx := n.polls - 1
	if idx >= len(n.statuses) {
		idx = len(n.statuses) - 1
	}
	return []*types.ConfirmationStatus{n.statuses[idx]}, nil
}

func (n *stubNetwork) SubscribeSignature(ctx context.Context, sig types.Signature) (ledger.Subscription, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs++
	if n.subscribeErr != nil {
		return nil, n.subscribeErr
	}
	return &stubSubscription{net: n}, nil
}

func (n *stubNetwork) GetRecentBlockhash(ctx context.Context) (string, error) {
	if n.blockhashErr != nil {
		return "", n.blockhashErr
	}
	return "FreshBlockhash1111111111111111111111111111111", nil
}

func (n *stubNetwork) SimulateTransaction(ctx context.Context, raw []byte, recentBlockhash string) (*types.SimulationResult, error) {
	n.mu.Lock()
	n.simulated++
	n.mu.Unlock()
	if n.simDelay > 0 {
		t := time.NewTimer(n.simDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	return n.sim, n.simErr
}

func (n *stubNetwork) counts() (sends, polls, subs, simulated int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sends, n.polls, n.subs, n.simulated
}

func (n *stubNetwork) setStatuses(statuses ...*types.ConfirmationStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = statuses
	n.polls = 0
}

type stubSubscription struct {
	net       *stubNetwork
	delivered bool
}

func (s *stubSubscription) Recv(ctx context.Context) (*types.ConfirmationStatus, error) {
	if s.net.push == nil || s.delivered {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	t := time.NewTimer(s.net.pushAfter)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
		s.delivered = true
		return s.net.push, nil
	}
}

func (s *stubSubscription) Unsubscribe() { s.net.unsubscribed.Add(1) }
