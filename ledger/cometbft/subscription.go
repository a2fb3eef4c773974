package cometbft

import (
	"context"
	"fmt"
	"sync"
	"time"

	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	ctypes "github.com/cometbft/cometbft/rpc/core/types"
	tmtypes "github.com/cometbft/cometbft/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mintkit/sdk-go/ledger"
	"github.com/mintkit/sdk-go/types"
)

const unsubscribeTimeout = 5 * time.Second

type subscription struct {
	net        *Network
	client     *rpchttp.HTTP
	subscriber string
	query      string
	events     <-chan ctypes.ResultEvent
	once       sync.Once
}

// SubscribeSignature subscribes to the Tx event of one hash over the CometBFT
// websocket. Each subscription owns its websocket client.
func (n *Network) SubscribeSignature(ctx context.Context, sig types.Signature) (ledger.Subscription, error) {
	if n.cfg.RPCEndpoint == "" {
		return nil, fmt.Errorf("no rpc endpoint configured for subscriptions")
	}
	client, err := rpchttp.New(n.cfg.RPCEndpoint, "/websocket")
	if err != nil {
		return nil, fmt.Errorf("tm client init: %w", err)
	}
	if err := client.Start(); err != nil {
		return nil, fmt.Errorf("tm client start: %w", err)
	}

	s := &subscription{
		net:        n,
		client:     client,
		subscriber: "mintkit-" + uuid.NewString(),
		query:      TxQuery(sig),
	}
	s.events, err = client.Subscribe(ctx, s.subscriber, s.query)
	if err != nil {
		_ = client.Stop()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	n.mu.Lock()
	n.subs[s] = struct{}{}
	n.mu.Unlock()
	n.logger.Debug("tx subscription opened", zap.String("query", s.query))
	return s, nil
}

// TxQuery is the event query matching the Tx event of sig.
func TxQuery(sig types.Signature) string {
	return fmt.Sprintf("tm.event='Tx' AND tx.hash='%s'", normalizeHash(sig))
}

func (s *subscription) Recv(ctx context.Context) (*types.ConfirmationStatus, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case ev, ok := <-s.events:
		if !ok {
			return nil, fmt.Errorf("subscription closed")
		}
		txev, ok := ev.Data.(tmtypes.EventDataTx)
		if !ok {
			return nil, nil
		}
		st := &types.ConfirmationStatus{
			Slot:          uint64(txev.Height),
			Confirmations: 1,
			Finalized:     true,
		}
		if res := txev.Result; res.Code != 0 {
			st.Err = errorDetail(res.Codespace, res.Code, res.Log)
		}
		return st, nil
	}
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), unsubscribeTimeout)
		defer cancel()
		_ = s.client.Unsubscribe(ctx, s.subscriber, s.query)
		_ = s.client.Stop()
		s.net.mu.Lock()
		delete(s.net.subs, s)
		s.net.mu.Unlock()
	})
}
