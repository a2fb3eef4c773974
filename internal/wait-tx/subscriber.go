package waittx

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mintkit/sdk-go/ledger"
	"github.com/mintkit/sdk-go/types"
)

type subscriber struct {
	sub    ledger.Subscriber
	logger *zap.Logger
}

func newSubscriber(sub ledger.Subscriber, logger *zap.Logger) Source {
	return &subscriber{sub: sub, logger: logger}
}

func (s *subscriber) Wait(ctx context.Context, sig types.Signature) (Result, error) {
	subscription, err := s.sub.SubscribeSignature(ctx, sig)
	if err != nil {
		return Result{}, fmt.Errorf("subscribe: %w", err)
	}
	defer subscription.Unsubscribe()

	for {
		status, err := subscription.Recv(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("subscription recv: %w", err)
		}
		if status == nil {
			continue
		}
		res := Result{Status: *status, Channel: ChannelSubscription}
		if status.Err != nil {
			s.logger.Info("rejected via subscription",
				zap.String("signature", sig.String()),
				zap.Stringer("error", status.Err))
			return res, &types.RejectionError{Detail: status.Err, Slot: status.Slot}
		}
		s.logger.Info("resolved via subscription",
			zap.String("signature", sig.String()),
			zap.Uint64("slot", status.Slot))
		return res, nil
	}
}
