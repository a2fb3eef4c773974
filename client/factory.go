package client

import (
	"context"
	"fmt"

	"github.com/mintkit/sdk-go/journal"
	"github.com/mintkit/sdk-go/types"
)

// Factory keeps a base configuration and one journal so callers can create
// per-endpoint clients whose submissions can all be re-queried from one place.
type Factory struct {
	baseCfg Config
	journal journal.Store
	close   func() error
}

// NewFactory captures the shared configuration and opens its journal. The base
// config may omit the RPC endpoint; it is supplied per client.
func NewFactory(cfg Config, opts ...Option) (*Factory, error) {
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidConfig, err)
	}
	store, closeFn := openJournal(cfg.Journal)
	return &Factory{
		baseCfg: cfg,
		journal: store,
		close:   closeFn,
	}, nil
}

// ForEndpoint returns a Client bound to rpcEndpoint. Extra options override
// the factory defaults for this instance.
func (f *Factory) ForEndpoint(ctx context.Context, rpcEndpoint string, extraOpts ...Option) (*Client, error) {
	if rpcEndpoint == "" {
		return nil, fmt.Errorf("rpc endpoint is required")
	}

	cfg := f.baseCfg
	cfg.Network.RPCEndpoint = rpcEndpoint
	cfg.Network.WSEndpoint = ""

	return NewWithDeps(ctx, cfg, Deps{Journal: f.journal}, extraOpts...)
}

// Journal returns the store shared by every client of the factory.
func (f *Factory) Journal() journal.Store {
	return f.journal
}

// Close releases the shared journal.
func (f *Factory) Close() error {
	if f.close != nil {
		return f.close()
	}
	return nil
}
