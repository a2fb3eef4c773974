package client

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	clientconfig "github.com/mintkit/sdk-go/client/config"
	"github.com/mintkit/sdk-go/internal/telemetry"
	"github.com/mintkit/sdk-go/journal"
	"github.com/mintkit/sdk-go/ledger"
	"github.com/mintkit/sdk-go/ledger/cometbft"
	"github.com/mintkit/sdk-go/ledger/solana"
	sdklog "github.com/mintkit/sdk-go/pkg/log"
	"github.com/mintkit/sdk-go/submit"
	"github.com/mintkit/sdk-go/types"
)

// Client submits transactions to one ledger and remembers what it sent.
type Client struct {
	Network ledger.Network
	Journal journal.Store

	submitter *submit.Submitter
	recorder  *telemetry.Recorder
	config    *Config
	logger    *zap.Logger
	closers   []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// Deps injects prebuilt components. Nil fields are built from the config;
// injected ones are not closed by Client.Close.
type Deps struct {
	Network ledger.Network
	Journal journal.Store
	Logger  *zap.Logger
}

// New creates a client, connecting to the network described by cfg.
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	return NewWithDeps(ctx, cfg, Deps{}, opts...)
}

// NewWithDeps creates a client around the given components.
func NewWithDeps(ctx context.Context, cfg Config, deps Deps, opts ...Option) (*Client, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	validate := cfg.Validate
	if deps.Network != nil {
		validate = cfg.Normalize
	}
	if err := validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidConfig, err)
	}

	logger := deps.Logger
	if logger == nil {
		l, err := buildLogger(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrInvalidConfig, err)
		}
		logger = l
	}

	c := &Client{config: &cfg, logger: logger}

	c.Network = deps.Network
	if c.Network == nil {
		net, err := dialNetwork(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize network: %w", err)
		}
		c.Network = net
		if closer, ok := net.(ledger.Closer); ok {
			c.closers = append(c.closers, namedCloser{"network", closer.Close})
		}
	}

	c.Journal = deps.Journal
	if c.Journal == nil {
		store, closeFn := openJournal(cfg.Journal)
		c.Journal = store
		if closeFn != nil {
			c.closers = append(c.closers, namedCloser{"journal", closeFn})
		}
	}

	rec, err := telemetry.New(telemetry.WithInstrumentationName(cfg.Telemetry.InstrumentationName))
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	c.recorder = rec

	c.submitter, err = c.newSubmitter(nil)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	logger.Debug("client ready",
		zap.String("network", cfg.Network.Kind),
		zap.String("journal", cfg.Journal.Backend),
		zap.Duration("timeout", cfg.Submit.Timeout))
	return c, nil
}

func (c *Client) newSubmitter(hook submit.StateHook) (*submit.Submitter, error) {
	s, err := submit.New(c.Network, c.config.Submit,
		submit.WithLogger(c.logger),
		submit.WithJournal(c.Journal),
		submit.WithRecorder(c.recorder),
		submit.WithStateHook(hook),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize submitter: %w", err)
	}
	return s, nil
}

func buildLogger(cfg Config) (*zap.Logger, error) {
	if cfg.Logger != nil {
		level := zapcore.InfoLevel
		if cfg.LogLevel != "" {
			l, err := zapcore.ParseLevel(cfg.LogLevel)
			if err != nil {
				return nil, fmt.Errorf("parse log level %q: %w", cfg.LogLevel, err)
			}
			level = l
		}
		return sdklog.FromPrintf(cfg.Logger, level), nil
	}
	if cfg.LogLevel != "" {
		return sdklog.New(sdklog.Options{Level: cfg.LogLevel})
	}
	return zap.NewNop(), nil
}

func dialNetwork(cfg Config, logger *zap.Logger) (ledger.Network, error) {
	nc := cfg.Network
	switch nc.Kind {
	case clientconfig.NetworkCometBFT:
		return cometbft.New(cometbft.Config{
			GRPCAddr:       nc.GRPCEndpoint,
			RPCEndpoint:    nc.RPCEndpoint,
			InsecureGRPC:   nc.InsecureGRPC,
			MaxRecvMsgSize: nc.MaxRecvMsgSize,
			MaxSendMsgSize: nc.MaxSendMsgSize,
			RequestTimeout: nc.RequestTimeout,
		}, logger)
	default:
		return solana.New(solana.Config{
			RPCEndpoint:          nc.RPCEndpoint,
			WSEndpoint:           nc.WSEndpoint,
			Commitment:           cfg.Submit.Commitment,
			SimulationCommitment: cfg.Submit.SimulationCommitment,
			SkipPreflight:        clientconfig.Enabled(cfg.Submit.SkipPreflight, true),
			RequestTimeout:       nc.RequestTimeout,
		}, logger)
	}
}

func openJournal(jc clientconfig.JournalConfig) (journal.Store, func() error) {
	switch jc.Backend {
	case "redis":
		store := journal.NewRedisStore(jc.RedisAddr, jc.RedisDB, jc.KeyPrefix, jc.TTL)
		return store, store.Close
	case "none":
		return journal.Discard{}, nil
	default:
		return journal.NewMemoryStore(), nil
	}
}

// Submit broadcasts raw and waits for its verdict.
func (c *Client) Submit(ctx context.Context, raw []byte) types.Outcome {
	return c.submitter.Submit(ctx, raw)
}

// SubmitWithHook is Submit reporting every state transition to hook.
func (c *Client) SubmitWithHook(ctx context.Context, raw []byte, hook submit.StateHook) types.Outcome {
	s, err := c.newSubmitter(hook)
	if err != nil {
		return types.Outcome{Kind: types.OutcomeSubmissionFailed, Reason: err.Error()}
	}
	return s.Submit(ctx, raw)
}

// Requery asks the ledger for the current status of sig, e.g. after an
// ambiguous outcome, and updates the journal.
func (c *Client) Requery(ctx context.Context, sig types.Signature) (types.Outcome, error) {
	return c.submitter.Requery(ctx, sig)
}

// Close releases all resources
func (c *Client) Close() error {
	var errs []error
	for _, cl := range c.closers {
		if err := cl.close(); err != nil {
			errs = append(errs, fmt.Errorf("%s close: %w", cl.name, err))
		}
	}
	c.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// Config returns the client configuration
func (c *Client) Config() Config {
	return *c.config
}

// Logger returns the client logger.
func (c *Client) Logger() *zap.Logger {
	return c.logger
}
