package client

import (
	"time"

	clientconfig "github.com/mintkit/sdk-go/client/config"
	sdklog "github.com/mintkit/sdk-go/pkg/log"
)

// Option is a function that modifies Config
type Option func(*Config)

// WithNetworkKind selects the ledger adapter ("solana" or "cometbft").
func WithNetworkKind(kind string) Option {
	return func(c *Config) {
		c.Network.Kind = kind
	}
}

// WithRPCEndpoint sets the RPC endpoint
func WithRPCEndpoint(endpoint string) Option {
	return func(c *Config) {
		c.Network.RPCEndpoint = endpoint
	}
}

// WithWSEndpoint sets the websocket endpoint
func WithWSEndpoint(endpoint string) Option {
	return func(c *Config) {
		c.Network.WSEndpoint = endpoint
	}
}

// WithGRPCAddr sets the gRPC address
func WithGRPCAddr(addr string) Option {
	return func(c *Config) {
		c.Network.GRPCEndpoint = addr
	}
}

// WithTimeout sets the confirmation timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Submit.Timeout = timeout
	}
}

// WithRebroadcastInterval sets the resend cadence
func WithRebroadcastInterval(interval time.Duration) Option {
	return func(c *Config) {
		c.Submit.RebroadcastInterval = interval
	}
}

// WithPolling turns the status polling channel on or off
func WithPolling(enabled bool) Option {
	return func(c *Config) {
		c.Submit.EnablePolling = clientconfig.Bool(enabled)
	}
}

// WithMinConfirmations sets the polling confirmation threshold
func WithMinConfirmations(n uint64) Option {
	return func(c *Config) {
		c.Submit.MinConfirmations = n
	}
}

// WithSimulateOnTimeout turns the post-timeout simulation on or off
func WithSimulateOnTimeout(enabled bool) Option {
	return func(c *Config) {
		c.Submit.SimulateOnTimeout = clientconfig.Bool(enabled)
	}
}

// WithJournalBackend selects "memory", "redis" or "none"
func WithJournalBackend(backend string) Option {
	return func(c *Config) {
		c.Journal.Backend = backend
	}
}

// WithRedisJournal keeps submission records in Redis
func WithRedisJournal(addr string, db int) Option {
	return func(c *Config) {
		c.Journal.Backend = "redis"
		c.Journal.RedisAddr = addr
		c.Journal.RedisDB = db
	}
}

// WithMaxMessageSize sets both send and receive message sizes
func WithMaxMessageSize(size int) Option {
	return func(c *Config) {
		c.Network.MaxRecvMsgSize = size
		c.Network.MaxSendMsgSize = size
	}
}

// WithLogger routes SDK diagnostics through a Printf-style logger
func WithLogger(logger sdklog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithLogLevel sets the log level
func WithLogLevel(level string) Option {
	return func(c *Config) {
		c.LogLevel = level
	}
}
