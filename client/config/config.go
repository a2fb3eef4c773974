package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	sdklog "github.com/mintkit/sdk-go/pkg/log"
)

// Network kinds understood by the client.
const (
	NetworkSolana   = "solana"
	NetworkCometBFT = "cometbft"
)

// Config holds all configuration for the mintkit client.
type Config struct {
	Network   NetworkConfig   `yaml:"network"`
	Submit    SubmitConfig    `yaml:"submit"`
	Journal   JournalConfig   `yaml:"journal"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// LogLevel is used when no logger is injected.
	LogLevel string `yaml:"log_level"`

	// Logger is optional; when set, SDK operations emit diagnostics through it.
	Logger sdklog.Logger `yaml:"-"`
}

// NetworkConfig selects and addresses the ledger.
type NetworkConfig struct {
	Kind string `yaml:"kind"`

	// RPCEndpoint is the JSON-RPC endpoint (Solana) or CometBFT RPC address.
	RPCEndpoint string `yaml:"rpc_endpoint"`
	// WSEndpoint is the Solana websocket endpoint. Derived from RPCEndpoint when empty.
	WSEndpoint string `yaml:"ws_endpoint"`
	// GRPCEndpoint is the Cosmos gRPC endpoint used for simulation (cometbft only).
	GRPCEndpoint string `yaml:"grpc_endpoint"`
	InsecureGRPC bool   `yaml:"insecure_grpc"`

	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxRecvMsgSize int           `yaml:"max_recv_msg_size"`
	MaxSendMsgSize int           `yaml:"max_send_msg_size"`
}

// SubmitConfig controls broadcast, rebroadcast and confirmation behaviour.
type SubmitConfig struct {
	// Timeout is the hard ceiling on awaiting confirmation, measured from submission start.
	Timeout time.Duration `yaml:"timeout"`
	// RebroadcastInterval is the resend cadence of the raw transaction.
	RebroadcastInterval time.Duration `yaml:"rebroadcast_interval"`
	// EnablePolling turns on the status polling channel next to the subscription.
	EnablePolling *bool `yaml:"enable_polling"`
	// MinConfirmations is the threshold the polling channel waits for (finalized always counts).
	MinConfirmations uint64 `yaml:"min_confirmations"`
	// Commitment used for the subscription and status queries.
	Commitment string `yaml:"commitment"`
	// SkipPreflight disables node-side simulation on broadcast.
	SkipPreflight *bool `yaml:"skip_preflight"`

	// PollInterval controls how frequently the poller queries signature status.
	PollInterval time.Duration `yaml:"poll_interval"`
	// PollMaxRetries limits the number of poll attempts (0 => unlimited until the deadline).
	PollMaxRetries int `yaml:"poll_max_retries"`
	// PollBackoffMultiplier > 1 enables exponential growth for poll intervals.
	PollBackoffMultiplier float64 `yaml:"poll_backoff_multiplier"`
	// PollBackoffMaxInterval caps the exponential backoff delay (0 => unlimited).
	PollBackoffMaxInterval time.Duration `yaml:"poll_backoff_max_interval"`
	// PollBackoffJitter randomizes delays (0..1) to avoid synced retries.
	PollBackoffJitter float64 `yaml:"poll_backoff_jitter"`

	// SimulateOnTimeout runs the diagnostic simulation after a timeout.
	SimulateOnTimeout *bool `yaml:"simulate_on_timeout"`
	// SimulationTimeout bounds the diagnostic simulation after the deadline.
	SimulationTimeout time.Duration `yaml:"simulation_timeout"`
	// SimulationCommitment is the commitment the simulation runs against.
	SimulationCommitment string `yaml:"simulation_commitment"`
	// ProgramLogPrefix marks simulation log lines that carry a program message.
	ProgramLogPrefix string `yaml:"program_log_prefix"`
}

// JournalConfig selects where submission records are kept.
type JournalConfig struct {
	// Backend is "memory" (default), "redis" or "none".
	Backend   string        `yaml:"backend"`
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// TelemetryConfig names the OpenTelemetry instrumentation scope.
type TelemetryConfig struct {
	InstrumentationName string `yaml:"instrumentation_name"`
}

// Validate checks if the configuration is valid and populates defaults.
func (c *Config) Validate() error {
	switch c.Network.Kind {
	case "":
		c.Network.Kind = NetworkSolana
	case NetworkSolana, NetworkCometBFT:
	default:
		return fmt.Errorf("unknown network kind %q", c.Network.Kind)
	}
	if c.Network.RPCEndpoint == "" {
		return fmt.Errorf("rpc_endpoint is required")
	}
	if c.Network.Kind == NetworkCometBFT && c.Network.GRPCEndpoint == "" {
		return fmt.Errorf("grpc_endpoint is required for cometbft networks")
	}
	return c.Normalize()
}

// Normalize validates and defaults everything except the network endpoints,
// for callers that bring their own ledger.Network.
func (c *Config) Normalize() error {
	if c.Network.RequestTimeout == 0 {
		c.Network.RequestTimeout = 10 * time.Second
	}
	if c.Network.MaxRecvMsgSize == 0 {
		c.Network.MaxRecvMsgSize = 1024 * 1024 * 10 // 10MB
	}
	if c.Network.MaxSendMsgSize == 0 {
		c.Network.MaxSendMsgSize = 1024 * 1024 * 10 // 10MB
	}
	switch c.Journal.Backend {
	case "":
		c.Journal.Backend = "memory"
	case "memory", "none":
	case "redis":
		if c.Journal.RedisAddr == "" {
			return fmt.Errorf("redis_addr is required for the redis journal")
		}
	default:
		return fmt.Errorf("unknown journal backend %q", c.Journal.Backend)
	}
	if c.Journal.KeyPrefix == "" {
		c.Journal.KeyPrefix = "mintkit:tx:"
	}
	if c.Journal.TTL == 0 {
		c.Journal.TTL = 24 * time.Hour
	}
	if c.Telemetry.InstrumentationName == "" {
		c.Telemetry.InstrumentationName = "github.com/mintkit/sdk-go"
	}
	ApplySubmitDefaults(&c.Submit)

	return nil
}

// Default returns a configuration with sensible defaults for devnet.
func Default() Config {
	return Config{
		Network: NetworkConfig{
			Kind:           NetworkSolana,
			RPCEndpoint:    "https://api.devnet.solana.com",
			RequestTimeout: 10 * time.Second,
			MaxRecvMsgSize: 1024 * 1024 * 10,
			MaxSendMsgSize: 1024 * 1024 * 10,
		},
		Submit: DefaultSubmitConfig(),
		Journal: JournalConfig{
			Backend:   "memory",
			KeyPrefix: "mintkit:tx:",
			TTL:       24 * time.Hour,
		},
		Telemetry: TelemetryConfig{InstrumentationName: "github.com/mintkit/sdk-go"},
	}
}

// DefaultSubmitConfig returns recommended defaults for submission behaviour.
func DefaultSubmitConfig() SubmitConfig {
	return SubmitConfig{
		Timeout:                30 * time.Second,
		RebroadcastInterval:    500 * time.Millisecond,
		EnablePolling:          Bool(true),
		MinConfirmations:       1,
		Commitment:             "confirmed",
		SkipPreflight:          Bool(true),
		PollInterval:           2 * time.Second,
		PollMaxRetries:         0,
		PollBackoffMultiplier:  1,
		PollBackoffMaxInterval: 0,
		PollBackoffJitter:      0,
		SimulateOnTimeout:      Bool(true),
		SimulationTimeout:      5 * time.Second,
		SimulationCommitment:   "processed",
		ProgramLogPrefix:       "Program log: ",
	}
}

// ApplySubmitDefaults normalizes zero or negative values using defaults.
func ApplySubmitDefaults(cfg *SubmitConfig) {
	if cfg == nil {
		return
	}
	def := DefaultSubmitConfig()

	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RebroadcastInterval <= 0 {
		cfg.RebroadcastInterval = def.RebroadcastInterval
	}
	if cfg.EnablePolling == nil {
		cfg.EnablePolling = def.EnablePolling
	}
	if cfg.MinConfirmations == 0 {
		cfg.MinConfirmations = def.MinConfirmations
	}
	if cfg.Commitment == "" {
		cfg.Commitment = def.Commitment
	}
	if cfg.SkipPreflight == nil {
		cfg.SkipPreflight = def.SkipPreflight
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.PollMaxRetries < 0 {
		cfg.PollMaxRetries = 0
	}
	if cfg.PollBackoffMultiplier <= 0 {
		cfg.PollBackoffMultiplier = def.PollBackoffMultiplier
	}
	if cfg.PollBackoffMaxInterval < 0 {
		cfg.PollBackoffMaxInterval = 0
	}
	if cfg.PollBackoffJitter < 0 {
		cfg.PollBackoffJitter = 0
	}
	if cfg.SimulateOnTimeout == nil {
		cfg.SimulateOnTimeout = def.SimulateOnTimeout
	}
	if cfg.SimulationTimeout <= 0 {
		cfg.SimulationTimeout = def.SimulationTimeout
	}
	if cfg.SimulationCommitment == "" {
		cfg.SimulationCommitment = def.SimulationCommitment
	}
	if cfg.ProgramLogPrefix == "" {
		cfg.ProgramLogPrefix = def.ProgramLogPrefix
	}
}

// Load reads a YAML config file on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Bool returns a pointer to b, for the optional switches in SubmitConfig.
func Bool(b bool) *bool { return &b }

// Enabled dereferences an optional switch, treating nil as fallback.
func Enabled(b *bool, fallback bool) bool {
	if b == nil {
		return fallback
	}
	return *b
}
