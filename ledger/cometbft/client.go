// Package cometbft adapts a Cosmos SDK chain running on CometBFT to
// ledger.Network: the tx gRPC service for broadcast, lookup and simulation,
// and the CometBFT websocket for event subscriptions.
package cometbft

import (
	"fmt"
	"strings"
	"sync"
	"time"

	cmtservice "cosmossdk.io/api/cosmos/base/tendermint/v1beta1"
	txtypes "cosmossdk.io/api/cosmos/tx/v1beta1"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/mintkit/sdk-go/ledger"
	"github.com/mintkit/sdk-go/types"
)

// Config holds chain connection settings.
type Config struct {
	GRPCAddr string
	// RPCEndpoint is the CometBFT RPC address serving /websocket. Without it
	// no subscription can be opened and confirmation relies on polling.
	RPCEndpoint    string
	InsecureGRPC   bool
	MaxRecvMsgSize int
	MaxSendMsgSize int
	RequestTimeout time.Duration
}

// Network is a ledger.Network backed by one gRPC connection.
type Network struct {
	conn   *grpc.ClientConn
	tx     txtypes.ServiceClient
	node   cmtservice.ServiceClient
	cfg    Config
	logger *zap.Logger

	mu   sync.Mutex
	subs map[*subscription]struct{}
}

var (
	_ ledger.Network          = (*Network)(nil)
	_ ledger.Closer           = (*Network)(nil)
	_ ledger.SignatureDeriver = (*Network)(nil)
)

// New dials cfg.GRPCAddr. TLS is used for remote hosts unless InsecureGRPC is set.
func New(cfg Config, logger *zap.Logger) (*Network, error) {
	if strings.TrimSpace(cfg.GRPCAddr) == "" {
		return nil, fmt.Errorf("%w: grpc address is required", types.ErrInvalidConfig)
	}

	var creds credentials.TransportCredentials
	if shouldUseTLS(cfg.GRPCAddr) && !cfg.InsecureGRPC {
		creds = credentials.NewTLS(nil)
	} else {
		creds = insecure.NewCredentials()
	}

	callOpts := []grpc.CallOption{}
	if cfg.MaxRecvMsgSize > 0 {
		callOpts = append(callOpts, grpc.MaxCallRecvMsgSize(cfg.MaxRecvMsgSize))
	}
	if cfg.MaxSendMsgSize > 0 {
		callOpts = append(callOpts, grpc.MaxCallSendMsgSize(cfg.MaxSendMsgSize))
	}
	conn, err := grpc.NewClient(cfg.GRPCAddr,
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(callOpts...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to gRPC: %w", err)
	}
	return NewWithConn(conn, cfg, logger), nil
}

// NewWithConn wraps an existing connection. Close closes conn.
func NewWithConn(conn *grpc.ClientConn, cfg Config, logger *zap.Logger) *Network {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Network{
		conn:   conn,
		tx:     txtypes.NewServiceClient(conn),
		node:   cmtservice.NewServiceClient(conn),
		cfg:    cfg,
		logger: logger,
		subs:   make(map[*subscription]struct{}),
	}
}

// Close stops open subscriptions and closes the gRPC connection.
func (n *Network) Close() error {
	n.mu.Lock()
	subs := make([]*subscription, 0, len(n.subs))
	for s := range n.subs {
		subs = append(subs, s)
	}
	n.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}

// shouldUseTLS picks TLS for port 443 and for any non-local host.
func shouldUseTLS(addr string) bool {
	if strings.HasSuffix(addr, ":443") {
		return true
	}
	for _, local := range []string{"localhost:", "127.0.0.1:", "0.0.0.0:", ":"} {
		if strings.HasPrefix(addr, local) {
			return false
		}
	}
	return !strings.Contains(addr, "localhost") &&
		!strings.Contains(addr, "127.0.0.1") &&
		!strings.Contains(addr, "0.0.0.0")
}
