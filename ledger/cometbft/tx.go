package cometbft

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	abcipb "cosmossdk.io/api/cosmos/base/abci/v1beta1"
	cmtservice "cosmossdk.io/api/cosmos/base/tendermint/v1beta1"
	txtypes "cosmossdk.io/api/cosmos/tx/v1beta1"
	tmtypes "github.com/cometbft/cometbft/types"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mintkit/sdk-go/types"
)

// The SDK answers a resend of a tx still in the mempool with this code.
const (
	sdkCodespace         = "sdk"
	codeTxInMempoolCache = 19
)

const defaultRequestDeadline = 10 * time.Second

func (n *Network) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := n.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestDeadline
	}
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// SendRawTransaction broadcasts in sync mode: the node returns once CheckTx ran.
func (n *Network) SendRawTransaction(ctx context.Context, raw []byte) (types.Signature, error) {
	ctx, cancel := n.withTimeout(ctx)
	defer cancel()

	resp, err := n.tx.BroadcastTx(ctx, &txtypes.BroadcastTxRequest{
		TxBytes: raw,
		Mode:    txtypes.BroadcastMode_BROADCAST_MODE_SYNC,
	})
	if err != nil {
		return "", fmt.Errorf("broadcast tx: %w", err)
	}
	if resp == nil || resp.TxResponse == nil {
		return "", fmt.Errorf("empty tx response")
	}

	txr := resp.TxResponse
	if txr.Code != 0 && !(txr.Codespace == sdkCodespace && txr.Code == codeTxInMempoolCache) {
		return "", fmt.Errorf("tx failed with code %d: %s", txr.Code, txr.RawLog)
	}
	if txr.GetTxhash() == "" {
		return TxHash(raw), nil
	}
	return types.Signature(strings.ToUpper(txr.GetTxhash())), nil
}

// TxHash is the CometBFT hash of raw tx bytes, in the upper-case hex form the
// tx index and event queries use.
func TxHash(raw []byte) types.Signature {
	return types.Signature(strings.ToUpper(hex.EncodeToString(tmtypes.Tx(raw).Hash())))
}

// DeriveSignature returns TxHash(raw).
func (n *Network) DeriveSignature(raw []byte) (types.Signature, error) {
	return TxHash(raw), nil
}

// GetSignatureStatuses looks each hash up in the tx index. CometBFT blocks are
// final once committed, so every indexed tx is reported Finalized.
func (n *Network) GetSignatureStatuses(ctx context.Context, sigs ...types.Signature) ([]*types.ConfirmationStatus, error) {
	ctx, cancel := n.withTimeout(ctx)
	defer cancel()

	out := make([]*types.ConfirmationStatus, len(sigs))
	for i, sig := range sigs {
		resp, err := n.tx.GetTx(ctx, &txtypes.GetTxRequest{Hash: normalizeHash(sig)})
		if err != nil {
			if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
				continue
			}
			return nil, fmt.Errorf("get tx %s: %w", sig, err)
		}
		if resp == nil || resp.TxResponse == nil || resp.TxResponse.Height <= 0 {
			continue
		}
		out[i] = statusFromTxResponse(resp.TxResponse)
	}
	return out, nil
}

func statusFromTxResponse(txr *abcipb.TxResponse) *types.ConfirmationStatus {
	st := &types.ConfirmationStatus{
		Slot:          uint64(txr.Height),
		Confirmations: 1,
		Finalized:     true,
	}
	if txr.Code != 0 {
		st.Err = errorDetail(txr.Codespace, txr.Code, txr.RawLog)
	}
	return st
}

func errorDetail(codespace string, code uint32, log string) *types.ErrorDetail {
	c := code
	return &types.ErrorDetail{
		Raw:        log,
		Message:    fmt.Sprintf("%s error %d", codespace, code),
		CustomCode: &c,
	}
}

// GetRecentBlockhash returns the hash of the latest block. Cosmos txs carry no
// blockhash, so it only pins the state the simulation ran against.
func (n *Network) GetRecentBlockhash(ctx context.Context) (string, error) {
	ctx, cancel := n.withTimeout(ctx)
	defer cancel()

	resp, err := n.node.GetLatestBlock(ctx, &cmtservice.GetLatestBlockRequest{})
	if err != nil {
		return "", fmt.Errorf("get latest block: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(resp.GetBlockId().GetHash())), nil
}

// SimulateTransaction dry-runs raw through the tx service. A rejection by the
// state machine is returned as a result carrying Err; transport failures are
// returned as errors.
func (n *Network) SimulateTransaction(ctx context.Context, raw []byte, recentBlockhash string) (*types.SimulationResult, error) {
	ctx, cancel := n.withTimeout(ctx)
	defer cancel()

	resp, err := n.tx.Simulate(ctx, &txtypes.SimulateRequest{TxBytes: raw})
	if err != nil {
		st, ok := status.FromError(err)
		if !ok || transient(st.Code()) {
			return nil, fmt.Errorf("simulate tx: %w", err)
		}
		if sequenceMismatch(st.Message()) {
			// The signer's sequence moved on, most likely because this tx committed.
			return nil, fmt.Errorf("simulate tx: account sequence already used: %w", err)
		}
		n.logger.Debug("simulation rejected tx",
			zap.String("block", recentBlockhash),
			zap.Stringer("code", st.Code()),
			zap.String("message", st.Message()))
		return &types.SimulationResult{
			Err:  &types.ErrorDetail{Raw: st.Message()},
			Logs: splitLog(st.Message()),
		}, nil
	}

	res := &types.SimulationResult{}
	if resp.GetResult() != nil {
		res.Logs = splitLog(resp.GetResult().GetLog())
	}
	if gi := resp.GetGasInfo(); gi != nil {
		used := gi.GetGasUsed()
		res.UnitsConsumed = &used
	}
	return res, nil
}

func transient(c codes.Code) bool {
	switch c {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled, codes.Unimplemented, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// sequenceMismatch matches the SDK's ErrWrongSequence (sdk code 32).
func sequenceMismatch(msg string) bool {
	return strings.Contains(msg, "incorrect account sequence") ||
		strings.Contains(msg, "account sequence mismatch")
}

func splitLog(log string) []string {
	if strings.TrimSpace(log) == "" {
		return nil
	}
	return strings.Split(strings.TrimRight(log, "\n"), "\n")
}

func normalizeHash(sig types.Signature) string {
	return strings.ToUpper(strings.TrimPrefix(sig.String(), "0x"))
}
