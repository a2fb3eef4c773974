package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	bin "github.com/gagliardetto/binary"
	sol "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mintkit/sdk-go/types"
)

const freshBlockhash = "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N"

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// fakeNode answers JSON-RPC calls from canned results keyed by method.
type fakeNode struct {
	mu       sync.Mutex
	results  map[string]string
	requests map[string][]rpcRequest
}

func newFakeNode(t *testing.T, results map[string]string) (*fakeNode, *httptest.Server) {
	t.Helper()
	node := &fakeNode{results: results, requests: make(map[string][]rpcRequest)}
	srv := httptest.NewServer(http.HandlerFunc(node.serve))
	t.Cleanup(srv.Close)
	return node, srv
}

func (f *fakeNode) serve(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.requests[req.Method] = append(f.requests[req.Method], req)
	result, ok := f.results[req.Method]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":-32601,"message":"Method not found"}}`, req.ID)
		return
	}
	fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%s}`, req.ID, result)
}

func (f *fakeNode) calls(method string) []rpcRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[method]
}

func signedTransaction(t *testing.T) (*sol.Transaction, []byte) {
	t.Helper()
	payer := sol.NewWallet()
	tx, err := sol.NewTransaction(
		[]sol.Instruction{
			sol.NewInstruction(sol.SystemProgramID, sol.AccountMetaSlice{sol.Meta(payer.PublicKey()).SIGNER().WRITE()}, []byte{2, 0, 0, 0}),
		},
		sol.Hash{1, 2, 3},
		sol.TransactionPayer(payer.PublicKey()),
	)
	require.NoError(t, err)
	_, err = tx.Sign(func(key sol.PublicKey) *sol.PrivateKey {
		if key.Equals(payer.PublicKey()) {
			return &payer.PrivateKey
		}
		return nil
	})
	require.NoError(t, err)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return tx, raw
}

func TestSendRawTransaction(t *testing.T) {
	tx, raw := signedTransaction(t)
	sig := tx.Signatures[0].String()
	node, srv := newFakeNode(t, map[string]string{"sendTransaction": `"` + sig + `"`})

	net, err := New(Config{RPCEndpoint: srv.URL, SkipPreflight: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = net.Close() })

	got, err := net.SendRawTransaction(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, types.Signature(sig), got)

	calls := node.calls("sendTransaction")
	require.Len(t, calls, 1)
	var encoded string
	require.NoError(t, json.Unmarshal(calls[0].Params[0], &encoded))
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}

func TestDeriveSignature(t *testing.T) {
	tx, raw := signedTransaction(t)
	net, err := New(Config{RPCEndpoint: "http://127.0.0.1:8899"}, nil)
	require.NoError(t, err)

	sig, err := net.DeriveSignature(raw)
	require.NoError(t, err)
	assert.Equal(t, types.Signature(tx.Signatures[0].String()), sig)

	_, err = net.DeriveSignature([]byte{0xff})
	require.Error(t, err)
}

func TestSendRawTransactionError(t *testing.T) {
	_, raw := signedTransaction(t)
	_, srv := newFakeNode(t, map[string]string{})

	net, err := New(Config{RPCEndpoint: srv.URL}, nil)
	require.NoError(t, err)

	_, err = net.SendRawTransaction(context.Background(), raw)
	require.Error(t, err)
}

func TestGetSignatureStatuses(t *testing.T) {
	wallet := sol.NewWallet()
	sigs := make([]types.Signature, 4)
	for i := range sigs {
		s, err := wallet.PrivateKey.Sign([]byte{byte(i)})
		require.NoError(t, err)
		sigs[i] = types.Signature(s.String())
	}

	_, srv := newFakeNode(t, map[string]string{
		"getSignatureStatuses": `{"context":{"slot":82},"value":[
			{"slot":72,"confirmations":10,"err":null,"confirmationStatus":"confirmed"},
			{"slot":48,"confirmations":null,"err":null,"confirmationStatus":"finalized"},
			{"slot":50,"confirmations":0,"err":{"InstructionError":[0,{"Custom":311}]},"confirmationStatus":"processed"},
			null]}`,
	})
	net, err := New(Config{RPCEndpoint: srv.URL}, nil)
	require.NoError(t, err)

	got, err := net.GetSignatureStatuses(context.Background(), sigs...)
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, uint64(72), got[0].Slot)
	assert.Equal(t, uint64(10), got[0].Confirmations)
	assert.True(t, got[0].Confirmed(1))

	assert.True(t, got[1].Finalized)
	assert.True(t, got[1].Confirmed(32))

	require.True(t, got[2].Failed())
	require.NotNil(t, got[2].Err.CustomCode)
	assert.Equal(t, uint32(311), *got[2].Err.CustomCode)

	assert.Nil(t, got[3])
}

func TestGetSignatureStatusesRejectsBadSignature(t *testing.T) {
	net, err := New(Config{RPCEndpoint: "http://127.0.0.1:1"}, nil)
	require.NoError(t, err)
	_, err = net.GetSignatureStatuses(context.Background(), "not-base58-0OIl")
	require.Error(t, err)
}

func TestSimulateTransactionUsesFreshBlockhash(t *testing.T) {
	_, raw := signedTransaction(t)
	node, srv := newFakeNode(t, map[string]string{
		"getLatestBlockhash": `{"context":{"slot":2792},"value":{"blockhash":"` + freshBlockhash + `","lastValidBlockHeight":3090}}`,
		"simulateTransaction": `{"context":{"slot":218},"value":{
			"err":{"InstructionError":[0,{"Custom":309}]},
			"logs":["Program log: Instruction: MintNft","Program log: Not enough tokens to pay for this minting"],
			"accounts":null,"unitsConsumed":2366}}`,
	})
	net, err := New(Config{RPCEndpoint: srv.URL}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	hash, err := net.GetRecentBlockhash(ctx)
	require.NoError(t, err)
	assert.Equal(t, freshBlockhash, hash)

	res, err := net.SimulateTransaction(ctx, raw, hash)
	require.NoError(t, err)
	assert.Equal(t, uint64(218), res.Slot)
	require.NotNil(t, res.Err)
	require.NotNil(t, res.Err.CustomCode)
	assert.Equal(t, uint32(309), *res.Err.CustomCode)
	assert.Len(t, res.Logs, 2)
	require.NotNil(t, res.UnitsConsumed)
	assert.Equal(t, uint64(2366), *res.UnitsConsumed)

	calls := node.calls("simulateTransaction")
	require.Len(t, calls, 1)
	var encoded string
	require.NoError(t, json.Unmarshal(calls[0].Params[0], &encoded))
	wire, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	sent, err := sol.TransactionFromDecoder(bin.NewBinDecoder(wire))
	require.NoError(t, err)
	assert.Equal(t, freshBlockhash, sent.Message.RecentBlockhash.String())
}

func TestSimulateTransactionRejectsGarbage(t *testing.T) {
	net, err := New(Config{RPCEndpoint: "http://127.0.0.1:1"}, nil)
	require.NoError(t, err)
	_, err = net.SimulateTransaction(context.Background(), []byte{0xff}, freshBlockhash)
	require.Error(t, err)
}

func TestDecodeError(t *testing.T) {
	assert.Nil(t, DecodeError(nil))

	d := DecodeError(map[string]any{"InstructionError": []any{float64(2), map[string]any{"Custom": float64(0x137)}}})
	require.NotNil(t, d.CustomCode)
	assert.Equal(t, uint32(311), *d.CustomCode)
	require.NotNil(t, d.InstructionIndex)
	assert.Equal(t, 2, *d.InstructionIndex)
	assert.Equal(t, `{"InstructionError":[2,{"Custom":311}]}`, d.String())

	d = DecodeError(map[string]any{"InstructionError": []any{json.Number("0"), "InvalidAccountData"}})
	assert.Nil(t, d.CustomCode)
	assert.Equal(t, "InvalidAccountData", d.Message)

	d = DecodeError("AccountInUse")
	assert.Equal(t, "AccountInUse", d.String())
}

func TestWSEndpointFor(t *testing.T) {
	assert.Equal(t, "wss://api.devnet.solana.com", WSEndpointFor("https://api.devnet.solana.com"))
	assert.Equal(t, "ws://127.0.0.1:8899", WSEndpointFor("http://127.0.0.1:8899"))
	assert.Equal(t, "ws://custom", WSEndpointFor("ws://custom"))
}

func TestNewRequiresEndpoint(t *testing.T) {
	_, err := New(Config{}, nil)
	require.ErrorIs(t, err, types.ErrInvalidConfig)
}
