package submit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	clientconfig "github.com/mintkit/sdk-go/client/config"
	"github.com/mintkit/sdk-go/journal"
	"github.com/mintkit/sdk-go/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var rawTx = []byte{0x01, 0x02, 0x03, 0x04}

func testConfig(timeout time.Duration) clientconfig.SubmitConfig {
	cfg := clientconfig.DefaultSubmitConfig()
	cfg.Timeout = timeout
	cfg.RebroadcastInterval = 20 * time.Millisecond
	cfg.PollInterval = 30 * time.Millisecond
	return cfg
}

func newTestSubmitter(t *testing.T, net *stubNetwork, cfg clientconfig.SubmitConfig, opts ...Option) *Submitter {
	t.Helper()
	s, err := New(net, cfg, opts...)
	require.NoError(t, err)
	return s
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) hook(state State, _ types.Signature) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, state)
}

func (l *stateLog) get() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

func TestSubmitConfirmedViaSubscription(t *testing.T) {
	net := newStubNetwork()
	net.push = &types.ConfirmationStatus{Slot: 88, Confirmations: 1}
	net.pushAfter = 70 * time.Millisecond

	states := &stateLog{}
	s := newTestSubmitter(t, net, testConfig(5*time.Second), WithStateHook(states.hook))

	out := s.Submit(context.Background(), rawTx)
	require.Equal(t, types.OutcomeConfirmed, out.Kind, out.Reason)
	assert.Equal(t, net.sig, out.Signature)
	assert.Equal(t, uint64(88), out.Slot)
	assert.NotEmpty(t, out.SubmissionID)
	assert.NoError(t, out.AsError())
	assert.Equal(t, []State{StateBroadcasting, StateAwaitingConfirmation, StateConfirmed}, states.get())
	assert.Equal(t, int32(1), net.unsubscribed.Load())

	sends, _, _, simulated := net.counts()
	assert.GreaterOrEqual(t, sends, 2, "expected at least one rebroadcast")
	assert.Equal(t, sends-1, out.Rebroadcasts)
	assert.Zero(t, simulated)

	time.Sleep(3 * testConfig(0).RebroadcastInterval)
	after, _, _, _ := net.counts()
	assert.Equal(t, sends, after, "rebroadcast after resolution")
}

func TestSubmitBroadcastFailure(t *testing.T) {
	net := newStubNetwork()
	net.sendErr = errors.New("connection refused")

	states := &stateLog{}
	store := journal.NewMemoryStore()
	s := newTestSubmitter(t, net, testConfig(time.Second), WithStateHook(states.hook), WithJournal(store))

	out := s.Submit(context.Background(), rawTx)
	require.Equal(t, types.OutcomeSubmissionFailed, out.Kind)
	assert.Contains(t, out.Reason, "connection refused")
	assert.Empty(t, out.Signature)
	assert.True(t, out.RetrySafe())
	assert.ErrorIs(t, out.AsError(), types.ErrSubmission)
	assert.Equal(t, []State{StateBroadcasting, StateSubmissionFailed}, states.get())

	sends, polls, subs, _ := net.counts()
	assert.Equal(t, 1, sends)
	assert.Zero(t, polls)
	assert.Zero(t, subs)
}

func TestSubmitEmptyTransaction(t *testing.T) {
	net := newStubNetwork()
	s := newTestSubmitter(t, net, testConfig(time.Second))

	out := s.Submit(context.Background(), nil)
	require.Equal(t, types.OutcomeSubmissionFailed, out.Kind)
	sends, _, _, _ := net.counts()
	assert.Zero(t, sends)
}

func TestSubmitRejectedViaSubscription(t *testing.T) {
	detail := &types.ErrorDetail{Raw: map[string]any{"InstructionError": []any{0, map[string]any{"Custom": 311}}}}
	net := newStubNetwork()
	net.push = &types.ConfirmationStatus{Slot: 12, Err: detail}
	net.pushAfter = 10 * time.Millisecond

	s := newTestSubmitter(t, net, testConfig(5*time.Second))
	out := s.Submit(context.Background(), rawTx)

	require.Equal(t, types.OutcomeRejected, out.Kind)
	assert.Same(t, detail, out.Err)
	assert.Equal(t, uint64(12), out.Slot)
	assert.Equal(t, detail.String(), out.Reason)
	assert.True(t, out.RetrySafe())

	var rejection *types.RejectionError
	require.ErrorAs(t, out.AsError(), &rejection)
	assert.ErrorIs(t, out.AsError(), types.ErrOnChainRejection)
}

func TestSubmitConfirmedViaPolling(t *testing.T) {
	net := newStubNetwork()
	net.subscribeErr = errors.New("websocket unavailable")
	pending := &types.ConfirmationStatus{Slot: 50}
	net.setStatuses(pending, pending, pending, &types.ConfirmationStatus{Slot: 50, Confirmations: 1})

	cfg := testConfig(5 * time.Second)
	s := newTestSubmitter(t, net, cfg)
	out := s.Submit(context.Background(), rawTx)

	require.Equal(t, types.OutcomeConfirmed, out.Kind, out.Reason)
	assert.Equal(t, uint64(50), out.Slot)
	assert.GreaterOrEqual(t, out.Elapsed, 3*cfg.PollInterval)
	_, polls, _, _ := net.counts()
	assert.Equal(t, 4, polls)
}

func TestSubmitTimeoutDiagnosedBySimulation(t *testing.T) {
	net := newStubNetwork()
	net.sim = &types.SimulationResult{
		Slot: 99,
		Err:  &types.ErrorDetail{Raw: "custom program error: 0x1"},
		Logs: []string{"Program log: A", "Program log: B: insufficient funds"},
	}

	states := &stateLog{}
	cfg := testConfig(150 * time.Millisecond)
	s := newTestSubmitter(t, net, cfg, WithStateHook(states.hook))

	out := s.Submit(context.Background(), rawTx)
	require.Equal(t, types.OutcomeDiagnosedFailure, out.Kind)
	assert.Equal(t, "B: insufficient funds", out.Reason)
	assert.Same(t, net.sim, out.Simulation)
	assert.Same(t, net.sim.Err, out.Err)
	assert.True(t, out.RetrySafe())
	assert.GreaterOrEqual(t, out.Elapsed, cfg.Timeout)
	assert.Less(t, out.Elapsed, cfg.Timeout+300*time.Millisecond)
	assert.Greater(t, out.Rebroadcasts, 0)
	assert.Equal(t, []State{
		StateBroadcasting, StateAwaitingConfirmation, StateTimedOut, StateSimulating, StateDiagnosedFailure,
	}, states.get())
}

func TestSubmitTimeoutSimulationSucceeds(t *testing.T) {
	net := newStubNetwork()
	net.sim = &types.SimulationResult{Slot: 99, Logs: []string{"Program log: ok"}}

	s := newTestSubmitter(t, net, testConfig(100*time.Millisecond))
	out := s.Submit(context.Background(), rawTx)

	require.Equal(t, types.OutcomeAmbiguous, out.Kind)
	assert.True(t, out.RequiresRequery())
	assert.False(t, out.RetrySafe())
	assert.ErrorIs(t, out.AsError(), types.ErrAmbiguous)
}

func TestSubmitTimeoutSimulationUnavailable(t *testing.T) {
	net := newStubNetwork()
	net.blockhashErr = errors.New("rpc down")

	s := newTestSubmitter(t, net, testConfig(100*time.Millisecond))
	out := s.Submit(context.Background(), rawTx)

	require.Equal(t, types.OutcomeAmbiguous, out.Kind)
	assert.Contains(t, out.Reason, "rpc down")
	_, _, _, simulated := net.counts()
	assert.Zero(t, simulated)
}

func TestSubmitTimeoutWithoutSimulation(t *testing.T) {
	net := newStubNetwork()
	cfg := testConfig(100 * time.Millisecond)
	cfg.SimulateOnTimeout = clientconfig.Bool(false)

	s := newTestSubmitter(t, net, cfg)
	out := s.Submit(context.Background(), rawTx)

	require.Equal(t, types.OutcomeTimedOut, out.Kind)
	assert.True(t, out.RequiresRequery())
	assert.ErrorIs(t, out.AsError(), types.ErrTimeout)
	_, _, _, simulated := net.counts()
	assert.Zero(t, simulated)
}

func TestSubmitReturnsWithinBudget(t *testing.T) {
	net := newStubNetwork()
	net.simDelay = 10 * time.Second

	cfg := testConfig(120 * time.Millisecond)
	cfg.SimulationTimeout = 100 * time.Millisecond
	s := newTestSubmitter(t, net, cfg)

	start := time.Now()
	out := s.Submit(context.Background(), rawTx)
	elapsed := time.Since(start)

	require.Equal(t, types.OutcomeAmbiguous, out.Kind)
	assert.Less(t, elapsed, cfg.Timeout+cfg.SimulationTimeout+200*time.Millisecond)
}

func TestSubmitCallerCancellation(t *testing.T) {
	net := newStubNetwork()
	s := newTestSubmitter(t, net, testConfig(5*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	start := time.Now()
	out := s.Submit(ctx, rawTx)
	require.Equal(t, types.OutcomeAmbiguous, out.Kind)
	assert.Equal(t, net.sig, out.Signature)
	assert.Less(t, time.Since(start), time.Second)
	_, _, _, simulated := net.counts()
	assert.Zero(t, simulated)
}

func TestSubmitUnansweredBroadcastIsAmbiguous(t *testing.T) {
	net := newStubNetwork()
	net.sendHangs = true
	net.derived = "5derived"

	store := journal.NewMemoryStore()
	states := &stateLog{}
	s := newTestSubmitter(t, net, testConfig(100*time.Millisecond), WithJournal(store), WithStateHook(states.hook))

	out := s.Submit(context.Background(), rawTx)
	require.Equal(t, types.OutcomeAmbiguous, out.Kind)
	assert.True(t, out.RequiresRequery())
	assert.False(t, out.RetrySafe())
	assert.Equal(t, types.Signature("5derived"), out.Signature)
	assert.Contains(t, out.Reason, context.DeadlineExceeded.Error())
	assert.Equal(t, []State{StateBroadcasting, StateAmbiguous}, states.get())

	rec, err := store.Get(context.Background(), "5derived")
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeAmbiguous.String(), rec.State)
}

func TestSubmitBroadcastCancelledByCaller(t *testing.T) {
	net := newStubNetwork()
	net.sendHangs = true
	s := newTestSubmitter(t, net, testConfig(5*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	out := s.Submit(ctx, rawTx)
	require.Equal(t, types.OutcomeAmbiguous, out.Kind)
	assert.False(t, out.RetrySafe())
	assert.Empty(t, out.Signature, "no signature without local derivation")
	assert.Contains(t, out.Reason, context.Canceled.Error())
}

// ctxStore fails writes made under a finished context, like a network store.
type ctxStore struct {
	*journal.MemoryStore
}

func (s ctxStore) Put(ctx context.Context, rec journal.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.Put(ctx, rec)
}

func TestSubmitJournalsVerdictAfterCallerCancel(t *testing.T) {
	net := newStubNetwork()
	store := ctxStore{journal.NewMemoryStore()}
	s := newTestSubmitter(t, net, testConfig(5*time.Second), WithJournal(store))

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	out := s.Submit(ctx, rawTx)
	require.Equal(t, types.OutcomeAmbiguous, out.Kind)

	rec, err := store.Get(context.Background(), net.sig)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeAmbiguous.String(), rec.State)
}

func TestSubmitJournalsOutcome(t *testing.T) {
	net := newStubNetwork()
	net.push = &types.ConfirmationStatus{Slot: 7, Finalized: true}

	store := journal.NewMemoryStore()
	s := newTestSubmitter(t, net, testConfig(time.Second), WithJournal(store))
	out := s.Submit(context.Background(), rawTx)
	require.Equal(t, types.OutcomeConfirmed, out.Kind)

	rec, err := store.Get(context.Background(), net.sig)
	require.NoError(t, err)
	assert.Equal(t, out.SubmissionID, rec.SubmissionID)
	assert.Equal(t, types.OutcomeConfirmed.String(), rec.State)
	assert.Equal(t, uint64(7), rec.Slot)
	assert.True(t, rec.Terminal())
}

func TestSubmitPackageFunction(t *testing.T) {
	net := newStubNetwork()
	net.push = &types.ConfirmationStatus{Slot: 3, Confirmations: 2}

	out := Submit(context.Background(), rawTx, time.Second, net, false)
	require.Equal(t, types.OutcomeConfirmed, out.Kind, out.Reason)
	_, polls, _, _ := net.counts()
	assert.Zero(t, polls, "polling disabled")

	out = Submit(context.Background(), rawTx, time.Second, nil, true)
	assert.Equal(t, types.OutcomeSubmissionFailed, out.Kind)
}

func TestNewRequiresNetwork(t *testing.T) {
	_, err := New(nil, clientconfig.DefaultSubmitConfig())
	require.Error(t, err)
}

func TestRequery(t *testing.T) {
	ctx := context.Background()
	net := newStubNetwork()
	store := journal.NewMemoryStore()
	cfg := testConfig(100 * time.Millisecond)
	cfg.SimulateOnTimeout = clientconfig.Bool(false)
	s := newTestSubmitter(t, net, cfg, WithJournal(store))

	_, err := s.Requery(ctx, "unknown")
	require.ErrorIs(t, err, types.ErrNotFound)

	out := s.Submit(ctx, rawTx)
	require.Equal(t, types.OutcomeTimedOut, out.Kind)

	again, err := s.Requery(ctx, out.Signature)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeAmbiguous, again.Kind)
	assert.Equal(t, out.SubmissionID, again.SubmissionID)

	net.setStatuses(&types.ConfirmationStatus{Slot: 61})
	again, err = s.Requery(ctx, out.Signature)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeAmbiguous, again.Kind)
	assert.Equal(t, uint64(61), again.Slot)

	net.setStatuses(&types.ConfirmationStatus{Slot: 61, Confirmations: 1})
	again, err = s.Requery(ctx, out.Signature)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeConfirmed, again.Kind)

	rec, err := store.Get(ctx, out.Signature)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeConfirmed.String(), rec.State)

	detail := &types.ErrorDetail{Raw: "AccountInUse"}
	net.setStatuses(&types.ConfirmationStatus{Slot: 62, Err: detail})
	again, err = s.Requery(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeRejected, again.Kind)
	assert.Equal(t, "AccountInUse", again.Reason)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting_confirmation", StateAwaitingConfirmation.String())
	assert.True(t, StateAmbiguous.Terminal())
	assert.False(t, StateSimulating.Terminal())
	assert.Equal(t, "State(42)", State(42).String())
}
