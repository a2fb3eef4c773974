// Package journal keeps a record of every submission so an ambiguous
// outcome can be re-queried before a retry.
package journal

import (
	"context"
	"sync"
	"time"

	"github.com/mintkit/sdk-go/types"
)

// StatePending marks a record whose transaction was broadcast but has no verdict yet.
const StatePending = "pending"

// Record is the journal entry for one signature.
type Record struct {
	SubmissionID string          `json:"submission_id"`
	Signature    types.Signature `json:"signature"`
	// State is StatePending or an OutcomeKind name.
	State     string    `json:"state"`
	Slot      uint64    `json:"slot,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal reports whether the record holds a settled verdict.
func (r Record) Terminal() bool {
	switch r.State {
	case types.OutcomeConfirmed.String(),
		types.OutcomeRejected.String(),
		types.OutcomeDiagnosedFailure.String(),
		types.OutcomeSubmissionFailed.String():
		return true
	default:
		return false
	}
}

// FromOutcome builds the record describing out.
func FromOutcome(out types.Outcome) Record {
	return Record{
		SubmissionID: out.SubmissionID,
		Signature:    out.Signature,
		State:        out.Kind.String(),
		Slot:         out.Slot,
		Reason:       out.Reason,
		UpdatedAt:    time.Now().UTC(),
	}
}

// Store persists records keyed by signature.
type Store interface {
	Put(ctx context.Context, rec Record) error
	// Get returns types.ErrNotFound when no record exists.
	Get(ctx context.Context, sig types.Signature) (Record, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[types.Signature]Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[types.Signature]Record)}
}

func (m *MemoryStore) Put(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Signature] = rec
	return nil
}

func (m *MemoryStore) Get(_ context.Context, sig types.Signature) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[sig]
	if !ok {
		return Record{}, types.ErrNotFound
	}
	return rec, nil
}

// Discard is a Store that keeps nothing.
type Discard struct{}

func (Discard) Put(context.Context, Record) error { return nil }

func (Discard) Get(context.Context, types.Signature) (Record, error) {
	return Record{}, types.ErrNotFound
}
