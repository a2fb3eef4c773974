package types

import (
	"encoding/json"
	"fmt"
)

// Signature identifies a broadcast transaction. It is the correlation key for
// every confirmation query that follows the broadcast.
type Signature string

func (s Signature) String() string { return string(s) }

// ErrorDetail is a ledger-reported transaction error.
type ErrorDetail struct {
	// Raw is the error payload exactly as the ledger returned it.
	Raw any
	// Message is a human readable rendering, if the ledger provided one.
	Message string
	// CustomCode is set when the error is a program-defined custom error.
	CustomCode *uint32
	// InstructionIndex is the failing instruction, when known.
	InstructionIndex *int
}

// String renders the raw payload as JSON, falling back to Message.
func (d *ErrorDetail) String() string {
	if d == nil {
		return ""
	}
	if d.Raw != nil {
		if s, ok := d.Raw.(string); ok {
			return s
		}
		if b, err := json.Marshal(d.Raw); err == nil {
			return string(b)
		}
	}
	if d.Message != "" {
		return d.Message
	}
	if d.CustomCode != nil {
		return fmt.Sprintf("custom program error: 0x%x", *d.CustomCode)
	}
	return "unknown error"
}

// ConfirmationStatus is a snapshot of what a confirmation channel observed.
type ConfirmationStatus struct {
	Slot          uint64
	Confirmations uint64
	// Finalized is set once the ledger stops counting confirmations.
	Finalized bool
	Err       *ErrorDetail
}

// Failed reports whether the status carries a ledger error.
func (s *ConfirmationStatus) Failed() bool { return s != nil && s.Err != nil }

// Confirmed reports whether the status satisfies the confirmation threshold.
func (s *ConfirmationStatus) Confirmed(minConfirmations uint64) bool {
	if s == nil || s.Err != nil {
		return false
	}
	if minConfirmations == 0 {
		minConfirmations = 1
	}
	return s.Finalized || s.Confirmations >= minConfirmations
}

// SimulationResult is the outcome of a non-committing dry run.
type SimulationResult struct {
	Slot          uint64
	Err           *ErrorDetail
	Logs          []string
	UnitsConsumed *uint64
}
