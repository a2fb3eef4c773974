package types

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("not found")

	// ErrTimeout is returned when no confirmation arrived within the budget
	ErrTimeout = errors.New("timed out awaiting confirmation on transaction")

	// ErrSubmission is returned when the transaction could not be broadcast at all
	ErrSubmission = errors.New("transaction submission failed")

	// ErrOnChainRejection is returned when the ledger reported an explicit error
	ErrOnChainRejection = errors.New("transaction failed")

	// ErrAmbiguous is returned when the fate of a transaction is unknown
	ErrAmbiguous = errors.New("transaction outcome unknown")
)

// RejectionError carries the ledger-reported error observed by a confirmation channel.
type RejectionError struct {
	Detail *ErrorDetail
	Slot   uint64
}

func (e *RejectionError) Error() string {
	if e.Detail == nil {
		return ErrOnChainRejection.Error()
	}
	return fmt.Sprintf("%s: %s", ErrOnChainRejection, e.Detail)
}

// Unwrap lets errors.Is match ErrOnChainRejection.
func (e *RejectionError) Unwrap() error { return ErrOnChainRejection }
