// Package simulate classifies a timed-out transaction by dry-running it.
package simulate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mintkit/sdk-go/ledger"
	"github.com/mintkit/sdk-go/types"
)

// DefaultProgramLogPrefix marks log lines emitted by the program itself.
const DefaultProgramLogPrefix = "Program log: "

// Verdict is the classification produced by Diagnose.
type Verdict int

const (
	// VerdictAmbiguous means the simulation could not explain the timeout.
	VerdictAmbiguous Verdict = iota
	// VerdictFailed means the simulation reproduced a ledger error.
	VerdictFailed
)

func (v Verdict) String() string {
	if v == VerdictFailed {
		return "failed"
	}
	return "ambiguous"
}

// Diagnosis is the simulation fallback result.
type Diagnosis struct {
	Verdict Verdict
	// Reason is set for VerdictFailed, and for VerdictAmbiguous when the
	// simulation itself could not run.
	Reason string
	Result *types.SimulationResult
}

// Options tune Diagnose.
type Options struct {
	Timeout          time.Duration
	ProgramLogPrefix string
	Logger           *zap.Logger
}

// Diagnose fetches a fresh blockhash and simulates raw against current state.
// Any failure to simulate leaves the outcome ambiguous: the transaction may
// still have landed.
func Diagnose(ctx context.Context, sim ledger.Simulator, raw []byte, opts Options) Diagnosis {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix := opts.ProgramLogPrefix
	if prefix == "" {
		prefix = DefaultProgramLogPrefix
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	blockhash, err := sim.GetRecentBlockhash(ctx)
	if err != nil {
		logger.Warn("simulation skipped: recent blockhash unavailable", zap.Error(err))
		return Diagnosis{Verdict: VerdictAmbiguous, Reason: fmt.Sprintf("recent blockhash: %v", err)}
	}

	res, err := sim.SimulateTransaction(ctx, raw, blockhash)
	if err != nil {
		logger.Warn("simulate transaction error", zap.Error(err))
		return Diagnosis{Verdict: VerdictAmbiguous, Reason: fmt.Sprintf("simulate: %v", err)}
	}
	if res == nil || res.Err == nil {
		logger.Info("simulation succeeded; transaction fate unknown")
		return Diagnosis{Verdict: VerdictAmbiguous, Result: res}
	}

	if line, ok := ExtractProgramLog(res.Logs, prefix); ok {
		return Diagnosis{Verdict: VerdictFailed, Reason: line, Result: res}
	}
	return Diagnosis{Verdict: VerdictFailed, Reason: res.Err.String(), Result: res}
}

// ExtractProgramLog returns the last line starting with prefix, without the prefix.
func ExtractProgramLog(logs []string, prefix string) (string, bool) {
	for i := len(logs) - 1; i >= 0; i-- {
		if strings.HasPrefix(logs[i], prefix) {
			return strings.TrimPrefix(logs[i], prefix), true
		}
	}
	return "", false
}
