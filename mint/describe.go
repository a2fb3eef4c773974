// Package mint turns submission outcomes of a candy-machine style mint into
// messages fit for an end user.
package mint

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/mintkit/sdk-go/types"
)

// Custom program error codes raised by the mint program.
const (
	CodeNotEnoughTokens uint32 = 0x135 // 309
	CodeSoldOut         uint32 = 0x137 // 311
	CodeNotLive         uint32 = 0x138 // 312
)

// User-facing messages.
const (
	MsgSuccess         = "Congratulations! Mint succeeded!"
	MsgSoldOut         = "SOLD OUT!"
	MsgInsufficient    = "Insufficient funds to mint. Please fund your wallet."
	MsgNotLive         = "Minting period hasn't started yet."
	MsgTimeout         = "Transaction Timeout! Please try again."
	MsgPending         = "Transaction status is unknown. Check your wallet before trying again."
	MsgGenericFailure  = "Minting failed! Please try again!"
	MsgSubmissionError = "Could not send the transaction. Please try again."
)

var messages = map[uint32]string{
	CodeNotEnoughTokens: MsgInsufficient,
	CodeSoldOut:         MsgSoldOut,
	CodeNotLive:         MsgNotLive,
}

var customErrorRe = regexp.MustCompile(`(?i)custom program error: (0x[0-9a-f]+|\d+)`)

// Describe returns the message to show for out.
func Describe(out types.Outcome) string {
	switch out.Kind {
	case types.OutcomeConfirmed:
		return MsgSuccess
	case types.OutcomeTimedOut:
		return MsgTimeout
	case types.OutcomeAmbiguous:
		// A simulation that could not run leaves the user where a plain timeout would.
		if out.Simulation == nil {
			return MsgTimeout
		}
		return MsgPending
	case types.OutcomeSubmissionFailed:
		if msg, ok := messageFor(out); ok {
			return msg
		}
		return MsgSubmissionError
	}
	if msg, ok := messageFor(out); ok {
		return msg
	}
	reason := out.Reason
	if reason == "" {
		reason = out.Err.String()
	}
	if reason == "" {
		return MsgGenericFailure
	}
	return "Minting failed: " + reason
}

func messageFor(out types.Outcome) (string, bool) {
	code, ok := CustomCode(out)
	if !ok {
		return "", false
	}
	msg, ok := messages[code]
	return msg, ok
}

// CustomCode extracts the custom program error code carried by out, from the
// decoded error detail or, failing that, from an error text such as
// "custom program error: 0x137".
func CustomCode(out types.Outcome) (uint32, bool) {
	details := []*types.ErrorDetail{out.Err}
	if out.Simulation != nil {
		details = append(details, out.Simulation.Err)
	}
	for _, d := range details {
		if d != nil && d.CustomCode != nil {
			return *d.CustomCode, true
		}
	}

	texts := []string{out.Reason}
	for _, d := range details {
		if d != nil {
			texts = append(texts, d.String())
		}
	}
	for _, text := range texts {
		if code, ok := parseCustomError(text); ok {
			return code, true
		}
	}
	return 0, false
}

func parseCustomError(text string) (uint32, bool) {
	m := customErrorRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	raw := strings.ToLower(m[1])
	base := 10
	if strings.HasPrefix(raw, "0x") {
		raw, base = raw[2:], 16
	}
	n, err := strconv.ParseUint(raw, base, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}
