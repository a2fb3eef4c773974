package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/mintkit/sdk-go/mint"
	"github.com/mintkit/sdk-go/types"
)

func kindLabel(k types.OutcomeKind) string {
	switch k {
	case types.OutcomeConfirmed:
		return color.GreenString("CONFIRMED")
	case types.OutcomeTimedOut, types.OutcomeAmbiguous:
		return color.YellowString("UNKNOWN")
	default:
		return color.RedString("FAILED")
	}
}

// renderOutcome prints a human summary of out.
func renderOutcome(w io.Writer, out types.Outcome) {
	fmt.Fprintf(w, "\n  Status:        %s (%s)\n", kindLabel(out.Kind), out.Kind)
	if out.Signature != "" {
		fmt.Fprintf(w, "  Signature:     %s\n", out.Signature)
	}
	if out.Slot > 0 {
		fmt.Fprintf(w, "  Slot:          %s\n", humanize.Comma(int64(out.Slot)))
	}
	if out.Elapsed > 0 {
		fmt.Fprintf(w, "  Elapsed:       %s\n", out.Elapsed.Round(time.Millisecond))
	}
	if out.Rebroadcasts > 0 {
		fmt.Fprintf(w, "  Rebroadcasts:  %d\n", out.Rebroadcasts)
	}
	if out.Reason != "" {
		fmt.Fprintf(w, "  Reason:        %s\n", out.Reason)
	}
	fmt.Fprintf(w, "\n%s\n", mint.Describe(out))
	if out.RequiresRequery() && out.Signature != "" {
		fmt.Fprintf(w, "Run `mintsubmit requery %s` before submitting again.\n", out.Signature)
	}
}
