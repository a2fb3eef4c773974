package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"

	"github.com/mintkit/sdk-go/client"
	"github.com/mintkit/sdk-go/submit"
	"github.com/mintkit/sdk-go/types"
)

func newSubmitCmd() *cobra.Command {
	var (
		txPath   string
		encoding string
		timeout  time.Duration
		noPoll   bool
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Broadcast a signed transaction and wait for its verdict",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readTransaction(cmd.InOrStdin(), txPath, encoding)
			if err != nil {
				return &exitError{code: exitFailure, err: err}
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return &exitError{code: exitFailure, err: err}
			}
			opts := []client.Option{}
			if cmd.Flags().Changed("timeout") {
				opts = append(opts, client.WithTimeout(timeout))
			}
			if noPoll {
				opts = append(opts, client.WithPolling(false))
			}

			c, err := client.NewWithDeps(cmd.Context(), cfg, client.Deps{Logger: logger}, opts...)
			if err != nil {
				return &exitError{code: exitFailure, err: err}
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Submitting %s transaction to %s (timeout %s)\n",
				humanize.Bytes(uint64(len(raw))), c.Config().Network.RPCEndpoint, c.Config().Submit.Timeout)

			outcome := c.SubmitWithHook(cmd.Context(), raw, progressHook(out))
			renderOutcome(out, outcome)
			return exitFor(outcome)
		},
	}

	cmd.Flags().StringVar(&txPath, "tx", "", "File holding the serialized signed transaction, or - for stdin")
	cmd.Flags().StringVar(&encoding, "encoding", "base64", "Transaction encoding: base64, base58 or binary")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Confirmation timeout")
	cmd.Flags().BoolVar(&noPoll, "no-poll", false, "Rely on the subscription only")
	_ = cmd.MarkFlagRequired("tx")
	return cmd
}

// progressHook prints the submission steps worth telling a user about.
func progressHook(w io.Writer) submit.StateHook {
	return func(state submit.State, sig types.Signature) {
		switch {
		case state.Terminal():
			// renderOutcome reports the verdict.
		case state == submit.StateAwaitingConfirmation:
			fmt.Fprintf(w, "Sent %s, awaiting confirmation…\n", sig)
		case state == submit.StateSimulating:
			fmt.Fprintln(w, "No confirmation in time, simulating to find out why…")
		}
	}
}

// readTransaction loads and decodes the transaction named by path.
func readTransaction(stdin io.Reader, path, encoding string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read transaction: %w", err)
	}
	return decodeTransaction(data, encoding)
}

func decodeTransaction(data []byte, encoding string) ([]byte, error) {
	var (
		raw []byte
		err error
	)
	switch strings.ToLower(encoding) {
	case "base64":
		raw, err = base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	case "base58":
		raw, err = base58.Decode(strings.TrimSpace(string(data)))
	case "binary", "raw":
		raw = data
	default:
		return nil, fmt.Errorf("unknown encoding %q", encoding)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s transaction: %w", encoding, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("transaction is empty")
	}
	return raw, nil
}

// exitFor maps an outcome onto the process exit code.
func exitFor(out types.Outcome) error {
	switch {
	case out.Kind == types.OutcomeConfirmed:
		return nil
	case out.RequiresRequery():
		return &exitError{code: exitAmbiguous}
	default:
		return &exitError{code: exitFailure}
	}
}
