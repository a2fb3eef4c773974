// Command mintsubmit broadcasts a signed transaction and reports whether it landed.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mintkit/sdk-go/client"
	sdklog "github.com/mintkit/sdk-go/pkg/log"
)

// Exit codes.
const (
	exitOK        = 0
	exitFailure   = 1
	exitAmbiguous = 2
)

// Global flags
var (
	configPath  string
	networkKind string
	rpcEndpoint string
	logLevel    string
	verbose     bool
	noColor     bool

	logger *zap.Logger
)

// exitError carries the process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mintsubmit",
		Short: "Submit signed transactions and track their confirmation",
		Long: `mintsubmit broadcasts an already signed transaction, keeps rebroadcasting it
while waiting for confirmation, and explains the outcome.

Examples:
  # Submit a base64 transaction to devnet
  mintsubmit submit --tx mint.b64

  # Read a base58 transaction from stdin with a 10s budget
  cat mint.b58 | mintsubmit submit --tx - --encoding base58 --timeout 10s

  # Check a signature left ambiguous by an earlier run
  mintsubmit requery 5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if noColor || os.Getenv("NO_COLOR") != "" {
				color.NoColor = true
			}
			level := logLevel
			if verbose {
				level = "debug"
			}
			var err error
			logger, err = sdklog.New(sdklog.Options{Level: level, Development: verbose})
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&networkKind, "network", "", "Ledger kind: solana or cometbft")
	cmd.PersistentFlags().StringVar(&rpcEndpoint, "rpc", "", "RPC endpoint (overrides the config file)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(newSubmitCmd(), newRequeryCmd())
	return cmd
}

// loadConfig reads --config (or defaults) and applies the global flags.
func loadConfig(cmd *cobra.Command) (client.Config, error) {
	cfg := client.DefaultConfig()
	if configPath != "" {
		loaded, err := client.LoadConfig(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("network") {
		cfg.Network.Kind = networkKind
	}
	if cmd.Flags().Changed("rpc") {
		cfg.Network.RPCEndpoint = rpcEndpoint
		cfg.Network.WSEndpoint = ""
	}
	return cfg, nil
}

func main() {
	err := newRootCmd().Execute()
	if err == nil {
		return
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(os.Stderr, color.RedString("Error:"), ee.err)
		}
		os.Exit(ee.code)
	}
	fmt.Fprintln(os.Stderr, color.RedString("Error:"), err)
	os.Exit(exitFailure)
}
