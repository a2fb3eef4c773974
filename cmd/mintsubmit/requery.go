package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mintkit/sdk-go/client"
	"github.com/mintkit/sdk-go/types"
)

func newRequeryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requery SIGNATURE",
		Short: "Check the current status of a previously submitted signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return &exitError{code: exitFailure, err: err}
			}
			c, err := client.NewWithDeps(cmd.Context(), cfg, client.Deps{Logger: logger})
			if err != nil {
				return &exitError{code: exitFailure, err: err}
			}
			defer c.Close()

			out, err := c.Requery(cmd.Context(), types.Signature(args[0]))
			if errors.Is(err, types.ErrNotFound) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s is unknown to the ledger\n", color.YellowString("?"), args[0])
				return &exitError{code: exitAmbiguous}
			}
			if err != nil {
				return &exitError{code: exitFailure, err: err}
			}
			renderOutcome(cmd.OutOrStdout(), out)
			return exitFor(out)
		},
	}
}
