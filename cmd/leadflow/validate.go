package main

import (
	"fmt"

	"github.com/pixl-ae/leadflow"
	"github.com/pixl-ae/leadflow/pkg/flow"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check a flow table for consistency",
	Long:  `Parses the flow table, merges the broker sub-flow and reports broken links, unreachable steps and malformed steps.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("flow")
		if len(args) > 0 {
			path = args[0]
		}

		f, err := flow.NewLoader(path).LoadFlow(cmd.Context())
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		eng, err := leadflow.New(leadflow.WithFlow(f))
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		name := path
		if name == "" {
			name = "embedded flow table"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is valid ✅ (%d steps, %d personas)\n",
			name, len(eng.Flow().Steps), len(eng.Flow().Entries))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
