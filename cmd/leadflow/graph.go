package main

import (
	"fmt"

	"github.com/pixl-ae/leadflow/internal/cli"
	"github.com/pixl-ae/leadflow/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the flow table as a Mermaid diagram",
	Long:  `Outputs a Mermaid flowchart (graph TD) of every persona flow, including the broker sub-flow. With --session the current step of that session is highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		sessionID, _ := cmd.Flags().GetString("session")

		app, err := cli.Build(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close()

		var overlay *graph.GraphOverlay
		if sessionID != "" {
			s, err := app.Engine.Session(cmd.Context(), sessionID)
			if err != nil {
				return fmt.Errorf("failed to load session %q: %w", sessionID, err)
			}
			overlay = &graph.GraphOverlay{CurrentStep: s.StepID}
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(app.Engine.Flow(), overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("session", "s", "", "Highlight the current step of this session")
}
