package main

import (
	"context"
	"os"

	"github.com/pixl-ae/leadflow/internal/cli"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant in the terminal",
	Long:  `Runs one visitor session interactively, using the same stores, sinks and agent as the server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		sessionID, _ := cmd.Flags().GetString("session")

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		interactive := term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
		width := 0
		if interactive {
			if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
				width = w
			}
		}

		return cli.RunChat(sigCtx, cfg, logger, cli.ChatOptions{
			SessionID:   sessionID,
			Input:       os.Stdin,
			Output:      os.Stdout,
			Interactive: interactive,
			Width:       width,
		})
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringP("session", "s", "", "Session id to resume (default: new session)")
}
