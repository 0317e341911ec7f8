package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/subhash0x/agentnet/internal/app"
)

var showLimit int

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recently published signals",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return errors.New("--limit must be greater than zero")
		}
		return getApp().Show(cmd.Context(), app.ShowOptions{Limit: showLimit})
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of signals to display")
}
