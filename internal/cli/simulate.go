package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	simulatePrice float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-pass",
	Short: "Run one dispatch pass against a fixed price without publishing",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulatePrice <= 0 {
			return errors.New("--price must be greater than 0")
		}
		return getApp().SimulatePass(cmd.Context(), simulatePrice)
	},
}

func init() {
	simulateCmd.Flags().Float64Var(&simulatePrice, "price", 0, "Simulated USD price")
}
