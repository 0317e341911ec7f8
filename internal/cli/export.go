package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/subhash0x/agentnet/internal/app"
)

var exportFlags struct {
	from      string
	to        string
	pngPath   string
	csvPath   string
	maxPoints int
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export signal history as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			PNGPath:   exportFlags.pngPath,
			CSVPath:   exportFlags.csvPath,
			MaxPoints: exportFlags.maxPoints,
		}

		var err error
		if opts.From, err = parseTimeFlag("from", exportFlags.from); err != nil {
			return err
		}
		if opts.To, err = parseTimeFlag("to", exportFlags.to); err != nil {
			return err
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func parseTimeFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s value: %w", name, err)
	}
	return &ts, nil
}

func init() {
	exportCmd.Flags().StringVar(&exportFlags.from, "from", "", "Start timestamp (RFC3339, inclusive)")
	exportCmd.Flags().StringVar(&exportFlags.to, "to", "", "End timestamp (RFC3339, exclusive)")
	exportCmd.Flags().StringVar(&exportFlags.pngPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportFlags.csvPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportFlags.maxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
