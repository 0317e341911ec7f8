package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/subhash0x/agentnet/internal/storage"
)

// Export renders signal history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-30 * 24 * time.Hour)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	signals, err := store.ListSignalsBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(signals) == 0 {
		a.Logger.Info().Msg("no signals found for export window")
		return nil
	}

	downsampled := downsampleSignals(signals, opts.MaxPoints)
	a.Logger.Info().Int("total", len(signals)).Int("exported", len(downsampled)).Msg("exporting signals")

	if opts.CSVPath != "" {
		if err := writeSignalsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeSignalsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleSignals(signals []storage.SignalRecord, max int) []storage.SignalRecord {
	if max <= 0 || len(signals) <= max {
		return signals
	}

	result := make([]storage.SignalRecord, 0, max)
	step := float64(len(signals)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(signals) {
			idx = len(signals) - 1
		}
		result = append(result, signals[idx])
	}
	return result
}

func writeSignalsCSV(path string, signals []storage.SignalRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"published_at", "alert_id", "kind", "action", "amount", "trigger_type", "trigger_value", "baseline_price", "current_price", "topic_id", "sequence"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, signal := range signals {
		record := []string{
			signal.PublishedAt.Format(time.RFC3339),
			signal.AlertID,
			signal.Kind,
			signal.Action,
			signal.Amount.String(),
			signal.TriggerType,
			strconv.FormatFloat(signal.TriggerValue, 'f', -1, 64),
			strconv.FormatFloat(signal.BaselinePrice, 'f', -1, 64),
			strconv.FormatFloat(signal.CurrentPrice, 'f', -1, 64),
			signal.TopicID,
			strconv.FormatUint(signal.Sequence, 10),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeSignalsPNG(path string, signals []storage.SignalRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(signals))
	current := make([]float64, len(signals))
	baseline := make([]float64, len(signals))

	for i, signal := range signals {
		x[i] = signal.PublishedAt
		current[i] = signal.CurrentPrice
		baseline[i] = signal.BaselinePrice
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.6f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price (USD)",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Fired At Price",
				XValues: x,
				YValues: current,
			},
			chart.TimeSeries{
				Name:    "Baseline",
				XValues: x,
				YValues: baseline,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
