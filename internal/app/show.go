package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// Show prints recently published signals.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	signals, err := store.ListRecentSignals(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(signals) == 0 {
		fmt.Fprintln(os.Stdout, "no signals found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Published (UTC)\tAlert\tKind\tAction\tAmount\tBaseline\tPrice\tTopic\tSeq")

	for _, signal := range signals {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%.6f\t%.6f\t%s\t%d\n",
			signal.PublishedAt.UTC().Format(time.RFC3339),
			signal.AlertID,
			signal.Kind,
			signal.Action,
			signal.Amount.String(),
			signal.BaselinePrice,
			signal.CurrentPrice,
			signal.TopicID,
			signal.Sequence,
		)
	}

	writer.Flush()
	return nil
}
