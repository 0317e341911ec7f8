package app

import (
	"context"
	"fmt"
	"os"

	"github.com/subhash0x/agentnet/internal/dispatch"
)

// Check runs one dispatch pass on demand and prints the outcome.
func (a *App) Check(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	publisher, err := a.newPublisher()
	if err != nil {
		return fmt.Errorf("configure publisher: %w", err)
	}

	monitor := a.newMonitor(store, a.newPriceSource(), publisher, store)
	result, err := monitor.RunPass(ctx)
	if err != nil {
		return err
	}

	printResult(result)
	return nil
}

func printResult(result dispatch.Result) {
	fmt.Fprintf(os.Stdout, "evaluated: %d\nfired: %d\n", result.Evaluated, result.Fired)
	for _, failure := range result.Failures {
		fmt.Fprintf(os.Stdout, "failed: %s: %v\n", failure.AlertID, failure.Err)
	}
}
