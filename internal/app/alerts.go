package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/subhash0x/agentnet/internal/storage"
)

// CreateAlertOptions carry the user-supplied alert definition.
type CreateAlertOptions struct {
	Owner              string
	SourceAccount      string
	DestinationAccount string
	Amount             decimal.Decimal
	Action             string
	TriggerType        string
	TriggerValue       float64
	BaselinePrice      float64
	CooldownSeconds    int64
}

// CreateAlert validates and persists a new alert. When no baseline is
// supplied the current price is captured from the live source, matching
// the trigger's fixed-baseline semantics.
func (a *App) CreateAlert(ctx context.Context, opts CreateAlertOptions) (storage.Alert, error) {
	switch opts.Action {
	case storage.ActionBuy, storage.ActionSell:
		if !opts.Amount.IsPositive() {
			return storage.Alert{}, fmt.Errorf("action %s requires a positive amount", opts.Action)
		}
	case storage.ActionNotify:
		if !opts.Amount.IsZero() {
			return storage.Alert{}, errors.New("notify alerts must not carry an amount")
		}
	default:
		return storage.Alert{}, fmt.Errorf("unknown action %q", opts.Action)
	}

	switch opts.TriggerType {
	case storage.TriggerPercentDrop, storage.TriggerPercentRise:
	default:
		return storage.Alert{}, fmt.Errorf("unknown trigger type %q", opts.TriggerType)
	}

	if opts.TriggerValue <= 0 {
		return storage.Alert{}, errors.New("trigger value must be a positive percentage")
	}
	if opts.SourceAccount == "" {
		return storage.Alert{}, errors.New("source account is required")
	}

	baseline := opts.BaselinePrice
	if baseline <= 0 {
		quote, err := a.newPriceSource().Latest(ctx)
		if err != nil {
			return storage.Alert{}, fmt.Errorf("capture baseline price: %w", err)
		}
		baseline = quote.ValueUSD
		a.Logger.Info().Float64("baseline_usd", baseline).Str("source", quote.Source).Msg("captured baseline price")
	}

	cooldown := opts.CooldownSeconds
	if cooldown <= 0 {
		cooldown = int64(a.Config.Dispatch.DefaultCooldown / time.Second)
	}

	now := time.Now().UTC()
	alert := storage.Alert{
		ID:                 uuid.NewString(),
		Owner:              opts.Owner,
		SourceAccount:      opts.SourceAccount,
		DestinationAccount: opts.DestinationAccount,
		Amount:             opts.Amount,
		Action:             opts.Action,
		TriggerType:        opts.TriggerType,
		TriggerValue:       opts.TriggerValue,
		BaselinePrice:      baseline,
		CooldownSeconds:    cooldown,
		Status:             storage.StatusActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return storage.Alert{}, err
	}
	defer closeStore()

	if err := store.CreateAlert(ctx, alert); err != nil {
		return storage.Alert{}, err
	}

	a.Logger.Info().Str("alert_id", alert.ID).Str("action", alert.Action).Msg("alert created")
	return alert, nil
}

// ListAlerts prints alerts, optionally filtered by owner.
func (a *App) ListAlerts(ctx context.Context, owner string) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	alerts, err := store.ListAlerts(ctx, owner)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tAction\tAmount\tTrigger\tBaseline\tCooldown\tStatus\tTopic\tLast Fired")

	for _, alert := range alerts {
		lastFired := "never"
		if alert.LastNotifiedAt != nil {
			lastFired = alert.LastNotifiedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s %.2f%%\t%.6f\t%ds\t%s\t%s\t%s\n",
			alert.ID,
			alert.Action,
			alert.Amount.String(),
			alert.TriggerType,
			alert.TriggerValue,
			alert.BaselinePrice,
			alert.CooldownSeconds,
			alert.Status,
			alert.TopicID,
			lastFired,
		)
	}

	writer.Flush()
	return nil
}

// DeleteAlert removes an alert by id.
func (a *App) DeleteAlert(ctx context.Context, id string) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.DeleteAlert(ctx, id); err != nil {
		return err
	}
	a.Logger.Info().Str("alert_id", id).Msg("alert deleted")
	return nil
}

// SetAlertStatus transitions an alert between lifecycle states.
func (a *App) SetAlertStatus(ctx context.Context, id, status string) error {
	switch status {
	case storage.StatusActive, storage.StatusPaused, storage.StatusCompleted, storage.StatusCancelled:
	default:
		return fmt.Errorf("unknown status %q", status)
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	a.Logger.Info().Str("alert_id", id).Str("status", status).Msg("alert status updated")
	return nil
}
