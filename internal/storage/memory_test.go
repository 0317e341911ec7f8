package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestMemoryStoreUpdateFiredConditional(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	alert := Alert{
		ID:            "alert-1",
		SourceAccount: "0.0.1001",
		Amount:        decimal.NewFromInt(5),
		Action:        ActionBuy,
		TriggerType:   TriggerPercentDrop,
		TriggerValue:  10,
		BaselinePrice: 100,
		Status:        StatusActive,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	if err := store.CreateAlert(ctx, alert); err != nil {
		t.Fatalf("create alert: %v", err)
	}

	firedAt := created.Add(time.Hour)
	if err := store.UpdateFired(ctx, alert.ID, "0.0.500", 7, firedAt, nil); err != nil {
		t.Fatalf("first update: %v", err)
	}

	got, err := store.GetAlert(ctx, alert.ID)
	if err != nil {
		t.Fatalf("get alert: %v", err)
	}
	if got.TopicID != "0.0.500" || got.LastSequence != 7 {
		t.Fatalf("unexpected firing state: topic=%q sequence=%d", got.TopicID, got.LastSequence)
	}
	if got.LastNotifiedAt == nil || !got.LastNotifiedAt.Equal(firedAt) {
		t.Fatalf("last notified at not recorded: %v", got.LastNotifiedAt)
	}

	// A second writer that read the alert before the first update must
	// lose the race instead of clobbering the newer state.
	err = store.UpdateFired(ctx, alert.ID, "0.0.500", 8, firedAt.Add(time.Minute), nil)
	if !errors.Is(err, ErrStaleAlert) {
		t.Fatalf("expected ErrStaleAlert, got %v", err)
	}

	// Updating with the current LastNotifiedAt as the precondition succeeds.
	if err := store.UpdateFired(ctx, alert.ID, "0.0.500", 8, firedAt.Add(2*time.Hour), got.LastNotifiedAt); err != nil {
		t.Fatalf("second update: %v", err)
	}
}

func TestMemoryStoreUpdateFiredUnknownAlert(t *testing.T) {
	store := NewMemoryStore()

	err := store.UpdateFired(context.Background(), "missing", "0.0.500", 1, time.Now(), nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreListActiveSkipsInactive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, status := range []string{StatusActive, StatusPaused, StatusActive, StatusCancelled} {
		alert := Alert{
			ID:            string(rune('a' + i)),
			SourceAccount: "0.0.1001",
			Action:        ActionNotify,
			TriggerType:   TriggerPercentRise,
			TriggerValue:  5,
			BaselinePrice: 100,
			Status:        status,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
			UpdatedAt:     base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.CreateAlert(ctx, alert); err != nil {
			t.Fatalf("create alert %d: %v", i, err)
		}
	}

	active, err := store.ListActive(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active alerts, got %d", len(active))
	}
	if active[0].ID != "a" || active[1].ID != "c" {
		t.Fatalf("unexpected ordering: %q, %q", active[0].ID, active[1].ID)
	}
}
