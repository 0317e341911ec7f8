package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Alert action values.
const (
	ActionBuy    = "buy"
	ActionSell   = "sell"
	ActionNotify = "notify"
)

// Alert trigger types.
const (
	TriggerPercentDrop = "percent_drop"
	TriggerPercentRise = "percent_rise"
)

// Alert status values. Only active alerts are ever evaluated.
const (
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Alert is a persisted price-trigger condition plus the action to take
// when it fires. The dispatch loop is the only writer of TopicID,
// LastSequence, LastNotifiedAt and UpdatedAt after creation.
type Alert struct {
	ID                 string
	Owner              string
	SourceAccount      string
	DestinationAccount string
	Amount             decimal.Decimal
	Action             string
	TriggerType        string
	TriggerValue       float64
	BaselinePrice      float64
	CooldownSeconds    int64
	Status             string
	TopicID            string
	LastSequence       uint64
	LastNotifiedAt     *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Cooldown returns the alert's cooldown as a duration, or the given
// fallback when the alert does not carry one.
func (a Alert) Cooldown(fallback time.Duration) time.Duration {
	if a.CooldownSeconds <= 0 {
		return fallback
	}
	return time.Duration(a.CooldownSeconds) * time.Second
}

// SignalRecord captures one published signal for auditing and export.
type SignalRecord struct {
	ID            int64
	AlertID       string
	TopicID       string
	Sequence      uint64
	Kind          string
	Action        string
	Amount        decimal.Decimal
	TriggerType   string
	TriggerValue  float64
	BaselinePrice float64
	CurrentPrice  float64
	PublishedAt   time.Time
}
