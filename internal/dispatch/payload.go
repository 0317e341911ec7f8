package dispatch

import (
	"encoding/json"
	"time"

	"github.com/subhash0x/agentnet/internal/storage"
)

// Signal kinds. Downstream consumers filter on this field, so the
// notify/trade distinction is part of the wire contract.
const (
	KindPriceAlert  = "price_alert"
	KindTradeSignal = "trade_signal"
)

// Signal is the payload published to the consensus topic for one
// firing. Field names are consumed literally by downstream readers and
// must stay stable.
type Signal struct {
	Kind          string  `json:"kind"`
	Action        string  `json:"action"`
	Amount        float64 `json:"amount"`
	TriggerType   string  `json:"triggerType"`
	TriggerValue  float64 `json:"triggerValue"`
	BaselinePrice float64 `json:"baselinePrice"`
	CurrentPrice  float64 `json:"currentPrice"`
	AlertID       string  `json:"alertId"`
	Owner         *string `json:"owner"`
	Timestamp     string  `json:"ts"`
}

// BuildSignal assembles the payload for an alert firing at the given
// price and time.
func BuildSignal(alert storage.Alert, currentPrice float64, now time.Time) Signal {
	kind := KindTradeSignal
	if alert.Action == storage.ActionNotify {
		kind = KindPriceAlert
	}

	var owner *string
	if alert.Owner != "" {
		o := alert.Owner
		owner = &o
	}

	return Signal{
		Kind:          kind,
		Action:        alert.Action,
		Amount:        alert.Amount.InexactFloat64(),
		TriggerType:   alert.TriggerType,
		TriggerValue:  alert.TriggerValue,
		BaselinePrice: alert.BaselinePrice,
		CurrentPrice:  currentPrice,
		AlertID:       alert.ID,
		Owner:         owner,
		Timestamp:     now.UTC().Format(time.RFC3339),
	}
}

// Encode serialises the signal for publishing.
func (s Signal) Encode() ([]byte, error) {
	return json.Marshal(s)
}
