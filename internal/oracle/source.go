package oracle

import (
	"context"
	"math"
	"time"
)

// Quote is one observed USD spot price. It is never persisted; each
// dispatch pass fetches exactly one and shares it across all alerts.
type Quote struct {
	ValueUSD  float64
	FetchedAt time.Time
	Source    string
}

// Usable reports whether the quote can back a dispatch pass. Zero,
// negative, and non-finite values all mean "no usable quote".
func (q Quote) Usable() bool {
	return q.ValueUSD > 0 && !math.IsInf(q.ValueUSD, 0) && !math.IsNaN(q.ValueUSD)
}

// PriceSource retrieves the latest USD spot price for the configured asset.
type PriceSource interface {
	Latest(ctx context.Context) (Quote, error)
}
