package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Fallback tries a fixed, prioritised list of price sources and returns
// the first usable quote. Provider failures below the winner are logged,
// not surfaced.
type Fallback struct {
	sources []PriceSource
	logger  zerolog.Logger
}

// NewFallback constructs a chained price source.
func NewFallback(logger zerolog.Logger, sources ...PriceSource) *Fallback {
	return &Fallback{
		sources: sources,
		logger:  logger.With().Str("component", "oracle_fallback").Logger(),
	}
}

// Latest returns the first usable quote from the chain.
func (f *Fallback) Latest(ctx context.Context) (Quote, error) {
	if len(f.sources) == 0 {
		return Quote{}, errors.New("no price sources configured")
	}

	var lastErr error
	for _, source := range f.sources {
		quote, err := source.Latest(ctx)
		if err != nil {
			lastErr = err
			f.logger.Warn().Err(err).Msg("price source failed, trying next")
			continue
		}
		if !quote.Usable() {
			lastErr = fmt.Errorf("%s returned unusable quote", quote.Source)
			continue
		}
		return quote, nil
	}
	return Quote{}, fmt.Errorf("all price sources failed: %w", lastErr)
}

var _ PriceSource = (*Fallback)(nil)
