package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const pythLatestPricePath = "/v2/updates/price/latest"

// PythOptions parameterise the Pyth Hermes fetcher.
type PythOptions struct {
	BaseURL   string
	FeedID    string
	Timeout   time.Duration
	UserAgent string
}

// Pyth fetches spot prices from the Pyth Hermes price service.
type Pyth struct {
	opts    PythOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewPyth constructs a Pyth Hermes price source.
func NewPyth(opts PythOptions, logger zerolog.Logger) *Pyth {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://hermes.pyth.network"
	}

	return &Pyth{
		opts:    opts,
		logger:  logger.With().Str("component", "pyth_source").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

type pythResponse struct {
	Parsed []struct {
		Price struct {
			Price string `json:"price"`
			Expo  int32  `json:"expo"`
		} `json:"price"`
	} `json:"parsed"`
}

// Latest retrieves the configured feed and normalises price*10^expo to USD.
func (p *Pyth) Latest(ctx context.Context) (Quote, error) {
	if p.opts.FeedID == "" {
		return Quote{}, errors.New("pyth feed id not configured")
	}

	endpoint := fmt.Sprintf("%s%s?ids[]=%s&parsed=true", p.baseURL, pythLatestPricePath, url.QueryEscape(p.opts.FeedID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Quote{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(p.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Quote{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Quote{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("pyth hermes error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var body pythResponse
	if err := json.Unmarshal(payload, &body); err != nil {
		return Quote{}, err
	}
	if len(body.Parsed) == 0 {
		return Quote{}, errors.New("pyth hermes response contained no parsed feeds")
	}

	raw := body.Parsed[0].Price
	mantissa, err := decimal.NewFromString(raw.Price)
	if err != nil {
		return Quote{}, fmt.Errorf("parse pyth price mantissa: %w", err)
	}

	value := mantissa.Shift(raw.Expo)
	quote := Quote{ValueUSD: value.InexactFloat64(), FetchedAt: time.Now().UTC(), Source: "pyth"}
	if !quote.Usable() {
		return Quote{}, fmt.Errorf("pyth returned unusable price %s", value.String())
	}
	return quote, nil
}

var _ PriceSource = (*Pyth)(nil)
