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
)

const coingeckoSimplePricePath = "/simple/price"

// CoinGeckoOptions parameterise the CoinGecko fetcher.
type CoinGeckoOptions struct {
	BaseURL   string
	AssetID   string
	Timeout   time.Duration
	UserAgent string
}

// CoinGecko fetches spot prices from the CoinGecko simple-price endpoint.
type CoinGecko struct {
	opts    CoinGeckoOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewCoinGecko constructs a CoinGecko price source.
func NewCoinGecko(opts CoinGeckoOptions, logger zerolog.Logger) *CoinGecko {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}

	return &CoinGecko{
		opts:    opts,
		logger:  logger.With().Str("component", "coingecko_source").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Latest retrieves the current USD price for the configured asset.
func (c *CoinGecko) Latest(ctx context.Context) (Quote, error) {
	if c.opts.AssetID == "" {
		return Quote{}, errors.New("coingecko asset id not configured")
	}

	endpoint := fmt.Sprintf("%s%s?ids=%s&vs_currencies=usd", c.baseURL, coingeckoSimplePricePath, url.QueryEscape(c.opts.AssetID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Quote{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Quote{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Quote{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("coingecko api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var body map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return Quote{}, err
	}

	entry, ok := body[c.opts.AssetID]
	if !ok {
		return Quote{}, fmt.Errorf("coingecko response missing asset %q", c.opts.AssetID)
	}

	quote := Quote{ValueUSD: entry.USD, FetchedAt: time.Now().UTC(), Source: "coingecko"}
	if !quote.Usable() {
		return Quote{}, fmt.Errorf("coingecko returned unusable price %v", entry.USD)
	}
	return quote, nil
}

var _ PriceSource = (*CoinGecko)(nil)
