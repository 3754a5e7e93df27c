package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/terminal-bench/walletguard/internal/policy"
	"github.com/terminal-bench/walletguard/pkg/circuit"
)

// Client fetches USD prices from an external oracle service, caching them in
// Redis and shielding the upstream behind a circuit breaker. Valuation is the
// only external call on the payment path; the sentinel treats the returned
// USD value as an input and applies the zero-price policy itself, so a price
// of zero is returned as-is, never treated as an error.
type Client struct {
	baseURL  string
	http     *http.Client
	breaker  *circuit.Breaker
	cache    *redis.Client // optional
	cacheTTL time.Duration
	log      zerolog.Logger
}

// Config holds oracle client configuration.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// NewClient creates an oracle client. cache may be nil.
func NewClient(cfg Config, cache *redis.Client, log zerolog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: circuit.NewBreaker(circuit.Config{
			Name:        "oracle",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
			HalfOpenMax: 3,
		}),
		cache:    cache,
		cacheTTL: cfg.CacheTTL,
		log:      log,
	}
}

type priceResponse struct {
	Asset string `json:"asset"`
	Price string `json:"price"`
}

// Price returns the USD price of one unit of asset.
func (c *Client) Price(ctx context.Context, asset policy.Address) (decimal.Decimal, error) {
	if cached, ok := c.cachedPrice(ctx, asset); ok {
		return cached, nil
	}

	var price decimal.Decimal
	err := c.breaker.Execute(ctx, func() error {
		reqURL := fmt.Sprintf("%s/price?asset=%s", c.baseURL, url.QueryEscape(string(asset)))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("oracle returned status %d", resp.StatusCode)
		}

		var body priceResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("failed to decode oracle response: %w", err)
		}
		price, err = decimal.NewFromString(body.Price)
		if err != nil {
			return fmt.Errorf("invalid oracle price %q: %w", body.Price, err)
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	c.storePrice(ctx, asset, price)
	return price, nil
}

// USDValue values an (asset, amount) pair in USD.
func (c *Client) USDValue(ctx context.Context, asset policy.Address, amount decimal.Decimal) (decimal.Decimal, error) {
	price, err := c.Price(ctx, asset)
	if err != nil {
		return decimal.Zero, err
	}
	return price.Mul(amount), nil
}

// BreakerState exposes the breaker state for health reporting.
func (c *Client) BreakerState() circuit.State {
	return c.breaker.State()
}

func (c *Client) cachedPrice(ctx context.Context, asset policy.Address) (decimal.Decimal, bool) {
	if c.cache == nil {
		return decimal.Zero, false
	}
	raw, err := c.cache.Get(ctx, "price:"+string(asset)).Result()
	if err != nil {
		return decimal.Zero, false
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return price, true
}

func (c *Client) storePrice(ctx context.Context, asset policy.Address, price decimal.Decimal) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, "price:"+string(asset), price.String(), c.cacheTTL).Err(); err != nil {
		c.log.Warn().Err(err).Str("asset", string(asset)).Msg("price cache write failed")
	}
}
