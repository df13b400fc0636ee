// Package cmc polls the CoinMarketCap data API for the USD price of the
// chain's native token. The wallet endpoint uses it to value gas balances.
package cmc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	DefaultBaseURL = "https://api.coinmarketcap.com"
	usdConvertID   = "2781"
	staleAfter     = 5 * time.Minute
)

// CMCResponse represents the API response
type CMCResponse struct {
	Data []struct {
		Symbol string `json:"symbol"`
		Quotes []struct {
			Price float64 `json:"price"`
		} `json:"quotes"`
	} `json:"data"`
}

// Client keeps the latest USD price of one asset
type Client struct {
	httpClient *http.Client
	baseURL    string
	slug       string
	interval   time.Duration

	currentPrice decimal.Decimal
	lastUpdate   time.Time
	mu           sync.RWMutex
	stopCh       chan struct{}
	stopOnce     sync.Once
}

// NewClient creates a client for the asset slug (e.g. "ethereum")
func NewClient(baseURL, slug string, interval time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		slug:       slug,
		interval:   interval,
		stopCh:     make(chan struct{}),
	}
}

// Start begins polling
func (c *Client) Start(ctx context.Context) {
	c.refresh(ctx)

	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.refresh(ctx)
			case <-c.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info().Str("slug", c.slug).Dur("interval", c.interval).Msg("📊 CMC client started")
}

// Stop stops the client
func (c *Client) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *Client) refresh(ctx context.Context) {
	price, err := c.FetchPrice(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("CMC fetch failed")
		return
	}

	c.mu.Lock()
	oldPrice := c.currentPrice
	c.currentPrice = price
	c.lastUpdate = time.Now()
	c.mu.Unlock()

	if !oldPrice.Equal(price) {
		log.Debug().Str("price", price.StringFixed(2)).Msg("📊 CMC price update")
	}
}

// FetchPrice queries the latest USD quote once
func (c *Client) FetchPrice(ctx context.Context) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("slug", c.slug)
	q.Set("convertId", usdConvertID)
	endpoint := c.baseURL + "/data-api/v3/cryptocurrency/quote/latest?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("cmc: status %d", resp.StatusCode)
	}

	var data CMCResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return decimal.Zero, fmt.Errorf("cmc: decode: %w", err)
	}
	if len(data.Data) == 0 || len(data.Data[0].Quotes) == 0 {
		return decimal.Zero, fmt.Errorf("cmc: no quote for %s", c.slug)
	}
	return decimal.NewFromFloat(data.Data[0].Quotes[0].Price), nil
}

// GetCurrentPrice returns the latest price, zero before the first fetch
func (c *Client) GetCurrentPrice() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentPrice
}

// GetLastUpdate returns when price was last updated
func (c *Client) GetLastUpdate() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdate
}

// IsStale returns true if no price arrived recently
func (c *Client) IsStale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Since(c.lastUpdate) > staleAfter
}
