// Package chart reads hourly pool candles from a Uniswap v3 subgraph.
package chart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultHours = 24
	MaxHours     = 720
)

var ErrNotConfigured = errors.New("subgraph not configured")

// Point is one hourly candle. Prices are token0 in token1.
type Point struct {
	Time      int64           `json:"time"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	VolumeUSD decimal.Decimal `json:"volumeUSD"`
	TVLUSD    decimal.Decimal `json:"tvlUSD"`
	FeesUSD   decimal.Decimal `json:"feesUSD"`
}

const poolHoursQuery = `query PoolHours($pool: String!, $since: Int!, $first: Int!) {
  poolHourDatas(
    where: { pool: $pool, periodStartUnix_gte: $since }
    orderBy: periodStartUnix
    orderDirection: asc
    first: $first
  ) {
    periodStartUnix
    open
    high
    low
    close
    volumeUSD
    tvlUSD
    feesUSD
  }
}`

type Client struct {
	url    string
	apiKey string
	http   *http.Client
	now    func() time.Time
}

func New(url, apiKey string) *Client {
	return &Client{
		url:    url,
		apiKey: apiKey,
		http:   &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.url != ""
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type gqlResponse struct {
	Data struct {
		PoolHourDatas []struct {
			PeriodStartUnix int64           `json:"periodStartUnix"`
			Open            decimal.Decimal `json:"open"`
			High            decimal.Decimal `json:"high"`
			Low             decimal.Decimal `json:"low"`
			Close           decimal.Decimal `json:"close"`
			VolumeUSD       decimal.Decimal `json:"volumeUSD"`
			TVLUSD          decimal.Decimal `json:"tvlUSD"`
			FeesUSD         decimal.Decimal `json:"feesUSD"`
		} `json:"poolHourDatas"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// ClampHours bounds an hours query parameter to [1, MaxHours].
func ClampHours(hours int) int {
	switch {
	case hours <= 0:
		return DefaultHours
	case hours > MaxHours:
		return MaxHours
	}
	return hours
}

// PoolHours returns candles for the last hours, oldest first.
func (c *Client) PoolHours(ctx context.Context, pool string, hours int) ([]Point, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	hours = ClampHours(hours)
	since := c.now().Add(-time.Duration(hours) * time.Hour).Unix()

	body, err := json.Marshal(gqlRequest{
		Query: poolHoursQuery,
		Variables: map[string]any{
			"pool":  strings.ToLower(pool),
			"since": since,
			"first": hours + 1,
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("subgraph: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("subgraph: status %d", resp.StatusCode)
	}

	var out gqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("subgraph: decode: %w", err)
	}
	if len(out.Errors) > 0 {
		return nil, fmt.Errorf("subgraph: %s", out.Errors[0].Message)
	}

	points := make([]Point, 0, len(out.Data.PoolHourDatas))
	for _, h := range out.Data.PoolHourDatas {
		points = append(points, Point{
			Time:      h.PeriodStartUnix,
			Open:      h.Open,
			High:      h.High,
			Low:       h.Low,
			Close:     h.Close,
			VolumeUSD: h.VolumeUSD,
			TVLUSD:    h.TVLUSD,
			FeesUSD:   h.FeesUSD,
		})
	}
	return points, nil
}
