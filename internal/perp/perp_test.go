package perp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/lpbot/internal/config"
	"github.com/web3guy0/lpbot/internal/database"
)

type call struct {
	command string
	payload string
}

type scriptedRunner struct {
	mu        sync.Mutex
	calls     []call
	responses map[string]*Result
	err       error
}

func (r *scriptedRunner) Run(_ context.Context, command string, payload any) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	body, _ := json.Marshal(payload)
	r.calls = append(r.calls, call{command: command, payload: string(body)})
	if r.err != nil {
		return nil, r.err
	}
	if res, ok := r.responses[command]; ok {
		return res, nil
	}
	return &Result{OK: false, Error: "not scripted"}, nil
}

type memTrades struct {
	rows []database.PerpTrade
}

func (m *memTrades) InsertPerpTrade(_ context.Context, t *database.PerpTrade) error {
	for _, r := range m.rows {
		if r.TradeID == t.TradeID {
			return nil
		}
	}
	m.rows = append(m.rows, *t)
	return nil
}

func (m *memTrades) PerpTradesByToken(_ context.Context, tokenID, market string) ([]database.PerpTrade, error) {
	var out []database.PerpTrade
	for _, r := range m.rows {
		if r.TokenID == tokenID && (market == "" || r.Market == market) {
			out = append(out, r)
		}
	}
	return out, nil
}

func perpConfig() config.PerpConfig {
	return config.PerpConfig{
		Market:         "ETH-USD",
		MaxSlippagePct: decimal.RequireFromString("0.5"),
		SizeMultiplier: decimal.NewFromInt(1),
	}
}

func okResult(data string) *Result {
	return &Result{OK: true, Data: json.RawMessage(data)}
}

func TestOpenPlacesShortAndStoresFill(t *testing.T) {
	runner := &scriptedRunner{responses: map[string]*Result{
		"market_order": okResult(`{"order_id": 555}`),
		"order_by_id": okResult(`{"order":{"trade":{"id":1,"order_id":555,"market":"ETH-USD","side":"SELL",
			"price":"2000","qty":"0.25","value":"500","fee":"0.1","is_taker":true,"trade_type":"TRADE","created_time":1700000000000}}}`),
	}}
	store := &memTrades{}
	h := NewHedger(runner, store, perpConfig())

	require.NoError(t, h.Open(context.Background(), "42", decimal.RequireFromString("0.25")))

	require.Len(t, runner.calls, 2)
	assert.Equal(t, "market_order", runner.calls[0].command)
	assert.JSONEq(t, `{"side":"SELL","size":"0.25","market":"ETH-USD","max_slippage_pct":"0.5"}`, runner.calls[0].payload)
	assert.JSONEq(t, `{"order_id":"555"}`, runner.calls[1].payload)

	require.Len(t, store.rows, 1)
	row := store.rows[0]
	assert.Equal(t, "1", row.TradeID)
	assert.Equal(t, "555", row.OrderID)
	assert.Equal(t, "42", row.TokenID)
	assert.Equal(t, SideSell, row.Side)
	assert.True(t, row.Qty.Equal(decimal.RequireFromString("0.25")))
	assert.Equal(t, int64(1700000000000), row.CreatedTime)
	assert.True(t, row.IsTaker)
}

func TestOpenOmitsUnsetSlippage(t *testing.T) {
	runner := &scriptedRunner{responses: map[string]*Result{
		"market_order": okResult(`{"order_id": 7}`),
		"order_by_id":  okResult(`{"order":{"trade":{"id":2,"order_id":7,"market":"ETH-USD","side":"SELL","price":"2000","qty":"0.1"}}}`),
	}}
	cfg := perpConfig()
	cfg.MaxSlippagePct = decimal.Zero
	h := NewHedger(runner, &memTrades{}, cfg)

	require.NoError(t, h.Open(context.Background(), "42", decimal.RequireFromString("0.1")))
	assert.JSONEq(t, `{"side":"SELL","size":"0.1","market":"ETH-USD"}`, runner.calls[0].payload)
}

func TestOpenFallsBackToTradeList(t *testing.T) {
	runner := &scriptedRunner{responses: map[string]*Result{
		"market_order": okResult(`{"order_id":"9"}`),
		"trades": okResult(`{"trades":[
			{"id":"a","order_id":"8","market":"ETH-USD","side":"SELL","price":"1","qty":"1","created_time":1},
			{"id":"b","order_id":"9","market":"ETH-USD","side":"SELL","price":"2000","qty":"0.1","created_time":2}
		]}`),
	}}
	store := &memTrades{}
	h := NewHedger(runner, store, perpConfig())

	require.NoError(t, h.Open(context.Background(), "42", decimal.RequireFromString("0.1")))
	require.Len(t, store.rows, 1)
	assert.Equal(t, "b", store.rows[0].TradeID)
	assert.JSONEq(t, `{"market":["ETH-USD"],"limit":10}`, runner.calls[2].payload)
}

func TestOpenScalesSizeAndSkipsZero(t *testing.T) {
	cfg := perpConfig()
	cfg.SizeMultiplier = decimal.RequireFromString("1.5")
	cfg.ReduceOnly = true
	runner := &scriptedRunner{responses: map[string]*Result{"market_order": okResult(`{}`)}}
	h := NewHedger(runner, &memTrades{}, cfg)

	require.NoError(t, h.Open(context.Background(), "1", decimal.Zero))
	assert.Empty(t, runner.calls)

	require.NoError(t, h.Open(context.Background(), "1", decimal.RequireFromString("0.123456789")))
	require.Len(t, runner.calls, 1)
	assert.JSONEq(t, `{"side":"SELL","size":"0.18518518","market":"ETH-USD","max_slippage_pct":"0.5","reduce_only":true}`, runner.calls[0].payload)
}

func TestOpenReportsVenueError(t *testing.T) {
	runner := &scriptedRunner{responses: map[string]*Result{
		"market_order": {OK: false, Error: "insufficient margin", StatusCode: 400},
	}}
	err := NewHedger(runner, &memTrades{}, perpConfig()).Open(context.Background(), "1", decimal.NewFromInt(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient margin")
	assert.Contains(t, err.Error(), "400")
}

func TestCloseFlattensNetPosition(t *testing.T) {
	store := &memTrades{rows: []database.PerpTrade{
		{TradeID: "1", TokenID: "42", Market: "ETH-USD", Side: SideSell, Qty: decimal.RequireFromString("0.3")},
		{TradeID: "2", TokenID: "42", Market: "ETH-USD", Side: SideBuy, Qty: decimal.RequireFromString("0.1")},
		{TradeID: "3", TokenID: "7", Market: "ETH-USD", Side: SideSell, Qty: decimal.NewFromInt(5)},
	}}
	runner := &scriptedRunner{responses: map[string]*Result{"market_order": okResult(`{}`)}}
	h := NewHedger(runner, store, perpConfig())

	require.NoError(t, h.Close(context.Background(), "42"))
	require.Len(t, runner.calls, 1)
	assert.JSONEq(t, `{"side":"BUY","size":"0.2","market":"ETH-USD","max_slippage_pct":"0.5","reduce_only":true}`, runner.calls[0].payload)
}

func TestCloseWithoutFillsIsNoop(t *testing.T) {
	runner := &scriptedRunner{}
	require.NoError(t, NewHedger(runner, &memTrades{}, perpConfig()).Close(context.Background(), "42"))
	assert.Empty(t, runner.calls)
}

func TestRunnerErrorPropagates(t *testing.T) {
	runner := &scriptedRunner{err: errors.New("exec: python3 not found")}
	err := NewHedger(runner, &memTrades{}, perpConfig()).Open(context.Background(), "1", decimal.NewFromInt(1))
	assert.ErrorContains(t, err, "python3 not found")
}

func TestSummarize(t *testing.T) {
	trades := []database.PerpTrade{
		{Side: SideSell, Qty: decimal.NewFromInt(1), Price: decimal.NewFromInt(2000), Fee: decimal.NewFromInt(1)},
		{Side: SideBuy, Qty: decimal.NewFromInt(1), Value: decimal.NewFromInt(1900), Fee: decimal.NewFromInt(1)},
	}
	s := Summarize(trades)
	assert.True(t, s.Flat)
	assert.True(t, s.Cash.Equal(decimal.NewFromInt(100)))
	assert.True(t, s.RealizedPnL.Equal(decimal.NewFromInt(98)))

	open := Summarize(trades[:1])
	assert.False(t, open.Flat)
	assert.True(t, open.NetQty.Equal(decimal.NewFromInt(-1)))
	assert.True(t, open.RealizedPnL.IsZero())
}

func TestCLIClientRoundTrip(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	script := filepath.Join(t.TempDir(), "cli.sh")
	body := "payload=$(cat)\nprintf '{\"ok\":true,\"data\":{\"command\":\"%s\",\"payload\":%s}}' \"$1\" \"$payload\"\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))

	res, err := NewCLIClient("sh", script).Run(context.Background(), "balance", map[string]int{"limit": 3})
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.JSONEq(t, `{"command":"balance","payload":{"limit":3}}`, string(res.Data))
}

func TestCLIClientEmptyOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	script := filepath.Join(t.TempDir(), "cli.sh")
	require.NoError(t, os.WriteFile(script, []byte("echo boom >&2\nexit 2\n"), 0o755))

	_, err := NewCLIClient("sh", script).Run(context.Background(), "trades", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestStreamKeepsLatestPositions(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"BALANCE","data":{}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"POSITION","data":{"positions":[{"market":"ETH-USD"}]},"ts":123,"seq":4}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	updates := make(chan PositionsSnapshot, 1)
	s := NewStream("ws"+strings.TrimPrefix(srv.URL, "http"), "secret", func(p PositionsSnapshot) { updates <- p })
	s.Start(context.Background())
	defer s.Stop()

	select {
	case snap := <-updates:
		assert.Len(t, snap.Positions, 1)
		assert.Equal(t, int64(123), snap.TS)
		require.NotNil(t, snap.Seq)
		assert.Equal(t, int64(4), *snap.Seq)
	case <-time.After(5 * time.Second):
		t.Fatal("no positions update")
	}
	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, int64(123), latest.TS)
}

func TestStreamWithoutKeyStaysOff(t *testing.T) {
	s := NewStream("ws://127.0.0.1:1", "", nil)
	s.Start(context.Background())
	s.Stop()
	_, ok := s.Latest()
	assert.False(t, ok)
}
