package api

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/lpbot/internal/chain"
	"github.com/web3guy0/lpbot/internal/chart"
	"github.com/web3guy0/lpbot/internal/config"
	"github.com/web3guy0/lpbot/internal/core"
	"github.com/web3guy0/lpbot/internal/database"
	"github.com/web3guy0/lpbot/internal/monitor"
	"github.com/web3guy0/lpbot/internal/session"
)

type fakeEngine struct {
	err     error
	deleted string
	calls   []string
	sess    *session.Session
}

func (e *fakeEngine) Rebalance(context.Context) error {
	e.calls = append(e.calls, "rebalance")
	return e.err
}

func (e *fakeEngine) Close(context.Context) error {
	e.calls = append(e.calls, "close")
	return e.err
}

func (e *fakeEngine) Mint(context.Context) error {
	e.calls = append(e.calls, "mint")
	return e.err
}

func (e *fakeEngine) UpdateConfig(_ context.Context, patch config.RuntimePatch) (config.Runtime, error) {
	next, err := e.sess.Config().Apply(patch)
	if err != nil {
		return config.Runtime{}, err
	}
	e.sess.SetConfig(next)
	return next, nil
}

func (e *fakeEngine) DeletePosition(_ context.Context, tokenID string) error {
	e.deleted = tokenID
	return e.err
}

type fakeStore struct {
	positions []database.Position
	trades    []database.PerpTrade
	filter    database.PerpTradeFilter
}

func (s *fakeStore) ListPositions(context.Context, int) ([]database.Position, error) {
	return s.positions, nil
}

func (s *fakeStore) LatestActivePosition(context.Context) (*database.Position, error) {
	for i := len(s.positions) - 1; i >= 0; i-- {
		if s.positions[i].Status == database.StatusActive {
			return &s.positions[i], nil
		}
	}
	return nil, nil
}

func (s *fakeStore) LatestPosition(context.Context) (*database.Position, error) {
	if len(s.positions) == 0 {
		return nil, nil
	}
	return &s.positions[len(s.positions)-1], nil
}

func (s *fakeStore) ListPerpTrades(_ context.Context, f database.PerpTradeFilter) ([]database.PerpTrade, error) {
	s.filter = f
	return s.trades, nil
}

func (s *fakeStore) PerpTradesByToken(_ context.Context, tokenID, _ string) ([]database.PerpTrade, error) {
	var out []database.PerpTrade
	for _, t := range s.trades {
		if t.TokenID == tokenID {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeWallet struct{ err error }

func (w fakeWallet) WalletBalances(context.Context) (*chain.WalletBalances, error) {
	if w.err != nil {
		return nil, w.err
	}
	return &chain.WalletBalances{
		Address:   common.HexToAddress("0x01"),
		Native:    new(big.Int).Mul(big.NewInt(5), big.NewInt(1e17)),
		Token0:    chain.TokenMeta{Address: common.HexToAddress("0x02"), Symbol: "WETH", Decimals: 18},
		Token1:    chain.TokenMeta{Address: common.HexToAddress("0x03"), Symbol: "USDC", Decimals: 6},
		Amount0:   big.NewInt(1e18),
		Amount1:   big.NewInt(250_000_000),
		Price0In1: decimal.NewFromInt(2000),
	}, nil
}

type fixedPrice decimal.Decimal

func (p fixedPrice) GetCurrentPrice() decimal.Decimal { return decimal.Decimal(p) }

type harness struct {
	srv    *Server
	engine *fakeEngine
	store  *fakeStore
	sess   *session.Session
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	sess := session.New(config.Runtime{
		TickRange:         100,
		RebalanceDelaySec: 60,
		SlippageBps:       50,
		StopLossPercent:   decimal.NewFromInt(5),
		MaxGasPriceGwei:   decimal.NewFromInt(2),
	})
	h := &harness{
		engine: &fakeEngine{sess: sess},
		store:  &fakeStore{},
		sess:   sess,
	}
	h.srv = NewServer(Deps{
		Session:     sess,
		Engine:      h.engine,
		Store:       h.store,
		Wallet:      fakeWallet{},
		Chart:       chart.New("", ""),
		Prices:      fixedPrice(decimal.NewFromInt(2000)),
		PoolAddress: "0xpool",
	})
	return h
}

func (h *harness) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestStatusWithoutSnapshot(t *testing.T) {
	h := newHarness(t)
	rec, body := h.do(t, http.MethodGet, "/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-data", body["status"])
}

func TestStatusReturnsSnapshot(t *testing.T) {
	h := newHarness(t)
	h.sess.SetSnapshot(monitor.Snapshot{TokenID: "7", Status: "in-range", CurrentTick: 12})

	rec, body := h.do(t, http.MethodGet, "/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "7", body["tokenId"])
	assert.Equal(t, float64(12), body["currentTick"])
}

func TestConfigUpdate(t *testing.T) {
	h := newHarness(t)

	rec, body := h.do(t, http.MethodPost, "/config", `{"tickRange": 250}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(250), body["tickRange"])
	assert.Equal(t, 250, h.sess.Config().TickRange)
	assert.Equal(t, 60, h.sess.Config().RebalanceDelaySec)

	rec, body = h.do(t, http.MethodPost, "/config", `{"slippageBps": 20000}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "slippageBps")

	rec, _ = h.do(t, http.MethodPost, "/config", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActions(t *testing.T) {
	h := newHarness(t)
	for _, name := range []string{"rebalance", "close", "mint"} {
		rec, body := h.do(t, http.MethodPost, "/action/"+name, "")
		assert.Equal(t, http.StatusOK, rec.Code, name)
		assert.Equal(t, true, body["ok"])
	}
	assert.Equal(t, []string{"rebalance", "close", "mint"}, h.engine.calls)
}

func TestActionErrorCodes(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{core.ErrBusy, http.StatusConflict},
		{core.ErrActivePositionExists, http.StatusConflict},
		{core.ErrNoActivePosition, http.StatusNotFound},
		{errors.New("rpc down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		h := newHarness(t)
		h.engine.err = tc.err
		rec, body := h.do(t, http.MethodPost, "/action/close", "")
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
		assert.Equal(t, tc.err.Error(), body["error"])
	}
}

func TestDeletePosition(t *testing.T) {
	h := newHarness(t)

	rec, _ := h.do(t, http.MethodPost, "/positions/delete", `{"tokenId": " "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := h.do(t, http.MethodPost, "/positions/delete", `{"tokenId": "42"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", body["tokenId"])
	assert.Equal(t, "42", h.engine.deleted)

	h.engine.err = core.ErrPositionMonitored
	rec, _ = h.do(t, http.MethodPost, "/positions/delete", `{"tokenId": "42"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	h.engine.err = core.ErrPositionNotFound
	rec, _ = h.do(t, http.MethodPost, "/positions/delete", `{"tokenId": "43"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPositions(t *testing.T) {
	h := newHarness(t)

	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/positions", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	_, body := h.do(t, http.MethodGet, "/positions/active", "")
	assert.Equal(t, "no-data", body["status"])

	h.store.positions = []database.Position{
		{TokenID: "1", Status: database.StatusActive},
		{TokenID: "2", Status: database.StatusClosed},
	}
	_, body = h.do(t, http.MethodGet, "/positions/active", "")
	assert.Equal(t, "1", body["tokenId"])
	_, body = h.do(t, http.MethodGet, "/positions/latest", "")
	assert.Equal(t, "2", body["tokenId"])
}

func TestChartNotConfigured(t *testing.T) {
	h := newHarness(t)
	rec, body := h.do(t, http.MethodGet, "/chart?hours=6", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, chart.ErrNotConfigured.Error(), body["error"])
}

func TestWalletBalances(t *testing.T) {
	h := newHarness(t)
	rec, body := h.do(t, http.MethodGet, "/wallet/balances", "")
	require.Equal(t, http.StatusOK, rec.Code)

	token1 := body["token1"].(map[string]any)
	assert.Equal(t, "USDC", token1["symbol"])
	assert.Equal(t, "250000000", token1["raw"])
	native := body["native"].(map[string]any)
	assert.Equal(t, "500000000000000000", native["raw"])
	assert.NotNil(t, body["nativeUsd"])
	assert.NotNil(t, body["nativeValueUsd"])
}

func TestWalletBalancesError(t *testing.T) {
	h := newHarness(t)
	h.srv.d.Wallet = fakeWallet{err: errors.New("rpc down")}
	rec, body := h.do(t, http.MethodGet, "/wallet/balances", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "rpc down", body["error"])
}

func TestLogs(t *testing.T) {
	h := newHarness(t)
	h.sess.AddLog("info", "first")
	h.sess.AddLog("error", "second")

	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []session.LogEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "second", entries[0].Message)
}

func TestPerpTradesWithSummary(t *testing.T) {
	h := newHarness(t)
	h.store.trades = []database.PerpTrade{
		{TradeID: "a", TokenID: "9", Side: "SELL", Qty: decimal.RequireFromString("0.2"), Value: decimal.NewFromInt(400), Fee: decimal.RequireFromString("0.1")},
		{TradeID: "b", TokenID: "9", Side: "BUY", Qty: decimal.RequireFromString("0.2"), Value: decimal.NewFromInt(390), Fee: decimal.RequireFromString("0.1")},
	}

	rec, body := h.do(t, http.MethodGet, "/perp/trades?tokenId=9&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, h.store.filter.Limit)
	assert.Equal(t, "9", h.store.filter.TokenID)
	assert.Len(t, body["trades"], 2)

	summary := body["summary"].(map[string]any)
	assert.Equal(t, true, summary["flat"])
	assert.Equal(t, float64(2), summary["trades"])

	_, body = h.do(t, http.MethodGet, "/perp/trades", "")
	assert.NotContains(t, body, "summary")
}

func TestPerpPositionsWithoutStream(t *testing.T) {
	h := newHarness(t)
	_, body := h.do(t, http.MethodGet, "/perp/positions", "")
	assert.Equal(t, "no-data", body["status"])
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t)
	rec, _ := h.do(t, http.MethodOptions, "/action/close", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, h.engine.calls)
}
