package api

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/lpbot/internal/amm"
	"github.com/web3guy0/lpbot/internal/chart"
	"github.com/web3guy0/lpbot/internal/config"
	"github.com/web3guy0/lpbot/internal/core"
	"github.com/web3guy0/lpbot/internal/database"
	"github.com/web3guy0/lpbot/internal/perp"
)

var noData = gin.H{"status": "no-data"}

func respondError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

// statusFor maps engine and config sentinels to HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrBusy),
		errors.Is(err, core.ErrActivePositionExists),
		errors.Is(err, core.ErrPositionMonitored):
		return http.StatusConflict
	case errors.Is(err, core.ErrNoActivePosition),
		errors.Is(err, core.ErrPositionNotFound):
		return http.StatusNotFound
	case errors.Is(err, config.ErrInvalidConfig):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func intQuery(c *gin.Context, key string, def int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

func (s *Server) status(c *gin.Context) {
	snap, ok := s.d.Session.Snapshot()
	if !ok {
		c.JSON(http.StatusOK, noData)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.d.Session.Config())
}

func (s *Server) postConfig(c *gin.Context) {
	var patch config.RuntimePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	next, err := s.d.Engine.UpdateConfig(c.Request.Context(), patch)
	if err != nil {
		respondError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, next)
}

func (s *Server) listPositions(c *gin.Context) {
	rows, err := s.d.Store.ListPositions(c.Request.Context(), intQuery(c, "limit", 50))
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if rows == nil {
		rows = []database.Position{}
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) activePosition(c *gin.Context) {
	s.onePosition(c, s.d.Store.LatestActivePosition)
}

func (s *Server) latestPosition(c *gin.Context) {
	s.onePosition(c, s.d.Store.LatestPosition)
}

func (s *Server) onePosition(c *gin.Context, load func(context.Context) (*database.Position, error)) {
	p, err := load(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if p == nil {
		c.JSON(http.StatusOK, noData)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) deletePosition(c *gin.Context) {
	var body struct {
		TokenID string `json:"tokenId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	tokenID := strings.TrimSpace(body.TokenID)
	if tokenID == "" {
		respondError(c, http.StatusBadRequest, errors.New("tokenId is required"))
		return
	}
	if err := s.d.Engine.DeletePosition(c.Request.Context(), tokenID); err != nil {
		respondError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "tokenId": tokenID})
}

// action runs a manual engine action. The engine detaches it from the
// request context, so a client disconnect does not abort transactions.
func (s *Server) action(run func(context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := run(c.Request.Context()); err != nil {
			respondError(c, statusFor(err), err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func (s *Server) chart(c *gin.Context) {
	if s.d.Chart == nil || !s.d.Chart.Configured() {
		respondError(c, http.StatusServiceUnavailable, chart.ErrNotConfigured)
		return
	}
	hours := chart.ClampHours(intQuery(c, "hours", chart.DefaultHours))
	points, err := s.d.Chart.PoolHours(c.Request.Context(), s.d.PoolAddress, hours)
	if err != nil {
		respondError(c, http.StatusBadGateway, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pool": s.d.PoolAddress, "hours": hours, "points": points})
}

type tokenBalance struct {
	Address  string          `json:"address,omitempty"`
	Symbol   string          `json:"symbol"`
	Decimals uint8           `json:"decimals"`
	Raw      string          `json:"raw"`
	Balance  decimal.Decimal `json:"balance"`
	ValueIn1 decimal.Decimal `json:"valueIn1"`
}

func (s *Server) walletBalances(c *gin.Context) {
	w, err := s.d.Wallet.WalletBalances(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusBadGateway, err)
		return
	}

	native := amm.ToDecimal(w.Native, 18)
	bal0 := amm.ToDecimal(w.Amount0, w.Token0.Decimals)
	bal1 := amm.ToDecimal(w.Amount1, w.Token1.Decimals)
	value0 := bal0.Mul(w.Price0In1)

	out := gin.H{
		"address":   w.Address.Hex(),
		"price0In1": w.Price0In1,
		"native": tokenBalance{
			Symbol: "ETH", Decimals: 18, Raw: bigString(w.Native),
			Balance: native, ValueIn1: native.Mul(w.Price0In1),
		},
		"token0": tokenBalance{
			Address: w.Token0.Address.Hex(), Symbol: w.Token0.Symbol, Decimals: w.Token0.Decimals,
			Raw: bigString(w.Amount0), Balance: bal0, ValueIn1: value0,
		},
		"token1": tokenBalance{
			Address: w.Token1.Address.Hex(), Symbol: w.Token1.Symbol, Decimals: w.Token1.Decimals,
			Raw: bigString(w.Amount1), Balance: bal1, ValueIn1: bal1,
		},
		"totalValueIn1": value0.Add(bal1),
		"nativeUsd":     nil,
	}
	if s.d.Prices != nil {
		if usd := s.d.Prices.GetCurrentPrice(); usd.IsPositive() {
			out["nativeUsd"] = usd
			out["nativeValueUsd"] = native.Mul(usd)
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) logs(c *gin.Context) {
	c.JSON(http.StatusOK, s.d.Session.Logs(intQuery(c, "limit", 0)))
}

func (s *Server) perpTrades(c *gin.Context) {
	f := database.PerpTradeFilter{
		TokenID: strings.TrimSpace(c.Query("tokenId")),
		Market:  strings.TrimSpace(c.Query("market")),
		Limit:   intQuery(c, "limit", 50),
	}
	trades, err := s.d.Store.ListPerpTrades(c.Request.Context(), f)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if trades == nil {
		trades = []database.PerpTrade{}
	}
	resp := gin.H{"trades": trades}
	if f.TokenID != "" {
		all, err := s.d.Store.PerpTradesByToken(c.Request.Context(), f.TokenID, f.Market)
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		resp["summary"] = perp.Summarize(all)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) perpPositions(c *gin.Context) {
	if s.d.Perp == nil {
		c.JSON(http.StatusOK, noData)
		return
	}
	snap, ok := s.d.Perp.Latest()
	if !ok {
		c.JSON(http.StatusOK, noData)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
