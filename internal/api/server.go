// Package api serves the dashboard JSON API and the static front end.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/lpbot/internal/chain"
	"github.com/web3guy0/lpbot/internal/chart"
	"github.com/web3guy0/lpbot/internal/config"
	"github.com/web3guy0/lpbot/internal/database"
	"github.com/web3guy0/lpbot/internal/perp"
	"github.com/web3guy0/lpbot/internal/session"
)

// Engine is the action surface behind the POST routes.
type Engine interface {
	Rebalance(ctx context.Context) error
	Close(ctx context.Context) error
	Mint(ctx context.Context) error
	UpdateConfig(ctx context.Context, patch config.RuntimePatch) (config.Runtime, error)
	DeletePosition(ctx context.Context, tokenID string) error
}

type Store interface {
	ListPositions(ctx context.Context, limit int) ([]database.Position, error)
	LatestActivePosition(ctx context.Context) (*database.Position, error)
	LatestPosition(ctx context.Context) (*database.Position, error)
	ListPerpTrades(ctx context.Context, f database.PerpTradeFilter) ([]database.PerpTrade, error)
	PerpTradesByToken(ctx context.Context, tokenID, market string) ([]database.PerpTrade, error)
}

type Wallet interface {
	WalletBalances(ctx context.Context) (*chain.WalletBalances, error)
}

type ChartSource interface {
	Configured() bool
	PoolHours(ctx context.Context, pool string, hours int) ([]chart.Point, error)
}

type PriceIndex interface {
	GetCurrentPrice() decimal.Decimal
}

type PerpPositions interface {
	Latest() (perp.PositionsSnapshot, bool)
}

// Deps wires the server. Chart, Prices, Perp and Metrics are optional.
type Deps struct {
	Session     *session.Session
	Engine      Engine
	Store       Store
	Wallet      Wallet
	Chart       ChartSource
	Prices      PriceIndex
	Perp        PerpPositions
	Metrics     http.Handler
	PoolAddress string
	WebDir      string
}

type Server struct {
	d      Deps
	router *gin.Engine
	http   *http.Server
}

func NewServer(d Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), corsMiddleware())

	s := &Server{d: d, router: r}
	s.register(r)
	return s
}

func (s *Server) register(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if s.d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.d.Metrics))
	}

	r.GET("/status", s.status)
	r.GET("/config", s.getConfig)
	r.POST("/config", s.postConfig)

	r.GET("/positions", s.listPositions)
	r.GET("/positions/active", s.activePosition)
	r.GET("/positions/latest", s.latestPosition)
	r.POST("/positions/delete", s.deletePosition)

	r.POST("/action/rebalance", s.action(s.d.Engine.Rebalance))
	r.POST("/action/close", s.action(s.d.Engine.Close))
	r.POST("/action/mint", s.action(s.d.Engine.Mint))

	r.GET("/chart", s.chart)
	r.GET("/wallet/balances", s.walletBalances)
	r.GET("/logs", s.logs)

	r.GET("/perp/trades", s.perpTrades)
	r.GET("/perp/positions", s.perpPositions)

	if s.d.WebDir != "" {
		if _, err := os.Stat(s.d.WebDir); err == nil {
			r.Static("/ui", s.d.WebDir)
			r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/ui/") })
		} else {
			log.Warn().Str("dir", s.d.WebDir).Msg("Dashboard directory not found, /ui disabled")
		}
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens in the background.
func (s *Server) Start(port int) {
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("API server stopped")
		}
	}()
	log.Info().Int("port", port).Msg("🌐 API server listening")
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("http")
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
