// LP Bot - Uniswap v3 single-position liquidity manager
//
// Watches one concentrated-liquidity position, and when price leaves the
// range for long enough, closes it and re-mints a fresh range centred on
// the current tick.
//
// Flow:
// 1. Monitor the active position (chain events + periodic poll)
// 2. Range guard debounces out-of-range episodes
// 3. Stop loss / rebalance / auto close through the executor
// 4. Optional perp hedge of the token0 leg
// 5. Dashboard API, Telegram/Discord notifications, daily report
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/lpbot/internal/api"
	"github.com/web3guy0/lpbot/internal/chain"
	"github.com/web3guy0/lpbot/internal/chart"
	"github.com/web3guy0/lpbot/internal/cmc"
	"github.com/web3guy0/lpbot/internal/config"
	"github.com/web3guy0/lpbot/internal/core"
	"github.com/web3guy0/lpbot/internal/database"
	"github.com/web3guy0/lpbot/internal/execution"
	"github.com/web3guy0/lpbot/internal/metrics"
	"github.com/web3guy0/lpbot/internal/monitor"
	"github.com/web3guy0/lpbot/internal/notify"
	"github.com/web3guy0/lpbot/internal/perp"
	"github.com/web3guy0/lpbot/internal/report"
	"github.com/web3guy0/lpbot/internal/session"
)

const version = "1.0.0"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Dashboard expects numbers, not quoted strings
	decimal.MarshalJSONWithoutQuotes = true

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().
		Str("version", version).
		Str("pool", cfg.PoolAddress).
		Int("tick_range", cfg.Runtime.TickRange).
		Bool("perp", cfg.Perp.Enabled).
		Msg("💧 LP Bot starting...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	chainClient, err := chain.Dial(ctx, chain.Options{
		RPCURL:          cfg.RPCURL,
		WSURL:           cfg.RPCWSSURL,
		ChainID:         cfg.ChainID,
		PrivateKey:      cfg.PrivateKey,
		Pool:            cfg.PoolAddress,
		PositionManager: cfg.PositionManager,
		SwapRouter:      cfg.SwapRouter,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to chain")
	}
	defer chainClient.Close()

	sess := session.New(cfg.Runtime)
	m := metrics.New()

	// ====== NOTIFICATIONS ======

	notifiers := notify.Multi{}
	if cfg.DiscordWebhookURL != "" {
		discord, err := notify.NewDiscord(cfg.DiscordWebhookURL)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ Discord disabled")
		} else {
			notifiers = append(notifiers, discord)
		}
	}
	var telegram *notify.TelegramBot
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		telegram, err = notify.NewTelegramBot(cfg.TelegramToken, strconv.FormatInt(cfg.TelegramChatID, 10), sess)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ Telegram disabled")
		} else {
			telegram.Start()
			defer telegram.Stop()
			notifiers = append(notifiers, telegram)
		}
	}

	// ====== PERP HEDGE (optional) ======

	var hedger core.Hedger
	var perpStream *perp.Stream
	if cfg.Perp.Enabled {
		runner := perp.NewCLIClient(cfg.Perp.PythonBin, cfg.Perp.CLIPath)
		hedger = perp.NewHedger(runner, db, cfg.Perp)

		perpStream = perp.NewStream(cfg.Perp.PerpStreamURL(), cfg.Perp.APIKey, func(snap perp.PositionsSnapshot) {
			m.SetPerpPositions(len(snap.Positions))
		})
		perpStream.Start(ctx)
		defer perpStream.Stop()
		log.Info().Str("market", cfg.Perp.Market).Msg("🛡️ Perp hedge enabled")
	}

	// ====== PRICE / CHART SOURCES ======

	prices := cmc.NewClient(cmc.DefaultBaseURL, cfg.PriceIndexSlug, 30*time.Second)
	prices.Start(ctx)
	defer prices.Stop()

	subgraph := chart.New(cfg.SubgraphURL, cfg.SubgraphAPIKey)

	// ====== ENGINE ======

	startMonitor := func(ctx context.Context, tokenID string, initialNet decimal.Decimal, onSnapshot func(monitor.Snapshot)) (core.Monitor, error) {
		mon, err := monitor.New(chainClient, monitor.Options{
			TokenID:        tokenID,
			InitialNet:     initialNet,
			UpdateInterval: cfg.UpdateInterval,
			PollInterval:   cfg.PollInterval,
			OnSnapshot:     onSnapshot,
		})
		if err != nil {
			return nil, err
		}
		if err := mon.Start(ctx); err != nil {
			return nil, err
		}
		return mon, nil
	}

	engine := core.NewEngine(core.Deps{
		Session:      sess,
		Store:        db,
		Executor:     execution.New(chainClient, cfg.RebalanceDeadline),
		Gas:          chainClient,
		StartMonitor: startMonitor,
		Notifier:     notifiers,
		Hedger:       hedger,
		Metrics:      m,
		AdoptTokenID: cfg.TokenID,
		StopLossExit: cfg.StopLossExit,
	})
	if err := engine.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start engine")
	}

	daily := report.NewDaily(db, notifiers)
	if err := daily.Schedule(ctx, cfg.DailyReportCron); err != nil {
		log.Warn().Err(err).Msg("⚠️ Daily report disabled")
	} else {
		defer daily.Stop()
	}

	// ====== API ======

	deps := api.Deps{
		Session:     sess,
		Engine:      engine,
		Store:       db,
		Wallet:      chainClient,
		Chart:       subgraph,
		Prices:      prices,
		Metrics:     m.Handler(),
		PoolAddress: cfg.PoolAddress,
		WebDir:      cfg.WebDir,
	}
	if perpStream != nil {
		deps.Perp = perpStream
	}
	server := api.NewServer(deps)
	server.Start(cfg.Port)

	notifiers.Notify(ctx, notify.LevelInfo, "LP bot started. Monitoring token "+orNone(engine.MonitoredTokenID()))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("Shutting down...")
	engine.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("API shutdown")
	}

	done := make(chan struct{})
	go func() {
		engine.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn().Msg("⚠️ Action still running at shutdown")
	}

	log.Info().Msg("👋 Goodbye!")
}

func orNone(tokenID string) string {
	if tokenID == "" {
		return "none"
	}
	return tokenID
}
