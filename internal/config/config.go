package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Default contract addresses (Arbitrum One).
const (
	DefaultPositionManager = "0xC36442b4a4522E871399CD717aBDD847Ab11FE88"
	DefaultSwapRouter      = "0xE592427A0AEce92De3Edae84Db1e9D68D1a0bE2e"
)

// Config holds all configuration for the bot
type Config struct {
	// Chain
	RPCURL          string
	RPCWSSURL       string
	ChainID         int64
	PrivateKey      string
	PoolAddress     string
	PositionManager string
	SwapRouter      string

	// Position fallback used when the database holds no active record
	TokenID string

	// Monitor
	UpdateInterval    time.Duration // min spacing between swap-triggered snapshots
	PollInterval      time.Duration // periodic snapshot regardless of events
	RebalanceDeadline time.Duration

	// Mode
	Debug           bool
	StopLossExit    bool
	DailyReportCron string

	// API
	Port   int
	WebDir string

	// Notifications
	DiscordWebhookURL string
	TelegramToken     string
	TelegramChatID    int64

	// Chart / price sources
	SubgraphURL    string
	SubgraphAPIKey string
	PriceIndexSlug string

	// Database
	DatabasePath string

	// Perp hedge
	Perp PerpConfig

	// Defaults for the runtime-tunable policy
	Runtime Runtime
}

// PerpConfig holds settings for the optional perpetual-futures hedge.
type PerpConfig struct {
	Enabled        bool
	PythonBin      string
	CLIPath        string
	Market         string
	MaxSlippagePct decimal.Decimal
	ReduceOnly     bool
	SizeMultiplier decimal.Decimal
	APIKey         string
	Env            string
	StreamURL      string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		// Chain
		RPCURL:          os.Getenv("RPC_URL"),
		RPCWSSURL:       os.Getenv("RPC_WSS"),
		ChainID:         int64(getEnvInt("CHAIN_ID", 42161)),
		PrivateKey:      os.Getenv("PRIVATE_KEY"),
		PoolAddress:     os.Getenv("POOL_ADDRESS"),
		PositionManager: getEnv("NFPM_ADDRESS", DefaultPositionManager),
		SwapRouter:      getEnv("SWAP_ROUTER_ADDRESS", DefaultSwapRouter),
		TokenID:         os.Getenv("TOKEN_ID"),

		// Monitor
		UpdateInterval:    time.Duration(getEnvInt("UPDATE_INTERVAL_MS", 5000)) * time.Millisecond,
		PollInterval:      getEnvDuration("POLL_INTERVAL", 30*time.Second),
		RebalanceDeadline: time.Duration(getEnvInt("REBALANCE_DEADLINE_SEC", 300)) * time.Second,

		// Mode
		Debug:           getEnvBool("DEBUG", false),
		StopLossExit:    getEnvBool("STOP_LOSS_EXIT", false),
		DailyReportCron: getEnv("DAILY_REPORT_CRON", "0 0 0 * * *"),

		// API
		Port:   getEnvInt("PORT", 3000),
		WebDir: getEnv("WEB_DIR", "./web"),

		// Notifications
		DiscordWebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),
		TelegramToken:     os.Getenv("TELEGRAM_BOT_TOKEN"),

		// Chart / price sources
		SubgraphURL:    os.Getenv("SUBGRAPH_URL"),
		SubgraphAPIKey: os.Getenv("SUBGRAPH_API_KEY"),
		PriceIndexSlug: getEnv("PRICE_INDEX_SLUG", "ethereum"),

		// Database
		DatabasePath: getEnv("DATABASE_PATH", getEnv("SQLITE_PATH", "./data/lpbot.db")),

		Perp: PerpConfig{
			Enabled:        getEnvBool("PERP_ENABLED", false),
			PythonBin:      getEnv("EXTENDED_PYTHON_BIN", "python3"),
			CLIPath:        getEnv("EXTENDED_CLI_PATH", "scripts/extended/cli.py"),
			Market:         getEnv("PERP_MARKET", "ETH-USD"),
			MaxSlippagePct: getEnvDecimal("PERP_MAX_SLIPPAGE_PCT", decimal.Zero),
			ReduceOnly:     getEnvBool("PERP_REDUCE_ONLY", false),
			SizeMultiplier: getEnvDecimal("PERP_SIZE_MULTIPLIER", decimal.NewFromInt(1)),
			APIKey:         os.Getenv("X10_API_KEY"),
			Env:            getEnv("X10_ENV", "mainnet"),
			StreamURL:      os.Getenv("PERP_WS_URL"),
		},

		Runtime: Runtime{
			TickRange:          getEnvInt("TICK_RANGE", 50),
			RebalanceDelaySec:  getEnvInt("REBALANCE_DELAY_SEC", 300),
			SlippageBps:        getEnvInt("SLIPPAGE_BPS", 50),
			StopLossPercent:    getEnvDecimal("STOP_LOSS_PERCENT", decimal.NewFromInt(10)),
			MaxGasPriceGwei:    getEnvDecimal("MAX_GAS_PRICE_GWEI", decimal.NewFromInt(50)),
			TargetTotalToken1:  getEnvDecimal("TARGET_TOTAL_TOKEN1", decimal.Zero),
			StopAfterAutoClose: getEnvBool("STOP_AFTER_AUTO_CLOSE", false),
			PerpHedgeOnMint:    getEnvBool("PERP_HEDGE_ON_MINT", true),
		},
	}

	// Parse chat ID
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and the runtime defaults.
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("RPC_URL is required")
	}
	if c.PoolAddress == "" {
		return fmt.Errorf("POOL_ADDRESS is required")
	}
	if c.PrivateKey == "" {
		return fmt.Errorf("PRIVATE_KEY is required")
	}
	if c.UpdateInterval <= 0 {
		return fmt.Errorf("UPDATE_INTERVAL_MS must be positive")
	}
	if c.Perp.Enabled && c.Perp.CLIPath == "" {
		return fmt.Errorf("EXTENDED_CLI_PATH is required when PERP_ENABLED=true")
	}
	if err := c.Runtime.Validate(); err != nil {
		return fmt.Errorf("runtime defaults: %w", err)
	}
	return nil
}

// PerpStreamURL returns the account stream endpoint for the configured venue.
func (p PerpConfig) PerpStreamURL() string {
	if p.StreamURL != "" {
		return p.StreamURL
	}
	if strings.EqualFold(p.Env, "testnet") {
		return "wss://api.testnet.extended.exchange/stream.extended.exchange/v1/account"
	}
	return "wss://api.extended.exchange/stream.extended.exchange/v1/account"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return ParseBool(value, defaultValue)
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// ParseBool accepts true/1/yes/on and false/0/no/off, case-insensitive.
func ParseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return fallback
}
