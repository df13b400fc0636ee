package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/lpbot/internal/config"
	"github.com/web3guy0/lpbot/internal/monitor"
	"github.com/web3guy0/lpbot/internal/session"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TELEGRAM BOT - position notifications & read-only commands
// ═══════════════════════════════════════════════════════════════════════════════
//
// Commands:
//   /status  latest snapshot
//   /config  runtime policy
//   /logs    recent log lines
//   /ping
//
// ═══════════════════════════════════════════════════════════════════════════════

var levelEmoji = map[Level]string{
	LevelInfo:    "ℹ️",
	LevelSuccess: "✅",
	LevelWarn:    "⚠️",
	LevelError:   "🚨",
}

// StatusSource is what the bot reports from.
type StatusSource interface {
	Config() config.Runtime
	Snapshot() (monitor.Snapshot, bool)
	Logs(limit int) []session.LogEntry
}

// TelegramBot sends notifications to one chat and answers commands from it.
type TelegramBot struct {
	mu      sync.Mutex
	api     *tgbotapi.BotAPI
	chatID  int64
	status  StatusSource
	running bool
	stopCh  chan struct{}
}

// NewTelegramBot connects with token. chatID must be numeric.
func NewTelegramBot(token, chatID string, status StatusSource) (*TelegramBot, error) {
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN not set")
	}
	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram bot initialized")
	return &TelegramBot{
		api:    api,
		chatID: id,
		status: status,
		stopCh: make(chan struct{}),
	}, nil
}

// Start begins listening for commands.
func (b *TelegramBot) Start() {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.mu.Unlock()

	go b.commandLoop()
	log.Info().Msg("📱 Telegram bot started")
}

func (b *TelegramBot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}
	b.running = false
	close(b.stopCh)
	b.api.StopReceivingUpdates()
	log.Info().Msg("Telegram bot stopped")
}

func (b *TelegramBot) Notify(_ context.Context, level Level, message string) {
	b.send(FormatTelegram(level, message))
}

// FormatTelegram prefixes the message with the level emoji.
func FormatTelegram(level Level, message string) string {
	emoji, ok := levelEmoji[level]
	if !ok {
		emoji = levelEmoji[LevelInfo]
	}
	return emoji + " " + message
}

// ═══════════════════════════════════════════════════════════════════════════════
// COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func (b *TelegramBot) commandLoop() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-b.stopCh:
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if update.Message.Chat.ID != b.chatID {
				continue
			}
			b.send(b.reply(update.Message.Command()))
		}
	}
}

// reply renders the answer to a command.
func (b *TelegramBot) reply(command string) string {
	switch strings.ToLower(command) {
	case "status":
		snap, ok := b.status.Snapshot()
		if !ok {
			return "📭 No snapshot yet"
		}
		return strings.Join(snap.Lines(), "\n")
	case "config":
		return formatRuntime(b.status.Config())
	case "logs":
		entries := b.status.Logs(10)
		if len(entries) == 0 {
			return "📭 No logs yet"
		}
		lines := make([]string, 0, len(entries))
		for _, e := range entries {
			lines = append(lines, e.Message)
		}
		return strings.Join(lines, "\n")
	case "ping":
		return "🏓 Pong!"
	case "help", "start":
		return "Commands: /status /config /logs /ping"
	default:
		return "❓ Unknown command. Use /help"
	}
}

func formatRuntime(rt config.Runtime) string {
	return strings.Join([]string{
		"⚙️ Runtime config",
		fmt.Sprintf("Tick range: ±%d", rt.TickRange),
		fmt.Sprintf("Rebalance delay: %ds", rt.RebalanceDelaySec),
		fmt.Sprintf("Slippage: %d bps", rt.SlippageBps),
		fmt.Sprintf("Stop loss: %s%%", rt.StopLossPercent.String()),
		fmt.Sprintf("Max gas: %s gwei", rt.MaxGasPriceGwei.String()),
		fmt.Sprintf("Target total: %s", rt.TargetTotalToken1.String()),
		fmt.Sprintf("Stop after auto close: %t", rt.StopAfterAutoClose),
		fmt.Sprintf("Hedge on mint: %t", rt.PerpHedgeOnMint),
	}, "\n")
}

func (b *TelegramBot) send(text string) {
	msg := tgbotapi.NewMessage(b.chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("Failed to send Telegram message")
	}
}
