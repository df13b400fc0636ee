package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

var levelColor = map[Level]int{
	LevelInfo:    0x3b82f6,
	LevelSuccess: 0x22c55e,
	LevelWarn:    0xf59e0b,
	LevelError:   0xef4444,
}

// Discord posts one embed per message to a webhook.
type Discord struct {
	session *discordgo.Session
	id      string
	token   string
}

// NewDiscord parses a webhook URL of the form .../webhooks/{id}/{token}.
// An empty URL yields a sink that drops every message.
func NewDiscord(webhookURL string) (*Discord, error) {
	if webhookURL == "" {
		return &Discord{}, nil
	}
	id, token, err := parseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}
	s, err := discordgo.New("")
	if err != nil {
		return nil, err
	}
	s.Client.Timeout = 10 * time.Second
	s.MaxRestRetries = 1
	return &Discord{session: s, id: id, token: token}, nil
}

func parseWebhookURL(raw string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("discord webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("discord webhook url: no webhook id/token in %q", u.Path)
}

func (d *Discord) Notify(ctx context.Context, level Level, message string) {
	if err := d.Send(ctx, level, message); err != nil {
		log.Error().Err(err).Msg("Discord webhook error")
	}
}

// Send posts the message and reports delivery errors.
func (d *Discord) Send(ctx context.Context, level Level, message string) error {
	if d.session == nil {
		return nil
	}
	color, ok := levelColor[level]
	if !ok {
		color = levelColor[LevelInfo]
	}
	_, err := d.session.WebhookExecute(d.id, d.token, false, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{{Description: message, Color: color}},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	return nil
}
