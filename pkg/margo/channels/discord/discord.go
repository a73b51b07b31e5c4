// Package discord implements the Discord transport using discordgo.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/avelardi/margo/pkg/margo/channels"
)

// Config holds Discord channel configuration.
type Config struct {
	// Token is the bot token.
	Token string `yaml:"token"`

	// AllowedChannels restricts which channel IDs the bot listens to.
	// Empty means all channels the bot can see.
	AllowedChannels []string `yaml:"allowed_channels"`
}

// Discord implements channels.Channel.
type Discord struct {
	cfg     Config
	logger  *slog.Logger
	session *discordgo.Session

	messages  chan *channels.Message
	connected atomic.Bool
}

// New creates a Discord channel.
func New(cfg Config, logger *slog.Logger) *Discord {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discord{
		cfg:      cfg,
		logger:   logger.With("component", "discord"),
		messages: make(chan *channels.Message, 256),
	}
}

// Name returns "discord".
func (d *Discord) Name() string { return "discord" }

// IsConnected reports gateway connection state.
func (d *Discord) IsConnected() bool { return d.connected.Load() }

// Receive returns the incoming message stream.
func (d *Discord) Receive() <-chan *channels.Message { return d.messages }

// Connect opens the gateway session and registers the message handler.
func (d *Discord) Connect(ctx context.Context) error {
	if d.cfg.Token == "" {
		return fmt.Errorf("discord: token is required")
	}
	session, err := discordgo.New("Bot " + d.cfg.Token)
	if err != nil {
		return fmt.Errorf("discord: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot || m.Content == "" {
			return
		}
		if !d.channelAllowed(m.ChannelID) {
			return
		}
		msg := &channels.Message{
			ID:        m.ID,
			Channel:   "discord",
			From:      m.Author.ID,
			FromName:  m.Author.Username,
			ChatID:    m.ChannelID,
			Content:   m.Content,
			Timestamp: time.Now(),
		}
		select {
		case d.messages <- msg:
		default:
			d.logger.Warn("dropping message, queue full", "chat_id", m.ChannelID)
		}
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	d.session = session
	d.connected.Store(true)
	return nil
}

// Disconnect closes the gateway session.
func (d *Discord) Disconnect() error {
	d.connected.Store(false)
	if d.session == nil {
		return nil
	}
	if err := d.session.Close(); err != nil {
		return fmt.Errorf("discord: close: %w", err)
	}
	return nil
}

// Send delivers text to a channel.
func (d *Discord) Send(_ context.Context, chatID, text string) error {
	if d.session == nil {
		return fmt.Errorf("discord: not connected")
	}
	if _, err := d.session.ChannelMessageSend(chatID, text); err != nil {
		return fmt.Errorf("discord: send: %w", err)
	}
	return nil
}

func (d *Discord) channelAllowed(id string) bool {
	if len(d.cfg.AllowedChannels) == 0 {
		return true
	}
	for _, allowed := range d.cfg.AllowedChannels {
		if allowed == id {
			return true
		}
	}
	return false
}
