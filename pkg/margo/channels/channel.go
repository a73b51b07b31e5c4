// Package channels defines the chat transports the assistant speaks
// through. Each transport implements Channel; the Manager fans incoming
// messages into one stream and routes outgoing ones by channel name.
package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Message is an incoming chat message, normalized across transports.
type Message struct {
	ID        string
	Channel   string // source channel name, e.g. "telegram"
	From      string // sender identifier on the platform
	FromName  string // display name, if available
	ChatID    string // conversation identifier (DM or group)
	Content   string
	Timestamp time.Time
}

// Channel is a chat transport.
type Channel interface {
	// Name returns the channel identifier (e.g. "telegram", "discord").
	Name() string

	// Connect establishes the connection and starts receiving.
	Connect(ctx context.Context) error

	// Disconnect gracefully closes the connection.
	Disconnect() error

	// Send delivers text to the given chat.
	Send(ctx context.Context, chatID, text string) error

	// Receive returns the stream of incoming messages.
	Receive() <-chan *Message

	// IsConnected reports connection state.
	IsConnected() bool
}

// retryAttempts and retryBaseDelay bound the fire-and-forget delivery retry.
const (
	retryAttempts  = 3
	retryBaseDelay = time.Second
)

// SendWithRetry sends with bounded exponential backoff. It exists for
// scheduler-driven reminder delivery, where there is no user waiting on the
// request path to surface a transient failure to.
func SendWithRetry(ctx context.Context, ch Channel, chatID, text string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	delay := retryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		lastErr = ch.Send(ctx, chatID, text)
		if lastErr == nil {
			return nil
		}
		logger.Warn("send failed",
			"channel", ch.Name(), "chat_id", chatID,
			"attempt", attempt, "error", lastErr)
		if attempt == retryAttempts {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return fmt.Errorf("channels: send to %s/%s failed after %d attempts: %w",
		ch.Name(), chatID, retryAttempts, lastErr)
}

// Manager owns the registered channels and merges their incoming streams.
type Manager struct {
	mu       sync.RWMutex
	channels map[string]Channel
	incoming chan *Message
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewManager creates an empty Manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		channels: make(map[string]Channel),
		incoming: make(chan *Message, 256),
		logger:   logger.With("component", "channels"),
	}
}

// Register adds a channel. Names must be unique.
func (m *Manager) Register(ch Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.channels[ch.Name()]; exists {
		return fmt.Errorf("channels: %q already registered", ch.Name())
	}
	m.channels[ch.Name()] = ch
	return nil
}

// Get returns a channel by name.
func (m *Manager) Get(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

// Names returns the registered channel names.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	return names
}

// ConnectAll connects every registered channel and starts forwarding its
// messages into the merged stream. Channels that fail to connect are logged
// and skipped; the rest of the system keeps running.
func (m *Manager) ConnectAll(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, ch := range m.channels {
		if err := ch.Connect(ctx); err != nil {
			m.logger.Error("channel failed to connect", "channel", ch.Name(), "error", err)
			continue
		}
		m.logger.Info("channel connected", "channel", ch.Name())

		m.wg.Add(1)
		go func(ch Channel) {
			defer m.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-ch.Receive():
					if !ok {
						return
					}
					select {
					case m.incoming <- msg:
					case <-ctx.Done():
						return
					}
				}
			}
		}(ch)
	}
}

// DisconnectAll closes every channel and waits for forwarders to drain.
func (m *Manager) DisconnectAll() {
	m.mu.RLock()
	for _, ch := range m.channels {
		if err := ch.Disconnect(); err != nil {
			m.logger.Warn("channel disconnect failed", "channel", ch.Name(), "error", err)
		}
	}
	m.mu.RUnlock()
	m.wg.Wait()
}

// Incoming returns the merged stream of messages from all channels.
func (m *Manager) Incoming() <-chan *Message {
	return m.incoming
}

// SendTo routes text to a chat on a named channel.
func (m *Manager) SendTo(ctx context.Context, channel, chatID, text string) error {
	ch, ok := m.Get(channel)
	if !ok {
		return fmt.Errorf("channels: unknown channel %q", channel)
	}
	return ch.Send(ctx, chatID, text)
}

// SendToWithRetry routes text with the bounded delivery retry.
func (m *Manager) SendToWithRetry(ctx context.Context, channel, chatID, text string) error {
	ch, ok := m.Get(channel)
	if !ok {
		return fmt.Errorf("channels: unknown channel %q", channel)
	}
	return SendWithRetry(ctx, ch, chatID, text, m.logger)
}
