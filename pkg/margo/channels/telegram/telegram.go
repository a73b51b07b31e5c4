// Package telegram implements the Telegram transport over the Bot API via
// plain HTTP long polling. No SDK dependency is needed for the small
// surface the assistant uses (getUpdates, sendMessage).
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avelardi/margo/pkg/margo/channels"
)

// Config holds Telegram channel configuration.
type Config struct {
	// Token is the Bot API token from @BotFather.
	Token string `yaml:"token"`

	// AllowedChats restricts which chat IDs the bot listens to.
	// Empty means all chats.
	AllowedChats []int64 `yaml:"allowed_chats"`
}

// Telegram implements channels.Channel.
type Telegram struct {
	cfg     Config
	logger  *slog.Logger
	client  *http.Client
	baseURL string

	messages  chan *channels.Message
	connected atomic.Bool
	offset    int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Telegram channel.
func New(cfg Config, logger *slog.Logger) *Telegram {
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{
		cfg:      cfg,
		logger:   logger.With("component", "telegram"),
		client:   &http.Client{Timeout: 60 * time.Second},
		baseURL:  "https://api.telegram.org/bot" + cfg.Token,
		messages: make(chan *channels.Message, 256),
	}
}

// Name returns "telegram".
func (t *Telegram) Name() string { return "telegram" }

// IsConnected reports whether the polling loop is running.
func (t *Telegram) IsConnected() bool { return t.connected.Load() }

// Receive returns the incoming message stream.
func (t *Telegram) Receive() <-chan *channels.Message { return t.messages }

// Connect starts the long-polling loop.
func (t *Telegram) Connect(ctx context.Context) error {
	if t.cfg.Token == "" {
		return fmt.Errorf("telegram: token is required")
	}
	t.ctx, t.cancel = context.WithCancel(ctx)
	t.connected.Store(true)
	t.wg.Add(1)
	go t.pollLoop()
	return nil
}

// Disconnect stops polling and waits for the loop to exit.
func (t *Telegram) Disconnect() error {
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
	t.connected.Store(false)
	return nil
}

// Send delivers text to a chat.
func (t *Telegram) Send(ctx context.Context, chatID, text string) error {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.baseURL+"/sendMessage", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram: send rejected: status %d: %s", resp.StatusCode, detail)
	}
	return nil
}

// ---------- Long polling ----------

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		MessageID int64 `json:"message_id"`
		From      *struct {
			ID        int64  `json:"id"`
			FirstName string `json:"first_name"`
			Username  string `json:"username"`
		} `json:"from"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Date int64  `json:"date"`
		Text string `json:"text"`
	} `json:"message"`
}

type updatesResponse struct {
	OK     bool     `json:"ok"`
	Result []update `json:"result"`
}

func (t *Telegram) pollLoop() {
	defer t.wg.Done()
	t.logger.Info("polling started")

	for {
		select {
		case <-t.ctx.Done():
			t.logger.Info("polling stopped")
			return
		default:
		}

		updates, err := t.getUpdates()
		if err != nil {
			if t.ctx.Err() != nil {
				return
			}
			t.logger.Warn("getUpdates failed", "error", err)
			select {
			case <-time.After(5 * time.Second):
			case <-t.ctx.Done():
				return
			}
			continue
		}

		for _, u := range updates {
			t.offset = u.UpdateID + 1
			if u.Message == nil || u.Message.Text == "" || u.Message.From == nil {
				continue
			}
			if !t.chatAllowed(u.Message.Chat.ID) {
				continue
			}
			name := u.Message.From.Username
			if name == "" {
				name = u.Message.From.FirstName
			}
			msg := &channels.Message{
				ID:        strconv.FormatInt(u.Message.MessageID, 10),
				Channel:   "telegram",
				From:      strconv.FormatInt(u.Message.From.ID, 10),
				FromName:  name,
				ChatID:    strconv.FormatInt(u.Message.Chat.ID, 10),
				Content:   u.Message.Text,
				Timestamp: time.Unix(u.Message.Date, 0),
			}
			select {
			case t.messages <- msg:
			case <-t.ctx.Done():
				return
			}
		}
	}
}

func (t *Telegram) getUpdates() ([]update, error) {
	endpoint := fmt.Sprintf("%s/getUpdates?timeout=30&offset=%d", t.baseURL, t.offset)
	req, err := http.NewRequestWithContext(t.ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	var parsed updatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if !parsed.OK {
		return nil, fmt.Errorf("api returned ok=false")
	}
	return parsed.Result, nil
}

func (t *Telegram) chatAllowed(chatID int64) bool {
	if len(t.cfg.AllowedChats) == 0 {
		return true
	}
	for _, id := range t.cfg.AllowedChats {
		if id == chatID {
			return true
		}
	}
	return false
}
