// Package assistant routes chat messages through the LLM and dispatches the
// resulting tool-call batches against a registry of handlers.
package assistant

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/avelardi/margo/pkg/margo/channels"
	"github.com/avelardi/margo/pkg/margo/history"
	"github.com/avelardi/margo/pkg/margo/llm"
)

// fallbackMessage is what chat users see on any unrecoverable step. Raw
// errors stay in the logs.
const fallbackMessage = "Sorry, something went wrong while handling that. Please try again."

const baseSystemPrompt = `You are Margo, a personal assistant managing the user's notes, tasks, and schedule.

Always respond with a JSON array of tool calls, each an object {"tool": name, "data": {...}}.
Use "reply" to send text to the user and "finish" when the conversation goal is complete.
Available tools:
`

// Assistant handles incoming chat messages: it appends them to history,
// queries the LLM, and runs the dispatch protocol over the response.
type Assistant struct {
	llm        llm.Client
	history    *history.Store
	registry   *Registry
	dispatcher *Dispatcher
	manager    *channels.Manager
	persona    string
	logger     *slog.Logger

	mu          sync.Mutex
	active      int
	lastChannel string
	lastChatID  string

	wg sync.WaitGroup
}

// New creates an Assistant. persona is appended to the system prompt and may
// be empty.
func New(client llm.Client, hist *history.Store, reg *Registry, mgr *channels.Manager, persona string, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "assistant")
	return &Assistant{
		llm:        client,
		history:    hist,
		registry:   reg,
		dispatcher: NewDispatcher(reg, hist, logger),
		manager:    mgr,
		persona:    persona,
		logger:     logger,
	}
}

// Run consumes the channel manager's merged message stream until ctx is
// cancelled. Each message is handled on its own goroutine so a slow LLM call
// never blocks the receive loop.
func (a *Assistant) Run(ctx context.Context) {
	defer a.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-a.manager.Incoming():
			if !ok {
				return
			}
			a.wg.Add(1)
			go func(msg *channels.Message) {
				defer a.wg.Done()
				a.HandleMessage(ctx, msg)
			}(msg)
		}
	}
}

// HandleMessage processes one incoming chat message end to end.
func (a *Assistant) HandleMessage(ctx context.Context, msg *channels.Message) {
	a.beginRequest(msg.Channel, msg.ChatID)
	defer a.endRequest()

	sess := &Session{
		UserID:  msg.From,
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Reply: func(ctx context.Context, text string) error {
			return a.manager.SendTo(ctx, msg.Channel, msg.ChatID, text)
		},
	}

	switch strings.TrimSpace(msg.Content) {
	case "/clear":
		if err := a.history.Clear(); err != nil {
			a.logger.Error("failed to clear history", "error", err)
			a.reply(ctx, sess, fallbackMessage)
			return
		}
		a.reply(ctx, sess, "Conversation history cleared.")
		return
	case "/start", "/help":
		a.reply(ctx, sess, greeting)
		return
	}

	if err := a.history.AppendText(history.RoleUser, msg.Content); err != nil {
		a.logger.Error("failed to persist user message", "error", err)
	}

	raw, err := a.llm.Generate(ctx, a.llmInput(), a.SystemPrompt(), true)
	if err != nil {
		a.logger.Error("llm generation failed", "chat_id", msg.ChatID, "error", err)
		a.reply(ctx, sess, fallbackMessage)
		return
	}

	outcome, err := a.dispatcher.ProcessResponse(ctx, sess, raw)
	if err != nil {
		a.logger.Error("dispatch failed", "chat_id", msg.ChatID, "error", err)
		a.reply(ctx, sess, fallbackMessage)
		return
	}
	switch {
	case outcome.Text != "":
		// Plain conversational output, deliver as-is.
		a.reply(ctx, sess, outcome.Text)
	case outcome.ErrorMessage != "":
		a.logger.Warn("tool batch failed", "chat_id", msg.ChatID, "detail", outcome.ErrorMessage)
		a.reply(ctx, sess, fallbackMessage)
	}
	// Successful tool batches deliver through the reply tool themselves.
}

const greeting = `Hi, I'm Margo. I can manage your notes, track your tasks, remind you about upcoming work, and plan your day.

Talk to me naturally, or use /clear to reset our conversation.`

// SystemPrompt builds the full system instruction: protocol, tool list, and
// the configured persona.
func (a *Assistant) SystemPrompt() string {
	prompt := baseSystemPrompt + a.registry.Describe()
	if a.persona != "" {
		prompt += "\n" + a.persona
	}
	return prompt
}

// CurrentUser returns the channel and chat of the user currently being
// served. ok is false when no request is in flight.
func (a *Assistant) CurrentUser() (channel, chatID string, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active == 0 {
		return "", "", false
	}
	return a.lastChannel, a.lastChatID, true
}

func (a *Assistant) beginRequest(channel, chatID string) {
	a.mu.Lock()
	a.active++
	a.lastChannel = channel
	a.lastChatID = chatID
	a.mu.Unlock()
}

func (a *Assistant) endRequest() {
	a.mu.Lock()
	a.active--
	a.mu.Unlock()
}

// llmInput converts the persisted history into the LLM message shape.
func (a *Assistant) llmInput() []llm.Message {
	entries := a.history.History()
	msgs := make([]llm.Message, 0, len(entries))
	for _, e := range entries {
		parts := make([]string, 0, len(e.Parts))
		for _, p := range e.Parts {
			parts = append(parts, p.Text)
		}
		msgs = append(msgs, llm.Message{Role: e.Role, Parts: parts})
	}
	return msgs
}

func (a *Assistant) reply(ctx context.Context, sess *Session, text string) {
	if err := sess.Send(ctx, text); err != nil {
		a.logger.Error("reply delivery failed",
			"channel", sess.Channel, "chat_id", sess.ChatID, "error", err)
	}
}
