// Package events is the recurring events engine: it turns statically
// configured global events and task documents in the vault into scheduler
// registrations, and executes fired events through the LLM with best-effort
// reply delivery.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avelardi/margo/pkg/margo/channels"
	"github.com/avelardi/margo/pkg/margo/history"
	"github.com/avelardi/margo/pkg/margo/llm"
	"github.com/avelardi/margo/pkg/margo/scheduler"
	"github.com/avelardi/margo/pkg/margo/tasks"
	"github.com/avelardi/margo/pkg/margo/vault"
)

// Event is a scheduled definition: a Global from the events file or a
// Reminder derived from a task document.
type Event interface {
	EventID() string
	Rule() string
	Template() string
}

// Global is a statically configured recurring event.
type Global struct {
	ID       string
	Schedule string
	Prompt   string
}

func (g Global) EventID() string  { return g.ID }
func (g Global) Rule() string     { return g.Schedule }
func (g Global) Template() string { return g.Prompt }

// Reminder is a reminder event derived from one task document. Ids follow
// the pattern reminder_{30m|5m}_{relative_path}.
type Reminder struct {
	ID       string
	Schedule string
	Prompt   string
	Path     string // vault-relative task document
	Channel  string
	ChatID   string
}

func (r Reminder) EventID() string  { return r.ID }
func (r Reminder) Rule() string     { return r.Schedule }
func (r Reminder) Template() string { return r.Prompt }

// reminderIDPattern recovers the lead tag and source path from a reminder id.
var reminderIDPattern = regexp.MustCompile(`^reminder_(30m|5m)_(.+)$`)

const (
	refreshJobID = "events_daily_refresh"
	refreshRule  = "daily at 00:01"
)

const eventSystemPrompt = `You are Margo, a personal assistant. You were triggered by a scheduled event, not by the user.
Respond with a JSON array containing exactly one tool call: [{"tool": "reply", "data": {"message": "..."}}].
Write the message for the user directly, short and friendly.`

// UserResolver reports the user currently interacting with the assistant, if
// any. Implemented by the assistant; valid only while a request is in flight.
type UserResolver interface {
	CurrentUser() (channel, chatID string, ok bool)
}

// Options tune the engine. Zero values fall back to the defaults noted.
type Options struct {
	// GlobalEventsPath locates the global events YAML file.
	GlobalEventsPath string

	// TasksDir is the vault-relative directory scanned for task documents.
	// Default "tasks".
	TasksDir string

	// Debounce suppresses repeat file events for the same path. Default 1s.
	Debounce time.Duration

	// LeadLong and LeadShort are the reminder offsets before a task's due
	// time. Defaults 30m and 5m.
	LeadLong  time.Duration
	LeadShort time.Duration

	// PrimaryChannel and PrimaryChatID are the fallback delivery target when
	// no user is actively interacting.
	PrimaryChannel string
	PrimaryChatID  string
}

// Engine owns the event definitions and drives them through the scheduler.
type Engine struct {
	sched   *scheduler.Service
	vault   *vault.Vault
	hist    *history.Store
	llm     llm.Client
	manager *channels.Manager
	users   UserResolver
	opts    Options
	logger  *slog.Logger

	ctx context.Context

	mu       sync.Mutex
	events   map[string]Event
	globals  map[string]GlobalDefinition
	lastRun  map[string]time.Time
	lastFile map[string]time.Time
}

// New creates an Engine. vlt may be nil, in which case no reminder events
// are derived and only global events run.
func New(sched *scheduler.Service, vlt *vault.Vault, hist *history.Store, client llm.Client, mgr *channels.Manager, users UserResolver, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TasksDir == "" {
		opts.TasksDir = "tasks"
	}
	if opts.Debounce <= 0 {
		opts.Debounce = time.Second
	}
	if opts.LeadLong <= 0 {
		opts.LeadLong = tasks.LeadLong
	}
	if opts.LeadShort <= 0 {
		opts.LeadShort = tasks.LeadShort
	}
	return &Engine{
		sched:    sched,
		vault:    vlt,
		hist:     hist,
		llm:      client,
		manager:  mgr,
		users:    users,
		opts:     opts,
		logger:   logger.With("component", "events"),
		ctx:      context.Background(),
		events:   make(map[string]Event),
		lastRun:  make(map[string]time.Time),
		lastFile: make(map[string]time.Time),
	}
}

// Start wires the vault watcher, performs the initial full load, and
// registers the daily self-refresh job.
func (e *Engine) Start(ctx context.Context) error {
	e.ctx = ctx
	if e.vault != nil {
		e.sched.WatchDirectory(e.vault.Root(), e.HandleVaultFileEvent)
	}
	return e.LoadAndScheduleAll()
}

// LoadAndScheduleAll rebuilds the full event set: it drops every existing
// definition and registration, loads global events from configuration, scans
// the tasks directory for reminder events, and re-registers the daily
// self-refresh job that re-invokes this method at 00:01.
func (e *Engine) LoadAndScheduleAll() error {
	e.mu.Lock()
	for id := range e.events {
		e.sched.Unschedule(id)
	}
	e.events = make(map[string]Event)
	// Debounce stamps outside the window can never suppress anything again;
	// dropping them here keeps the map from growing with deleted paths.
	cutoff := time.Now().Add(-e.opts.Debounce)
	for path, stamp := range e.lastFile {
		if stamp.Before(cutoff) {
			delete(e.lastFile, path)
		}
	}
	e.mu.Unlock()

	globals, err := LoadGlobalEvents(e.opts.GlobalEventsPath, e.logger)
	if err != nil {
		e.logger.Error("global events unavailable", "error", err)
		globals = map[string]GlobalDefinition{}
	}
	e.mu.Lock()
	e.globals = globals
	e.mu.Unlock()

	for id, def := range globals {
		e.register(Global{ID: id, Schedule: def.Schedule, Prompt: def.Prompt})
	}

	reminders := 0
	if e.vault != nil {
		paths, err := e.vault.List(e.opts.TasksDir, ".md")
		if err != nil {
			e.logger.Error("task scan failed", "dir", e.opts.TasksDir, "error", err)
		}
		for _, p := range paths {
			reminders += e.deriveAndSchedule(p)
		}
	}

	e.sched.AddJob(refreshRule, refreshJobID, func(string) {
		e.logger.Info("daily event refresh")
		if err := e.LoadAndScheduleAll(); err != nil {
			e.logger.Error("daily refresh failed", "error", err)
		}
	})

	e.logger.Info("events loaded", "global", len(globals), "reminders", reminders)
	return nil
}

// HandleVaultFileEvent reacts to one filesystem change under the vault:
// paths outside the tasks directory are ignored without touching any
// registration; repeats within the debounce window are dropped; otherwise
// existing reminders for the path are cancelled and, if the file still
// exists, re-derived.
func (e *Engine) HandleVaultFileEvent(fe scheduler.FileEvent) {
	if fe.IsDir || e.vault == nil {
		return
	}
	rel, err := filepath.Rel(e.vault.Root(), fe.Path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	rel = filepath.ToSlash(rel)
	if !strings.HasPrefix(rel, e.opts.TasksDir+"/") {
		return
	}

	e.mu.Lock()
	if last, ok := e.lastFile[rel]; ok && time.Since(last) < e.opts.Debounce {
		e.mu.Unlock()
		e.logger.Debug("debounced file event", "path", rel)
		return
	}
	e.lastFile[rel] = time.Now()
	e.mu.Unlock()

	e.unscheduleReminders(rel)
	if fe.Type == "deleted" || !e.vault.Exists(rel) {
		e.logger.Info("task file removed, reminders dropped", "path", rel)
		return
	}
	n := e.deriveAndSchedule(rel)
	e.logger.Info("task file rescanned", "path", rel, "event_type", fe.Type, "reminders", n)
}

// deriveAndSchedule reads one task document and registers its reminder
// events. Returns the number of reminders registered.
func (e *Engine) deriveAndSchedule(rel string) int {
	now := time.Now()
	data, err := e.vault.Read(rel)
	if err != nil {
		e.logger.Debug("task file unreadable", "path", rel, "error", err)
		return 0
	}
	fm := vault.ParseFrontmatter(data, e.logger)
	details, ok := tasks.Extract(fm, rel, now, e.logger)
	if !ok {
		return 0
	}

	channel, chatID := e.resolveTarget()
	count := 0
	for _, lead := range []struct {
		tag string
		d   time.Duration
	}{
		{"30m", e.opts.LeadLong},
		{"5m", e.opts.LeadShort},
	} {
		at := tasks.ReminderAt(details.Due, now, lead.d)
		if at == nil {
			continue
		}
		rem := Reminder{
			ID:       fmt.Sprintf("reminder_%s_%s", lead.tag, rel),
			Schedule: fmt.Sprintf("on %s at %02d:%02d", at.Format("2006-01-02"), at.Hour(), at.Minute()),
			Prompt:   reminderPrompt(details),
			Path:     rel,
			Channel:  channel,
			ChatID:   chatID,
		}
		if e.register(rem) {
			count++
		}
	}
	return count
}

func reminderPrompt(d tasks.Details) string {
	return fmt.Sprintf("The task %q starts at %s today (now: {time}). Remind the user with a short, friendly message. The task document follows.", d.Title, d.StartTime)
}

// register schedules an event and records its definition. An unparseable
// rule is logged and dropped.
func (e *Engine) register(ev Event) bool {
	if !e.sched.AddJob(ev.Rule(), ev.EventID(), e.handleTimeEvent) {
		e.logger.Warn("event rule not schedulable", "id", ev.EventID(), "rule", ev.Rule())
		return false
	}
	e.mu.Lock()
	e.events[ev.EventID()] = ev
	e.mu.Unlock()
	return true
}

// unscheduleReminders cancels both reminder registrations for a path.
func (e *Engine) unscheduleReminders(rel string) {
	for _, tag := range []string{"30m", "5m"} {
		id := fmt.Sprintf("reminder_%s_%s", tag, rel)
		e.sched.Unschedule(id)
		e.mu.Lock()
		delete(e.events, id)
		e.mu.Unlock()
	}
}

// handleTimeEvent is the scheduler callback. A missing definition can happen
// when a fire races a concurrent full reload; recovery re-derives it from
// the path embedded in the id before giving up.
func (e *Engine) handleTimeEvent(id string) {
	e.mu.Lock()
	ev, ok := e.events[id]
	e.mu.Unlock()
	if !ok {
		ev, ok = e.recoverFromID(id)
		if !ok {
			e.logger.Error("fired event has no definition", "id", id)
			return
		}
	}

	delivered, err := e.execute(ev)
	if err != nil {
		e.logger.Error("event execution failed", "id", id, "error", err)
		return
	}
	e.stampLastRun(ev, delivered)
}

// recoverFromID rebuilds a reminder definition from its id pattern.
func (e *Engine) recoverFromID(id string) (Event, bool) {
	m := reminderIDPattern.FindStringSubmatch(id)
	if m == nil || e.vault == nil {
		return nil, false
	}
	rel := m[2]
	data, err := e.vault.Read(rel)
	if err != nil {
		return nil, false
	}
	fm := vault.ParseFrontmatter(data, e.logger)
	details, ok := tasks.Extract(fm, rel, time.Now(), e.logger)
	if !ok {
		return nil, false
	}
	channel, chatID := e.resolveTarget()
	e.logger.Warn("recovered event definition from id", "id", id, "path", rel)
	return Reminder{
		ID:       id,
		Prompt:   reminderPrompt(details),
		Path:     rel,
		Channel:  channel,
		ChatID:   chatID,
	}, true
}

// execute runs one fired event: it formats the prompt, assembles LLM input
// from history plus the prompt (and the task document for reminders), calls
// the LLM, persists the raw response, and delivers the reply if the response
// contains exactly one reply-shaped call. Delivery is best-effort; a missing
// reply call leaves the response in history only.
func (e *Engine) execute(ev Event) (delivered bool, err error) {
	trace := uuid.NewString()
	logger := e.logger.With("event_id", ev.EventID(), "trace_id", trace)
	logger.Info("executing event")

	now := time.Now()
	prompt := strings.NewReplacer(
		"{event_id}", ev.EventID(),
		"{date}", now.Format("2006-01-02"),
		"{time}", now.Format("15:04"),
	).Replace(ev.Template())

	msgs := e.historyMessages()
	parts := []string{prompt}
	if rem, ok := ev.(Reminder); ok {
		if data, rerr := e.vault.Read(rem.Path); rerr == nil {
			parts = append(parts, string(data))
		} else {
			logger.Warn("task file unreadable, prompt-only execution",
				"path", rem.Path, "error", rerr)
		}
	}
	msgs = append(msgs, llm.Message{Role: history.RoleUser, Parts: parts})

	raw, err := e.llm.Generate(e.ctx, msgs, eventSystemPrompt, true)
	if err != nil {
		return false, fmt.Errorf("events: generate: %w", err)
	}
	if herr := e.hist.AppendText(history.RoleModel, raw); herr != nil {
		logger.Warn("failed to persist event response", "error", herr)
	}

	message, ok := extractReply(raw)
	if !ok {
		logger.Info("no reply call in event response, kept in history only")
		return false, nil
	}

	channel, chatID := deliveryTarget(ev)
	if channel == "" || chatID == "" {
		channel, chatID = e.resolveTarget()
	}
	if channel == "" || chatID == "" {
		logger.Warn("no delivery target for event reply")
		return false, nil
	}
	if serr := e.manager.SendToWithRetry(e.ctx, channel, chatID, message); serr != nil {
		logger.Error("event reply delivery failed", "channel", channel, "error", serr)
		return false, nil
	}
	logger.Info("event reply delivered", "channel", channel, "chat_id", chatID)
	return true, nil
}

// extractReply parses model output as a tool-call batch and returns the
// message if exactly one reply-shaped call is present.
func extractReply(raw string) (string, bool) {
	var calls []struct {
		Tool string         `json:"tool"`
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal([]byte(raw), &calls); err != nil {
		return "", false
	}
	var messages []string
	for _, c := range calls {
		if c.Tool != "reply" {
			continue
		}
		if msg, ok := c.Data["message"].(string); ok && msg != "" {
			messages = append(messages, msg)
		}
	}
	if len(messages) != 1 {
		return "", false
	}
	return messages[0], true
}

// deliveryTarget returns the target baked into a reminder, if any.
func deliveryTarget(ev Event) (channel, chatID string) {
	if rem, ok := ev.(Reminder); ok {
		return rem.Channel, rem.ChatID
	}
	return "", ""
}

// resolveTarget prefers the user currently interacting with the assistant,
// falling back to the configured primary user.
func (e *Engine) resolveTarget() (channel, chatID string) {
	if e.users != nil {
		if ch, id, ok := e.users.CurrentUser(); ok {
			return ch, id
		}
	}
	return e.opts.PrimaryChannel, e.opts.PrimaryChatID
}

// stampLastRun records the execution instant, persisting it for globals.
func (e *Engine) stampLastRun(ev Event, delivered bool) {
	now := time.Now()
	e.mu.Lock()
	e.lastRun[ev.EventID()] = now

	if g, ok := ev.(Global); ok {
		if def, exists := e.globals[g.ID]; exists {
			def.LastRun = now.Format(time.RFC3339)
			e.globals[g.ID] = def
			defs := make(map[string]GlobalDefinition, len(e.globals))
			for id, d := range e.globals {
				defs[id] = d
			}
			e.mu.Unlock()
			if err := SaveGlobalEvents(e.opts.GlobalEventsPath, defs); err != nil {
				e.logger.Warn("failed to persist last_run", "id", g.ID, "error", err)
			}
			return
		}
	}
	e.mu.Unlock()

	e.logger.Debug("event complete", "id", ev.EventID(), "delivered", delivered)
}

// historyMessages converts the persisted conversation into LLM input.
func (e *Engine) historyMessages() []llm.Message {
	entries := e.hist.History()
	msgs := make([]llm.Message, 0, len(entries)+1)
	for _, entry := range entries {
		parts := make([]string, 0, len(entry.Parts))
		for _, p := range entry.Parts {
			parts = append(parts, p.Text)
		}
		msgs = append(msgs, llm.Message{Role: entry.Role, Parts: parts})
	}
	return msgs
}

// EventIDs returns the ids of all loaded definitions, for diagnostics.
func (e *Engine) EventIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.events))
	for id := range e.events {
		ids = append(ids, id)
	}
	return ids
}
