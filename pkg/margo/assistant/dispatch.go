package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/avelardi/margo/pkg/margo/history"
)

// ToolFinish is the terminal tool: on success it clears the conversation
// history and short-circuits the rest of the batch.
const ToolFinish = "finish"

// ErrInvalidFormat signals that the model produced valid JSON that is not a
// list of tool calls.
var ErrInvalidFormat = errors.New("assistant: tool call payload is not a list")

// Outcome is the result of dispatching one model response.
type Outcome struct {
	// Text is set when the response was not JSON and should be treated as
	// a plain conversational reply.
	Text string

	// Result is the last successful tool call's return value.
	Result any

	// Finished reports that the finish tool ran and history was cleared.
	Finished bool

	// ErrorMessage is set when the batch was non-empty but no call succeeded.
	ErrorMessage string
}

// Dispatcher interprets model output as tool-call batches and runs them
// against the registry. Every history mutation it makes is persisted before
// the next call executes.
type Dispatcher struct {
	registry *Registry
	history  *history.Store
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(reg *Registry, hist *history.Store, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: reg,
		history:  hist,
		logger:   logger.With("component", "dispatch"),
	}
}

// ProcessResponse runs the dispatch protocol on raw model output:
//
//  1. The raw text is appended to history verbatim before any interpretation,
//     so history always reflects exactly what the model produced.
//  2. Text that does not parse as JSON is a plain conversational reply.
//  3. Valid JSON that is not a list is a format violation (ErrInvalidFormat).
//  4. Calls run strictly in order and fail independently: an unknown tool or
//     a handler error is recorded into history as a user-role note for the
//     model to self-correct on, and the remaining calls still run.
//  5. finish clears history and skips the rest of the batch.
func (d *Dispatcher) ProcessResponse(ctx context.Context, sess *Session, raw string) (*Outcome, error) {
	if err := d.history.AppendText(history.RoleModel, raw); err != nil {
		d.logger.Warn("failed to persist model response", "error", err)
	}

	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return &Outcome{Text: raw}, nil
	}
	list, ok := parsed.([]any)
	if !ok {
		return nil, ErrInvalidFormat
	}

	var (
		final     any
		succeeded bool
	)
	for _, item := range list {
		call, ok := item.(map[string]any)
		if !ok {
			d.logger.Warn("skipping malformed tool call", "call", item)
			continue
		}
		name, ok := call["tool"].(string)
		if !ok || name == "" {
			d.logger.Warn("skipping tool call without tool name")
			continue
		}
		data, ok := call["data"].(map[string]any)
		if !ok {
			d.logger.Warn("skipping tool call without data object", "tool", name)
			continue
		}

		handler, ok := d.registry.Get(name)
		if !ok {
			d.note(fmt.Sprintf("[Tool Error: unknown tool %q]", name))
			continue
		}

		result, err := d.invoke(ctx, sess, handler, data)
		if err != nil {
			d.logger.Warn("tool execution failed", "tool", name, "error", err)
			d.note(fmt.Sprintf("[Tool Execution Error: %s: %v]", name, err))
			continue
		}

		payload, merr := json.Marshal(result)
		if merr != nil {
			payload = []byte(fmt.Sprintf("%v", result))
		}
		d.note(fmt.Sprintf("[Tool response: %s]", payload))
		final = result
		succeeded = true

		if name == ToolFinish {
			if err := d.history.Clear(); err != nil {
				d.logger.Warn("failed to clear history on finish", "error", err)
			}
			return &Outcome{Result: final, Finished: true}, nil
		}
	}

	if len(list) > 0 && !succeeded {
		return &Outcome{ErrorMessage: "All tool calls failed"}, nil
	}
	return &Outcome{Result: final}, nil
}

// invoke runs a handler, converting a panic into an error so a misbehaving
// tool never takes down the batch.
func (d *Dispatcher) invoke(ctx context.Context, sess *Session, handler HandlerFunc, args map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return handler(ctx, sess, args)
}

// note records a synthetic entry with the user role so the model sees tool
// outcomes and its own mistakes on the next turn.
func (d *Dispatcher) note(text string) {
	if err := d.history.AppendText(history.RoleUser, text); err != nil {
		d.logger.Warn("failed to persist tool note", "error", err)
	}
}
