package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/avelardi/margo/pkg/margo/history"
	"github.com/avelardi/margo/pkg/margo/tracker"
	"github.com/avelardi/margo/pkg/margo/vault"
)

// Toolset wires the assistant's tool handlers to their backing services.
// Nil services disable the tools that depend on them.
type Toolset struct {
	Vault   *vault.Vault
	Tracker *tracker.Client
	History *history.Store
	Logger  *slog.Logger
}

// RegisterAll registers every tool the configured services support.
func (t *Toolset) RegisterAll(reg *Registry) {
	if t.Logger == nil {
		t.Logger = slog.Default()
	}

	reg.Register(Tool{
		Name:        "reply",
		Description: "Send a text message to the user.",
		Example:     `{"message": "On it!"}`,
		Handler:     t.reply,
	})
	reg.Register(Tool{
		Name:        ToolFinish,
		Description: "End the conversation once the goal is complete. Optionally sends a closing message. Clears the conversation history.",
		Example:     `{"message": "All done."}`,
		Handler:     t.finish,
	})
	if t.History != nil {
		reg.Register(Tool{
			Name:        "clear_history",
			Description: "Forget the conversation so far.",
			Example:     `{}`,
			Handler:     t.clearHistory,
		})
	}

	if t.Vault != nil {
		t.registerVaultTools(reg)
	}
	if t.Tracker != nil {
		t.registerTrackerTools(reg)
		t.registerPlannerTools(reg)
	}
}

func (t *Toolset) reply(ctx context.Context, sess *Session, args map[string]any) (any, error) {
	message, err := stringArg(args, "message")
	if err != nil {
		return nil, err
	}
	if err := sess.Send(ctx, message); err != nil {
		return nil, err
	}
	return map[string]any{"status": "sent", "message": message}, nil
}

func (t *Toolset) finish(ctx context.Context, sess *Session, args map[string]any) (any, error) {
	message, _ := args["message"].(string)
	if message != "" {
		if err := sess.Send(ctx, message); err != nil {
			return nil, err
		}
	}
	return map[string]any{"status": "finished", "message": message}, nil
}

func (t *Toolset) clearHistory(ctx context.Context, sess *Session, args map[string]any) (any, error) {
	if err := t.History.Clear(); err != nil {
		return nil, err
	}
	return map[string]any{"status": "cleared"}, nil
}

// ---------- Argument helpers ----------

var errMissingContent = errors.New(`argument "content" must be a string`)

// stringArg extracts a required string argument.
func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("argument %q must be a non-empty string", key)
	}
	return s, nil
}

// optionalString extracts a string argument, returning "" when absent.
func optionalString(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
