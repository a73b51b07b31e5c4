// Package llm wraps the language-model backend behind a small interface so
// the rest of the assistant treats generation as a black box.
package llm

import (
	"context"
	"errors"
)

// ErrUnavailable signals that the backend failed or returned nothing.
// Callers log it and fall back to a user-facing error message; they never
// crash on it.
var ErrUnavailable = errors.New("llm: backend unavailable")

// Message is one turn of conversation content. Role is "user" or "model".
type Message struct {
	Role  string
	Parts []string
}

// UserText builds a single-part user message.
func UserText(text string) Message {
	return Message{Role: "user", Parts: []string{text}}
}

// Client generates text from conversation content and a system instruction.
type Client interface {
	// Generate returns the model's text response. jsonOutput hints that the
	// response should be machine-parseable JSON.
	Generate(ctx context.Context, msgs []Message, system string, jsonOutput bool) (string, error)
}
