package assistant

import (
	"context"
	"errors"
)

// ErrNoReplyTarget is returned by Session.Send when the session has no
// delivery sink, which happens for scheduler-driven executions that could
// not resolve a target user.
var ErrNoReplyTarget = errors.New("assistant: session has no reply target")

// Session carries the context of one request through tool execution: who is
// talking, on which channel, and how to send text back. Tool handlers receive
// it explicitly instead of reading shared state.
type Session struct {
	UserID  string
	Channel string
	ChatID  string

	// Reply delivers text back to the conversation. Nil when there is no
	// resolved target.
	Reply func(ctx context.Context, text string) error
}

// Send delivers text through the session's reply sink.
func (s *Session) Send(ctx context.Context, text string) error {
	if s == nil || s.Reply == nil {
		return ErrNoReplyTarget
	}
	return s.Reply(ctx, text)
}
