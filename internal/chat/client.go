package chat

import (
	"context"
	"errors"
	"fmt"
)

// MessageRef identifies a posted message.
type MessageRef struct {
	ChannelID string
	TS        string
}

// Message is a fetched channel message.
type Message struct {
	ChannelID string
	TS        string
	ThreadTS  string
	UserID    string
	Text      string
}

// ThreadPage is one page of thread replies.
type ThreadPage struct {
	Messages   []Message
	NextCursor string
}

// Client is the chat-platform collaborator consumed by the lifecycle engine.
// All calls block on network I/O and carry a bounded timeout; they are never
// made while holding internal state.
type Client interface {
	PostMessage(ctx context.Context, channelID, threadTS, text string) (MessageRef, error)
	AddReaction(ctx context.Context, channelID, ts, emoji string) error
	RemoveReaction(ctx context.Context, channelID, ts, emoji string) error
	GetMessage(ctx context.Context, channelID, ts string) (*Message, error)
	GetPermalink(ctx context.Context, channelID, ts string) (string, error)
	GetThreadReplies(ctx context.Context, channelID, ts, cursor string) (*ThreadPage, error)
}

// APIError is a platform-level error code returned by the chat API.
type APIError struct {
	Code string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api error: %s", e.Code)
}

// Benign platform codes: the requested end state already holds.
const (
	codeAlreadyReacted = "already_reacted"
	codeNoReaction     = "no_reaction"
)

// IsAlreadyDone reports whether err is a benign already-done code. Callers
// treat such errors as successful no-ops.
func IsAlreadyDone(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == codeAlreadyReacted || apiErr.Code == codeNoReaction
}
