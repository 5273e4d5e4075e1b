package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Envelope is the outer wrapper delivered by the chat platform's event
// webhook. Only event_callback envelopes carry an inner event.
type Envelope struct {
	Type      string     `json:"type"`
	EventID   string     `json:"event_id"`
	Challenge string     `json:"challenge"`
	Event     InnerEvent `json:"event"`
}

// InnerEvent is the platform event inside an envelope. Fields are populated
// depending on the event type.
type InnerEvent struct {
	Type     string `json:"type"`
	Subtype  string `json:"subtype"`
	Channel  string `json:"channel"`
	User     string `json:"user"`
	BotID    string `json:"bot_id"`
	Text     string `json:"text"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts"`
	Reaction string `json:"reaction"`
	EventTS  string `json:"event_ts"`
	Item     Item   `json:"item"`
}

// Item references the message a reaction event targets.
type Item struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	TS      string `json:"ts"`
}

const (
	envelopeTypeCallback     = "event_callback"
	envelopeTypeVerification = "url_verification"

	eventTypeMessage         = "message"
	eventTypeReactionAdded   = "reaction_added"
	eventTypeReactionRemoved = "reaction_removed"
)

// ParseEnvelope decodes a webhook request body.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("event envelope missing type")
	}
	return &env, nil
}

// IsVerification reports whether the envelope is the webhook handshake.
func (e *Envelope) IsVerification() bool {
	return e.Type == envelopeTypeVerification
}

// Action maps the inner event onto a dispatch key. Handlers register regular
// expressions against these keys, so reaction handlers can bind to a single
// emoji without inspecting the payload.
func (e *Envelope) Action() string {
	if e.Type != envelopeTypeCallback {
		return ""
	}
	switch e.Event.Type {
	case eventTypeMessage:
		return "message.posted"
	case eventTypeReactionAdded:
		return "reaction.added:" + e.Event.Reaction
	case eventTypeReactionRemoved:
		return "reaction.removed:" + e.Event.Reaction
	default:
		return ""
	}
}

// Timestamp resolves when the event happened, preferring the event_ts the
// platform stamps on every event. Falls back to now when absent or malformed.
func (e *Envelope) Timestamp() time.Time {
	for _, raw := range []string{e.Event.EventTS, e.Event.TS} {
		if t, ok := parseChatTS(raw); ok {
			return t
		}
	}
	return time.Now()
}

// parseChatTS parses the platform's "seconds.micros" timestamp format.
func parseChatTS(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	secPart, microPart, _ := strings.Cut(raw, ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	var micros int64
	if microPart != "" {
		micros, err = strconv.ParseInt(microPart, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
	}
	return time.Unix(sec, micros*int64(time.Microsecond)), true
}
