package events

import (
	"time"

	"github.com/chatops-kit/triage-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketOpened       EventType = "ticket_opened"
	EventTicketClosed       EventType = "ticket_closed"
	EventTicketReopened     EventType = "ticket_reopened"
	EventTicketStale        EventType = "ticket_stale"
	EventEscalationOpened   EventType = "escalation_opened"
	EventEscalationResolved EventType = "escalation_resolved"
	EventRatingCaptured     EventType = "rating_captured"
)

// Event represents a domain event emitted by services. Events carry
// notification intent only: the state transition they describe has already
// been committed when they are published.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	ActorID   string      `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketStatusPayload payload.
type TicketStatusPayload struct {
	ChannelID  string              `json:"channel_id"`
	MessageTS  string              `json:"message_ts"`
	Status     domain.TicketStatus `json:"status"`
	AssignedTo *string             `json:"assigned_to,omitempty"`
}

// EscalationPayload payload.
type EscalationPayload struct {
	EscalationID string   `json:"escalation_id"`
	Team         string   `json:"team"`
	Tags         []string `json:"tags,omitempty"`
}

// RatingCapturedPayload payload.
type RatingCapturedPayload struct {
	RatingID  string `json:"rating_id"`
	Value     int    `json:"value"`
	Escalated bool   `json:"escalated"`
}
