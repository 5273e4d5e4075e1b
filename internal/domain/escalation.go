package domain

import "time"

// EscalationStatus enumerates escalation lifecycle states. RESOLVED is
// terminal; there is no un-resolve.
type EscalationStatus string

const (
	EscalationStatusOpened   EscalationStatus = "OPENED"
	EscalationStatusResolved EscalationStatus = "RESOLVED"
)

// Escalation is a team-specific secondary workflow spawned from a ticket.
// Creation is idempotent per (ticket, team).
type Escalation struct {
	ID         string
	TicketID   string
	Team       string
	Tags       []string
	Status     EscalationStatus
	OpenedAt   time.Time
	ResolvedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NaturalKey returns the dedup key for an escalation.
func (e *Escalation) NaturalKey() string {
	return e.TicketID + ":" + e.Team
}

// IsResolved reports whether the escalation reached its terminal state.
func (e *Escalation) IsResolved() bool {
	return e.Status == EscalationStatusResolved
}

// Resolved returns a copy of the escalation in terminal state. ResolvedAt is
// only ever set here, exactly once.
func (e Escalation) Resolved(at time.Time) Escalation {
	e.Status = EscalationStatusResolved
	e.ResolvedAt = &at
	return e
}
