package domain

import "time"

// Ticket is the aggregate for tracked support cases. It is created from a
// Query by a triage reaction and carries the append-only status ledger.
type Ticket struct {
	ID              string
	ChannelID       string
	MessageTS       string
	Status          TicketStatus
	StatusLog       StatusLog
	Team            *string
	Impact          *string
	Tags            []string
	AssignedTo      *string
	Rated           bool
	NotifiedStaleAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// QueryKey returns the natural key of the originating query.
func (t *Ticket) QueryKey() string {
	return t.ChannelID + ":" + t.MessageTS
}

// TicketUpdate carries optional field changes for a ticket. Nil fields are
// left untouched; in particular an update without AssignedTo never clears an
// existing assignee.
type TicketUpdate struct {
	Team       *string
	Impact     *string
	Tags       []string
	AssignedTo *string
}

// Apply returns a copy of the ticket with the update folded in.
func (t Ticket) Apply(update TicketUpdate) Ticket {
	if update.Team != nil {
		t.Team = update.Team
	}
	if update.Impact != nil {
		t.Impact = update.Impact
	}
	if update.Tags != nil {
		t.Tags = update.Tags
	}
	if update.AssignedTo != nil {
		t.AssignedTo = update.AssignedTo
	}
	return t
}

// WithStatus returns a copy of the ticket transitioned to the given status,
// with a matching ledger entry appended.
func (t Ticket) WithStatus(status TicketStatus, at time.Time) Ticket {
	t.Status = status
	t.StatusLog = t.StatusLog.Appended(status, at)
	return t
}
