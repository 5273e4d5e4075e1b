package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpened TicketStatus = "OPENED"
	TicketStatusClosed TicketStatus = "CLOSED"
	TicketStatusStale  TicketStatus = "STALE"
)

// StatusLogEntry is an immutable (status, timestamp) tuple in an entity's
// status ledger.
type StatusLogEntry struct {
	Status TicketStatus
	At     time.Time
}

// StatusLog is the append-only, time-ordered status history of a ticket.
// A valid log is never empty and its last entry matches the ticket's
// current status.
type StatusLog []StatusLogEntry

// Appended returns a copy of the log with one more entry.
func (l StatusLog) Appended(status TicketStatus, at time.Time) StatusLog {
	out := make(StatusLog, len(l), len(l)+1)
	copy(out, l)
	return append(out, StatusLogEntry{Status: status, At: at})
}

// Current returns the status of the last entry, or "" for an empty log.
func (l StatusLog) Current() TicketStatus {
	if len(l) == 0 {
		return ""
	}
	return l[len(l)-1].Status
}

// FirstOpenedAt returns the timestamp of the first OPENED entry.
func (l StatusLog) FirstOpenedAt() (time.Time, bool) {
	for _, entry := range l {
		if entry.Status == TicketStatusOpened {
			return entry.At, true
		}
	}
	return time.Time{}, false
}

// LastClosedAt returns the timestamp of the last CLOSED entry, spanning any
// number of reopen cycles.
func (l StatusLog) LastClosedAt() (time.Time, bool) {
	for i := len(l) - 1; i >= 0; i-- {
		if l[i].Status == TicketStatusClosed {
			return l[i].At, true
		}
	}
	return time.Time{}, false
}

// LastAt returns the timestamp of the most recent entry.
func (l StatusLog) LastAt() (time.Time, bool) {
	if len(l) == 0 {
		return time.Time{}, false
	}
	return l[len(l)-1].At, true
}

// ResponseTime is the delay between the query being posted and the first
// ledger entry.
func (l StatusLog) ResponseTime(queryAt time.Time) (time.Duration, bool) {
	if len(l) == 0 {
		return 0, false
	}
	return l[0].At.Sub(queryAt), true
}

// ResolutionTime is the span from the first OPENED entry to the last CLOSED
// entry. It is only defined for logs whose current status is CLOSED.
func (l StatusLog) ResolutionTime() (time.Duration, bool) {
	if l.Current() != TicketStatusClosed {
		return 0, false
	}
	opened, ok := l.FirstOpenedAt()
	if !ok {
		return 0, false
	}
	closed, _ := l.LastClosedAt()
	return closed.Sub(opened), true
}

// ActiveDuration is how long a currently-open ticket has been open.
func (l StatusLog) ActiveDuration(now time.Time) (time.Duration, bool) {
	if l.Current() == TicketStatusClosed {
		return 0, false
	}
	opened, ok := l.FirstOpenedAt()
	if !ok {
		return 0, false
	}
	return now.Sub(opened), true
}
