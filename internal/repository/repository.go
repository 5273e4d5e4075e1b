package repository

import (
	"context"
	"time"

	"github.com/chatops-kit/triage-service/internal/domain"
)

// Repositories groups every persistence capability consumed by the services.
// Two backends exist: postgres (production) and memory (reference
// implementation, used by tests). Both honor the same invariants, most
// importantly that CreateIfNotExists is atomic under concurrent invocation
// with the same natural key: exactly one caller observes created=true.
type Repositories struct {
	Queries     QueryRepository
	Tickets     TicketRepository
	StatusLog   StatusLogRepository
	Escalations EscalationRepository
	Ratings     RatingRepository
}

// QueryRepository stores candidate support requests keyed by (channel, ts).
type QueryRepository interface {
	CreateIfNotExists(ctx context.Context, query *domain.Query) (*domain.Query, bool, error)
	GetByRef(ctx context.Context, channelID, messageTS string) (*domain.Query, error)
}

// TicketFilter captures listing parameters for tickets.
type TicketFilter struct {
	IDs         []string
	Statuses    []domain.TicketStatus
	Team        *string
	Impact      *string
	Tag         *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketRepository encapsulates ticket persistence. Update writes the detail
// fields (team, impact, tags, assignee) and never the ledger, the rated flag,
// or the stale marker; status changes go through Transition, which applies the
// status mutation and the ledger append atomically, and the flags have their
// own narrow setters so a concurrent Update from a stale snapshot cannot
// clobber them.
type TicketRepository interface {
	CreateIfNotExists(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, bool, error)
	Update(ctx context.Context, ticket *domain.Ticket) error
	MarkRated(ctx context.Context, id string) error
	SetNotifiedStale(ctx context.Context, id string, at *time.Time) error
	Transition(ctx context.Context, id string, to domain.TicketStatus, at time.Time) (*domain.Ticket, bool, error)
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByQueryRef(ctx context.Context, channelID, messageTS string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	CountWithFilter(ctx context.Context, filter TicketFilter) (int64, error)
	ListOpenLastActiveBefore(ctx context.Context, cutoff time.Time) ([]domain.Ticket, error)
}

// StatusLogRepository is the append-only status ledger, keyed by ticket id
// and ordered by append time.
type StatusLogRepository interface {
	Append(ctx context.Context, ticketID string, entry domain.StatusLogEntry) error
	ListByTicket(ctx context.Context, ticketID string) (domain.StatusLog, error)
}

// EscalationFilter captures listing parameters for escalations.
type EscalationFilter struct {
	TicketID   *string
	Statuses   []domain.EscalationStatus
	Team       *string
	OpenedFrom *time.Time
	OpenedTo   *time.Time
	Limit      int
	Offset     int
}

// EscalationRepository persists escalations. Resolve is conditional on the
// current status so concurrent duplicate resolves collapse to one mutation;
// the bool result reports whether this call applied the transition.
type EscalationRepository interface {
	CreateIfNotExists(ctx context.Context, escalation *domain.Escalation) (*domain.Escalation, bool, error)
	GetByID(ctx context.Context, id string) (*domain.Escalation, error)
	Resolve(ctx context.Context, id string, at time.Time) (*domain.Escalation, bool, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Escalation, error)
	ListNotResolved(ctx context.Context, ticketID string) ([]domain.Escalation, error)
	CountNotResolved(ctx context.Context, ticketID string) (int, error)
	ListWithFilter(ctx context.Context, filter EscalationFilter) ([]domain.Escalation, error)
	CountWithFilter(ctx context.Context, filter EscalationFilter) (int64, error)
}

// RatingRepository persists ratings, at most one per ticket.
type RatingRepository interface {
	CreateIfNotExists(ctx context.Context, rating *domain.Rating) (*domain.Rating, bool, error)
	GetByTicket(ctx context.Context, ticketID string) (*domain.Rating, error)
	ListInRange(ctx context.Context, from, to time.Time) ([]domain.Rating, error)
}
