// Package memory provides the in-memory reference implementation of the
// repository capabilities. It mirrors the invariants of the postgres backend:
// natural-key uniqueness makes CreateIfNotExists first-writer-wins, and
// status transitions mutate the entity and append to the ledger under one
// lock. Tests use this backend as the reference implementation.
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chatops-kit/triage-service/internal/domain"
	"github.com/chatops-kit/triage-service/internal/repository"
)

// Store holds all entities behind a single mutex. Every repository handed out
// by NewRepositories shares it, so cross-entity operations stay consistent.
type Store struct {
	mu              sync.Mutex
	queries         map[string]*domain.Query
	tickets         map[string]*domain.Ticket
	ticketByKey     map[string]string
	logs            map[string]domain.StatusLog
	escalations     map[string]*domain.Escalation
	escalationByKey map[string]string
	ratings         map[string]*domain.Rating
}

// NewStore initializes an empty store.
func NewStore() *Store {
	return &Store{
		queries:         make(map[string]*domain.Query),
		tickets:         make(map[string]*domain.Ticket),
		ticketByKey:     make(map[string]string),
		logs:            make(map[string]domain.StatusLog),
		escalations:     make(map[string]*domain.Escalation),
		escalationByKey: make(map[string]string),
		ratings:         make(map[string]*domain.Rating),
	}
}

// NewRepositories bundles all repositories over one shared store.
func NewRepositories(store *Store) repository.Repositories {
	return repository.Repositories{
		Queries:     NewQueryRepository(store),
		Tickets:     NewTicketRepository(store),
		StatusLog:   NewStatusLogRepository(store),
		Escalations: NewEscalationRepository(store),
		Ratings:     NewRatingRepository(store),
	}
}

func newID() string {
	return uuid.NewString()
}

func cloneQuery(q *domain.Query) *domain.Query {
	out := *q
	return &out
}

func cloneTicket(t *domain.Ticket, log domain.StatusLog) *domain.Ticket {
	out := *t
	out.Tags = append([]string(nil), t.Tags...)
	out.StatusLog = append(domain.StatusLog(nil), log...)
	if t.Team != nil {
		team := *t.Team
		out.Team = &team
	}
	if t.Impact != nil {
		impact := *t.Impact
		out.Impact = &impact
	}
	if t.AssignedTo != nil {
		assignee := *t.AssignedTo
		out.AssignedTo = &assignee
	}
	if t.NotifiedStaleAt != nil {
		at := *t.NotifiedStaleAt
		out.NotifiedStaleAt = &at
	}
	return &out
}

func cloneEscalation(e *domain.Escalation) *domain.Escalation {
	out := *e
	out.Tags = append([]string(nil), e.Tags...)
	if e.ResolvedAt != nil {
		at := *e.ResolvedAt
		out.ResolvedAt = &at
	}
	return &out
}

func cloneRating(r *domain.Rating) *domain.Rating {
	out := *r
	out.Tags = append([]string(nil), r.Tags...)
	if r.Impact != nil {
		impact := *r.Impact
		out.Impact = &impact
	}
	return &out
}

func inRange(at time.Time, from, to *time.Time) bool {
	if from != nil && at.Before(*from) {
		return false
	}
	if to != nil && at.After(*to) {
		return false
	}
	return true
}

func paginate[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
