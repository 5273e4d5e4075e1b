package memory

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/chatops-kit/triage-service/internal/domain"
	"github.com/chatops-kit/triage-service/internal/repository"
)

type escalationRepository struct {
	store *Store
}

// NewEscalationRepository instantiates repository.
func NewEscalationRepository(store *Store) repository.EscalationRepository {
	return &escalationRepository{store: store}
}

func (r *escalationRepository) CreateIfNotExists(ctx context.Context, escalation *domain.Escalation) (*domain.Escalation, bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := escalation.NaturalKey()
	if id, ok := r.store.escalationByKey[key]; ok {
		return cloneEscalation(r.store.escalations[id]), false, nil
	}

	now := time.Now()
	stored := cloneEscalation(escalation)
	stored.ID = newID()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.store.escalations[stored.ID] = stored
	r.store.escalationByKey[key] = stored.ID
	return cloneEscalation(stored), true, nil
}

func (r *escalationRepository) GetByID(ctx context.Context, id string) (*domain.Escalation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, ok := r.store.escalations[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneEscalation(existing), nil
}

func (r *escalationRepository) Resolve(ctx context.Context, id string, at time.Time) (*domain.Escalation, bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, ok := r.store.escalations[id]
	if !ok {
		return nil, false, pgx.ErrNoRows
	}
	if existing.IsResolved() {
		return cloneEscalation(existing), false, nil
	}
	resolved := existing.Resolved(at)
	resolved.UpdatedAt = time.Now()
	r.store.escalations[id] = &resolved
	return cloneEscalation(&resolved), true, nil
}

// ListByTicket returns every escalation for the ticket, unpaginated.
func (r *escalationRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Escalation, error) {
	return r.collect(repository.EscalationFilter{TicketID: &ticketID}), nil
}

func (r *escalationRepository) ListNotResolved(ctx context.Context, ticketID string) ([]domain.Escalation, error) {
	return r.collect(repository.EscalationFilter{
		TicketID: &ticketID,
		Statuses: []domain.EscalationStatus{domain.EscalationStatusOpened},
	}), nil
}

func (r *escalationRepository) CountNotResolved(ctx context.Context, ticketID string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	count := 0
	for _, e := range r.store.escalations {
		if e.TicketID == ticketID && !e.IsResolved() {
			count++
		}
	}
	return count, nil
}

func (r *escalationRepository) ListWithFilter(ctx context.Context, filter repository.EscalationFilter) ([]domain.Escalation, error) {
	matches := r.collect(filter)
	return paginate(matches, filter.Limit, filter.Offset), nil
}

func (r *escalationRepository) CountWithFilter(ctx context.Context, filter repository.EscalationFilter) (int64, error) {
	return int64(len(r.collect(filter))), nil
}

func (r *escalationRepository) collect(filter repository.EscalationFilter) []domain.Escalation {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	statusSet := map[domain.EscalationStatus]bool{}
	for _, status := range filter.Statuses {
		statusSet[status] = true
	}

	var matches []domain.Escalation
	for _, e := range r.store.escalations {
		if filter.TicketID != nil && e.TicketID != *filter.TicketID {
			continue
		}
		if len(statusSet) > 0 && !statusSet[e.Status] {
			continue
		}
		if filter.Team != nil && e.Team != *filter.Team {
			continue
		}
		if !inRange(e.OpenedAt, filter.OpenedFrom, filter.OpenedTo) {
			continue
		}
		matches = append(matches, *cloneEscalation(e))
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].OpenedAt.Before(matches[j].OpenedAt) })
	return matches
}
