package memory

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/chatops-kit/triage-service/internal/domain"
	"github.com/chatops-kit/triage-service/internal/repository"
)

type ticketRepository struct {
	store *Store
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(store *Store) repository.TicketRepository {
	return &ticketRepository{store: store}
}

func (r *ticketRepository) CreateIfNotExists(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := ticket.QueryKey()
	if id, ok := r.store.ticketByKey[key]; ok {
		existing := r.store.tickets[id]
		return cloneTicket(existing, r.store.logs[id]), false, nil
	}

	now := time.Now()
	stored := cloneTicket(ticket, nil)
	stored.ID = newID()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.store.tickets[stored.ID] = stored
	r.store.ticketByKey[key] = stored.ID
	r.store.logs[stored.ID] = append(domain.StatusLog(nil), ticket.StatusLog...)
	return cloneTicket(stored, r.store.logs[stored.ID]), true, nil
}

// Update writes the detail fields only. Status, the rated flag, and the stale
// marker are carried over from the stored row so a writer holding an older
// snapshot cannot reset them.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, ok := r.store.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	updated := cloneTicket(ticket, nil)
	updated.Status = existing.Status
	updated.Rated = existing.Rated
	updated.NotifiedStaleAt = existing.NotifiedStaleAt
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now()
	r.store.tickets[ticket.ID] = updated
	return nil
}

func (r *ticketRepository) MarkRated(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, ok := r.store.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	existing.Rated = true
	existing.UpdatedAt = time.Now()
	return nil
}

func (r *ticketRepository) SetNotifiedStale(ctx context.Context, id string, at *time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, ok := r.store.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if at == nil {
		existing.NotifiedStaleAt = nil
	} else {
		stamp := *at
		existing.NotifiedStaleAt = &stamp
	}
	existing.UpdatedAt = time.Now()
	return nil
}

func (r *ticketRepository) Transition(ctx context.Context, id string, to domain.TicketStatus, at time.Time) (*domain.Ticket, bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, ok := r.store.tickets[id]
	if !ok {
		return nil, false, pgx.ErrNoRows
	}
	if existing.Status == to {
		return cloneTicket(existing, r.store.logs[id]), false, nil
	}
	existing.Status = to
	existing.UpdatedAt = time.Now()
	r.store.logs[id] = append(r.store.logs[id], domain.StatusLogEntry{Status: to, At: at})
	return cloneTicket(existing, r.store.logs[id]), true, nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, ok := r.store.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneTicket(existing, r.store.logs[id]), nil
}

func (r *ticketRepository) GetByQueryRef(ctx context.Context, channelID, messageTS string) (*domain.Ticket, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	id, ok := r.store.ticketByKey[channelID+":"+messageTS]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneTicket(r.store.tickets[id], r.store.logs[id]), nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	matches := r.collect(filter)
	return paginate(matches, filter.Limit, filter.Offset), nil
}

func (r *ticketRepository) CountWithFilter(ctx context.Context, filter repository.TicketFilter) (int64, error) {
	return int64(len(r.collect(filter))), nil
}

func (r *ticketRepository) ListOpenLastActiveBefore(ctx context.Context, cutoff time.Time) ([]domain.Ticket, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var out []domain.Ticket
	for id, t := range r.store.tickets {
		if t.Status != domain.TicketStatusOpened {
			continue
		}
		log := r.store.logs[id]
		last, ok := log.LastAt()
		if !ok || !last.Before(cutoff) {
			continue
		}
		out = append(out, *cloneTicket(t, log))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *ticketRepository) collect(filter repository.TicketFilter) []domain.Ticket {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	idSet := map[string]bool{}
	for _, id := range filter.IDs {
		idSet[id] = true
	}
	statusSet := map[domain.TicketStatus]bool{}
	for _, status := range filter.Statuses {
		statusSet[status] = true
	}

	var matches []domain.Ticket
	for id, t := range r.store.tickets {
		if len(idSet) > 0 && !idSet[t.ID] {
			continue
		}
		if len(statusSet) > 0 && !statusSet[t.Status] {
			continue
		}
		if filter.Team != nil && (t.Team == nil || *t.Team != *filter.Team) {
			continue
		}
		if filter.Impact != nil && (t.Impact == nil || *t.Impact != *filter.Impact) {
			continue
		}
		if filter.Tag != nil && !containsTag(t.Tags, *filter.Tag) {
			continue
		}
		if !inRange(t.CreatedAt, filter.CreatedFrom, filter.CreatedTo) {
			continue
		}
		matches = append(matches, *cloneTicket(t, r.store.logs[id]))
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	return matches
}

func containsTag(tags []string, tag string) bool {
	for _, candidate := range tags {
		if candidate == tag {
			return true
		}
	}
	return false
}
