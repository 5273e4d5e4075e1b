package memory

import (
	"context"

	"github.com/chatops-kit/triage-service/internal/domain"
	"github.com/chatops-kit/triage-service/internal/repository"
)

type statusLogRepository struct {
	store *Store
}

// NewStatusLogRepository builds the ledger repository.
func NewStatusLogRepository(store *Store) repository.StatusLogRepository {
	return &statusLogRepository{store: store}
}

func (r *statusLogRepository) Append(ctx context.Context, ticketID string, entry domain.StatusLogEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.logs[ticketID] = append(r.store.logs[ticketID], entry)
	return nil
}

func (r *statusLogRepository) ListByTicket(ctx context.Context, ticketID string) (domain.StatusLog, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return append(domain.StatusLog(nil), r.store.logs[ticketID]...), nil
}
