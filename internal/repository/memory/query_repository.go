package memory

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/chatops-kit/triage-service/internal/domain"
	"github.com/chatops-kit/triage-service/internal/repository"
)

type queryRepository struct {
	store *Store
}

// NewQueryRepository instantiates repository.
func NewQueryRepository(store *Store) repository.QueryRepository {
	return &queryRepository{store: store}
}

func (r *queryRepository) CreateIfNotExists(ctx context.Context, query *domain.Query) (*domain.Query, bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := query.NaturalKey()
	if existing, ok := r.store.queries[key]; ok {
		return cloneQuery(existing), false, nil
	}

	stored := cloneQuery(query)
	stored.ID = newID()
	stored.CreatedAt = time.Now()
	r.store.queries[key] = stored
	return cloneQuery(stored), true, nil
}

func (r *queryRepository) GetByRef(ctx context.Context, channelID, messageTS string) (*domain.Query, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, ok := r.store.queries[channelID+":"+messageTS]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneQuery(existing), nil
}
