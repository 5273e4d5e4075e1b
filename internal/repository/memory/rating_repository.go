package memory

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/chatops-kit/triage-service/internal/domain"
	"github.com/chatops-kit/triage-service/internal/repository"
)

type ratingRepository struct {
	store *Store
}

// NewRatingRepository instantiates repository.
func NewRatingRepository(store *Store) repository.RatingRepository {
	return &ratingRepository{store: store}
}

func (r *ratingRepository) CreateIfNotExists(ctx context.Context, rating *domain.Rating) (*domain.Rating, bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if existing, ok := r.store.ratings[rating.TicketID]; ok {
		return cloneRating(existing), false, nil
	}

	stored := cloneRating(rating)
	stored.ID = newID()
	stored.CreatedAt = time.Now()
	r.store.ratings[rating.TicketID] = stored
	return cloneRating(stored), true, nil
}

func (r *ratingRepository) GetByTicket(ctx context.Context, ticketID string) (*domain.Rating, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, ok := r.store.ratings[ticketID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneRating(existing), nil
}

func (r *ratingRepository) ListInRange(ctx context.Context, from, to time.Time) ([]domain.Rating, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var out []domain.Rating
	for _, rating := range r.store.ratings {
		if rating.CreatedAt.Before(from) || rating.CreatedAt.After(to) {
			continue
		}
		out = append(out, *cloneRating(rating))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
