package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatops-kit/triage-service/internal/domain"
	"github.com/chatops-kit/triage-service/internal/repository"
)

type ratingRepository struct {
	pool *pgxpool.Pool
}

// NewRatingRepository instantiates repository.
func NewRatingRepository(pool *pgxpool.Pool) repository.RatingRepository {
	return &ratingRepository{pool: pool}
}

func (r *ratingRepository) CreateIfNotExists(ctx context.Context, rating *domain.Rating) (*domain.Rating, bool, error) {
	const insert = `
        INSERT INTO ratings (ticket_id, value, ticket_status, impact, tags, escalated)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (ticket_id) DO NOTHING
        RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, insert,
		rating.TicketID,
		rating.Value,
		rating.TicketStatus,
		rating.Impact,
		rating.Tags,
		rating.Escalated,
	).Scan(&rating.ID, &rating.CreatedAt)
	if err == nil {
		return rating, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}
	existing, err := r.GetByTicket(ctx, rating.TicketID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *ratingRepository) GetByTicket(ctx context.Context, ticketID string) (*domain.Rating, error) {
	const query = `
        SELECT id, ticket_id, value, ticket_status, impact, tags, escalated, created_at
        FROM ratings WHERE ticket_id=$1`
	var rating domain.Rating
	if err := r.pool.QueryRow(ctx, query, ticketID).Scan(
		&rating.ID,
		&rating.TicketID,
		&rating.Value,
		&rating.TicketStatus,
		&rating.Impact,
		&rating.Tags,
		&rating.Escalated,
		&rating.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &rating, nil
}

func (r *ratingRepository) ListInRange(ctx context.Context, from, to time.Time) ([]domain.Rating, error) {
	const query = `
        SELECT id, ticket_id, value, ticket_status, impact, tags, escalated, created_at
        FROM ratings WHERE created_at >= $1 AND created_at <= $2 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Rating
	for rows.Next() {
		var rating domain.Rating
		if err := rows.Scan(
			&rating.ID,
			&rating.TicketID,
			&rating.Value,
			&rating.TicketStatus,
			&rating.Impact,
			&rating.Tags,
			&rating.Escalated,
			&rating.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, rating)
	}
	return result, rows.Err()
}
