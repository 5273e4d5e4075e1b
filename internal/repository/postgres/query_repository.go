package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatops-kit/triage-service/internal/domain"
	"github.com/chatops-kit/triage-service/internal/repository"
)

type queryRepository struct {
	pool *pgxpool.Pool
}

// NewQueryRepository instantiates repository.
func NewQueryRepository(pool *pgxpool.Pool) repository.QueryRepository {
	return &queryRepository{pool: pool}
}

func (r *queryRepository) CreateIfNotExists(ctx context.Context, query *domain.Query) (*domain.Query, bool, error) {
	const insert = `
        INSERT INTO queries (channel_id, message_ts, author_id, text)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (channel_id, message_ts) DO NOTHING
        RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, insert,
		query.ChannelID,
		query.MessageTS,
		query.AuthorID,
		query.Text,
	).Scan(&query.ID, &query.CreatedAt)
	if err == nil {
		return query, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}
	existing, err := r.GetByRef(ctx, query.ChannelID, query.MessageTS)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *queryRepository) GetByRef(ctx context.Context, channelID, messageTS string) (*domain.Query, error) {
	const query = `
        SELECT id, channel_id, message_ts, author_id, text, created_at
        FROM queries WHERE channel_id=$1 AND message_ts=$2`
	var q domain.Query
	if err := r.pool.QueryRow(ctx, query, channelID, messageTS).Scan(
		&q.ID,
		&q.ChannelID,
		&q.MessageTS,
		&q.AuthorID,
		&q.Text,
		&q.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &q, nil
}
