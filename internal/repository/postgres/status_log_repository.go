package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatops-kit/triage-service/internal/domain"
	"github.com/chatops-kit/triage-service/internal/repository"
)

type statusLogRepository struct {
	pool *pgxpool.Pool
}

// NewStatusLogRepository builds the ledger repository.
func NewStatusLogRepository(pool *pgxpool.Pool) repository.StatusLogRepository {
	return &statusLogRepository{pool: pool}
}

func (r *statusLogRepository) Append(ctx context.Context, ticketID string, entry domain.StatusLogEntry) error {
	const query = `INSERT INTO ticket_status_log (ticket_id, status, recorded_at) VALUES ($1,$2,$3)`
	_, err := r.pool.Exec(ctx, query, ticketID, entry.Status, entry.At)
	return err
}

func (r *statusLogRepository) ListByTicket(ctx context.Context, ticketID string) (domain.StatusLog, error) {
	const query = `
        SELECT status, recorded_at FROM ticket_status_log
        WHERE ticket_id=$1 ORDER BY recorded_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var log domain.StatusLog
	for rows.Next() {
		var entry domain.StatusLogEntry
		if err := rows.Scan(&entry.Status, &entry.At); err != nil {
			return nil, err
		}
		log = append(log, entry)
	}
	return log, rows.Err()
}
