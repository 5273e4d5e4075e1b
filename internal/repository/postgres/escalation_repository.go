package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatops-kit/triage-service/internal/domain"
	"github.com/chatops-kit/triage-service/internal/repository"
)

const escalationColumns = `id, ticket_id, team, tags, status, opened_at, resolved_at, created_at, updated_at`

type escalationRepository struct {
	pool *pgxpool.Pool
}

// NewEscalationRepository instantiates repository.
func NewEscalationRepository(pool *pgxpool.Pool) repository.EscalationRepository {
	return &escalationRepository{pool: pool}
}

func (r *escalationRepository) CreateIfNotExists(ctx context.Context, escalation *domain.Escalation) (*domain.Escalation, bool, error) {
	const insert = `
        INSERT INTO escalations (ticket_id, team, tags, status, opened_at)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (ticket_id, team) DO NOTHING
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, insert,
		escalation.TicketID,
		escalation.Team,
		escalation.Tags,
		escalation.Status,
		escalation.OpenedAt,
	).Scan(&escalation.ID, &escalation.CreatedAt, &escalation.UpdatedAt)
	if err == nil {
		return escalation, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}
	existing, err := r.getByNaturalKey(ctx, escalation.TicketID, escalation.Team)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *escalationRepository) GetByID(ctx context.Context, id string) (*domain.Escalation, error) {
	query := fmt.Sprintf(`SELECT %s FROM escalations WHERE id=$1`, escalationColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *escalationRepository) getByNaturalKey(ctx context.Context, ticketID, team string) (*domain.Escalation, error) {
	query := fmt.Sprintf(`SELECT %s FROM escalations WHERE ticket_id=$1 AND team=$2`, escalationColumns)
	return r.fetchSingle(ctx, query, ticketID, team)
}

func (r *escalationRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Escalation, error) {
	var e domain.Escalation
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&e.ID,
		&e.TicketID,
		&e.Team,
		&e.Tags,
		&e.Status,
		&e.OpenedAt,
		&e.ResolvedAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

// Resolve is conditional on the row still being OPENED; concurrent duplicate
// resolves collapse to a single mutation and ResolvedAt is written once.
func (r *escalationRepository) Resolve(ctx context.Context, id string, at time.Time) (*domain.Escalation, bool, error) {
	const update = `
        UPDATE escalations SET status=$2, resolved_at=$3, updated_at=NOW()
        WHERE id=$1 AND status=$4`
	cmd, err := r.pool.Exec(ctx, update, id, domain.EscalationStatusResolved, at, domain.EscalationStatusOpened)
	if err != nil {
		return nil, false, err
	}
	escalation, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return escalation, cmd.RowsAffected() > 0, nil
}

// ListByTicket is unbounded on purpose: a ticket carries at most one
// escalation per team, so the result set stays small.
func (r *escalationRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Escalation, error) {
	query := fmt.Sprintf(`SELECT %s FROM escalations WHERE ticket_id=$1 ORDER BY opened_at ASC`, escalationColumns)
	return r.fetchMany(ctx, query, ticketID)
}

func (r *escalationRepository) ListNotResolved(ctx context.Context, ticketID string) ([]domain.Escalation, error) {
	query := fmt.Sprintf(`SELECT %s FROM escalations WHERE ticket_id=$1 AND status=$2 ORDER BY opened_at ASC`, escalationColumns)
	return r.fetchMany(ctx, query, ticketID, domain.EscalationStatusOpened)
}

func (r *escalationRepository) CountNotResolved(ctx context.Context, ticketID string) (int, error) {
	const query = `SELECT COUNT(*) FROM escalations WHERE ticket_id=$1 AND status<>$2`
	var count int
	if err := r.pool.QueryRow(ctx, query, ticketID, domain.EscalationStatusResolved).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *escalationRepository) ListWithFilter(ctx context.Context, filter repository.EscalationFilter) ([]domain.Escalation, error) {
	clauses, args := escalationFilterClauses(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM escalations WHERE %s ORDER BY opened_at ASC LIMIT %d OFFSET %d`,
		escalationColumns, strings.Join(clauses, " AND "), limit, offset)

	return r.fetchMany(ctx, query, args...)
}

func (r *escalationRepository) fetchMany(ctx context.Context, query string, args ...any) ([]domain.Escalation, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Escalation
	for rows.Next() {
		var e domain.Escalation
		if err := rows.Scan(
			&e.ID,
			&e.TicketID,
			&e.Team,
			&e.Tags,
			&e.Status,
			&e.OpenedAt,
			&e.ResolvedAt,
			&e.CreatedAt,
			&e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *escalationRepository) CountWithFilter(ctx context.Context, filter repository.EscalationFilter) (int64, error) {
	clauses, args := escalationFilterClauses(filter)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM escalations WHERE %s`, strings.Join(clauses, " AND "))
	var count int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func escalationFilterClauses(filter repository.EscalationFilter) ([]string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.TicketID != nil {
		args = append(args, *filter.TicketID)
		clauses = append(clauses, fmt.Sprintf("ticket_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Team != nil {
		args = append(args, *filter.Team)
		clauses = append(clauses, fmt.Sprintf("team=$%d", len(args)))
	}
	if filter.OpenedFrom != nil {
		args = append(args, *filter.OpenedFrom)
		clauses = append(clauses, fmt.Sprintf("opened_at >= $%d", len(args)))
	}
	if filter.OpenedTo != nil {
		args = append(args, *filter.OpenedTo)
		clauses = append(clauses, fmt.Sprintf("opened_at <= $%d", len(args)))
	}
	return clauses, args
}
