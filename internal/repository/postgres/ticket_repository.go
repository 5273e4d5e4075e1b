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

const ticketColumns = `id, channel_id, message_ts, status, team, impact, tags,
               assigned_to, rated, notified_stale_at, created_at, updated_at`

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) repository.TicketRepository {
	return &ticketRepository{pool: pool}
}

// CreateIfNotExists inserts the ticket and its first ledger entry in one
// transaction. The unique index on (channel_id, message_ts) makes concurrent
// creation first-writer-wins.
func (r *ticketRepository) CreateIfNotExists(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insert = `
        INSERT INTO tickets (channel_id, message_ts, status, team, impact, tags, assigned_to, rated)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (channel_id, message_ts) DO NOTHING
        RETURNING id, created_at, updated_at`
	err = tx.QueryRow(ctx, insert,
		ticket.ChannelID,
		ticket.MessageTS,
		ticket.Status,
		ticket.Team,
		ticket.Impact,
		ticket.Tags,
		ticket.AssignedTo,
		ticket.Rated,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, err := r.GetByQueryRef(ctx, ticket.ChannelID, ticket.MessageTS)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	for _, entry := range ticket.StatusLog {
		const logInsert = `INSERT INTO ticket_status_log (ticket_id, status, recorded_at) VALUES ($1,$2,$3)`
		if _, err := tx.Exec(ctx, logInsert, ticket.ID, entry.Status, entry.At); err != nil {
			return nil, false, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return ticket, true, nil
}

// Update writes the detail fields only. The rated flag and the stale marker
// are owned by MarkRated and SetNotifiedStale so writers holding an older
// snapshot cannot reset them.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET team=$1, impact=$2, tags=$3, assigned_to=$4, updated_at=NOW()
        WHERE id=$5`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Team,
		ticket.Impact,
		ticket.Tags,
		ticket.AssignedTo,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) MarkRated(ctx context.Context, id string) error {
	const query = `UPDATE tickets SET rated=TRUE, updated_at=NOW() WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetNotifiedStale records when the staleness notice went out; a nil at
// clears the marker so the ticket becomes eligible for a future sweep.
func (r *ticketRepository) SetNotifiedStale(ctx context.Context, id string, at *time.Time) error {
	const query = `UPDATE tickets SET notified_stale_at=$2, updated_at=NOW() WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Transition atomically moves the ticket to the target status and appends the
// matching ledger entry. The conditional update absorbs concurrent duplicate
// triggers: only the caller whose UPDATE matched appends a ledger row.
func (r *ticketRepository) Transition(ctx context.Context, id string, to domain.TicketStatus, at time.Time) (*domain.Ticket, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const update = `UPDATE tickets SET status=$2, updated_at=NOW() WHERE id=$1 AND status<>$2`
	cmd, err := tx.Exec(ctx, update, id, to)
	if err != nil {
		return nil, false, err
	}
	applied := cmd.RowsAffected() > 0
	if applied {
		const logInsert = `INSERT INTO ticket_status_log (ticket_id, status, recorded_at) VALUES ($1,$2,$3)`
		if _, err := tx.Exec(ctx, logInsert, id, to, at); err != nil {
			return nil, false, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}

	ticket, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return ticket, applied, nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByQueryRef(ctx context.Context, channelID, messageTS string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE channel_id=$1 AND message_ts=$2`, ticketColumns)
	return r.fetchSingle(ctx, query, channelID, messageTS)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&ticket.ID,
		&ticket.ChannelID,
		&ticket.MessageTS,
		&ticket.Status,
		&ticket.Team,
		&ticket.Impact,
		&ticket.Tags,
		&ticket.AssignedTo,
		&ticket.Rated,
		&ticket.NotifiedStaleAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	log, err := r.loadStatusLog(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	ticket.StatusLog = log
	return &ticket, nil
}

func (r *ticketRepository) loadStatusLog(ctx context.Context, ticketID string) (domain.StatusLog, error) {
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

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	clauses, args := ticketFilterClauses(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.ChannelID,
			&ticket.MessageTS,
			&ticket.Status,
			&ticket.Team,
			&ticket.Impact,
			&ticket.Tags,
			&ticket.AssignedTo,
			&ticket.Rated,
			&ticket.NotifiedStaleAt,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range result {
		log, err := r.loadStatusLog(ctx, result[i].ID)
		if err != nil {
			return nil, err
		}
		result[i].StatusLog = log
	}
	return result, nil
}

func (r *ticketRepository) CountWithFilter(ctx context.Context, filter repository.TicketFilter) (int64, error) {
	clauses, args := ticketFilterClauses(filter)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM tickets WHERE %s`, strings.Join(clauses, " AND "))
	var count int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListOpenLastActiveBefore returns open tickets whose newest ledger entry is
// older than the cutoff. Used by the staleness sweep.
func (r *ticketRepository) ListOpenLastActiveBefore(ctx context.Context, cutoff time.Time) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM tickets t
        WHERE t.status=$1
          AND (SELECT MAX(recorded_at) FROM ticket_status_log l WHERE l.ticket_id=t.id) < $2`,
		ticketColumns)
	rows, err := r.pool.Query(ctx, query, domain.TicketStatusOpened, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.ChannelID,
			&ticket.MessageTS,
			&ticket.Status,
			&ticket.Team,
			&ticket.Impact,
			&ticket.Tags,
			&ticket.AssignedTo,
			&ticket.Rated,
			&ticket.NotifiedStaleAt,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range result {
		log, err := r.loadStatusLog(ctx, result[i].ID)
		if err != nil {
			return nil, err
		}
		result[i].StatusLog = log
	}
	return result, nil
}

func ticketFilterClauses(filter repository.TicketFilter) ([]string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.IDs) > 0 {
		args = append(args, filter.IDs)
		clauses = append(clauses, fmt.Sprintf("id = ANY($%d)", len(args)))
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
	if filter.Impact != nil {
		args = append(args, *filter.Impact)
		clauses = append(clauses, fmt.Sprintf("impact=$%d", len(args)))
	}
	if filter.Tag != nil {
		args = append(args, *filter.Tag)
		clauses = append(clauses, fmt.Sprintf("$%d = ANY(tags)", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	return clauses, args
}
