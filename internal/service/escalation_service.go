package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/chatops-kit/triage-service/internal/domain"
	"github.com/chatops-kit/triage-service/internal/events"
	"github.com/chatops-kit/triage-service/internal/repository"
	apperrors "github.com/chatops-kit/triage-service/pkg/util"
)

// EscalationService manages the opened/resolved escalation workflow linked to
// a ticket. Creation and resolution are both idempotent; notifications fire
// only for the call that actually applied the transition.
type EscalationService struct {
	escalations repository.EscalationRepository
	tickets     repository.TicketRepository
	teams       domain.Registry
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// EscalationDependencies bundles collaborators for the escalation service.
type EscalationDependencies struct {
	EscalationRepo repository.EscalationRepository
	TicketRepo     repository.TicketRepository
	Teams          domain.Registry
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// NewEscalationService constructs the service.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
	return &EscalationService{
		escalations: deps.EscalationRepo,
		tickets:     deps.TicketRepo,
		teams:       deps.Teams,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
	}
}

// Open creates an escalation for (ticketID, team). A duplicate attempt
// returns the existing escalation and sends no second notification.
func (s *EscalationService) Open(ctx context.Context, ticketID, team string, tags []string, at time.Time) (*domain.Escalation, bool, error) {
	if _, ok := s.teams.FindByCode(team); !ok {
		return nil, false, apperrors.NewValidationError("unknown team", map[string]any{"team": team})
	}
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, false, apperrors.MapError(err)
	}

	candidate := &domain.Escalation{
		TicketID: ticketID,
		Team:     team,
		Tags:     tags,
		Status:   domain.EscalationStatusOpened,
		OpenedAt: at,
	}
	escalation, created, err := s.escalations.CreateIfNotExists(ctx, candidate)
	if err != nil {
		return nil, false, apperrors.MapError(err)
	}
	if created {
		s.publishEvent(ctx, events.EventEscalationOpened, escalation)
	}
	return escalation, created, nil
}

// Resolve moves the escalation to its terminal state. Resolving an already
// resolved escalation is a logged no-op with no second notification.
func (s *EscalationService) Resolve(ctx context.Context, id string, at time.Time) (*domain.Escalation, bool, error) {
	escalation, applied, err := s.escalations.Resolve(ctx, id, at)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, apperrors.NewNotFound("escalation", map[string]any{"escalation_id": id})
		}
		return nil, false, apperrors.MapError(err)
	}
	if !applied {
		s.logger.Warn("escalation already resolved",
			zap.String("escalation_id", id),
			zap.String("ticket_id", escalation.TicketID))
		return escalation, false, nil
	}
	s.publishEvent(ctx, events.EventEscalationResolved, escalation)
	return escalation, true, nil
}

// ResolveAllForTicket resolves every non-resolved escalation for the ticket.
// Already-resolved entries are skipped silently; per-item failures are logged
// and the sweep continues. Returns the number of escalations resolved here.
func (s *EscalationService) ResolveAllForTicket(ctx context.Context, ticketID string, at time.Time) (int, error) {
	open, err := s.escalations.ListNotResolved(ctx, ticketID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	resolved := 0
	for _, escalation := range open {
		if _, applied, err := s.Resolve(ctx, escalation.ID, at); err != nil {
			s.logger.Warn("bulk resolve failed for escalation",
				zap.String("escalation_id", escalation.ID), zap.Error(err))
			continue
		} else if applied {
			resolved++
		}
	}
	return resolved, nil
}

// CountNotResolved reports how many escalations for the ticket are still
// open. A ticket is considered escalated iff this count is at least 1.
func (s *EscalationService) CountNotResolved(ctx context.Context, ticketID string) (int, error) {
	count, err := s.escalations.CountNotResolved(ctx, ticketID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return count, nil
}

// ListEscalations returns one page of escalations plus the unpaged total.
func (s *EscalationService) ListEscalations(ctx context.Context, filter repository.EscalationFilter) ([]domain.Escalation, int64, error) {
	escalations, err := s.escalations.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	total, err := s.escalations.CountWithFilter(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	return escalations, total, nil
}

func (s *EscalationService) publishEvent(ctx context.Context, eventType events.EventType, escalation *domain.Escalation) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  escalation.TicketID,
		Timestamp: time.Now(),
		Payload: events.EscalationPayload{
			EscalationID: escalation.ID,
			Team:         escalation.Team,
			Tags:         escalation.Tags,
		},
	}
	_ = s.dispatcher.Publish(ctx, event)
}
