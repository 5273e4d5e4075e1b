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

// RatingService captures one-shot post-close feedback. The rating snapshots
// the ticket's status, impact, tags and escalated flag at capture time.
type RatingService struct {
	ratings     repository.RatingRepository
	tickets     repository.TicketRepository
	escalations *EscalationService
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// RatingDependencies bundles collaborators for the rating service.
type RatingDependencies struct {
	RatingRepo  repository.RatingRepository
	TicketRepo  repository.TicketRepository
	Escalations *EscalationService
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewRatingService constructs the service.
func NewRatingService(deps RatingDependencies) *RatingService {
	return &RatingService{
		ratings:     deps.RatingRepo,
		tickets:     deps.TicketRepo,
		escalations: deps.Escalations,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
	}
}

// Capture records a rating for the ticket. Values outside [1,5] are rejected
// before any state mutation. A second rating for the same ticket is absorbed
// by the duplicate guard and returns the existing rating unchanged.
func (s *RatingService) Capture(ctx context.Context, ticketID string, value int, at time.Time) (*domain.Rating, bool, error) {
	if !domain.ValidRatingValue(value) {
		return nil, false, apperrors.NewValidationError("rating value out of range",
			map[string]any{"value": value, "min": domain.RatingMin, "max": domain.RatingMax})
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, false, apperrors.MapError(err)
	}

	notResolved, err := s.escalations.CountNotResolved(ctx, ticketID)
	if err != nil {
		return nil, false, err
	}

	candidate := &domain.Rating{
		TicketID:     ticketID,
		Value:        value,
		TicketStatus: ticket.Status,
		Impact:       ticket.Impact,
		Tags:         ticket.Tags,
		Escalated:    notResolved > 0,
	}
	rating, created, err := s.ratings.CreateIfNotExists(ctx, candidate)
	if err != nil {
		return nil, false, apperrors.MapError(err)
	}
	if !created {
		s.logger.Warn("duplicate rating ignored", zap.String("ticket_id", ticketID))
		return rating, false, nil
	}

	if err := s.tickets.MarkRated(ctx, ticketID); err != nil {
		s.logger.Warn("marking ticket rated failed",
			zap.String("ticket_id", ticketID), zap.Error(err))
	}
	if _, err := s.escalations.ResolveAllForTicket(ctx, ticketID, at); err != nil {
		s.logger.Warn("resolving escalations on rating failed",
			zap.String("ticket_id", ticketID), zap.Error(err))
	}

	s.publishEvent(ctx, rating)
	return rating, true, nil
}

// GetForTicket returns the rating for a ticket, if any.
func (s *RatingService) GetForTicket(ctx context.Context, ticketID string) (*domain.Rating, error) {
	rating, err := s.ratings.GetByTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("rating", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return rating, nil
}

func (s *RatingService) publishEvent(ctx context.Context, rating *domain.Rating) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventRatingCaptured,
		TicketID:  rating.TicketID,
		Timestamp: time.Now(),
		Payload: events.RatingCapturedPayload{
			RatingID:  rating.ID,
			Value:     rating.Value,
			Escalated: rating.Escalated,
		},
	}
	_ = s.dispatcher.Publish(ctx, event)
}
