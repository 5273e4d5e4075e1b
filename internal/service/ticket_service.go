package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/chatops-kit/triage-service/internal/chat"
	"github.com/chatops-kit/triage-service/internal/config"
	"github.com/chatops-kit/triage-service/internal/domain"
	"github.com/chatops-kit/triage-service/internal/events"
	"github.com/chatops-kit/triage-service/internal/repository"
	apperrors "github.com/chatops-kit/triage-service/pkg/util"
)

// TicketService coordinates the ticket lifecycle: query ingestion, ticket
// creation, close/reopen cycles and detail updates. Status mutations go
// through the repository's atomic Transition; chat-platform calls happen only
// in subscribers, after the state change has committed.
type TicketService struct {
	queries     repository.QueryRepository
	tickets     repository.TicketRepository
	statusLog   repository.StatusLogRepository
	escalations *EscalationService
	assignment  AssignmentResolver
	teams       domain.Registry
	impacts     domain.Registry
	tags        domain.Registry
	chatClient  chat.Client
	dispatcher  events.Dispatcher
	cfg         config.TriageConfig
	logger      *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	QueryRepo     repository.QueryRepository
	TicketRepo    repository.TicketRepository
	StatusLogRepo repository.StatusLogRepository
	Escalations   *EscalationService
	Teams         domain.Registry
	Impacts       domain.Registry
	Tags          domain.Registry
	ChatClient    chat.Client
	Dispatcher    events.Dispatcher
	Config        config.TriageConfig
	Logger        *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		queries:     deps.QueryRepo,
		tickets:     deps.TicketRepo,
		statusLog:   deps.StatusLogRepo,
		escalations: deps.Escalations,
		assignment:  AssignmentResolver{Enabled: deps.Config.AssignmentEnabled},
		teams:       deps.Teams,
		impacts:     deps.Impacts,
		tags:        deps.Tags,
		chatClient:  deps.ChatClient,
		dispatcher:  deps.Dispatcher,
		cfg:         deps.Config,
		logger:      deps.Logger,
	}
}

// HandleMessage ingests a channel message. Top-level messages become queries;
// thread replies reopen a closed ticket when the parent is tracked.
func (s *TicketService) HandleMessage(ctx context.Context, msg chat.Message, at time.Time) error {
	if msg.ThreadTS != "" && msg.ThreadTS != msg.TS {
		return s.reopenOnActivity(ctx, msg.ChannelID, msg.ThreadTS, msg.UserID, at)
	}
	_, _, err := s.RecordQuery(ctx, msg)
	return err
}

// RecordQuery registers a top-level message as a candidate support request.
// Replayed deliveries of the same message are absorbed by the natural key.
func (s *TicketService) RecordQuery(ctx context.Context, msg chat.Message) (*domain.Query, bool, error) {
	candidate := &domain.Query{
		ChannelID: msg.ChannelID,
		MessageTS: msg.TS,
		AuthorID:  msg.UserID,
		Text:      strings.TrimSpace(msg.Text),
	}
	query, created, err := s.queries.CreateIfNotExists(ctx, candidate)
	if err != nil {
		return nil, false, apperrors.MapError(err)
	}
	if created {
		s.logger.Debug("query recorded",
			zap.String("channel_id", query.ChannelID),
			zap.String("message_ts", query.MessageTS))
	}
	return query, created, nil
}

// OpenTicket creates a ticket for the query behind (channelID, messageTS).
// Idempotent: a duplicate trigger returns the existing ticket unchanged and
// emits no second notification.
func (s *TicketService) OpenTicket(ctx context.Context, channelID, messageTS, reactorID string, at time.Time) (*domain.Ticket, bool, error) {
	query, err := s.queries.GetByRef(ctx, channelID, messageTS)
	if errors.Is(err, pgx.ErrNoRows) {
		query, err = s.backfillQuery(ctx, channelID, messageTS)
	}
	if err != nil {
		return nil, false, err
	}
	if query == nil {
		return nil, false, nil
	}

	candidate := &domain.Ticket{
		ChannelID: query.ChannelID,
		MessageTS: query.MessageTS,
		Status:    domain.TicketStatusOpened,
		StatusLog: domain.StatusLog{{Status: domain.TicketStatusOpened, At: at}},
	}
	candidate.AssignedTo = s.assignment.Initial(reactorID)

	ticket, created, err := s.tickets.CreateIfNotExists(ctx, candidate)
	if err != nil {
		return nil, false, apperrors.MapError(err)
	}
	if created {
		s.publishStatusEvent(ctx, events.EventTicketOpened, ticket, reactorID)
	}
	return ticket, created, nil
}

// CloseTicket transitions the tracked ticket to closed. Duplicate close
// triggers collapse to a single ledger entry.
func (s *TicketService) CloseTicket(ctx context.Context, channelID, messageTS, actorID string, at time.Time) (*domain.Ticket, bool, error) {
	ticket, err := s.tickets.GetByQueryRef(ctx, channelID, messageTS)
	if errors.Is(err, pgx.ErrNoRows) {
		s.logger.Debug("resolved trigger on untracked message",
			zap.String("channel_id", channelID),
			zap.String("message_ts", messageTS))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.MapError(err)
	}

	ticket, applied, err := s.tickets.Transition(ctx, ticket.ID, domain.TicketStatusClosed, at)
	if err != nil {
		return nil, false, apperrors.MapError(err)
	}
	if applied {
		if _, err := s.escalations.ResolveAllForTicket(ctx, ticket.ID, at); err != nil {
			s.logger.Warn("resolving escalations on close failed",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
		s.publishStatusEvent(ctx, events.EventTicketClosed, ticket, actorID)
	}
	return ticket, applied, nil
}

// ReopenTicket transitions the tracked ticket back to opened, e.g. when the
// resolved reaction is removed.
func (s *TicketService) ReopenTicket(ctx context.Context, channelID, messageTS, actorID string, at time.Time) (*domain.Ticket, bool, error) {
	ticket, err := s.tickets.GetByQueryRef(ctx, channelID, messageTS)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.MapError(err)
	}
	return s.reopen(ctx, ticket, actorID, at)
}

func (s *TicketService) reopenOnActivity(ctx context.Context, channelID, threadTS, actorID string, at time.Time) error {
	ticket, err := s.tickets.GetByQueryRef(ctx, channelID, threadTS)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return apperrors.MapError(err)
	}
	if ticket.Status == domain.TicketStatusOpened {
		return nil
	}
	_, _, err = s.reopen(ctx, ticket, actorID, at)
	return err
}

func (s *TicketService) reopen(ctx context.Context, ticket *domain.Ticket, actorID string, at time.Time) (*domain.Ticket, bool, error) {
	ticket, applied, err := s.tickets.Transition(ctx, ticket.ID, domain.TicketStatusOpened, at)
	if err != nil {
		return nil, false, apperrors.MapError(err)
	}
	if applied {
		// Reopening resets the stale marker so the ticket is eligible for a
		// future staleness sweep.
		if ticket.NotifiedStaleAt != nil {
			if err := s.tickets.SetNotifiedStale(ctx, ticket.ID, nil); err != nil {
				s.logger.Warn("clearing stale marker on reopen failed",
					zap.String("ticket_id", ticket.ID), zap.Error(err))
			} else {
				ticket.NotifiedStaleAt = nil
			}
		}
		s.publishStatusEvent(ctx, events.EventTicketReopened, ticket, actorID)
	}
	return ticket, applied, nil
}

// UpdateTicket applies a partial detail update. Fields absent from the update
// are untouched; an update without an assignee never clears one.
func (s *TicketService) UpdateTicket(ctx context.Context, ticketID string, update domain.TicketUpdate) (*domain.Ticket, error) {
	if err := s.validateUpdate(update); err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	updated := ticket.Apply(update)
	if err := s.tickets.Update(ctx, &updated); err != nil {
		return nil, apperrors.MapError(err)
	}
	return &updated, nil
}

// GetTicket fetches a ticket by id.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// GetStatusHistory returns the ticket's full status ledger, oldest first.
func (s *TicketService) GetStatusHistory(ctx context.Context, ticketID string) (domain.StatusLog, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	log, err := s.statusLog.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return log, nil
}

// ListTickets returns one page of tickets plus the unpaged total.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, int64, error) {
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	total, err := s.tickets.CountWithFilter(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	return tickets, total, nil
}

func (s *TicketService) validateUpdate(update domain.TicketUpdate) error {
	if update.Team != nil {
		if _, ok := s.teams.FindByCode(*update.Team); !ok {
			return apperrors.NewValidationError("unknown team", map[string]any{"team": *update.Team})
		}
	}
	if update.Impact != nil {
		if _, ok := s.impacts.FindByCode(*update.Impact); !ok {
			return apperrors.NewValidationError("unknown impact", map[string]any{"impact": *update.Impact})
		}
	}
	for _, tag := range update.Tags {
		if _, ok := s.tags.FindByCode(tag); !ok {
			return apperrors.NewValidationError("unknown tag", map[string]any{"tag": tag})
		}
	}
	return nil
}

// backfillQuery recovers the query for a reaction that arrived before (or
// without) the message event, by fetching the message from the platform.
func (s *TicketService) backfillQuery(ctx context.Context, channelID, messageTS string) (*domain.Query, error) {
	msg, err := s.chatClient.GetMessage(ctx, channelID, messageTS)
	if err != nil {
		s.logger.Warn("query backfill failed",
			zap.String("channel_id", channelID),
			zap.String("message_ts", messageTS),
			zap.Error(err))
		return nil, nil
	}
	if msg.ThreadTS != "" && msg.ThreadTS != msg.TS {
		return nil, nil
	}
	query, _, err := s.RecordQuery(ctx, *msg)
	return query, err
}

func (s *TicketService) publishStatusEvent(ctx context.Context, eventType events.EventType, ticket *domain.Ticket, actorID string) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticket.ID,
		ActorID:   actorID,
		Timestamp: time.Now(),
		Payload: events.TicketStatusPayload{
			ChannelID:  ticket.ChannelID,
			MessageTS:  ticket.MessageTS,
			Status:     ticket.Status,
			AssignedTo: ticket.AssignedTo,
		},
	}
	_ = s.dispatcher.Publish(ctx, event)
}
