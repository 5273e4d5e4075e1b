package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/chatops-kit/triage-service/internal/chat"
	"github.com/chatops-kit/triage-service/internal/config"
	"github.com/chatops-kit/triage-service/internal/events"
	"github.com/chatops-kit/triage-service/internal/repository"
)

// NotificationService turns committed domain events into chat-platform side
// effects: reactions and thread messages. It runs strictly after the atomic
// state transition, so a slow or failing platform call never rolls back or
// blocks entity state. Benign already-done codes count as success.
type NotificationService struct {
	dispatcher events.Dispatcher
	chatClient chat.Client
	tickets    repository.TicketRepository
	cfg        config.TriageConfig
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, chatClient chat.Client, tickets repository.TicketRepository, cfg config.TriageConfig, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		chatClient: chatClient,
		tickets:    tickets,
		cfg:        cfg,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketOpened, n.handleTicketOpened)
	n.dispatcher.Subscribe(events.EventTicketClosed, n.handleTicketClosed)
	n.dispatcher.Subscribe(events.EventTicketReopened, n.handleTicketReopened)
	n.dispatcher.Subscribe(events.EventTicketStale, n.handleTicketStale)
	n.dispatcher.Subscribe(events.EventEscalationOpened, n.handleEscalationOpened)
	n.dispatcher.Subscribe(events.EventEscalationResolved, n.handleEscalationResolved)
	n.dispatcher.Subscribe(events.EventRatingCaptured, n.handleRatingCaptured)
}

func (n *NotificationService) handleTicketOpened(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusPayload)
	if !ok {
		return nil
	}
	err := n.chatClient.AddReaction(ctx, payload.ChannelID, payload.MessageTS, n.cfg.AckEmoji)
	return n.normalize("ack reaction", event.TicketID, err)
}

func (n *NotificationService) handleTicketClosed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusPayload)
	if !ok {
		return nil
	}
	if err := n.chatClient.AddReaction(ctx, payload.ChannelID, payload.MessageTS, n.cfg.ResolvedEmoji); err != nil {
		_ = n.normalize("resolved reaction", event.TicketID, err)
	}
	_, err := n.chatClient.PostMessage(ctx, payload.ChannelID, payload.MessageTS,
		"This ticket has been resolved. How did we do? Reply with a rating from 1 to 5.")
	return n.normalize("rating prompt", event.TicketID, err)
}

func (n *NotificationService) handleTicketReopened(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusPayload)
	if !ok {
		return nil
	}
	err := n.chatClient.RemoveReaction(ctx, payload.ChannelID, payload.MessageTS, n.cfg.ResolvedEmoji)
	return n.normalize("remove resolved reaction", event.TicketID, err)
}

func (n *NotificationService) handleTicketStale(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusPayload)
	if !ok {
		return nil
	}
	_, err := n.chatClient.PostMessage(ctx, payload.ChannelID, payload.MessageTS,
		"This ticket has seen no activity for a while. Is it still relevant?")
	return n.normalize("stale nudge", event.TicketID, err)
}

func (n *NotificationService) handleEscalationOpened(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.EscalationPayload)
	if !ok {
		return nil
	}
	ref, err := n.ticketRef(ctx, event.TicketID)
	if err != nil {
		return err
	}
	_, err = n.chatClient.PostMessage(ctx, ref.ChannelID, ref.TS,
		fmt.Sprintf("Escalated to team %s.", payload.Team))
	return n.normalize("escalation notice", event.TicketID, err)
}

func (n *NotificationService) handleEscalationResolved(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.EscalationPayload)
	if !ok {
		return nil
	}
	ref, err := n.ticketRef(ctx, event.TicketID)
	if err != nil {
		return err
	}
	_, err = n.chatClient.PostMessage(ctx, ref.ChannelID, ref.TS,
		fmt.Sprintf("Escalation for team %s resolved.", payload.Team))
	return n.normalize("escalation resolved notice", event.TicketID, err)
}

func (n *NotificationService) handleRatingCaptured(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.RatingCapturedPayload)
	if !ok {
		return nil
	}
	ref, err := n.ticketRef(ctx, event.TicketID)
	if err != nil {
		return err
	}
	_, err = n.chatClient.PostMessage(ctx, ref.ChannelID, ref.TS,
		fmt.Sprintf("Thanks for the feedback (%d/5)!", payload.Value))
	return n.normalize("rating thanks", event.TicketID, err)
}

func (n *NotificationService) ticketRef(ctx context.Context, ticketID string) (chat.MessageRef, error) {
	ticket, err := n.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			n.logger.Warn("notification ticket lookup failed",
				zap.String("ticket_id", ticketID), zap.Error(err))
		}
		return chat.MessageRef{}, err
	}
	return chat.MessageRef{ChannelID: ticket.ChannelID, TS: ticket.MessageTS}, nil
}

// normalize logs genuine platform failures and swallows benign already-done
// codes. Notification errors never propagate into lifecycle operations.
func (n *NotificationService) normalize(operation, ticketID string, err error) error {
	if err == nil || chat.IsAlreadyDone(err) {
		return nil
	}
	n.logger.Warn("notification failed",
		zap.String("operation", operation),
		zap.String("ticket_id", ticketID),
		zap.Error(err))
	return nil
}
