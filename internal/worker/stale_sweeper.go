package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chatops-kit/triage-service/internal/config"
	"github.com/chatops-kit/triage-service/internal/domain"
	"github.com/chatops-kit/triage-service/internal/events"
	"github.com/chatops-kit/triage-service/internal/repository"
)

// StaleSweeper periodically flags open tickets with no ledger activity past
// the configured threshold. The default behavior is notification-only: the
// ticket is nudged once and marked, leaving its status untouched. When
// StaleAppendsStatus is set, a stale ledger entry is appended as well.
type StaleSweeper struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	cfg        config.TriageConfig
	logger     *zap.Logger
	running    atomic.Bool
}

// NewStaleSweeper creates the sweeper.
func NewStaleSweeper(tickets repository.TicketRepository, dispatcher events.Dispatcher, cfg config.TriageConfig, logger *zap.Logger) *StaleSweeper {
	return &StaleSweeper{
		tickets:    tickets,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run blocks, sweeping on the configured interval until ctx is canceled.
func (s *StaleSweeper) Run(ctx context.Context) {
	interval := s.cfg.SweepInterval()
	if interval <= 0 {
		s.logger.Info("stale sweep disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx, time.Now())
		}
	}
}

// Sweep runs one pass. Overlapping invocations collapse to one; per-ticket
// failures are logged and the pass continues.
func (s *StaleSweeper) Sweep(ctx context.Context, now time.Time) int {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Debug("stale sweep already in progress")
		return 0
	}
	defer s.running.Store(false)

	cutoff := now.Add(-s.cfg.StaleThreshold())
	candidates, err := s.tickets.ListOpenLastActiveBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("stale sweep listing failed", zap.Error(err))
		return 0
	}

	flagged := 0
	for i := range candidates {
		ticket := &candidates[i]
		if ticket.NotifiedStaleAt != nil {
			continue
		}
		if err := s.flag(ctx, ticket, now); err != nil {
			s.logger.Warn("flagging stale ticket failed",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
			continue
		}
		flagged++
	}
	if flagged > 0 {
		s.logger.Info("stale sweep completed", zap.Int("flagged", flagged))
	}
	return flagged
}

func (s *StaleSweeper) flag(ctx context.Context, ticket *domain.Ticket, now time.Time) error {
	if s.cfg.StaleAppendsStatus {
		updated, applied, err := s.tickets.Transition(ctx, ticket.ID, domain.TicketStatusStale, now)
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}
		ticket = updated
	}

	notified := now
	if err := s.tickets.SetNotifiedStale(ctx, ticket.ID, &notified); err != nil {
		return err
	}
	ticket.NotifiedStaleAt = &notified
	s.publishStale(ctx, ticket)
	return nil
}

func (s *StaleSweeper) publishStale(ctx context.Context, ticket *domain.Ticket) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketStale,
		TicketID:  ticket.ID,
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
