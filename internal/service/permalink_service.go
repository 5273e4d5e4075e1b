package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/chatops-kit/triage-service/internal/chat"
	"github.com/chatops-kit/triage-service/internal/domain"
	apperrors "github.com/chatops-kit/triage-service/pkg/util"
)

// PermalinkService resolves chat permalinks for a page of tickets with a
// fixed-size worker pool. The batch policy is uniform per instance: in
// best-effort mode failed lookups are logged and skipped; in fail-fast mode
// the first failure cancels outstanding work and the whole batch errors.
type PermalinkService struct {
	client   chat.Client
	workers  int
	failFast bool
	logger   *zap.Logger
}

// NewPermalinkService constructs the collector.
func NewPermalinkService(client chat.Client, workers int, failFast bool, logger *zap.Logger) *PermalinkService {
	if workers <= 0 {
		workers = 4
	}
	return &PermalinkService{
		client:   client,
		workers:  workers,
		failFast: failFast,
		logger:   logger,
	}
}

type permalinkResult struct {
	ticketID string
	url      string
	err      error
}

// Collect returns permalinks keyed by ticket id.
func (s *PermalinkService) Collect(ctx context.Context, tickets []domain.Ticket) (map[string]string, error) {
	if len(tickets) == 0 {
		return map[string]string{}, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan domain.Ticket)
	results := make(chan permalinkResult, len(tickets))

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ticket := range jobs {
				url, err := s.client.GetPermalink(ctx, ticket.ChannelID, ticket.MessageTS)
				results <- permalinkResult{ticketID: ticket.ID, url: url, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, ticket := range tickets {
			select {
			case jobs <- ticket:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make(map[string]string, len(tickets))
	var firstErr error
	for result := range results {
		if result.err != nil {
			if s.failFast {
				if firstErr == nil {
					firstErr = result.err
					cancel()
				}
				continue
			}
			s.logger.Warn("permalink lookup failed",
				zap.String("ticket_id", result.ticketID), zap.Error(result.err))
			continue
		}
		out[result.ticketID] = result.url
	}
	if firstErr != nil {
		return nil, apperrors.NewExternalServiceError("getPermalink", firstErr)
	}
	return out, nil
}
