package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/chatops-kit/triage-service/internal/chat"
	"github.com/chatops-kit/triage-service/internal/config"
	"github.com/chatops-kit/triage-service/internal/domain"
	"github.com/chatops-kit/triage-service/internal/events"
	"github.com/chatops-kit/triage-service/internal/repository"
	"github.com/chatops-kit/triage-service/internal/repository/memory"
)

// fakeChatClient records calls and serves scripted messages.
type fakeChatClient struct {
	mu        sync.Mutex
	messages  map[string]chat.Message
	posted    []string
	reactions []string
	failWith  error
}

func newFakeChatClient() *fakeChatClient {
	return &fakeChatClient{messages: make(map[string]chat.Message)}
}

func (f *fakeChatClient) addMessage(msg chat.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[msg.ChannelID+":"+msg.TS] = msg
}

func (f *fakeChatClient) PostMessage(ctx context.Context, channelID, threadTS, text string) (chat.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return chat.MessageRef{}, f.failWith
	}
	f.posted = append(f.posted, text)
	return chat.MessageRef{ChannelID: channelID, TS: fmt.Sprintf("%d.0", len(f.posted))}, nil
}

func (f *fakeChatClient) AddReaction(ctx context.Context, channelID, ts, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.reactions = append(f.reactions, "+"+emoji)
	return nil
}

func (f *fakeChatClient) RemoveReaction(ctx context.Context, channelID, ts, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.reactions = append(f.reactions, "-"+emoji)
	return nil
}

func (f *fakeChatClient) GetMessage(ctx context.Context, channelID, ts string) (*chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	msg, ok := f.messages[channelID+":"+ts]
	if !ok {
		return nil, &chat.APIError{Code: "message_not_found"}
	}
	return &msg, nil
}

func (f *fakeChatClient) GetPermalink(ctx context.Context, channelID, ts string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return "", f.failWith
	}
	return "https://chat.example/" + channelID + "/" + ts, nil
}

func (f *fakeChatClient) GetThreadReplies(ctx context.Context, channelID, ts, cursor string) (*chat.ThreadPage, error) {
	return &chat.ThreadPage{}, nil
}

func (f *fakeChatClient) postedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posted)
}

// eventRecorder counts published events per type.
type eventRecorder struct {
	mu     sync.Mutex
	counts map[events.EventType]int
}

func newEventRecorder(dispatcher events.Dispatcher) *eventRecorder {
	rec := &eventRecorder{counts: make(map[events.EventType]int)}
	for _, eventType := range []events.EventType{
		events.EventTicketOpened,
		events.EventTicketClosed,
		events.EventTicketReopened,
		events.EventTicketStale,
		events.EventEscalationOpened,
		events.EventEscalationResolved,
		events.EventRatingCaptured,
	} {
		et := eventType
		dispatcher.Subscribe(et, func(ctx context.Context, event events.Event) error {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.counts[et]++
			return nil
		})
	}
	return rec
}

func (r *eventRecorder) count(eventType events.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[eventType]
}

type fixture struct {
	repos       repository.Repositories
	chatClient  *fakeChatClient
	dispatcher  events.Dispatcher
	recorder    *eventRecorder
	tickets     *TicketService
	escalations *EscalationService
	ratings     *RatingService
	cfg         config.TriageConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repos := memory.NewRepositories(memory.NewStore())
	chatClient := newFakeChatClient()
	dispatcher := events.NewInMemoryDispatcher()
	recorder := newEventRecorder(dispatcher)
	logger := zap.NewNop()

	cfg := config.TriageConfig{
		ChannelID:         "C1",
		TriggerEmoji:      "ticket",
		ResolvedEmoji:     "white_check_mark",
		AckEmoji:          "eyes",
		AssignmentEnabled: true,
		StaleAfterHours:   72,
		WorkerCount:       2,
		Timezone:          "UTC",
	}

	teams := domain.NewRegistry([]domain.TaxonomyEntry{
		{Code: "platform", Label: "Platform"},
		{Code: "frontend", Label: "Frontend"},
	})
	impacts := domain.NewRegistry([]domain.TaxonomyEntry{
		{Code: "low", Label: "Low"},
		{Code: "high", Label: "High"},
	})
	tags := domain.NewRegistry([]domain.TaxonomyEntry{
		{Code: "bug", Label: "Bug"},
		{Code: "question", Label: "Question"},
	})

	escalations := NewEscalationService(EscalationDependencies{
		EscalationRepo: repos.Escalations,
		TicketRepo:     repos.Tickets,
		Teams:          teams,
		Dispatcher:     dispatcher,
		Logger:         logger,
	})
	tickets := NewTicketService(TicketDependencies{
		QueryRepo:     repos.Queries,
		TicketRepo:    repos.Tickets,
		StatusLogRepo: repos.StatusLog,
		Escalations:   escalations,
		Teams:         teams,
		Impacts:       impacts,
		Tags:          tags,
		ChatClient:    chatClient,
		Dispatcher:    dispatcher,
		Config:        cfg,
		Logger:        logger,
	})
	ratings := NewRatingService(RatingDependencies{
		RatingRepo:  repos.Ratings,
		TicketRepo:  repos.Tickets,
		Escalations: escalations,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})

	return &fixture{
		repos:       repos,
		chatClient:  chatClient,
		dispatcher:  dispatcher,
		recorder:    recorder,
		tickets:     tickets,
		escalations: escalations,
		ratings:     ratings,
		cfg:         cfg,
	}
}

// openTicket records a query and opens a ticket for it.
func (f *fixture) openTicket(t *testing.T, channel, msgTS, author, reactor string) *domain.Ticket {
	t.Helper()
	ctx := context.Background()
	if _, _, err := f.tickets.RecordQuery(ctx, chat.Message{
		ChannelID: channel, TS: msgTS, UserID: author, Text: "need help",
	}); err != nil {
		t.Fatalf("record query: %v", err)
	}
	ticket, created, err := f.tickets.OpenTicket(ctx, channel, msgTS, reactor, time.Now())
	if err != nil || !created {
		t.Fatalf("open ticket: created=%v err=%v", created, err)
	}
	return ticket
}
