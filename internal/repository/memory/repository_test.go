package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/chatops-kit/triage-service/internal/domain"
	"github.com/chatops-kit/triage-service/internal/repository"
)

func newRepos(t *testing.T) repository.Repositories {
	t.Helper()
	return NewRepositories(NewStore())
}

func seedTicket(t *testing.T, repos repository.Repositories, channel, msgTS string) *domain.Ticket {
	t.Helper()
	ticket, created, err := repos.Tickets.CreateIfNotExists(context.Background(), &domain.Ticket{
		ChannelID: channel,
		MessageTS: msgTS,
		Status:    domain.TicketStatusOpened,
		StatusLog: domain.StatusLog{{Status: domain.TicketStatusOpened, At: time.Now()}},
	})
	if err != nil || !created {
		t.Fatalf("seed ticket: created=%v err=%v", created, err)
	}
	return ticket
}

func TestQueryRepository_CreateIfNotExists_ConcurrentSingleWinner(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()

	const n = 32
	var createdCount int64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := repos.Queries.CreateIfNotExists(ctx, &domain.Query{
				ChannelID: "C1", MessageTS: "100.1", AuthorID: "U1", Text: "help",
			})
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			if created {
				atomic.AddInt64(&createdCount, 1)
			}
		}()
	}
	wg.Wait()

	if createdCount != 1 {
		t.Fatalf("created=%d; want exactly 1", createdCount)
	}
	query, err := repos.Queries.GetByRef(ctx, "C1", "100.1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if query.Text != "help" {
		t.Fatalf("stored text = %q", query.Text)
	}
}

func TestTicketRepository_Transition_DuplicateCollapses(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()
	ticket := seedTicket(t, repos, "C1", "100.1")

	closed, applied, err := repos.Tickets.Transition(ctx, ticket.ID, domain.TicketStatusClosed, time.Now())
	if err != nil || !applied {
		t.Fatalf("first close: applied=%v err=%v", applied, err)
	}
	if closed.Status != domain.TicketStatusClosed || len(closed.StatusLog) != 2 {
		t.Fatalf("after close: status=%s ledger=%d", closed.Status, len(closed.StatusLog))
	}

	again, applied, err := repos.Tickets.Transition(ctx, ticket.ID, domain.TicketStatusClosed, time.Now())
	if err != nil {
		t.Fatalf("second close: %v", err)
	}
	if applied {
		t.Fatal("duplicate close must not apply")
	}
	if len(again.StatusLog) != 2 {
		t.Fatalf("duplicate close grew the ledger: %d entries", len(again.StatusLog))
	}
}

func TestTicketRepository_Transition_LedgerMatchesStatus(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()
	ticket := seedTicket(t, repos, "C1", "100.1")

	steps := []domain.TicketStatus{
		domain.TicketStatusClosed,
		domain.TicketStatusOpened,
		domain.TicketStatusClosed,
	}
	for _, status := range steps {
		var err error
		ticket, _, err = repos.Tickets.Transition(ctx, ticket.ID, status, time.Now())
		if err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
		if ticket.StatusLog.Current() != ticket.Status {
			t.Fatalf("ledger tail %s != status %s", ticket.StatusLog.Current(), ticket.Status)
		}
	}
	if len(ticket.StatusLog) != 4 {
		t.Fatalf("ledger len = %d; want 4", len(ticket.StatusLog))
	}
}

func TestTicketRepository_Update_NeverTouchesLedger(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()
	ticket := seedTicket(t, repos, "C1", "100.1")

	team := "platform"
	ticket.Team = &team
	ticket.Status = domain.TicketStatusClosed // must be ignored by Update
	if err := repos.Tickets.Update(ctx, ticket); err != nil {
		t.Fatalf("update: %v", err)
	}

	stored, err := repos.Tickets.GetByID(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != domain.TicketStatusOpened {
		t.Fatalf("update changed status to %s", stored.Status)
	}
	if len(stored.StatusLog) != 1 {
		t.Fatalf("update changed ledger: %d entries", len(stored.StatusLog))
	}
	if stored.Team == nil || *stored.Team != team {
		t.Fatal("scalar update lost")
	}
}

func TestTicketRepository_Update_PreservesFlagsFromStaleSnapshot(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()
	ticket := seedTicket(t, repos, "C1", "100.1")

	// Snapshot taken before the flags flip.
	snapshot, err := repos.Tickets.GetByID(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if err := repos.Tickets.MarkRated(ctx, ticket.ID); err != nil {
		t.Fatalf("mark rated: %v", err)
	}
	notified := time.Now()
	if err := repos.Tickets.SetNotifiedStale(ctx, ticket.ID, &notified); err != nil {
		t.Fatalf("set notified: %v", err)
	}

	team := "platform"
	snapshot.Team = &team
	if err := repos.Tickets.Update(ctx, snapshot); err != nil {
		t.Fatalf("update: %v", err)
	}

	stored, err := repos.Tickets.GetByID(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !stored.Rated {
		t.Fatal("update from stale snapshot reset the rated flag")
	}
	if stored.NotifiedStaleAt == nil {
		t.Fatal("update from stale snapshot cleared the stale marker")
	}
	if stored.Team == nil || *stored.Team != team {
		t.Fatal("scalar update lost")
	}

	if err := repos.Tickets.SetNotifiedStale(ctx, ticket.ID, nil); err != nil {
		t.Fatalf("clear notified: %v", err)
	}
	cleared, err := repos.Tickets.GetByID(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cleared.NotifiedStaleAt != nil {
		t.Fatal("stale marker not cleared")
	}
}

func TestTicketRepository_GetByID_NotFound(t *testing.T) {
	repos := newRepos(t)
	_, err := repos.Tickets.GetByID(context.Background(), "missing")
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("want pgx.ErrNoRows, got %v", err)
	}
}

func TestTicketRepository_ListOpenLastActiveBefore(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()

	old := time.Now().Add(-100 * time.Hour)
	stale, _, err := repos.Tickets.CreateIfNotExists(ctx, &domain.Ticket{
		ChannelID: "C1", MessageTS: "1.0",
		Status:    domain.TicketStatusOpened,
		StatusLog: domain.StatusLog{{Status: domain.TicketStatusOpened, At: old}},
	})
	if err != nil {
		t.Fatalf("seed stale: %v", err)
	}
	seedTicket(t, repos, "C1", "2.0") // fresh

	cutoff := time.Now().Add(-72 * time.Hour)
	got, err := repos.Tickets.ListOpenLastActiveBefore(ctx, cutoff)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != stale.ID {
		t.Fatalf("stale listing wrong: %d results", len(got))
	}
}

func TestEscalationRepository_CreateIfNotExists_PerTicketTeam(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()
	ticket := seedTicket(t, repos, "C1", "100.1")

	first, created, err := repos.Escalations.CreateIfNotExists(ctx, &domain.Escalation{
		TicketID: ticket.ID, Team: "platform",
		Status: domain.EscalationStatusOpened, OpenedAt: time.Now(),
	})
	if err != nil || !created {
		t.Fatalf("first create: created=%v err=%v", created, err)
	}

	dup, created, err := repos.Escalations.CreateIfNotExists(ctx, &domain.Escalation{
		TicketID: ticket.ID, Team: "platform",
		Status: domain.EscalationStatusOpened, OpenedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("dup create: %v", err)
	}
	if created || dup.ID != first.ID {
		t.Fatalf("duplicate (ticket,team) created a new escalation: created=%v", created)
	}

	_, created, err = repos.Escalations.CreateIfNotExists(ctx, &domain.Escalation{
		TicketID: ticket.ID, Team: "frontend",
		Status: domain.EscalationStatusOpened, OpenedAt: time.Now(),
	})
	if err != nil || !created {
		t.Fatalf("different team must create: created=%v err=%v", created, err)
	}
}

func TestEscalationRepository_Resolve_OnlyOnce(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()
	ticket := seedTicket(t, repos, "C1", "100.1")

	escalation, _, err := repos.Escalations.CreateIfNotExists(ctx, &domain.Escalation{
		TicketID: ticket.ID, Team: "platform",
		Status: domain.EscalationStatusOpened, OpenedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	firstAt := time.Now()
	resolved, applied, err := repos.Escalations.Resolve(ctx, escalation.ID, firstAt)
	if err != nil || !applied {
		t.Fatalf("first resolve: applied=%v err=%v", applied, err)
	}
	if resolved.ResolvedAt == nil || !resolved.ResolvedAt.Equal(firstAt) {
		t.Fatalf("resolvedAt = %v; want %v", resolved.ResolvedAt, firstAt)
	}

	again, applied, err := repos.Escalations.Resolve(ctx, escalation.ID, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if applied {
		t.Fatal("second resolve must not apply")
	}
	if !again.ResolvedAt.Equal(firstAt) {
		t.Fatalf("resolvedAt overwritten: %v", again.ResolvedAt)
	}
}

func TestRatingRepository_OnePerTicket(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()
	ticket := seedTicket(t, repos, "C1", "100.1")

	first, created, err := repos.Ratings.CreateIfNotExists(ctx, &domain.Rating{
		TicketID: ticket.ID, Value: 5, TicketStatus: domain.TicketStatusClosed,
	})
	if err != nil || !created {
		t.Fatalf("first rating: created=%v err=%v", created, err)
	}

	dup, created, err := repos.Ratings.CreateIfNotExists(ctx, &domain.Rating{
		TicketID: ticket.ID, Value: 1, TicketStatus: domain.TicketStatusClosed,
	})
	if err != nil {
		t.Fatalf("dup rating: %v", err)
	}
	if created || dup.Value != first.Value {
		t.Fatalf("duplicate rating not absorbed: created=%v value=%d", created, dup.Value)
	}
}

func TestTicketRepository_ListWithFilter_Pagination(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()
	for _, ts := range []string{"1.0", "2.0", "3.0", "4.0", "5.0"} {
		seedTicket(t, repos, "C1", ts)
	}

	page, err := repos.Tickets.ListWithFilter(ctx, repository.TicketFilter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page len = %d; want 2", len(page))
	}
	total, err := repos.Tickets.CountWithFilter(ctx, repository.TicketFilter{})
	if err != nil || total != 5 {
		t.Fatalf("count = %d err=%v; want 5", total, err)
	}
}
