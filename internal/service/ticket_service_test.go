package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chatops-kit/triage-service/internal/chat"
	"github.com/chatops-kit/triage-service/internal/domain"
	"github.com/chatops-kit/triage-service/internal/events"
	apperrors "github.com/chatops-kit/triage-service/pkg/util"
)

func TestOpenTicket_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ticket := f.openTicket(t, "C1", "100.1", "U1", "U2")

	again, created, err := f.tickets.OpenTicket(ctx, "C1", "100.1", "U3", time.Now())
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	if created {
		t.Fatal("duplicate trigger must not create a second ticket")
	}
	if again.ID != ticket.ID {
		t.Fatalf("duplicate open returned different ticket: %s vs %s", again.ID, ticket.ID)
	}
	if got := f.recorder.count(events.EventTicketOpened); got != 1 {
		t.Fatalf("opened events = %d; want 1", got)
	}
}

func TestOpenTicket_FirstResponderAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ticket := f.openTicket(t, "C1", "100.1", "U1", "U2")
	if ticket.AssignedTo == nil || *ticket.AssignedTo != "U2" {
		t.Fatalf("assignee = %v; want U2", ticket.AssignedTo)
	}

	// A later duplicate trigger from someone else must not steal assignment.
	again, _, err := f.tickets.OpenTicket(ctx, "C1", "100.1", "U9", time.Now())
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	if *again.AssignedTo != "U2" {
		t.Fatalf("assignee changed to %v", again.AssignedTo)
	}
}

func TestOpenTicket_BackfillsMissingQuery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Reaction arrives without a preceding message event; the message is
	// recovered from the platform.
	f.chatClient.addMessage(chat.Message{ChannelID: "C1", TS: "100.1", UserID: "U1", Text: "halp"})

	ticket, created, err := f.tickets.OpenTicket(ctx, "C1", "100.1", "U2", time.Now())
	if err != nil || !created {
		t.Fatalf("open with backfill: created=%v err=%v", created, err)
	}
	if ticket == nil || ticket.MessageTS != "100.1" {
		t.Fatalf("backfilled ticket wrong: %+v", ticket)
	}

	query, err := f.repos.Queries.GetByRef(ctx, "C1", "100.1")
	if err != nil {
		t.Fatalf("backfilled query missing: %v", err)
	}
	if query.Text != "halp" {
		t.Fatalf("query text = %q", query.Text)
	}
}

func TestOpenTicket_ThreadReplyNeverBecomesTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.chatClient.addMessage(chat.Message{
		ChannelID: "C1", TS: "100.2", ThreadTS: "100.1", UserID: "U1", Text: "me too",
	})

	ticket, created, err := f.tickets.OpenTicket(ctx, "C1", "100.2", "U2", time.Now())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if created || ticket != nil {
		t.Fatalf("thread reply produced a ticket: created=%v", created)
	}
}

func TestCloseTicket_UntrackedIsSilentNoop(t *testing.T) {
	f := newFixture(t)

	ticket, applied, err := f.tickets.CloseTicket(context.Background(), "C1", "999.9", "U1", time.Now())
	if err != nil {
		t.Fatalf("close untracked: %v", err)
	}
	if applied || ticket != nil {
		t.Fatal("untracked close must be a silent no-op")
	}
}

func TestCloseTicket_DuplicateCollapses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.openTicket(t, "C1", "100.1", "U1", "U2")

	closed, applied, err := f.tickets.CloseTicket(ctx, "C1", "100.1", "U3", time.Now())
	if err != nil || !applied {
		t.Fatalf("first close: applied=%v err=%v", applied, err)
	}
	if closed.Status != domain.TicketStatusClosed {
		t.Fatalf("status = %s", closed.Status)
	}

	_, applied, err = f.tickets.CloseTicket(ctx, "C1", "100.1", "U4", time.Now())
	if err != nil {
		t.Fatalf("second close: %v", err)
	}
	if applied {
		t.Fatal("duplicate close must not apply")
	}
	if got := f.recorder.count(events.EventTicketClosed); got != 1 {
		t.Fatalf("closed events = %d; want 1", got)
	}
}

func TestCloseTicket_ResolvesOpenEscalations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.openTicket(t, "C1", "100.1", "U1", "U2")

	if _, _, err := f.escalations.Open(ctx, ticket.ID, "platform", nil, time.Now()); err != nil {
		t.Fatalf("escalate: %v", err)
	}

	if _, _, err := f.tickets.CloseTicket(ctx, "C1", "100.1", "U3", time.Now()); err != nil {
		t.Fatalf("close: %v", err)
	}

	count, err := f.escalations.CountNotResolved(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("unresolved escalations after close = %d", count)
	}
}

func TestHandleMessage_ThreadReplyReopensClosedTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.openTicket(t, "C1", "100.1", "U1", "U2")

	if _, _, err := f.tickets.CloseTicket(ctx, "C1", "100.1", "U2", time.Now()); err != nil {
		t.Fatalf("close: %v", err)
	}

	err := f.tickets.HandleMessage(ctx, chat.Message{
		ChannelID: "C1", TS: "101.0", ThreadTS: "100.1", UserID: "U1", Text: "still broken",
	}, time.Now())
	if err != nil {
		t.Fatalf("thread reply: %v", err)
	}

	reopened, err := f.tickets.GetTicket(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reopened.Status != domain.TicketStatusOpened {
		t.Fatalf("status after thread reply = %s; want OPENED", reopened.Status)
	}
	if len(reopened.StatusLog) != 3 {
		t.Fatalf("ledger len = %d; want 3 (open, close, reopen)", len(reopened.StatusLog))
	}
	if got := f.recorder.count(events.EventTicketReopened); got != 1 {
		t.Fatalf("reopened events = %d; want 1", got)
	}
}

func TestHandleMessage_ThreadReplyOnOpenTicketIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.openTicket(t, "C1", "100.1", "U1", "U2")

	err := f.tickets.HandleMessage(ctx, chat.Message{
		ChannelID: "C1", TS: "101.0", ThreadTS: "100.1", UserID: "U1", Text: "any update?",
	}, time.Now())
	if err != nil {
		t.Fatalf("thread reply: %v", err)
	}

	current, err := f.tickets.GetTicket(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(current.StatusLog) != 1 {
		t.Fatalf("ledger grew on idle thread reply: %d entries", len(current.StatusLog))
	}
}

func TestHandleMessage_TopLevelRecordsQueryOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.tickets.HandleMessage(ctx, chat.Message{
		ChannelID: "C1", TS: "100.1", UserID: "U1", Text: "is the api down?",
	}, time.Now())
	if err != nil {
		t.Fatalf("handle message: %v", err)
	}

	if _, err := f.repos.Queries.GetByRef(ctx, "C1", "100.1"); err != nil {
		t.Fatalf("query not recorded: %v", err)
	}
	if _, err := f.repos.Tickets.GetByQueryRef(ctx, "C1", "100.1"); err == nil {
		t.Fatal("plain message must not create a ticket")
	}
}

func TestUpdateTicket_ValidatesAgainstTaxonomy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.openTicket(t, "C1", "100.1", "U1", "U2")

	bogus := "no-such-team"
	_, err := f.tickets.UpdateTicket(ctx, ticket.ID, domain.TicketUpdate{Team: &bogus})
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION_FAILED" {
		t.Fatalf("want VALIDATION_FAILED, got %v", err)
	}

	team := "platform"
	updated, err := f.tickets.UpdateTicket(ctx, ticket.ID, domain.TicketUpdate{Team: &team, Tags: []string{"bug"}})
	if err != nil {
		t.Fatalf("valid update: %v", err)
	}
	if updated.Team == nil || *updated.Team != team {
		t.Fatalf("team = %v", updated.Team)
	}
	if updated.AssignedTo == nil || *updated.AssignedTo != "U2" {
		t.Fatalf("update cleared assignee: %v", updated.AssignedTo)
	}
}

func TestGetTicket_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.tickets.GetTicket(context.Background(), "missing")
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "NOT_FOUND" {
		t.Fatalf("want NOT_FOUND, got %v", err)
	}
}

func TestGetStatusHistory_TracksCloseReopenCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.openTicket(t, "C1", "100.0", "U1", "U9")
	if _, _, err := f.tickets.CloseTicket(ctx, "C1", "100.0", "U9", time.Now()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, _, err := f.tickets.ReopenTicket(ctx, "C1", "100.0", "U9", time.Now()); err != nil {
		t.Fatalf("reopen: %v", err)
	}

	log, err := f.tickets.GetStatusHistory(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("GetStatusHistory: %v", err)
	}
	want := []domain.TicketStatus{domain.TicketStatusOpened, domain.TicketStatusClosed, domain.TicketStatusOpened}
	if len(log) != len(want) {
		t.Fatalf("ledger length = %d; want %d", len(log), len(want))
	}
	for i, status := range want {
		if log[i].Status != status {
			t.Fatalf("entry %d status = %s; want %s", i, log[i].Status, status)
		}
	}
}

func TestGetStatusHistory_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.tickets.GetStatusHistory(context.Background(), "missing")
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "NOT_FOUND" {
		t.Fatalf("want NOT_FOUND, got %v", err)
	}
}

func TestReopenTicket_ClearsStaleMarker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.openTicket(t, "C1", "100.0", "U1", "U2")

	notified := time.Now()
	if err := f.repos.Tickets.SetNotifiedStale(ctx, ticket.ID, &notified); err != nil {
		t.Fatalf("set notified: %v", err)
	}
	if _, _, err := f.tickets.CloseTicket(ctx, "C1", "100.0", "U9", time.Now()); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, applied, err := f.tickets.ReopenTicket(ctx, "C1", "100.0", "U9", time.Now())
	if err != nil || !applied {
		t.Fatalf("reopen: applied=%v err=%v", applied, err)
	}
	if reopened.NotifiedStaleAt != nil {
		t.Fatal("reopen left the stale marker set")
	}

	stored, err := f.repos.Tickets.GetByID(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.NotifiedStaleAt != nil {
		t.Fatal("stale marker still stored after reopen")
	}
}
