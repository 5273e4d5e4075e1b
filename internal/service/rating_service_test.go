package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chatops-kit/triage-service/internal/events"
	apperrors "github.com/chatops-kit/triage-service/pkg/util"
)

func TestRatingCapture_RejectsOutOfRangeBeforeMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.openTicket(t, "C1", "100.1", "U1", "U2")

	for _, value := range []int{0, 6, -1} {
		_, _, err := f.ratings.Capture(ctx, ticket.ID, value, time.Now())
		var domainErr *apperrors.DomainError
		if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION_FAILED" {
			t.Fatalf("value %d: want VALIDATION_FAILED, got %v", value, err)
		}
	}

	// The rejected attempts must not have created anything.
	if _, err := f.ratings.GetForTicket(ctx, ticket.ID); err == nil {
		t.Fatal("invalid rating was persisted")
	}
	current, err := f.tickets.GetTicket(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if current.Rated {
		t.Fatal("ticket marked rated after rejected capture")
	}
}

func TestRatingCapture_MarksTicketAndResolvesEscalations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.openTicket(t, "C1", "100.1", "U1", "U2")

	if _, _, err := f.escalations.Open(ctx, ticket.ID, "platform", nil, time.Now()); err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if _, _, err := f.tickets.CloseTicket(ctx, "C1", "100.1", "U2", time.Now()); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Re-escalate after close so the rating observes an open escalation.
	if _, _, err := f.escalations.Open(ctx, ticket.ID, "frontend", nil, time.Now()); err != nil {
		t.Fatalf("re-escalate: %v", err)
	}

	rating, created, err := f.ratings.Capture(ctx, ticket.ID, 4, time.Now())
	if err != nil || !created {
		t.Fatalf("capture: created=%v err=%v", created, err)
	}
	if !rating.Escalated {
		t.Fatal("rating must snapshot escalated=true")
	}
	if rating.Value != 4 {
		t.Fatalf("value = %d", rating.Value)
	}

	rated, err := f.tickets.GetTicket(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !rated.Rated {
		t.Fatal("ticket not marked rated")
	}

	count, err := f.escalations.CountNotResolved(ctx, ticket.ID)
	if err != nil || count != 0 {
		t.Fatalf("unresolved after rating = %d err=%v; want 0", count, err)
	}
	if got := f.recorder.count(events.EventRatingCaptured); got != 1 {
		t.Fatalf("rating_captured events = %d; want 1", got)
	}
}

func TestRatingCapture_DuplicateReturnsExisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.openTicket(t, "C1", "100.1", "U1", "U2")

	first, _, err := f.ratings.Capture(ctx, ticket.ID, 5, time.Now())
	if err != nil {
		t.Fatalf("first capture: %v", err)
	}

	dup, created, err := f.ratings.Capture(ctx, ticket.ID, 1, time.Now())
	if err != nil {
		t.Fatalf("dup capture: %v", err)
	}
	if created {
		t.Fatal("duplicate rating must not create")
	}
	if dup.Value != first.Value {
		t.Fatalf("duplicate overwrote value: %d", dup.Value)
	}
	if got := f.recorder.count(events.EventRatingCaptured); got != 1 {
		t.Fatalf("rating_captured events = %d; want 1", got)
	}
}

func TestRatingCapture_MissingTicket(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.ratings.Capture(context.Background(), "missing", 3, time.Now())
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "NOT_FOUND" {
		t.Fatalf("want NOT_FOUND, got %v", err)
	}
}
