package domain

import "time"

// Rating value bounds, inclusive.
const (
	RatingMin = 1
	RatingMax = 5
)

// Rating is a one-shot post-close feedback capture. At most one rating exists
// per ticket; the snapshot fields record the ticket's state at rating time.
type Rating struct {
	ID           string
	TicketID     string
	Value        int
	TicketStatus TicketStatus
	Impact       *string
	Tags         []string
	Escalated    bool
	CreatedAt    time.Time
}

// ValidRatingValue reports whether v is inside the accepted range.
func ValidRatingValue(v int) bool {
	return v >= RatingMin && v <= RatingMax
}
