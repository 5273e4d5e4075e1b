package dto

import (
	"time"

	"github.com/chatops-kit/triage-service/internal/domain"
)

// CreateRatingRequest payload.
type CreateRatingRequest struct {
	Value int `json:"value"`
}

// RatingResponse represents a captured rating.
type RatingResponse struct {
	ID           string              `json:"id"`
	TicketID     string              `json:"ticket_id"`
	Value        int                 `json:"value"`
	TicketStatus domain.TicketStatus `json:"ticket_status"`
	Impact       *string             `json:"impact"`
	Tags         []string            `json:"tags"`
	Escalated    bool                `json:"escalated"`
	CreatedAt    time.Time           `json:"created_at"`
}

// RatingFromDomain converts a rating for responses.
func RatingFromDomain(rating *domain.Rating) RatingResponse {
	tags := rating.Tags
	if tags == nil {
		tags = []string{}
	}
	return RatingResponse{
		ID:           rating.ID,
		TicketID:     rating.TicketID,
		Value:        rating.Value,
		TicketStatus: rating.TicketStatus,
		Impact:       rating.Impact,
		Tags:         tags,
		Escalated:    rating.Escalated,
		CreatedAt:    rating.CreatedAt,
	}
}
