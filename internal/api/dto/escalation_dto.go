package dto

import (
	"time"

	"github.com/chatops-kit/triage-service/internal/domain"
)

// CreateEscalationRequest payload.
type CreateEscalationRequest struct {
	TicketID string   `json:"ticket_id"`
	Team     string   `json:"team"`
	Tags     []string `json:"tags"`
}

// EscalationResponse represents one escalation.
type EscalationResponse struct {
	ID         string                  `json:"id"`
	TicketID   string                  `json:"ticket_id"`
	Team       string                  `json:"team"`
	Tags       []string                `json:"tags"`
	Status     domain.EscalationStatus `json:"status"`
	OpenedAt   time.Time               `json:"opened_at"`
	ResolvedAt *time.Time              `json:"resolved_at"`
	CreatedAt  time.Time               `json:"created_at"`
	UpdatedAt  time.Time               `json:"updated_at"`
}

// EscalationFromDomain converts an escalation for responses.
func EscalationFromDomain(escalation *domain.Escalation) EscalationResponse {
	tags := escalation.Tags
	if tags == nil {
		tags = []string{}
	}
	return EscalationResponse{
		ID:         escalation.ID,
		TicketID:   escalation.TicketID,
		Team:       escalation.Team,
		Tags:       tags,
		Status:     escalation.Status,
		OpenedAt:   escalation.OpenedAt,
		ResolvedAt: escalation.ResolvedAt,
		CreatedAt:  escalation.CreatedAt,
		UpdatedAt:  escalation.UpdatedAt,
	}
}
