package dto

import (
	"time"

	"github.com/chatops-kit/triage-service/internal/domain"
)

// UpdateTicketRequest is a partial detail update. Absent fields stay
// untouched.
type UpdateTicketRequest struct {
	Team       *string  `json:"team"`
	Impact     *string  `json:"impact"`
	Tags       []string `json:"tags"`
	AssignedTo *string  `json:"assigned_to"`
}

// StatusLogEntryResponse is one ledger entry.
type StatusLogEntryResponse struct {
	Status domain.TicketStatus `json:"status"`
	At     time.Time           `json:"at"`
}

// TicketResponse is the full ticket representation.
type TicketResponse struct {
	ID         string                   `json:"id"`
	ChannelID  string                   `json:"channel_id"`
	MessageTS  string                   `json:"message_ts"`
	Status     domain.TicketStatus      `json:"status"`
	StatusLog  []StatusLogEntryResponse `json:"status_log"`
	Team       *string                  `json:"team"`
	Impact     *string                  `json:"impact"`
	Tags       []string                 `json:"tags"`
	AssignedTo *string                  `json:"assigned_to"`
	Rated      bool                     `json:"rated"`
	Permalink  string                   `json:"permalink,omitempty"`
	CreatedAt  time.Time                `json:"created_at"`
	UpdatedAt  time.Time                `json:"updated_at"`
}

// TicketFromDomain converts a ticket for responses.
func TicketFromDomain(ticket *domain.Ticket) TicketResponse {
	log := make([]StatusLogEntryResponse, 0, len(ticket.StatusLog))
	for _, entry := range ticket.StatusLog {
		log = append(log, StatusLogEntryResponse{Status: entry.Status, At: entry.At})
	}
	tags := ticket.Tags
	if tags == nil {
		tags = []string{}
	}
	return TicketResponse{
		ID:         ticket.ID,
		ChannelID:  ticket.ChannelID,
		MessageTS:  ticket.MessageTS,
		Status:     ticket.Status,
		StatusLog:  log,
		Team:       ticket.Team,
		Impact:     ticket.Impact,
		Tags:       tags,
		AssignedTo: ticket.AssignedTo,
		Rated:      ticket.Rated,
		CreatedAt:  ticket.CreatedAt,
		UpdatedAt:  ticket.UpdatedAt,
	}
}
