package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/chatops-kit/triage-service/internal/api/dto"
	"github.com/chatops-kit/triage-service/internal/domain"
	"github.com/chatops-kit/triage-service/internal/repository"
	"github.com/chatops-kit/triage-service/internal/service"
	apperrors "github.com/chatops-kit/triage-service/pkg/util"
)

// EscalationsHandler manages escalation endpoints.
type EscalationsHandler struct {
	escalations *service.EscalationService
}

// NewEscalationsHandler constructs handler.
func NewEscalationsHandler(escalations *service.EscalationService) *EscalationsHandler {
	return &EscalationsHandler{escalations: escalations}
}

// CreateEscalation POST /escalations.
func (h *EscalationsHandler) CreateEscalation(c *fiber.Ctx) error {
	var req dto.CreateEscalationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TicketID == "" || req.Team == "" {
		return apperrors.NewValidationError("ticket_id and team required", nil)
	}

	escalation, created, err := h.escalations.Open(c.UserContext(), req.TicketID, req.Team, req.Tags, time.Now())
	if err != nil {
		return err
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.EscalationFromDomain(escalation)})
}

// ResolveEscalation POST /escalations/:id/resolve.
func (h *EscalationsHandler) ResolveEscalation(c *fiber.Ctx) error {
	escalation, _, err := h.escalations.Resolve(c.UserContext(), c.Params("id"), time.Now())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.EscalationFromDomain(escalation)})
}

// ListEscalations GET /escalations.
func (h *EscalationsHandler) ListEscalations(c *fiber.Ctx) error {
	filter, page, pageSize := parseEscalationQuery(c)
	escalations, total, err := h.escalations.ListEscalations(c.UserContext(), filter)
	if err != nil {
		return err
	}

	items := make([]dto.EscalationResponse, 0, len(escalations))
	for i := range escalations {
		items = append(items, dto.EscalationFromDomain(&escalations[i]))
	}
	return c.JSON(dto.NewPage(items, page, pageSize, total))
}

func parseEscalationQuery(c *fiber.Ctx) (repository.EscalationFilter, int, int) {
	filter := repository.EscalationFilter{}
	if ticketID := c.Query("ticket_id"); ticketID != "" {
		filter.TicketID = &ticketID
	}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.EscalationStatus(strings.ToUpper(strings.TrimSpace(part))))
		}
	}
	if team := c.Query("team"); team != "" {
		filter.Team = &team
	}
	if from := parseTime(c.Query("opened_from")); from != nil {
		filter.OpenedFrom = from
	}
	if to := parseTime(c.Query("opened_to")); to != nil {
		filter.OpenedTo = to
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter, page, pageSize
}
