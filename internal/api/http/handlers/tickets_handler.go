package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/chatops-kit/triage-service/internal/api/dto"
	"github.com/chatops-kit/triage-service/internal/domain"
	"github.com/chatops-kit/triage-service/internal/repository"
	"github.com/chatops-kit/triage-service/internal/service"
	apperrors "github.com/chatops-kit/triage-service/pkg/util"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	tickets    *service.TicketService
	permalinks *service.PermalinkService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, permalinks *service.PermalinkService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, permalinks: permalinks}
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter, page, pageSize := parseTicketQuery(c)
	tickets, total, err := h.tickets.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}

	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.TicketFromDomain(&tickets[i]))
	}

	if c.QueryBool("include_permalinks") && h.permalinks != nil {
		links, err := h.permalinks.Collect(c.UserContext(), tickets)
		if err != nil {
			return err
		}
		for i := range items {
			items[i].Permalink = links[items[i].ID]
		}
	}

	return c.JSON(dto.NewPage(items, page, pageSize, total))
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketFromDomain(ticket)})
}

// GetTicketHistory GET /tickets/:id/history.
func (h *TicketsHandler) GetTicketHistory(c *fiber.Ctx) error {
	log, err := h.tickets.GetStatusHistory(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	entries := make([]dto.StatusLogEntryResponse, 0, len(log))
	for _, entry := range log {
		entries = append(entries, dto.StatusLogEntryResponse{Status: entry.Status, At: entry.At})
	}
	return c.JSON(fiber.Map{"data": entries})
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	update := domain.TicketUpdate{
		Team:       req.Team,
		Impact:     req.Impact,
		Tags:       req.Tags,
		AssignedTo: req.AssignedTo,
	}
	ticket, err := h.tickets.UpdateTicket(c.UserContext(), c.Params("id"), update)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketFromDomain(ticket)})
}

func parseTicketQuery(c *fiber.Ctx) (repository.TicketFilter, int, int) {
	filter := repository.TicketFilter{}
	if idsStr := c.Query("ids"); idsStr != "" {
		for _, part := range strings.Split(idsStr, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				filter.IDs = append(filter.IDs, trimmed)
			}
		}
	}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.ToUpper(strings.TrimSpace(part))))
		}
	}
	if team := c.Query("team"); team != "" {
		filter.Team = &team
	}
	if impact := c.Query("impact"); impact != "" {
		filter.Impact = &impact
	}
	if tag := c.Query("tag"); tag != "" {
		filter.Tag = &tag
	}
	if from := parseTime(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter, page, pageSize
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
