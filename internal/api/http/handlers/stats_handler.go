package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/chatops-kit/triage-service/internal/api/dto"
	"github.com/chatops-kit/triage-service/internal/service"
	apperrors "github.com/chatops-kit/triage-service/pkg/util"
)

// StatsHandler serves the aggregated activity report.
type StatsHandler struct {
	stats *service.StatsService
}

// NewStatsHandler constructs handler.
func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// Report GET /stats. Defaults to the trailing 30 days.
func (h *StatsHandler) Report(c *fiber.Ctx) error {
	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now

	if raw := c.Query("from"); raw != "" {
		parsed := parseTime(raw)
		if parsed == nil {
			return apperrors.NewValidationError("invalid from date", map[string]any{"from": raw})
		}
		from = *parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed := parseTime(raw)
		if parsed == nil {
			return apperrors.NewValidationError("invalid to date", map[string]any{"to": raw})
		}
		to = *parsed
	}

	overview, err := h.stats.Report(c.UserContext(), from, to)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.StatsFromOverview(overview)})
}
