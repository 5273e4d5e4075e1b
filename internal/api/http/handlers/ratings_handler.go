package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/chatops-kit/triage-service/internal/api/dto"
	"github.com/chatops-kit/triage-service/internal/service"
	apperrors "github.com/chatops-kit/triage-service/pkg/util"
)

// RatingsHandler manages rating endpoints.
type RatingsHandler struct {
	ratings *service.RatingService
}

// NewRatingsHandler constructs handler.
func NewRatingsHandler(ratings *service.RatingService) *RatingsHandler {
	return &RatingsHandler{ratings: ratings}
}

// CaptureRating POST /tickets/:id/rating.
func (h *RatingsHandler) CaptureRating(c *fiber.Ctx) error {
	var req dto.CreateRatingRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	rating, created, err := h.ratings.Capture(c.UserContext(), c.Params("id"), req.Value, time.Now())
	if err != nil {
		return err
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.RatingFromDomain(rating)})
}

// GetRating GET /tickets/:id/rating.
func (h *RatingsHandler) GetRating(c *fiber.Ctx) error {
	rating, err := h.ratings.GetForTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.RatingFromDomain(rating)})
}
