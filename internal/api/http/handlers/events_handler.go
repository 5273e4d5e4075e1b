package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/chatops-kit/triage-service/internal/ingest"
	apperrors "github.com/chatops-kit/triage-service/pkg/util"
)

// EventsHandler receives the chat platform's event webhook. The platform
// retries deliveries that are not acknowledged quickly, so processing is
// handed to the ingest pool and the request returns immediately. Retried
// duplicates are harmless: every downstream write is idempotent.
type EventsHandler struct {
	pool *ingest.Pool
}

// NewEventsHandler constructs handler.
func NewEventsHandler(pool *ingest.Pool) *EventsHandler {
	return &EventsHandler{pool: pool}
}

// Receive POST /events.
func (h *EventsHandler) Receive(c *fiber.Ctx) error {
	env, err := ingest.ParseEnvelope(c.Body())
	if err != nil {
		return apperrors.NewValidationError("invalid event payload", nil)
	}

	if env.IsVerification() {
		return c.JSON(fiber.Map{"challenge": env.Challenge})
	}

	if !h.pool.Submit(env) {
		// 503 asks the platform to retry the delivery later.
		return c.SendStatus(http.StatusServiceUnavailable)
	}
	return c.SendStatus(http.StatusOK)
}
