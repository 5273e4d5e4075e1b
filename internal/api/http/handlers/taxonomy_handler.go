package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/chatops-kit/triage-service/internal/domain"
)

// TaxonomyHandler exposes the configured teams, impacts and tags so callers
// can validate before submitting updates.
type TaxonomyHandler struct {
	teams   domain.Registry
	impacts domain.Registry
	tags    domain.Registry
}

// NewTaxonomyHandler constructs handler.
func NewTaxonomyHandler(teams, impacts, tags domain.Registry) *TaxonomyHandler {
	return &TaxonomyHandler{teams: teams, impacts: impacts, tags: tags}
}

// List GET /taxonomy.
func (h *TaxonomyHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": fiber.Map{
		"teams":   h.teams.ListAll(),
		"impacts": h.impacts.ListAll(),
		"tags":    h.tags.ListAll(),
	}})
}
