package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"kinara/internal/domain"
	"kinara/internal/log"
	"kinara/internal/services"
	"kinara/internal/validate"
)

// InventoryHandler answers the product page's stock check.
type InventoryHandler struct {
	Catalog *services.CatalogService
}

func (h *InventoryHandler) Check(c *fiber.Ctx) error {
	raw := strings.TrimSpace(c.Query("productId"))
	if raw == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing productId",
		})
	}
	id, ok := validate.ID(raw)
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "productId"})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid productId",
		})
	}

	p, err := h.Catalog.GetProduct(c.UserContext(), id)
	if errors.Is(err, domain.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "unknown product",
		})
	}
	if err != nil {
		log.Error(c, "availability.fail", err, map[string]any{"product_id": id})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "could not check availability",
		})
	}
	avail := services.CheckAvailability(p)
	return c.JSON(fiber.Map{"productId": p.ID, "status": avail.Status, "qty": avail.Qty})
}
