package handlers

import (
	"encoding/base64"
	"errors"
	"strings"

	"kinara/internal/domain"
	"kinara/internal/log"
	"kinara/internal/services"
	"kinara/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type ProductHandler struct {
	Catalog *services.CatalogService
	Cart    *services.CartService
}

func (h *ProductHandler) Detail(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "product"})
		return notFound(c, "This item is no longer available")
	}
	p, err := h.Catalog.GetProduct(c.UserContext(), id)
	if errors.Is(err, domain.ErrNotFound) {
		return notFound(c, "This item is no longer available")
	}
	if err != nil {
		log.Error(c, "product.get.fail", err, map[string]any{"product_id": id})
		return c.Status(fiber.StatusInternalServerError).Render("notfound", fiber.Map{"Message": "Could not load this item. Please retry."})
	}
	remember(c, h.Cart, []domain.Product{p})
	return render(c, "product", fiber.Map{"P": p, "Avail": services.CheckAvailability(p)})
}

// Image serves product image ?i= (default 0) when it is stored inline as a data URL.
func (h *ProductHandler) Image(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.SendStatus(fiber.StatusNotFound)
	}
	p, err := h.Catalog.GetProduct(c.UserContext(), id)
	if errors.Is(err, domain.ErrNotFound) {
		return c.SendStatus(fiber.StatusNotFound)
	}
	if err != nil {
		log.Error(c, "product.image.fail", err, map[string]any{"product_id": id})
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	i := c.QueryInt("i", 0)
	if i < 0 || i >= len(p.Images) {
		return c.SendStatus(fiber.StatusNotFound)
	}
	typ, data, ok := decodeDataURL(p.Images[i].Data)
	if !ok {
		return c.SendStatus(fiber.StatusNotFound)
	}
	c.Set(fiber.HeaderContentType, typ)
	c.Set(fiber.HeaderCacheControl, "public, max-age=3600")
	return c.Send(data)
}

func decodeDataURL(s string) (string, []byte, bool) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, false
	}
	typ, b64, ok := strings.Cut(rest, ";base64,")
	if !ok || !imageTypes[typ] {
		return "", nil, false
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", nil, false
	}
	return typ, data, true
}
