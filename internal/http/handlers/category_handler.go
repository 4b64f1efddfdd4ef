package handlers

import (
	"strings"

	"kinara/internal/domain"
	"kinara/internal/log"
	"kinara/internal/services"
	"kinara/internal/validate"

	"github.com/gofiber/fiber/v2"
)

const featuredCount = 4

// CategoryHandler serves the storefront listings: the home page and /shop.
type CategoryHandler struct {
	Catalog *services.CatalogService
	Cart    *services.CartService
}

// remember records a listing in the session so the cart is priced against it.
func remember(c *fiber.Ctx, cart *services.CartService, products []domain.Product) {
	if err := cart.RememberCatalog(c.UserContext(), ensureSID(c), products); err != nil {
		log.Error(c, "catalog.remember.fail", err, nil)
	}
}

func (h *CategoryHandler) Home(c *fiber.Ctx) error {
	ctx := c.UserContext()
	products, err := h.Catalog.ListProducts(ctx, domain.ProductFilter{})
	if err != nil {
		log.Error(c, "home.products.fail", err, nil)
		return c.Status(fiber.StatusInternalServerError).Render("notfound", fiber.Map{"Message": "Could not load products. Please retry."})
	}
	cats, err := h.Catalog.ListCategories(ctx)
	if err != nil {
		log.Error(c, "home.categories.fail", err, nil)
		return c.Status(fiber.StatusInternalServerError).Render("notfound", fiber.Map{"Message": "Could not load products. Please retry."})
	}
	remember(c, h.Cart, products)

	featured := products
	if len(featured) > featuredCount {
		featured = featured[:featuredCount]
	}
	return render(c, "home", fiber.Map{
		"Summary":    h.Catalog.Summarize(products, cats),
		"Featured":   featured,
		"Categories": cats,
	})
}

// Shop lists products, optionally narrowed by ?category= and ?q=.
func (h *CategoryHandler) Shop(c *fiber.Ctx) error {
	ctx := c.UserContext()
	cats, err := h.Catalog.ListCategories(ctx)
	if err != nil {
		log.Error(c, "shop.categories.fail", err, nil)
		return c.Status(fiber.StatusInternalServerError).Render("notfound", fiber.Map{"Message": "Could not load products. Please retry."})
	}

	f := domain.ProductFilter{}
	if cat := strings.TrimSpace(c.Query("category")); cat != "" && cat != "all" {
		id, ok := validate.ID(cat)
		if !ok {
			log.Security(c, "validation.fail", map[string]any{"field": "category"})
			return c.Status(fiber.StatusBadRequest).Render("shop", fiber.Map{
				"Categories": cats, "Products": []domain.Product{}, "CategoryID": "", "Err": "Invalid category",
			})
		}
		f.CategoryID = id
	}
	if rawQ := c.Query("q"); strings.TrimSpace(rawQ) != "" {
		q, ok := validate.Q(rawQ)
		if !ok {
			log.Security(c, "validation.fail", map[string]any{"field": "q", "value": rawQ})
			return c.Status(fiber.StatusBadRequest).Render("shop", fiber.Map{
				"Categories": cats, "Products": []domain.Product{}, "CategoryID": f.CategoryID,
				"Err": "Enter a valid keyword (letters/numbers only)",
			})
		}
		f.Query = q
	}

	products, err := h.Catalog.ListProducts(ctx, f)
	if err != nil {
		log.Error(c, "shop.products.fail", err, nil)
		return c.Status(fiber.StatusInternalServerError).Render("notfound", fiber.Map{"Message": "Could not load results. Please retry."})
	}
	remember(c, h.Cart, products)

	return render(c, "shop", fiber.Map{
		"Categories": cats,
		"CategoryID": f.CategoryID,
		"Q":          f.Query,
		"Products":   products,
		"Count":      len(products),
	})
}
