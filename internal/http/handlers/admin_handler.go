package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"kinara/internal/domain"
	applog "kinara/internal/log"
	"kinara/internal/services"
	"kinara/internal/validate"

	"github.com/gofiber/fiber/v2"
)

const maxImageBytes = 512 << 10

type AdminHandler struct {
	Reports   *services.ReportService
	Orders    *services.OrderService
	Products  *services.ProductService
	Customers *services.CustomerService
	Catalog   *services.CatalogService
}

// GET /admin
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	tf := services.ParseTimeframe(c.Query("timeframe"))
	d, err := h.Reports.Dashboard(c.UserContext(), tf)
	if err != nil {
		applog.Error(c, "admin.dashboard.fail", err, nil)
		return c.Status(500).Render("notfound", fiber.Map{"Message": "Could not load the dashboard"})
	}
	return render(c, "admin_dashboard", fiber.Map{
		"D":          d,
		"Timeframes": []services.Timeframe{services.Week, services.Month, services.Year},
	})
}

// GET /admin/orders
func (h *AdminHandler) OrdersPage(c *fiber.Ctx) error {
	ctx := c.UserContext()
	status := ""
	if raw := c.Query("status"); raw != "" && raw != "all" {
		st, ok := validate.Status(raw)
		if !ok {
			applog.Security(c, "validation.fail", map[string]any{"field": "status"})
			return c.Status(400).SendString("unknown status")
		}
		status = st.String()
	}
	all, err := h.Orders.List(ctx, "")
	if err != nil {
		applog.Error(c, "admin.orders.list.fail", err, nil)
		return c.Status(500).Render("notfound", fiber.Map{"Message": "Could not load orders"})
	}
	shown := all
	if status != "" {
		if shown, err = h.Orders.List(ctx, status); err != nil {
			applog.Error(c, "admin.orders.list.fail", err, nil)
			return c.Status(500).Render("notfound", fiber.Map{"Message": "Could not load orders"})
		}
	}
	return render(c, "admin_orders", fiber.Map{
		"Orders":   shown,
		"Stats":    services.ComputeOrderStats(all),
		"Status":   status,
		"Statuses": domain.OrderStatuses,
	})
}

// POST /admin/orders/:id/status
func (h *AdminHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(400).SendString("missing id")
	}
	status, ok := validate.Status(c.FormValue("status"))
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "status", "order_id": id})
		return c.Status(400).SendString("unknown status")
	}
	o, err := h.Orders.UpdateStatus(c.UserContext(), id, status.String())
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		return notFound(c, "Order not found")
	case errors.Is(err, domain.ErrIllegalTransition):
		applog.Security(c, "admin.orders.update.rejected", map[string]any{"order_id": id, "from": o.Status, "to": status})
		return c.Status(409).SendString(fmt.Sprintf("cannot move a %s order to %s", o.Status, status))
	default:
		applog.Error(c, "admin.orders.update.fail", err, map[string]any{"order_id": id})
		return c.Status(500).Render("notfound", fiber.Map{"Message": "Could not update the order"})
	}
	applog.Audit(c, "admin.orders.update", map[string]any{"order_id": id, "status": status})
	return c.Redirect("/admin/orders")
}

func (h *AdminHandler) productsPage(c *fiber.Ctx, status int, msg string) error {
	ctx := c.UserContext()
	products, err := h.Catalog.ListProducts(ctx, domain.ProductFilter{})
	if err != nil {
		applog.Error(c, "admin.products.list.fail", err, nil)
		return c.Status(500).Render("notfound", fiber.Map{"Message": "Could not load products"})
	}
	cats, err := h.Catalog.ListCategories(ctx)
	if err != nil {
		applog.Error(c, "admin.categories.list.fail", err, nil)
		return c.Status(500).Render("notfound", fiber.Map{"Message": "Could not load products"})
	}
	c.Status(status)
	return render(c, "admin_products", fiber.Map{
		"Products":   products,
		"Categories": cats,
		"Stats":      services.ComputeProductStats(products),
		"Err":        msg,
	})
}

// GET /admin/products
func (h *AdminHandler) ProductsPage(c *fiber.Ctx) error {
	return h.productsPage(c, 200, "")
}

// POST /admin/products (multipart: images plus text fields)
func (h *AdminHandler) CreateProduct(c *fiber.Ctx) error {
	name, ok := validate.Text(c.FormValue("name"), 2, 100)
	if !ok {
		return h.productsPage(c, 400, "Enter a product name (2 to 100 characters)")
	}
	desc, ok := validate.Text(c.FormValue("description"), 0, 2000)
	if !ok {
		return h.productsPage(c, 400, "Description is too long or contains markup")
	}
	price, ok := validate.Price(c.FormValue("price"))
	if !ok {
		return h.productsPage(c, 400, "Enter a price in whole shillings")
	}
	stock, ok := validate.Stock(c.FormValue("stock"))
	if !ok {
		return h.productsPage(c, 400, "Enter a stock count of zero or more")
	}

	in := services.NewProduct{
		Name:           name,
		Description:    desc,
		Price:          price,
		Stock:          stock,
		Features:       lines(c.FormValue("features")),
		Specifications: specLines(c.FormValue("specifications")),
	}
	if cat := strings.TrimSpace(c.FormValue("category_id")); cat == "new" {
		newCat, ok := validate.Text(c.FormValue("new_category"), 2, 60)
		if !ok {
			return h.productsPage(c, 400, "Enter a name for the new category")
		}
		in.NewCategory = newCat
		in.NewCategoryDescription, _ = validate.Text(c.FormValue("new_category_description"), 0, 500)
	} else if cat != "" {
		id, ok := validate.ID(cat)
		if !ok {
			applog.Security(c, "validation.fail", map[string]any{"field": "category_id"})
			return h.productsPage(c, 400, "Invalid category")
		}
		in.CategoryID = id
	}

	images, err := formImages(c)
	if err != nil {
		applog.Security(c, "validation.fail", map[string]any{"field": "images", "err": err.Error()})
		return h.productsPage(c, 400, "Images must be PNG, JPEG, GIF or WebP files under 512 KB, or https links")
	}
	in.Images = images

	p, err := h.Products.Create(c.UserContext(), in)
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		return h.productsPage(c, 400, "Could not add the product: "+verr.Reason)
	}
	if err != nil {
		applog.Error(c, "admin.products.create.fail", err, map[string]any{"name": name})
		return h.productsPage(c, 500, "Could not add the product. Please try again.")
	}
	applog.Audit(c, "admin.products.create", map[string]any{"product_id": p.ID, "name": p.Name, "category_id": p.CategoryID})
	return c.Redirect("/admin/products")
}

// GET /admin/customers
func (h *AdminHandler) CustomersPage(c *fiber.Ctx) error {
	opt := services.CustomerListOptions{
		Filter: strings.ToLower(c.Query("filter")),
		Sort:   strings.ToLower(c.Query("sort")),
	}
	if raw := c.Query("q"); strings.TrimSpace(raw) != "" {
		q, ok := validate.Q(raw)
		if !ok {
			applog.Security(c, "validation.fail", map[string]any{"field": "q"})
		} else {
			opt.Search = q
		}
	}
	rows, sum, err := h.Customers.List(c.UserContext(), opt)
	if err != nil {
		applog.Error(c, "admin.customers.list.fail", err, nil)
		return c.Status(500).Render("notfound", fiber.Map{"Message": "Could not load customers"})
	}
	return render(c, "admin_customers", fiber.Map{"Rows": rows, "Summary": sum, "Opt": opt})
}

func lines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" && !strings.ContainsAny(l, "<>") {
			out = append(out, l)
		}
	}
	return out
}

// specLines parses "Key: value" lines. Lines without a colon are skipped.
func specLines(s string) map[string]string {
	out := map[string]string{}
	for _, l := range lines(s) {
		k, v, ok := strings.Cut(l, ":")
		if !ok {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}

var imageTypes = map[string]bool{
	"image/png": true, "image/jpeg": true, "image/gif": true, "image/webp": true,
}

// formImages turns uploaded files into data URLs and appends any https image links.
func formImages(c *fiber.Ctx) ([]domain.ProductImage, error) {
	var out []domain.ProductImage
	if form, err := c.MultipartForm(); err == nil {
		for _, fh := range form.File["images"] {
			img, err := dataURL(fh)
			if err != nil {
				return nil, err
			}
			out = append(out, img)
		}
	}
	for _, u := range lines(c.FormValue("image_urls")) {
		if !strings.HasPrefix(u, "https://") {
			return nil, fmt.Errorf("image link %q is not https", u)
		}
		out = append(out, domain.ProductImage{Data: u, Type: "url"})
	}
	return out, nil
}

func dataURL(fh *multipart.FileHeader) (domain.ProductImage, error) {
	if fh.Size > maxImageBytes {
		return domain.ProductImage{}, fmt.Errorf("%s is too large", fh.Filename)
	}
	f, err := fh.Open()
	if err != nil {
		return domain.ProductImage{}, err
	}
	defer f.Close()
	b, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
	if err != nil {
		return domain.ProductImage{}, err
	}
	typ := http.DetectContentType(b)
	if !imageTypes[typ] {
		return domain.ProductImage{}, fmt.Errorf("%s is %s", fh.Filename, typ)
	}
	return domain.ProductImage{
		Data: "data:" + typ + ";base64," + base64.StdEncoding.EncodeToString(b),
		Type: typ,
	}, nil
}
