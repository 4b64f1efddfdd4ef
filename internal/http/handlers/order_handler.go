package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"kinara/internal/cart"
	"kinara/internal/domain"
	applog "kinara/internal/log"
	"kinara/internal/services"
	"kinara/internal/validate"
)

// OrderHandler runs checkout and the order confirmation page.
type OrderHandler struct {
	Cart     *services.CartService
	Checkout *services.CheckoutService
}

// checkoutForm keeps the submitted values so the page can be re-filled.
type checkoutForm struct {
	FullName string
	Phone    string
	Mpesa    string
	Location string
	PayNow   bool
}

func readCheckoutForm(c *fiber.Ctx) checkoutForm {
	payNow := strings.ToLower(strings.TrimSpace(c.FormValue("pay_now")))
	return checkoutForm{
		FullName: c.FormValue("full_name"),
		Phone:    c.FormValue("phone"),
		Mpesa:    c.FormValue("mpesa_number"),
		Location: c.FormValue("location"),
		PayNow:   payNow == "on" || payNow == "true" || payNow == "1",
	}
}

func (h *OrderHandler) page(c *fiber.Ctx, status int, sid string, form checkoutForm, msg string) error {
	cv, err := h.Checkout.Preview(c.UserContext(), sid)
	if err != nil {
		applog.Error(c, "checkout.load", err, nil)
		return c.Status(fiber.StatusInternalServerError).Render("notfound", fiber.Map{"Message": "Could not load your cart"})
	}
	c.Status(status)
	return render(c, "checkout", fiber.Map{"Cart": cv, "Form": form, "Err": msg})
}

func (h *OrderHandler) CheckoutPage(c *fiber.Ctx) error {
	return h.page(c, fiber.StatusOK, ensureSID(c), checkoutForm{PayNow: true}, "")
}

func (h *OrderHandler) Place(c *fiber.Ctx) error {
	sid := ensureSID(c)
	form := readCheckoutForm(c)

	name, ok := validate.Name(form.FullName)
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "full_name"})
		return h.page(c, fiber.StatusBadRequest, sid, form, "Enter your full name (letters only, up to 60 characters)")
	}
	phone, ok := validate.Phone(form.Phone)
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "phone"})
		return h.page(c, fiber.StatusBadRequest, sid, form, "Enter a valid Kenyan phone number, e.g. 0712 345 678")
	}
	mpesa, ok := validate.Phone(form.Mpesa)
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "mpesa_number"})
		return h.page(c, fiber.StatusBadRequest, sid, form, "Enter the M-Pesa number to pay from, e.g. 0712 345 678")
	}
	location, ok := validate.Location(form.Location)
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "location"})
		return h.page(c, fiber.StatusBadRequest, sid, form, "Enter a delivery location (3 to 120 characters)")
	}

	rc, err := h.Checkout.Checkout(c.UserContext(), sid, services.ContactForm{
		FullName:         name,
		PhoneNumber:      phone,
		MpesaNumber:      mpesa,
		DeliveryLocation: location,
		PayNow:           form.PayNow,
	})

	var (
		verr    *services.ValidationError
		rerr    *cart.ResolutionError
		partial *services.PartialSubmission
		failed  *services.CheckoutFailed
	)
	switch {
	case err == nil:
	case errors.As(err, &verr):
		applog.Security(c, "checkout.rejected", map[string]any{"field": verr.Field, "err": verr.Error()})
		msg := "Please check your details and try again."
		if errors.Is(err, services.ErrEmptyCart) {
			msg = "Your cart is empty."
		}
		return h.page(c, fiber.StatusBadRequest, sid, form, msg)
	case errors.As(err, &rerr):
		applog.Security(c, "checkout.unresolved", map[string]any{"missing": rerr.Missing})
		return h.page(c, fiber.StatusConflict, sid, form, "Some items in your cart are no longer available. Remove them and try again.")
	case errors.As(err, &partial):
		applog.Error(c, "checkout.partial", err, map[string]any{"customer_id": partial.CustomerID})
		return h.page(c, fiber.StatusBadGateway, sid, form, "We couldn't place your order. Please try again.")
	case errors.As(err, &failed):
		applog.Error(c, "checkout.fail", err, map[string]any{"stage": failed.Stage})
		return h.page(c, fiber.StatusBadGateway, sid, form, "We couldn't place your order. Please try again.")
	default:
		return err
	}

	applog.Audit(c, "order.place", map[string]any{
		"order_id":        rc.Order.ID,
		"customer_id":     rc.CustomerID,
		"reused_customer": rc.ReusedCustomer,
		"total":           rc.Order.TotalAmount,
		"missing":         len(rc.Missing),
		"payment":         rc.Payment,
	})
	return c.Redirect("/order/" + rc.Order.ID + "/placed")
}

// Placed shows the confirmation for the session's latest order. Other ids 404.
func (h *OrderHandler) Placed(c *fiber.Ctx) error {
	oid, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "Order not found")
	}
	sid := c.Cookies("sid")
	if sid == "" {
		return notFound(c, "Order not found")
	}
	po, err := h.Cart.LastOrder(c.UserContext(), sid, oid)
	if errors.Is(err, domain.ErrNotFound) {
		applog.Security(c, "access.denied.order", map[string]any{"order_id": oid})
		return notFound(c, "Order not found")
	}
	if err != nil {
		return err
	}
	return render(c, "order_placed", fiber.Map{"Order": po})
}
