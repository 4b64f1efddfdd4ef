package handlers

import (
	"strings"
	"time"

	"kinara/internal/log"
	"kinara/internal/services"
	"kinara/internal/validate"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type AuthHandler struct {
	Auth *services.AuthService
	// FirebaseEnabled shows the Firebase sign-in form and serves /login/firebase.
	FirebaseEnabled bool
}

func ensureSID(c *fiber.Ctx) string {
	sid := c.Cookies("sid")
	if sid == "" {
		sid = uuid.NewString()
		c.Cookie(&fiber.Cookie{
			Name:     "sid",
			Value:    sid,
			Path:     "/",
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
			Secure:   false, // enable true behind TLS
		})
	}
	return sid
}

func (h *AuthHandler) loginPage(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).Render("login", fiber.Map{
		"Err":             msg,
		"CSRFToken":       c.Cookies("csrf_"),
		"FirebaseEnabled": h.FirebaseEnabled,
	})
}

func (h *AuthHandler) LoginForm(c *fiber.Ctx) error {
	return render(c, "login", fiber.Map{"Err": "", "FirebaseEnabled": h.FirebaseEnabled})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	sid := ensureSID(c)
	email := c.FormValue("email")
	pass := c.FormValue("password")
	if _, ok := validate.Email(email); !ok {
		log.Security(c, "auth.login.fail", map[string]any{"email": email, "reason": "bad_format"})
		return h.loginPage(c, fiber.StatusUnauthorized, "Invalid email or password")
	}
	if !validate.Password(pass) {
		log.Security(c, "auth.login.fail", map[string]any{"email": email, "reason": "bad_password_format"})
		return h.loginPage(c, fiber.StatusUnauthorized, "Invalid email or password")
	}

	u, err := h.Auth.Login(sid, email, pass)
	if err != nil {
		log.Security(c, "auth.login.fail", map[string]any{"email": email})
		return h.loginPage(c, fiber.StatusUnauthorized, "Invalid email or password")
	}

	log.Audit(c, "auth.login.success", map[string]any{"email": email, "role": u.Role})
	if u.IsAdmin() {
		return c.Redirect("/admin")
	}
	return c.Redirect("/")
}

// FirebaseLogin accepts an ID token from the Firebase web SDK, either as the
// id_token form field or as a bearer Authorization header.
func (h *AuthHandler) FirebaseLogin(c *fiber.Ctx) error {
	if !h.FirebaseEnabled {
		return notFound(c, "Page not found")
	}
	sid := ensureSID(c)
	tok := strings.TrimSpace(c.FormValue("id_token"))
	if tok == "" {
		tok = strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	}
	if tok == "" {
		log.Security(c, "auth.firebase.fail", map[string]any{"reason": "missing_token"})
		return h.loginPage(c, fiber.StatusUnauthorized, "Sign-in failed")
	}
	u, err := h.Auth.LoginWithToken(c.UserContext(), sid, tok)
	if err != nil {
		log.Security(c, "auth.firebase.fail", map[string]any{"err": err.Error()})
		return h.loginPage(c, fiber.StatusUnauthorized, "Sign-in failed")
	}
	log.Audit(c, "auth.firebase.success", map[string]any{"email": u.Email, "user_id": u.ID})
	return c.Redirect("/admin")
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sid := ensureSID(c)
	_ = h.Auth.Logout(sid)
	// Expire cookie
	c.Cookie(&fiber.Cookie{
		Name:     "sid",
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   false,
		Expires:  time.Now().Add(-1 * time.Hour),
	})
	log.Audit(c, "auth.logout", map[string]any{"sid": sid})
	return c.Redirect("/")
}
