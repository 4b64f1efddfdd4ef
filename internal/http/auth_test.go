package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"golang.org/x/crypto/bcrypt"

	"kinara/internal/http/handlers"
	"kinara/internal/repos"
	"kinara/internal/services"
)

func extractCookieAuth(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// seeded passwords are hashed, never plaintext
func TestPasswordsSeededAreHashed(t *testing.T) {
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	var hashes []string
	if err := db.Select(&hashes, `SELECT password_hash FROM users`); err != nil {
		t.Fatalf("select hashes: %v", err)
	}
	if len(hashes) == 0 {
		t.Fatal("no users seeded")
	}
	for _, h := range hashes {
		if strings.Contains(h, "Passw0rd!") {
			t.Fatalf("hash contains plaintext password")
		}
		if !strings.HasPrefix(h, "$2") {
			t.Fatalf("unexpected hash format: %s", h)
		}
		if err := bcrypt.CompareHashAndPassword([]byte(h), []byte("Passw0rd!")); err != nil {
			t.Fatalf("seed hash does not validate known password: %v", err)
		}
	}
}

// login throttling + success/fail paths
func TestLoginSuccessFailAndThrottle(t *testing.T) {
	// Minimal app with real login handler and per-route limiter
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	userRepo := repos.NewUserRepo(db)
	authSvc := services.NewAuthService(userRepo, nil)
	authH := &handlers.AuthHandler{Auth: authSvc}
	app := fiber.New(fiber.Config{Views: handlers.NewViews("../../web/templates")})
	app.Use(csrf.New(csrf.Config{KeyLookup: "form:csrf", CookieName: "csrf_", CookieSameSite: "Lax"}))

	app.Get("/login", authH.LoginForm)
	app.Post("/login", limiter.New(limiter.Config{Max: 3, Expiration: time.Minute}), authH.Login)

	// fetch csrf token
	respLogin, _ := app.Test(httptest.NewRequest("GET", "/login", nil))
	csrfTok := extractCookieAuth(respLogin, "csrf_")
	if csrfTok == "" {
		t.Fatal("csrf token missing")
	}

	login := func(email, pass string) *http.Response {
		form := strings.NewReader("csrf=" + csrfTok + "&email=" + email + "&password=" + pass)
		req := httptest.NewRequest("POST", "/login", form)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.AddCookie(&http.Cookie{Name: "csrf_", Value: csrfTok})
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatal(err)
		}
		return resp
	}

	// bad password -> 401
	if resp := login("staff@kinara.test", "Wrongpass1!"); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad creds, got %d", resp.StatusCode)
	}

	// staff -> storefront
	respStaff := login("staff@kinara.test", "Passw0rd!")
	if respStaff.StatusCode != http.StatusFound || respStaff.Header.Get("Location") != "/" {
		t.Fatalf("expected redirect to / for staff, got %d %q", respStaff.StatusCode, respStaff.Header.Get("Location"))
	}
	if extractCookieAuth(respStaff, "sid") == "" {
		t.Fatal("login did not set a session cookie")
	}

	// admin -> back office
	respAdmin := login("admin@kinara.test", "Passw0rd!")
	if respAdmin.StatusCode != http.StatusFound || respAdmin.Header.Get("Location") != "/admin" {
		t.Fatalf("expected redirect to /admin for admin, got %d %q", respAdmin.StatusCode, respAdmin.Header.Get("Location"))
	}

	// throttled after 3 attempts
	if resp := login("staff@kinara.test", "Wrongpass1!"); resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after throttle, got %d", resp.StatusCode)
	}
}

func TestFirebaseLoginDisabledWithoutVerifier(t *testing.T) {
	s := newShopApp(t, nil)
	tok := s.csrf(t)
	resp := s.post(t, "/login/firebase", tok, "", map[string][]string{"id_token": {"eyJhbGciOi"}})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 when Firebase sign-in is off, got %d", resp.StatusCode)
	}
}

func TestLogoutUnbindsSession(t *testing.T) {
	s := newShopApp(t, nil)
	tok := s.csrf(t)
	_ = s.users.BindSession("sid-admin", "u-admin")

	resp := s.post(t, "/logout", tok, "sid-admin", map[string][]string{})
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected redirect after logout, got %d", resp.StatusCode)
	}
	if u, err := s.users.SessionUser("sid-admin"); err == nil && u != nil {
		t.Fatalf("session still bound to %s", u.ID)
	}
}
