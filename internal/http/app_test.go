package handlers_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jmoiron/sqlx"

	"kinara/internal/config"
	"kinara/internal/domain"
	"kinara/internal/events"
	"kinara/internal/http/handlers"
	"kinara/internal/payment"
	"kinara/internal/repos"
	"kinara/internal/services"
)

const templatesDir = "../../web/templates"

// shopApp is the full route table over an in-memory SQLite backend.
type shopApp struct {
	app   *fiber.App
	db    *sqlx.DB
	store *repos.Store
	users *repos.UserRepo
}

// newShopApp mounts every route. wrap, when set, replaces the record store
// the handlers see.
func newShopApp(t *testing.T, wrap func(*repos.Store) services.Store) *shopApp {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := repos.NewStore(db)
	var backendStore services.Store = store
	if wrap != nil {
		backendStore = wrap(store)
	}
	userRepo := repos.NewUserRepo(db)
	authSvc := services.NewAuthService(userRepo, nil)

	app := fiber.New(fiber.Config{Views: handlers.NewViews(templatesDir)})
	app.Server().MaxRequestBodySize = 1 << 20
	app.Use(requestid.New())
	app.Use(handlers.AttachUser(authSvc))
	app.Use(csrf.New(csrf.Config{KeyLookup: "form:csrf", CookieName: "csrf_", CookieSameSite: "Lax"}))

	cfg := config.Config{CheckoutSubmission: "compensate"}
	handlers.Register(app, handlers.NewDeps(handlers.Backend{
		Store:    backendStore,
		Sessions: repos.NewCartRepo(db),
		Gateway:  payment.Stub{},
		Events:   events.Nop{},
	}, cfg, authSvc))

	return &shopApp{app: app, db: db, store: store, users: userRepo}
}

func cookieValue(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func (s *shopApp) csrf(t *testing.T) string {
	t.Helper()
	resp, err := s.app.Test(httptest.NewRequest("GET", "/login", nil))
	if err != nil {
		t.Fatal(err)
	}
	tok := cookieValue(resp, "csrf_")
	if tok == "" {
		t.Fatal("csrf token missing")
	}
	return tok
}

func (s *shopApp) post(t *testing.T, path, csrfTok, sid string, form url.Values) *http.Response {
	t.Helper()
	form.Set("csrf", csrfTok)
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "csrf_", Value: csrfTok})
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func (s *shopApp) get(t *testing.T, path, sid string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

// fillCart adds products to a fresh session and returns its sid.
func (s *shopApp) fillCart(t *testing.T, csrfTok string, items map[string]string) string {
	t.Helper()
	sid := ""
	for id, qty := range items {
		resp := s.post(t, "/cart", csrfTok, sid, url.Values{"productId": {id}, "qty": {qty}})
		if resp.StatusCode != http.StatusFound {
			t.Fatalf("add %s: status %d", id, resp.StatusCode)
		}
		if sid == "" {
			sid = cookieValue(resp, "sid")
		}
	}
	if sid == "" {
		t.Fatal("sid not set after cart add")
	}
	return sid
}

func checkoutForm() url.Values {
	return url.Values{
		"full_name":    {"Grace Wanjiru"},
		"phone":        {"0712 345 678"},
		"mpesa_number": {"0712 345 678"},
		"location":     {"Westlands, Mpaka Rd"},
	}
}

// brokenOrders fails every order write, as a store that dropped its connection would.
type brokenOrders struct{ *repos.Store }

func (brokenOrders) CreateOrder(context.Context, domain.Order) (string, error) {
	return "", errors.New("orders table locked: deadline exceeded at 10.0.3.7")
}

func readBody(resp *http.Response) string {
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}
