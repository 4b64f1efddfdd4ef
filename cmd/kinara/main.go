package main

import (
	"context"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"kinara/internal/config"
	"kinara/internal/domain"
	"kinara/internal/events"
	"kinara/internal/firebaseauth"
	"kinara/internal/firestore"
	"kinara/internal/http/handlers"
	applog "kinara/internal/log"
	"kinara/internal/payment"
	"kinara/internal/repos"
	"kinara/internal/services"
	"kinara/internal/session"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	// Optional file logging
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		} else {
			mw := io.MultiWriter(os.Stdout, f)
			log.SetOutput(mw)
		}
	}

	// SQLite always holds back-office users and their sessions; with the
	// sqlite backend it also holds the catalog, customers and orders.
	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}

	backend := handlers.Backend{
		Sessions: openSessions(ctx, cfg, db),
		Gateway:  openGateway(cfg),
		Events:   openEvents(cfg),
	}

	var verifier services.TokenVerifier
	switch cfg.StoreBackend {
	case "firestore":
		fs, err := firestore.NewClient(ctx, cfg.FirestoreProjectID, cfg.FirestoreCredentialsFile)
		if err != nil {
			log.Fatal(err)
		}
		defer fs.Close()
		if err := fs.Ping(ctx); err != nil {
			applog.Error(nil, "firestore.ping.fail", err, nil)
		}
		backend.Store = firestore.NewStore(fs.Client)

		v, err := firebaseauth.New(ctx, cfg.FirebaseProjectID, cfg.FirestoreCredentialsFile)
		if err != nil {
			applog.Error(nil, "firebase.init.fail", err, nil)
		} else {
			verifier = v
		}
	case "sqlite":
		backend.Store = repos.NewStore(db)
	default:
		log.Fatalf("[config] unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	// Auth wiring
	userRepo := repos.NewUserRepo(db)
	authSvc := services.NewAuthService(userRepo, verifier)
	authSvc.OnSessionChange(func(sid string, u *domain.User) {
		if u == nil {
			applog.Audit(nil, "session.signed_out", map[string]any{"sid": sid})
			return
		}
		applog.Audit(nil, "session.signed_in", map[string]any{"sid": sid, "user_id": u.ID, "role": u.Role})
	})

	// Templates & app
	engine := handlers.NewViews("./web/templates")
	engine.Reload(true)

	app := fiber.New(fiber.Config{
		Views: engine,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Log and show a friendly message
			applog.Error(c, "server.error", err, nil)
			// Avoid leaking internals; best-effort render
			if rerr := c.Status(fiber.StatusInternalServerError).Render("notfound", fiber.Map{
				"Message": "Something went wrong. Please try again.",
			}); rerr != nil {
				return c.Status(fiber.StatusInternalServerError).SendString("Something went wrong. Please try again.")
			}
			return nil
		},
	})
	// Global body size guard
	app.Server().MaxRequestBodySize = 1 << 20 // 1 MiB

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New(helmet.Config{
		// product images are stored as data URLs
		ContentSecurityPolicy: "default-src 'self'; img-src 'self' data: https:",
	}))
	app.Use(handlers.AttachUser(authSvc))
	app.Use(limiter.New(limiter.Config{
		Max:        60,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(string(c.Request().URI().Path()), "/static/")
		},
	}))
	app.Use(csrf.New(csrf.Config{
		KeyLookup:      "form:csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		CookieSecure:   false, // set true behind HTTPS
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			formTok := c.FormValue("csrf")
			applog.Security(c, "csrf.fail", map[string]any{"form": formTok})
			return c.Status(fiber.StatusForbidden).Render("notfound", fiber.Map{"Message": "Security check failed. Please refresh and try again."})
		},
	}))
	app.Use(func(c *fiber.Ctx) error {
		if tok := c.Locals("csrf"); tok != nil {
			c.Locals("CSRFToken", tok.(string))
		}
		return c.Next()
	})

	// ---------- Static assets ----------
	log.Printf("[static] /static -> ./web/static")
	app.Static("/static", "./web/static")

	// ---------- App handlers ----------
	handlers.Register(app, handlers.NewDeps(backend, cfg, authSvc))

	log.Fatal(app.Listen(":" + cfg.Port))
}

// openSessions picks Redis when REDIS_ADDR is set and the SQLite carts table
// otherwise. The SQLite store is pruned of idle sessions every hour.
func openSessions(ctx context.Context, cfg config.Config, db *sqlx.DB) session.Store {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatalf("[session] redis %s unreachable: %v", cfg.RedisAddr, err)
		}
		log.Printf("[session] redis %s ttl=%s", cfg.RedisAddr, cfg.SessionTTL)
		return session.NewRedisStore(client, cfg.SessionTTL)
	}

	carts := repos.NewCartRepo(db)
	go func() {
		t := time.NewTicker(time.Hour)
		defer t.Stop()
		for range t.C {
			n, err := carts.PruneIdle(ctx, time.Now().Add(-cfg.SessionTTL))
			if err != nil {
				applog.Error(nil, "session.prune.fail", err, nil)
				continue
			}
			if n > 0 {
				applog.Info(nil, "session.prune", map[string]any{"removed": n})
			}
		}
	}()
	log.Printf("[session] sqlite carts table ttl=%s", cfg.SessionTTL)
	return carts
}

func openGateway(cfg config.Config) payment.Gateway {
	if cfg.PaymentGateway != "mpesa" {
		return payment.Stub{}
	}
	return payment.NewMpesa(payment.MpesaConfig{
		BaseURL:        cfg.MpesaBaseURL,
		ConsumerKey:    cfg.MpesaConsumerKey,
		ConsumerSecret: cfg.MpesaConsumerSecret,
		ShortCode:      cfg.MpesaShortCode,
		Passkey:        cfg.MpesaPasskey,
		CallbackURL:    cfg.MpesaCallbackURL,
	})
}

// openEvents falls back to dropping events when the broker is unset or down.
func openEvents(cfg config.Config) events.Publisher {
	if cfg.AMQPURL == "" {
		return events.Nop{}
	}
	pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		applog.Error(nil, "events.connect.fail", err, map[string]any{"exchange": cfg.AMQPExchange})
		return events.Nop{}
	}
	return pub
}
