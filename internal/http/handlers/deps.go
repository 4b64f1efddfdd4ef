package handlers

import (
	"kinara/internal/config"
	"kinara/internal/events"
	applog "kinara/internal/log"
	"kinara/internal/payment"
	"kinara/internal/services"
	"kinara/internal/session"
)

// Backend is what main picks per deployment: the record store, the session
// store, the payment gateway and the event publisher.
type Backend struct {
	Store    services.Store
	Sessions session.Store
	Gateway  payment.Gateway
	Events   events.Publisher
}

type Deps struct {
	Auth *services.AuthService
	Cart *services.CartService

	AuthHandler      *AuthHandler
	CategoryHandler  *CategoryHandler
	ProductHandler   *ProductHandler
	InventoryHandler *InventoryHandler
	CartHandler      *CartHandler
	OrderHandler     *OrderHandler
	AdminHandler     *AdminHandler
}

func reconcilerConfig(cfg config.Config) services.ReconcilerConfig {
	strategy, ok := services.ParseSubmissionStrategy(cfg.CheckoutSubmission)
	if !ok {
		applog.Info(nil, "config.checkout_submission.fallback", map[string]any{
			"value": cfg.CheckoutSubmission, "use": services.Compensate,
		})
		strategy = services.Compensate
	}
	return services.ReconcilerConfig{
		Strategy: strategy,
		Dedupe:   cfg.CustomerDedupe,
		Home:     services.HomeMarket{City: cfg.HomeCity, State: cfg.HomeState, Country: cfg.HomeCountry},
	}
}

func NewDeps(b Backend, cfg config.Config, auth *services.AuthService) *Deps {
	catalogSvc := services.NewCatalogService(b.Store, b.Store)
	cartSvc := services.NewCartService(b.Sessions, catalogSvc)
	rec := services.NewReconciler(b.Store, b.Gateway, b.Events, reconcilerConfig(cfg))
	checkoutSvc := services.NewCheckoutService(b.Sessions, rec, cfg.StrictResolution)
	orderSvc := services.NewOrderService(b.Store, b.Store)
	productSvc := services.NewProductService(b.Store)
	customerSvc := services.NewCustomerService(b.Store)
	reportSvc := services.NewReportService(b.Store, b.Store)

	return &Deps{
		Auth: auth,
		Cart: cartSvc,

		AuthHandler:      &AuthHandler{Auth: auth, FirebaseEnabled: auth != nil && auth.Verifier != nil},
		CategoryHandler:  &CategoryHandler{Catalog: catalogSvc, Cart: cartSvc},
		ProductHandler:   &ProductHandler{Catalog: catalogSvc, Cart: cartSvc},
		InventoryHandler: &InventoryHandler{Catalog: catalogSvc},
		CartHandler:      &CartHandler{Cart: cartSvc},
		OrderHandler:     &OrderHandler{Cart: cartSvc, Checkout: checkoutSvc},
		AdminHandler: &AdminHandler{
			Reports:   reportSvc,
			Orders:    orderSvc,
			Products:  productSvc,
			Customers: customerSvc,
			Catalog:   catalogSvc,
		},
	}
}
