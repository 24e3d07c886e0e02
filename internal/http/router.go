package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/JivkoJelev91/online-shop/internal/auth"
	"github.com/JivkoJelev91/online-shop/internal/user"
)

type RouterConfig struct {
	Logger   logrus.FieldLogger
	Tokens   *auth.TokenManager
	Users    user.Repository
	Registry *prometheus.Registry

	Auth     *AuthHandler
	Products *ProductHandler
	Cart     *CartHandler
	Orders   *OrderHandler
}

// NewRouter wires every handler behind the shared middleware stack. Public
// routes are the catalog reads and auth endpoints; everything else needs a
// bearer token, and admin routes additionally check the caller's role.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogger(cfg.Logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))

	authed := Authenticator(cfg.Tokens)
	adminOnly := RequireAdmin(cfg.Users)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", cfg.Auth.Register)
		r.Post("/login", cfg.Auth.Login)
		r.With(authed).Get("/profile", cfg.Auth.Profile)
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", cfg.Products.List)
		r.Get("/{productID}", cfg.Products.Get)

		r.Group(func(r chi.Router) {
			r.Use(authed, adminOnly)
			r.Post("/", cfg.Products.Create)
			r.Put("/{productID}", cfg.Products.Update)
			r.Delete("/{productID}", cfg.Products.Delete)
		})
	})

	r.Route("/cart", func(r chi.Router) {
		r.Use(authed)
		r.Get("/", cfg.Cart.List)
		r.Post("/", cfg.Cart.Add)
		r.Put("/{itemID}", cfg.Cart.Update)
		r.Delete("/{itemID}", cfg.Cart.Remove)
	})

	r.Group(func(r chi.Router) {
		r.Use(authed)
		r.Post("/checkout", cfg.Orders.Checkout)
		r.Get("/orders", cfg.Orders.ListMine)
	})

	r.Route("/admin/orders", func(r chi.Router) {
		r.Use(authed, adminOnly)
		r.Get("/", cfg.Orders.AdminList)
		r.Patch("/{orderID}/status", cfg.Orders.AdminUpdateStatus)
	})

	return r
}
