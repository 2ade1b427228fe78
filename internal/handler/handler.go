// Package handler exposes the domain services over HTTP.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/quickcart/internal/domain/auth"
	"github.com/xenking/quickcart/internal/domain/cart"
	"github.com/xenking/quickcart/internal/domain/catalog"
	"github.com/xenking/quickcart/internal/domain/coupon"
	"github.com/xenking/quickcart/internal/domain/order"
	"github.com/xenking/quickcart/internal/domain/stats"
)

// TokenHeader carries the session token in requests and the login response.
const TokenHeader = "X-Token"

// Services groups the domain services served by the Handler.
type Services struct {
	Auth    *auth.Service
	Catalog *catalog.Service
	Cart    *cart.Service
	Orders  *order.Service
	Coupons *coupon.Issuer
	Stats   *stats.Service
}

// Handler serves the HTTP API.
type Handler struct {
	auth    *auth.Service
	catalog *catalog.Service
	cart    *cart.Service
	orders  *order.Service
	coupons *coupon.Issuer
	stats   *stats.Service

	validate *validator.Validate
}

// NewHandler creates a Handler over the given services.
func NewHandler(s Services) *Handler {
	return &Handler{
		auth:     s.Auth,
		catalog:  s.Catalog,
		cart:     s.Cart,
		orders:   s.Orders,
		coupons:  s.Coupons,
		stats:    s.Stats,
		validate: newValidator(),
	}
}

// Router returns the API routes.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	r.Post("/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(h.requireUser)
		r.Get("/items", h.ListItems)
		r.Post("/cart/add", h.AddToCart)
		r.Get("/cart", h.ViewCart)
		r.Post("/cart/checkout", h.Checkout)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Post("/generate_discount", h.GenerateDiscount)
		r.Get("/stats", h.Stats)
	})

	return r
}
