package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/quickcart/internal/model"
)

type userCtxKey struct{}

func withUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// userFrom returns the authenticated user stored by requireUser or requireAdmin.
func userFrom(ctx context.Context) *model.User {
	u, _ := ctx.Value(userCtxKey{}).(*model.User)
	return u
}

func (h *Handler) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := h.auth.ResolveUser(r.Context(), r.Header.Get(TokenHeader))
		if err != nil {
			fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(sessionContext(r.Context(), u)))
	})
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := h.auth.RequireAdmin(r.Context(), r.Header.Get(TokenHeader))
		if err != nil {
			fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(sessionContext(r.Context(), u)))
	})
}

func sessionContext(ctx context.Context, u *model.User) context.Context {
	lg := zctx.From(ctx).With(zap.String("username", u.Username))
	return withUser(zctx.Base(ctx, lg), u)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// userOut is the public view of a user. The password never leaves the server.
type userOut struct {
	ID          string           `json:"id"`
	Username    string           `json:"username"`
	Email       string           `json:"email"`
	OrdersCount int              `json:"orders_count"`
	TotalSpent  decimal.Decimal  `json:"total_spent"`
	Cart        []model.CartLine `json:"cart"`
	IsAdmin     bool             `json:"is_admin"`
}

type loginResponse struct {
	Token string  `json:"token"`
	User  userOut `json:"user"`
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decode(r, &req, false); err != nil {
		fail(w, r, err)
		return
	}

	token, u, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		fail(w, r, err)
		return
	}
	st, err := h.stats.ByEmail(r.Context(), u.Email)
	if err != nil {
		fail(w, r, err)
		return
	}

	out := userOut{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		OrdersCount: st.OrdersCount,
		TotalSpent:  u.TotalSpent,
		Cart:        u.Cart,
		IsAdmin:     u.IsAdmin,
	}
	if out.Cart == nil {
		out.Cart = []model.CartLine{}
	}

	w.Header().Set(TokenHeader, token)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: out})
}

// ListItems handles GET /items.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.List(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type addToCartRequest struct {
	ItemID int `json:"item_id" validate:"required,gt=0"`
	Qty    int `json:"qty" validate:"required,gt=0,lte=1000000"`
}

// AddToCart handles POST /cart/add.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if err := h.decode(r, &req, false); err != nil {
		fail(w, r, err)
		return
	}
	view, err := h.cart.Add(r.Context(), userFrom(r.Context()).Username, req.ItemID, req.Qty)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ViewCart handles GET /cart.
func (h *Handler) ViewCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.cart.View(r.Context(), userFrom(r.Context()).Username)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type checkoutRequest struct {
	DiscountCode string `json:"discount_code" validate:"omitempty,max=64"`
}

// Checkout handles POST /cart/checkout. The body is optional.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := h.decode(r, &req, true); err != nil {
		fail(w, r, err)
		return
	}
	o, err := h.orders.Checkout(r.Context(), userFrom(r.Context()).Username, req.DiscountCode)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
