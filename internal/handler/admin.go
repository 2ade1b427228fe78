package handler

import (
	"net/http"

	"github.com/xenking/quickcart/internal/domain/coupon"
)

type generateDiscountRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Override bool   `json:"override"`
}

type generateDiscountResponse struct {
	CouponCode string `json:"coupon_code"`
}

// GenerateDiscount handles POST /admin/generate_discount.
func (h *Handler) GenerateDiscount(w http.ResponseWriter, r *http.Request) {
	var req generateDiscountRequest
	if err := h.decode(r, &req, false); err != nil {
		fail(w, r, err)
		return
	}
	c, err := h.coupons.Issue(r.Context(), coupon.IssueRequest{
		Email:    req.Email,
		Override: req.Override,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, generateDiscountResponse{CouponCode: c.Code})
}

// Stats handles GET /admin/stats. With ?email= it returns a single record.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if email := r.URL.Query().Get("email"); email != "" {
		st, err := h.stats.ByEmail(r.Context(), email)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
		return
	}

	all, err := h.stats.All(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}
