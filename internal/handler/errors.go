package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/quickcart/internal/domain/auth"
	"github.com/xenking/quickcart/internal/domain/cart"
	"github.com/xenking/quickcart/internal/domain/catalog"
	"github.com/xenking/quickcart/internal/domain/coupon"
	"github.com/xenking/quickcart/internal/domain/order"
	"github.com/xenking/quickcart/internal/domain/user"
)

// apiError is a classified error ready to be written.
type apiError struct {
	status  int
	reason  string
	message string
}

// sentinels maps sentinel errors to their response.
var sentinels = []struct {
	err    error
	status int
	reason string
}{
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized"},
	{auth.ErrForbidden, http.StatusForbidden, "forbidden"},
	{order.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},
	{cart.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{coupon.ErrNotFound, http.StatusBadRequest, "coupon_not_found"},
	{coupon.ErrAlreadyUsed, http.StatusBadRequest, "coupon_already_used"},
	{coupon.ErrNotOwned, http.StatusBadRequest, "coupon_not_owned"},
	{coupon.ErrNotEligible, http.StatusBadRequest, "not_eligible"},
	{user.ErrNotFound, http.StatusNotFound, "user_not_found"},
}

// classify maps domain errors to a status, a stable reason and a message
// that is safe to show. Unknown errors become 500 with a generic message.
func classify(err error) apiError {
	var (
		unauthorized *auth.UnauthorizedError
		notFound     *catalog.ItemNotFoundError
		stock        *order.InsufficientStockError
		quantity     *order.InvalidQuantityError
		bad          *badRequestError
	)
	switch {
	case errors.As(err, &unauthorized):
		return apiError{http.StatusUnauthorized, "unauthorized", unauthorized.Reason}
	case errors.As(err, &notFound):
		return apiError{http.StatusNotFound, "item_not_found", notFound.Error()}
	case errors.As(err, &stock):
		return apiError{http.StatusBadRequest, "insufficient_stock", stock.Error()}
	case errors.As(err, &quantity):
		return apiError{http.StatusBadRequest, "invalid_quantity", quantity.Error()}
	case errors.As(err, &bad):
		return apiError{http.StatusBadRequest, "invalid_request", bad.Error()}
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return apiError{s.status, s.reason, s.err.Error()}
		}
	}
	return apiError{http.StatusInternalServerError, "internal_error", "internal server error"}
}

// fail writes err as an error response. 500s are logged with the full chain.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	e := classify(err)
	if e.status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, e.status, e.reason, e.message)
}
