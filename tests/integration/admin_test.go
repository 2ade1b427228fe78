//go:build integration

package integration

import (
	"net/http"
	"regexp"
	"testing"
)

var couponCodePattern = regexp.MustCompile(`^[0-9A-F]{8}$`)

type statsResponse struct {
	Username            string `json:"username"`
	Email               string `json:"email"`
	OrdersCount         int    `json:"orders_count"`
	ItemsPurchasedCount int    `json:"items_purchased_count"`
	Coupons             []struct {
		Code string `json:"code"`
		Used bool   `json:"used"`
	} `json:"coupons"`
}

func TestAdmin_RequiresAdmin(t *testing.T) {
	reseed(t, nil)
	token := login(t, "alex@quicktest.com", "11111111")

	resp := do(t, http.MethodGet, "/admin/stats", token, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, "/admin/stats", "", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestAdmin_GenerateDiscountAfterNthOrder(t *testing.T) {
	reseed(t, nil)
	admin := login(t, "ananth@gmail.com", "22222222")
	bob := login(t, "bob@gmail.com", "33333333")

	// Bob starts four orders in; the fifth makes him eligible.
	resp := do(t, http.MethodPost, "/admin/generate_discount", admin, map[string]any{"email": "bob@gmail.com"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 before the fifth order, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodPost, "/cart/add", bob, map[string]int{"item_id": 3, "qty": 2})
	resp.Body.Close()
	resp = do(t, http.MethodPost, "/cart/checkout", bob, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("checkout: expected 200, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodPost, "/admin/generate_discount", admin, map[string]any{"email": "bob@gmail.com"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate: expected 200, got %d", resp.StatusCode)
	}
	code := decodeJSON[struct {
		CouponCode string `json:"coupon_code"`
	}](t, resp).CouponCode
	if !couponCodePattern.MatchString(code) {
		t.Fatalf("unexpected coupon code %q", code)
	}

	if got := loadDocument(t).Users["bob"].OrderCountUntilCoupon; got != 0 {
		t.Errorf("order_count_until_coupon: got %d, want 0", got)
	}

	resp = do(t, http.MethodGet, "/admin/stats?email=bob@gmail.com", admin, nil)
	defer resp.Body.Close()
	st := decodeJSON[statsResponse](t, resp)
	if st.OrdersCount != 1 || st.ItemsPurchasedCount != 2 {
		t.Errorf("stats: got %d orders and %d items, want 1 and 2", st.OrdersCount, st.ItemsPurchasedCount)
	}
	if len(st.Coupons) != 2 {
		t.Errorf("coupons: got %d, want 2", len(st.Coupons))
	}
}
