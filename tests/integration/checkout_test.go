//go:build integration

package integration

import (
	"net/http"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/xenking/quickcart/internal/model"
)

func TestCheckout_WithCoupon(t *testing.T) {
	reseed(t, nil)
	token := login(t, "bob@gmail.com", "33333333")

	resp := do(t, http.MethodPost, "/cart/add", token, map[string]int{"item_id": 1, "qty": 2})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add to cart: expected 200, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodPost, "/cart/checkout", token, map[string]string{"discount_code": "BOB10OFF"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("checkout: expected 200, got %d", resp.StatusCode)
	}
	o := decodeJSON[orderResponse](t, resp)
	if !o.Total.Equal(decimal.RequireFromString("898.2")) {
		t.Errorf("total: got %s, want 898.2", o.Total)
	}
	if !o.Discount.Equal(decimal.RequireFromString("99.8")) {
		t.Errorf("discount: got %s, want 99.8", o.Discount)
	}

	doc := loadDocument(t)
	if !doc.Coupons["BOB10OFF"].Used {
		t.Error("coupon not marked used")
	}
	if got := doc.Items[0].Stock; got != 8 {
		t.Errorf("stock: got %d, want 8", got)
	}
	bob := doc.Users["bob"]
	if bob.OrderCountUntilCoupon != 5 {
		t.Errorf("order_count_until_coupon: got %d, want 5", bob.OrderCountUntilCoupon)
	}
	if len(bob.Cart) != 0 {
		t.Errorf("cart not cleared: %v", bob.Cart)
	}
}

func TestCheckout_Rejected(t *testing.T) {
	reseed(t, nil)
	token := login(t, "alex@quicktest.com", "11111111")

	resp := do(t, http.MethodPost, "/cart/checkout", token, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if e := decodeJSON[errorResponse](t, resp); e.Reason != "empty_cart" {
		t.Errorf("reason: got %q, want empty_cart", e.Reason)
	}

	resp = do(t, http.MethodPost, "/cart/add", token, map[string]int{"item_id": 1, "qty": 1})
	resp.Body.Close()
	resp = do(t, http.MethodPost, "/cart/checkout", token, map[string]string{"discount_code": "BOB10OFF"})
	defer resp.Body.Close()
	if e := decodeJSON[errorResponse](t, resp); e.Reason != "coupon_not_owned" {
		t.Errorf("reason: got %q, want coupon_not_owned", e.Reason)
	}

	if doc := loadDocument(t); doc.Coupons["BOB10OFF"].Used || doc.Items[0].Stock != 10 {
		t.Error("rejected checkout changed the document")
	}
}

func TestCheckout_ConcurrentLastUnit(t *testing.T) {
	reseed(t, func(doc *model.Document) {
		doc.Items[1].Stock = 1
	})
	tokens := []string{
		login(t, "alex@quicktest.com", "11111111"),
		login(t, "bob@gmail.com", "33333333"),
	}
	for _, token := range tokens {
		resp := do(t, http.MethodPost, "/cart/add", token, map[string]int{"item_id": 2, "qty": 1})
		resp.Body.Close()
	}

	statuses := make([]int, len(tokens))
	var wg sync.WaitGroup
	for i, token := range tokens {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := do(t, http.MethodPost, "/cart/checkout", token, nil)
			resp.Body.Close()
			statuses[i] = resp.StatusCode
		}()
	}
	wg.Wait()

	var ok, rejected int
	for _, s := range statuses {
		switch s {
		case http.StatusOK:
			ok++
		case http.StatusBadRequest:
			rejected++
		}
	}
	if ok != 1 || rejected != 1 {
		t.Fatalf("expected one success and one rejection, got %v", statuses)
	}

	doc := loadDocument(t)
	if got := doc.Items[1].Stock; got != 0 {
		t.Errorf("stock: got %d, want 0", got)
	}
	if len(doc.Orders) != 1 {
		t.Errorf("orders: got %d, want 1", len(doc.Orders))
	}
}

func TestCheckout_ConcurrentCouponReplay(t *testing.T) {
	reseed(t, nil)
	token := login(t, "bob@gmail.com", "33333333")

	const attempts = 5
	statuses := make([]int, attempts)
	var wg sync.WaitGroup
	for i := range attempts {
		resp := do(t, http.MethodPost, "/cart/add", token, map[string]int{"item_id": 3, "qty": 1})
		resp.Body.Close()

		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := do(t, http.MethodPost, "/cart/checkout", token, map[string]string{"discount_code": "BOB10OFF"})
			resp.Body.Close()
			statuses[i] = resp.StatusCode
		}()
	}
	wg.Wait()

	doc := loadDocument(t)
	var redeemed int
	for _, o := range doc.Orders {
		if o.CouponCode == "BOB10OFF" {
			redeemed++
		}
	}
	if redeemed != 1 {
		t.Fatalf("coupon redeemed %d times, statuses %v", redeemed, statuses)
	}
}
