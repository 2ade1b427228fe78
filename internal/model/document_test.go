package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDocument = `{
  "users": {
    "alex": {
      "id": "u1",
      "username": "alex",
      "email": "alex@quicktest.com",
      "password": "11111111",
      "is_admin": false,
      "cart": [{"item_id": 1, "qty": 2}],
      "order_count_until_coupon": 3,
      "total_spent": 998.0
    }
  },
  "items": [
    {"id": 1, "name": "Keyboard", "price": 499.0, "stock": 10},
    {"id": 2, "name": "Mouse", "price": 349.0, "stock": 4}
  ],
  "orders": [
    {"id": "order-alex-1", "username": "alex", "items": [{"item_id": 1, "qty": 2}],
     "subtotal": 998.0, "discount": 0.0, "total": 998.0}
  ],
  "coupons": {
    "AB12CD34": {"user_id": "u1", "percent_discount": 10, "used": false, "expires_on": "2026-01-01"}
  },
  "config": {"nth_order": 5, "coupon_percent": 10}
}`

func TestDecode(t *testing.T) {
	doc, err := Decode([]byte(sampleDocument))
	require.NoError(t, err)

	require.Contains(t, doc.Users, "alex")
	alex := doc.Users["alex"]
	assert.Equal(t, []CartLine{{ItemID: 1, Qty: 2}}, alex.Cart)
	assert.True(t, decimal.NewFromInt(998).Equal(alex.TotalSpent))

	require.Len(t, doc.Items, 2)
	assert.True(t, decimal.NewFromInt(499).Equal(doc.Items[0].Price))

	c := doc.Coupons["AB12CD34"]
	require.NotNil(t, c)
	assert.Equal(t, "AB12CD34", c.Code)
	assert.Equal(t, "2026-01-01", c.ExpiresOn.String())

	assert.Equal(t, Policy{NthOrder: 5, CouponPercent: 10}, doc.Config)
	assert.Equal(t, "order-alex-1", doc.Orders[0].ID)
}

func TestDecode_EmptyCollections(t *testing.T) {
	doc, err := Decode([]byte(`{"config": {"nth_order": 3, "coupon_percent": 5}}`))
	require.NoError(t, err)
	assert.NotNil(t, doc.Users)
	assert.NotNil(t, doc.Coupons)
	assert.Empty(t, doc.Items)
	assert.Empty(t, doc.Orders)
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "negative stock", data: `{"items": [{"id": 1, "name": "A", "price": 1, "stock": -1}]}`},
		{name: "negative price", data: `{"items": [{"id": 1, "name": "A", "price": -1, "stock": 1}]}`},
		{name: "duplicate item id", data: `{"items": [
			{"id": 1, "name": "A", "price": 1, "stock": 1},
			{"id": 1, "name": "B", "price": 1, "stock": 1}]}`},
		{name: "user key mismatch", data: `{"users": {"alex": {"id": "u1", "username": "bob", "email": "bob@example.com"}}}`},
		{name: "null user", data: `{"users": {"alex": null}}`},
		{name: "bad email", data: `{"users": {"alex": {"id": "u1", "username": "alex", "email": "nope"}}}`},
		{name: "zero cart qty", data: `{"users": {"alex": {"id": "u1", "username": "alex", "email": "a@example.com",
			"cart": [{"item_id": 1, "qty": 0}]}}}`},
		{name: "percent over 100", data: `{"coupons": {"X": {"user_id": "u1", "percent_discount": 150}}}`},
		{name: "coupon without owner", data: `{"coupons": {"X": {"percent_discount": 10}}}`},
		{name: "duplicate email", data: `{"users": {
			"alex": {"id": "u1", "username": "alex", "email": "same@example.com"},
			"bob": {"id": "u2", "username": "bob", "email": "same@example.com"}}}`},
		{name: "negative counter", data: `{"users": {"alex": {"id": "u1", "username": "alex", "email": "a@example.com",
			"order_count_until_coupon": -1}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			require.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode([]byte(`{"items": [`))
	require.Error(t, err)

	_, err = Decode([]byte(`{"coupons": {"X": {"user_id": "u1", "expires_on": "01/01/2026"}}}`))
	require.Error(t, err)
}

func TestDocument_EncodeDecode(t *testing.T) {
	doc, err := Decode([]byte(sampleDocument))
	require.NoError(t, err)

	data, err := doc.Encode()
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"Code"`)
	assert.Contains(t, string(data), `"expires_on": "2026-01-01"`)

	again, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, doc.Coupons["AB12CD34"].ExpiresOn, again.Coupons["AB12CD34"].ExpiresOn)
	assert.Equal(t, doc.Users["alex"].Cart, again.Users["alex"].Cart)
}

func TestDocument_Clone(t *testing.T) {
	doc, err := Decode([]byte(sampleDocument))
	require.NoError(t, err)
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	doc.Orders[0].CreatedAt = &created
	doc.Version = 7

	cp := doc.Clone()
	assert.Equal(t, doc, cp)

	cp.Users["alex"].Cart[0].Qty = 99
	cp.Users["alex"].OrderCountUntilCoupon = 0
	cp.Items[0].Stock = 0
	cp.Orders[0].Items[0].Qty = 99
	*cp.Orders[0].CreatedAt = created.Add(time.Hour)
	cp.Coupons["AB12CD34"].Used = true

	assert.Equal(t, 2, doc.Users["alex"].Cart[0].Qty)
	assert.Equal(t, 3, doc.Users["alex"].OrderCountUntilCoupon)
	assert.Equal(t, 10, doc.Items[0].Stock)
	assert.Equal(t, 2, doc.Orders[0].Items[0].Qty)
	assert.Equal(t, created, *doc.Orders[0].CreatedAt)
	assert.False(t, doc.Coupons["AB12CD34"].Used)
	assert.Equal(t, int64(7), cp.Version)
}

func TestDocument_Lookups(t *testing.T) {
	doc, err := Decode([]byte(sampleDocument))
	require.NoError(t, err)

	assert.Equal(t, "alex", doc.UserByEmail("alex@quicktest.com").Username)
	assert.Nil(t, doc.UserByEmail("ghost@example.com"))
	assert.Equal(t, "alex", doc.UserByID("u1").Username)
	assert.Nil(t, doc.UserByID("u9"))
}

func TestNewDate(t *testing.T) {
	d := NewDate(time.Date(2025, 12, 31, 23, 30, 0, 0, time.FixedZone("X", -2*3600)))
	assert.Equal(t, "2026-01-01", d.String())
	assert.Empty(t, Date{}.String())

	data, err := Date{}.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}
