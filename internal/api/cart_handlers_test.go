package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-bff/internal/models"
)

func TestCartLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[cartView](t, rec)
	assert.Empty(t, v.Items)
	assert.Zero(t, v.Count)

	rec = env.do(t, http.MethodPost, "/api/cart/items", `{"itemId":"m1","quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = env.do(t, http.MethodPost, "/api/cart/items", `{"itemId":"m2"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	v = decode[cartView](t, rec)
	assert.Equal(t, "r1", v.RestaurantID)
	assert.Equal(t, "Pho Place", v.RestaurantName)
	assert.Equal(t, 3, v.Count)
	assert.InDelta(t, 23.0, v.Subtotal, 1e-9)

	rec = env.do(t, http.MethodPatch, "/api/cart/items/m1", `{"quantity":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decode[cartView](t, rec).Count)

	rec = env.do(t, http.MethodDelete, "/api/cart/items/m2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[cartView](t, rec).Count)

	rec = env.do(t, http.MethodDelete, "/api/cart", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/cart", "")
	assert.Zero(t, decode[cartView](t, rec).Count)
}

func TestCartSwitchesRestaurant(t *testing.T) {
	env := newTestEnv(t)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/cart/items", `{"itemId":"m1"}`).Code)
	rec := env.do(t, http.MethodPost, "/api/cart/items", `{"itemId":"m3","quantity":4}`)
	require.Equal(t, http.StatusOK, rec.Code)

	v := decode[cartView](t, rec)
	assert.Equal(t, "r2", v.RestaurantID)
	require.Len(t, v.Items, 1)
	assert.Equal(t, "m3", v.Items[0].ItemID)
	assert.Equal(t, 4, v.Count)
}

func TestCartErrors(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"missing item id", http.MethodPost, "/api/cart/items", `{"quantity":1}`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/cart/items", `{"itemId":"m1","qty":1}`, http.StatusBadRequest},
		{"zero quantity", http.MethodPost, "/api/cart/items", `{"itemId":"m1","quantity":0}`, http.StatusBadRequest},
		{"unknown item", http.MethodPost, "/api/cart/items", `{"itemId":"zzz"}`, http.StatusNotFound},
		{"unavailable item", http.MethodPost, "/api/cart/items", `{"itemId":"m4"}`, http.StatusConflict},
		{"update missing line", http.MethodPatch, "/api/cart/items/m1", `{"quantity":2}`, http.StatusNotFound},
		{"update without quantity", http.MethodPatch, "/api/cart/items/m1", `{}`, http.StatusBadRequest},
		{"remove missing line", http.MethodDelete, "/api/cart/items/m1", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestCheckout(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/orders", "")
	assert.Equal(t, http.StatusConflict, rec.Code, "empty cart")

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/cart/items", `{"itemId":"m1","quantity":2}`).Code)

	rec = env.do(t, http.MethodPost, "/api/orders", `{"deliveryAddress":"1 Main St"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	o := decode[models.Order](t, rec)
	assert.Equal(t, "o-new", o.ID)
	assert.InDelta(t, 19.0, o.Total, 1e-9)

	require.Len(t, env.backend.placed, 1)
	assert.Equal(t, "u1", env.backend.placed[0].UserID)
	assert.Equal(t, "1 Main St", env.backend.placed[0].DeliveryAddress)

	rec = env.do(t, http.MethodGet, "/api/cart", "")
	assert.Zero(t, decode[cartView](t, rec).Count, "cart is emptied after checkout")
}

func TestCartRejectsHugeQuantity(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/cart/items", `{"itemId":"m1","quantity":9223372036854775807}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/cart/items", `{"itemId":"m1","quantity":99}`).Code)
	rec = env.do(t, http.MethodPost, "/api/cart/items", `{"itemId":"m1","quantity":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPatch, "/api/cart/items/m1", `{"quantity":1000}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/cart", "")
	assert.Equal(t, 99, decode[cartView](t, rec).Count)
}
