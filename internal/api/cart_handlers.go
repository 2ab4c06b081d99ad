package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"storefront-bff/internal/cart"
)

type cartView struct {
	RestaurantID   string      `json:"restaurantId,omitempty"`
	RestaurantName string      `json:"restaurantName,omitempty"`
	Items          []cart.Line `json:"items"`
	Count          int         `json:"count"`
	Subtotal       float64     `json:"subtotal"`
	UpdatedAt      *time.Time  `json:"updatedAt,omitempty"`
}

func newCartView(c *cart.Cart) cartView {
	v := cartView{
		RestaurantID:   c.RestaurantID,
		RestaurantName: c.RestaurantName,
		Items:          c.Lines(),
		Count:          c.Count(),
		Subtotal:       c.Subtotal(),
	}
	if !c.UpdatedAt.IsZero() {
		at := c.UpdatedAt
		v.UpdatedAt = &at
	}
	return v
}

func (h *Handler) HandleGetCart(w http.ResponseWriter, r *http.Request) error {
	userID, err := requireUser(r)
	if err != nil {
		return err
	}
	RespondWithJSON(w, http.StatusOK, newCartView(h.carts.Get(r.Context(), userID)))
	return nil
}

func (h *Handler) HandleAddCartItem(w http.ResponseWriter, r *http.Request) error {
	userID, err := requireUser(r)
	if err != nil {
		return err
	}

	var req struct {
		ItemID   string `json:"itemId"`
		Quantity *int   `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if req.ItemID == "" {
		return ErrBadRequest("itemId is required")
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	c, err := h.carts.AddItem(backendContext(r), userID, req.ItemID, qty)
	if err != nil {
		return err
	}
	RespondWithJSON(w, http.StatusOK, newCartView(c))
	return nil
}

func (h *Handler) HandleUpdateCartItem(w http.ResponseWriter, r *http.Request) error {
	userID, err := requireUser(r)
	if err != nil {
		return err
	}

	var req struct {
		Quantity *int `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if req.Quantity == nil {
		return ErrBadRequest("quantity is required")
	}

	c, err := h.carts.UpdateQuantity(r.Context(), userID, chi.URLParam(r, paramItemID), *req.Quantity)
	if err != nil {
		return err
	}
	RespondWithJSON(w, http.StatusOK, newCartView(c))
	return nil
}

func (h *Handler) HandleRemoveCartItem(w http.ResponseWriter, r *http.Request) error {
	userID, err := requireUser(r)
	if err != nil {
		return err
	}
	c, err := h.carts.RemoveItem(r.Context(), userID, chi.URLParam(r, paramItemID))
	if err != nil {
		return err
	}
	RespondWithJSON(w, http.StatusOK, newCartView(c))
	return nil
}

func (h *Handler) HandleClearCart(w http.ResponseWriter, r *http.Request) error {
	userID, err := requireUser(r)
	if err != nil {
		return err
	}
	if err := h.carts.Clear(r.Context(), userID); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
