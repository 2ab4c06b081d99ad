package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"storefront-bff/internal/models"
	"storefront-bff/internal/timeline"
)

type timelineView struct {
	Order models.Order    `json:"order"`
	Steps []timeline.Step `json:"steps"`
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) error {
	userID, err := requireUser(r)
	if err != nil {
		return err
	}

	var req struct {
		DeliveryAddress string `json:"deliveryAddress"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			return err
		}
	}

	order, err := h.carts.Checkout(backendContext(r), userID, req.DeliveryAddress)
	if err != nil {
		return err
	}
	_ = h.cache.Delete(r.Context(), "profile:"+userID)
	RespondWithJSON(w, http.StatusCreated, order)
	return nil
}

func (h *Handler) HandleGetOrders(w http.ResponseWriter, r *http.Request) error {
	userID, err := requireUser(r)
	if err != nil {
		return err
	}
	orders, err := h.svc.GetOrders(backendContext(r), userID)
	if err != nil {
		return err
	}
	RespondWithJSON(w, http.StatusOK, nonNil(orders))
	return nil
}

// loadOwnOrder fetches an order and hides other users' orders as not found.
func (h *Handler) loadOwnOrder(r *http.Request) (*models.Order, error) {
	userID, err := requireUser(r)
	if err != nil {
		return nil, err
	}
	order, err := h.svc.GetOrder(backendContext(r), chi.URLParam(r, paramID))
	if err != nil {
		return nil, err
	}
	if order.UserID != "" && order.UserID != userID {
		return nil, ErrNotFound("Order not found")
	}
	return order, nil
}

func (h *Handler) HandleGetOrder(w http.ResponseWriter, r *http.Request) error {
	order, err := h.loadOwnOrder(r)
	if err != nil {
		return err
	}
	RespondWithJSON(w, http.StatusOK, order)
	return nil
}

func (h *Handler) HandleGetOrderTimeline(w http.ResponseWriter, r *http.Request) error {
	order, err := h.loadOwnOrder(r)
	if err != nil {
		return err
	}
	RespondWithJSON(w, http.StatusOK, timelineView{
		Order: *order,
		Steps: timeline.Build(*order, h.now()),
	})
	return nil
}
