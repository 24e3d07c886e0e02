package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/JivkoJelev91/online-shop/internal/checkout"
	"github.com/JivkoJelev91/online-shop/internal/order"
)

// CheckoutService converts the caller's cart into an order.
type CheckoutService interface {
	Checkout(ctx context.Context, userID string) (*order.Order, error)
}

// StatusPublisher emits an event after an admin moves an order forward.
type StatusPublisher interface {
	PublishOrderStatusChanged(ctx context.Context, orderID string, from, to order.Status) error
}

type OrderHandler struct {
	checkout CheckoutService
	orders   order.Repository
	pub      StatusPublisher
	logger   logrus.FieldLogger
}

func NewOrderHandler(co CheckoutService, orders order.Repository, pub StatusPublisher, logger logrus.FieldLogger) *OrderHandler {
	return &OrderHandler{checkout: co, orders: orders, pub: pub, logger: logger}
}

func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	o, err := h.checkout.Checkout(r.Context(), UserID(r.Context()))
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrderHandler) writeCheckoutError(w http.ResponseWriter, err error) {
	var (
		notFound *checkout.ProductNotFoundError
		noStock  *checkout.InsufficientStockError
	)
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "cart is empty")
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":     "product no longer available",
			"productId": notFound.ProductID,
		})
	case errors.As(err, &noStock):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     "not enough stock",
			"productId": noStock.ProductID,
			"available": noStock.Available,
			"requested": noStock.Requested,
		})
	default:
		writeError(w, http.StatusInternalServerError, "checkout failed")
	}
}

func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListByUser(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch orders")
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch orders")
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *OrderHandler) AdminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	next, err := order.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	orderID := chi.URLParam(r, "orderID")

	// Fetch first so the event can carry the status we transitioned from.
	before, err := h.orders.GetByID(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch order")
		return
	}

	updated, err := h.orders.UpdateStatus(r.Context(), orderID, next)
	if err != nil {
		var invalid *order.InvalidTransitionError
		switch {
		case errors.Is(err, order.ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.As(err, &invalid):
			writeError(w, http.StatusConflict, invalid.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to update order status")
		}
		return
	}

	if h.pub != nil {
		if err := h.pub.PublishOrderStatusChanged(r.Context(), orderID, before.Status, next); err != nil {
			h.logger.WithError(err).Warn("failed to publish OrderStatusChanged event")
		}
	}

	writeJSON(w, http.StatusOK, updated)
}
