package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JivkoJelev91/online-shop/internal/cart"
)

type CartHandler struct {
	repo cart.Repository
}

func NewCartHandler(repo cart.Repository) *CartHandler {
	return &CartHandler{repo: repo}
}

func (h *CartHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.repo.ListByUser(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch cart items")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type addToCartLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type addToCartResult struct {
	ProductID string     `json:"productId"`
	Item      *cart.Item `json:"item,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Add accepts a batch of lines and reports a per-line outcome, so one
// unavailable product does not reject the whole request.
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	var lines []addToCartLine
	if err := json.NewDecoder(r.Body).Decode(&lines); err != nil || len(lines) == 0 {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	userID := UserID(r.Context())
	results := make([]addToCartResult, 0, len(lines))
	for _, ln := range lines {
		res := addToCartResult{ProductID: ln.ProductID}

		it, err := h.repo.Add(r.Context(), userID, ln.ProductID, ln.Quantity)
		switch {
		case errors.Is(err, cart.ErrProductNotFound):
			res.Error = "product not found"
		case errors.Is(err, cart.ErrNotEnoughStock):
			res.Error = "not enough stock"
		case err != nil:
			writeError(w, http.StatusInternalServerError, "failed to add to cart")
			return
		default:
			res.Item = it
		}
		results = append(results, res)
	}

	writeJSON(w, http.StatusCreated, results)
}

type updateCartRequest struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity < 1 {
		writeError(w, http.StatusBadRequest, "quantity must be at least 1")
		return
	}

	it, err := h.repo.UpdateQuantity(r.Context(), UserID(r.Context()), chi.URLParam(r, "itemID"), req.Quantity)
	if err != nil {
		if errors.Is(err, cart.ErrItemNotFound) {
			writeError(w, http.StatusNotFound, "cart item not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update cart item")
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	if err := h.repo.Remove(r.Context(), UserID(r.Context()), itemID); err != nil {
		if errors.Is(err, cart.ErrItemNotFound) {
			writeError(w, http.StatusNotFound, "cart item not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete cart item")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "cart item deleted", "id": itemID})
}
