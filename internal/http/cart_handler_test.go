package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JivkoJelev91/online-shop/internal/cart"
)

type fakeCartRepo struct {
	listByUserFunc     func(ctx context.Context, userID string) ([]cart.Detail, error)
	addFunc            func(ctx context.Context, userID, productID string, quantity int) (*cart.Item, error)
	updateQuantityFunc func(ctx context.Context, userID, itemID string, quantity int) (*cart.Item, error)
	removeFunc         func(ctx context.Context, userID, itemID string) error
}

func (f *fakeCartRepo) ListByUser(ctx context.Context, userID string) ([]cart.Detail, error) {
	if f.listByUserFunc != nil {
		return f.listByUserFunc(ctx, userID)
	}
	return nil, nil
}

func (f *fakeCartRepo) Add(ctx context.Context, userID, productID string, quantity int) (*cart.Item, error) {
	if f.addFunc != nil {
		return f.addFunc(ctx, userID, productID, quantity)
	}
	return nil, cart.ErrProductNotFound
}

func (f *fakeCartRepo) UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (*cart.Item, error) {
	if f.updateQuantityFunc != nil {
		return f.updateQuantityFunc(ctx, userID, itemID, quantity)
	}
	return nil, cart.ErrItemNotFound
}

func (f *fakeCartRepo) Remove(ctx context.Context, userID, itemID string) error {
	if f.removeFunc != nil {
		return f.removeFunc(ctx, userID, itemID)
	}
	return cart.ErrItemNotFound
}

func TestCartList_Success(t *testing.T) {
	repo := &fakeCartRepo{
		listByUserFunc: func(ctx context.Context, userID string) ([]cart.Detail, error) {
			require.Equal(t, "user-1", userID)
			return []cart.Detail{
				{Item: cart.Item{ID: "i1", ProductID: "p1", Quantity: 2}},
			}, nil
		},
	}
	handler := NewCartHandler(repo)

	rr := httptest.NewRecorder()
	handler.List(rr, authedRequest(http.MethodGet, "/cart", nil, "user-1"))

	require.Equal(t, http.StatusOK, rr.Code)

	var resp []cart.Detail
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "p1", resp[0].ProductID)
}

func TestCartAdd_MixedOutcomes(t *testing.T) {
	repo := &fakeCartRepo{
		addFunc: func(ctx context.Context, userID, productID string, quantity int) (*cart.Item, error) {
			switch productID {
			case "p-ok":
				return &cart.Item{ID: "i1", UserID: userID, ProductID: productID, Quantity: quantity}, nil
			case "p-gone":
				return nil, cart.ErrProductNotFound
			default:
				return nil, cart.ErrNotEnoughStock
			}
		},
	}
	handler := NewCartHandler(repo)

	body := bytes.NewBufferString(`[
		{"productId": "p-ok", "quantity": 2},
		{"productId": "p-gone", "quantity": 1},
		{"productId": "p-low", "quantity": 99}
	]`)
	rr := httptest.NewRecorder()
	handler.Add(rr, authedRequest(http.MethodPost, "/cart", body, "user-1"))

	require.Equal(t, http.StatusCreated, rr.Code)

	var resp []addToCartResult
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp, 3)

	assert.NotNil(t, resp[0].Item)
	assert.Empty(t, resp[0].Error)
	assert.Equal(t, "product not found", resp[1].Error)
	assert.Equal(t, "not enough stock", resp[2].Error)
}

func TestCartAdd_EmptyBody(t *testing.T) {
	handler := NewCartHandler(&fakeCartRepo{})

	body := bytes.NewBufferString(`[]`)
	rr := httptest.NewRecorder()
	handler.Add(rr, authedRequest(http.MethodPost, "/cart", body, "user-1"))

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCartAdd_RepositoryError(t *testing.T) {
	repo := &fakeCartRepo{
		addFunc: func(ctx context.Context, userID, productID string, quantity int) (*cart.Item, error) {
			return nil, errors.New("db down")
		},
	}
	handler := NewCartHandler(repo)

	body := bytes.NewBufferString(`[{"productId": "p1", "quantity": 1}]`)
	rr := httptest.NewRecorder()
	handler.Add(rr, authedRequest(http.MethodPost, "/cart", body, "user-1"))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestCartUpdate_Success(t *testing.T) {
	repo := &fakeCartRepo{
		updateQuantityFunc: func(ctx context.Context, userID, itemID string, quantity int) (*cart.Item, error) {
			require.Equal(t, "i1", itemID)
			require.Equal(t, 5, quantity)
			return &cart.Item{ID: itemID, UserID: userID, Quantity: quantity}, nil
		},
	}
	handler := NewCartHandler(repo)

	body := bytes.NewBufferString(`{"quantity": 5}`)
	req := authedRequest(http.MethodPut, "/cart/i1", body, "user-1")
	req = withRouteParam(req, "itemID", "i1")
	rr := httptest.NewRecorder()

	handler.Update(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp cart.Item
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 5, resp.Quantity)
}

func TestCartUpdate_ZeroQuantity(t *testing.T) {
	handler := NewCartHandler(&fakeCartRepo{})

	body := bytes.NewBufferString(`{"quantity": 0}`)
	req := authedRequest(http.MethodPut, "/cart/i1", body, "user-1")
	req = withRouteParam(req, "itemID", "i1")
	rr := httptest.NewRecorder()

	handler.Update(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCartUpdate_NotOwned(t *testing.T) {
	repo := &fakeCartRepo{
		updateQuantityFunc: func(ctx context.Context, userID, itemID string, quantity int) (*cart.Item, error) {
			return nil, cart.ErrItemNotFound
		},
	}
	handler := NewCartHandler(repo)

	body := bytes.NewBufferString(`{"quantity": 2}`)
	req := authedRequest(http.MethodPut, "/cart/i1", body, "user-2")
	req = withRouteParam(req, "itemID", "i1")
	rr := httptest.NewRecorder()

	handler.Update(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCartRemove_Success(t *testing.T) {
	removed := false
	repo := &fakeCartRepo{
		removeFunc: func(ctx context.Context, userID, itemID string) error {
			removed = true
			return nil
		},
	}
	handler := NewCartHandler(repo)

	req := authedRequest(http.MethodDelete, "/cart/i1", nil, "user-1")
	req = withRouteParam(req, "itemID", "i1")
	rr := httptest.NewRecorder()

	handler.Remove(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, removed)
}

func TestCartRemove_NotFound(t *testing.T) {
	handler := NewCartHandler(&fakeCartRepo{})

	req := authedRequest(http.MethodDelete, "/cart/missing", nil, "user-1")
	req = withRouteParam(req, "itemID", "missing")
	rr := httptest.NewRecorder()

	handler.Remove(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
}
