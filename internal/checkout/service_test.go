package checkout

import (
	"context"
	"errors"
	"io"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JivkoJelev91/online-shop/internal/metrics"
	"github.com/JivkoJelev91/online-shop/internal/order"
)

const (
	cartQuery    = `SELECT product_id, quantity FROM cart_items`
	productQuery = `SELECT price, stock FROM products WHERE id = $1 FOR UPDATE`
	stockUpdate  = `UPDATE products SET stock = stock - $2, updated_at = now()`
	cartDelete   = `DELETE FROM cart_items WHERE user_id = $1`
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestService(db DB) *Service {
	return NewService(db, testLogger(), nil, metrics.NewCheckoutMetrics(prometheus.NewRegistry()))
}

func TestCheckoutSuccess(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	priceP1 := decimal.RequireFromString("99.99")
	priceP2 := decimal.RequireFromString("59.99")

	mock.ExpectBegin()
	mock.ExpectQuery(cartQuery).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"product_id", "quantity"}).
			AddRow("p1", 3).
			AddRow("p2", 1))
	mock.ExpectQuery(regexp.QuoteMeta(productQuery)).
		WithArgs("p1").
		WillReturnRows(pgxmock.NewRows([]string{"price", "stock"}).AddRow(priceP1, 5))
	mock.ExpectQuery(regexp.QuoteMeta(productQuery)).
		WithArgs("p2").
		WillReturnRows(pgxmock.NewRows([]string{"price", "stock"}).AddRow(priceP2, 20))

	mock.ExpectExec(`INSERT INTO orders`).
		WithArgs(pgxmock.AnyArg(), "u1", order.StatusPending, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO order_items`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "p1", 3, priceP1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO order_items`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "p2", 1, priceP2).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	mock.ExpectExec(regexp.QuoteMeta(stockUpdate)).
		WithArgs("p1", 3).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta(stockUpdate)).
		WithArgs("p2", 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	mock.ExpectExec(regexp.QuoteMeta(cartDelete)).
		WithArgs("u1").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCommit()

	svc := newTestService(mock)
	o, err := svc.Checkout(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, "u1", o.UserID)
	assert.Equal(t, order.StatusPending, o.Status)
	require.Len(t, o.Items, 2)

	// total == sum of quantity * captured unit price
	want := priceP1.Mul(decimal.NewFromInt(3)).Add(priceP2)
	assert.True(t, o.Total.Equal(want), "total %s != %s", o.Total, want)

	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	assert.True(t, o.Total.Equal(sum))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutEmptyCart(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(cartQuery).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"product_id", "quantity"}))
	mock.ExpectRollback()

	svc := newTestService(mock)
	_, err = svc.Checkout(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrEmptyCart)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutProductDeleted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(cartQuery).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"product_id", "quantity"}).AddRow("p-gone", 1))
	mock.ExpectQuery(regexp.QuoteMeta(productQuery)).
		WithArgs("p-gone").
		WillReturnRows(pgxmock.NewRows([]string{"price", "stock"}))
	mock.ExpectRollback()

	svc := newTestService(mock)
	_, err = svc.Checkout(context.Background(), "u1")

	var notFound *ProductNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "p-gone", notFound.ProductID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutInsufficientStock(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(cartQuery).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"product_id", "quantity"}).AddRow("p1", 3))
	mock.ExpectQuery(regexp.QuoteMeta(productQuery)).
		WithArgs("p1").
		WillReturnRows(pgxmock.NewRows([]string{"price", "stock"}).
			AddRow(decimal.RequireFromString("99.99"), 2))
	mock.ExpectRollback()

	svc := newTestService(mock)
	_, err = svc.Checkout(context.Background(), "u1")

	var short *InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, "p1", short.ProductID)
	assert.Equal(t, 2, short.Available)
	assert.Equal(t, 3, short.Requested)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutDecrementGuard(t *testing.T) {
	// RowsAffected == 0 on the conditional decrement is treated as a lost
	// stock race: the order insert is rolled back and the caller sees the
	// live availability.
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	price := decimal.RequireFromString("49.99")

	mock.ExpectBegin()
	mock.ExpectQuery(cartQuery).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"product_id", "quantity"}).AddRow("p1", 2))
	mock.ExpectQuery(regexp.QuoteMeta(productQuery)).
		WithArgs("p1").
		WillReturnRows(pgxmock.NewRows([]string{"price", "stock"}).AddRow(price, 2))
	mock.ExpectExec(`INSERT INTO orders`).
		WithArgs(pgxmock.AnyArg(), "u1", order.StatusPending, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO order_items`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "p1", 2, price).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(stockUpdate)).
		WithArgs("p1", 2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT stock FROM products WHERE id = $1`)).
		WithArgs("p1").
		WillReturnRows(pgxmock.NewRows([]string{"stock"}).AddRow(1))
	mock.ExpectRollback()

	svc := newTestService(mock)
	_, err = svc.Checkout(context.Background(), "u1")

	var short *InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 1, short.Available)
	assert.Equal(t, 2, short.Requested)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutInsertFailureRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(cartQuery).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"product_id", "quantity"}).AddRow("p1", 1))
	mock.ExpectQuery(regexp.QuoteMeta(productQuery)).
		WithArgs("p1").
		WillReturnRows(pgxmock.NewRows([]string{"price", "stock"}).
			AddRow(decimal.RequireFromString("99.99"), 5))
	mock.ExpectExec(`INSERT INTO orders`).
		WithArgs(pgxmock.AnyArg(), "u1", order.StatusPending, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("insert failed"))
	mock.ExpectRollback()

	svc := newTestService(mock)
	_, err = svc.Checkout(context.Background(), "u1")

	var storage *StorageError
	require.ErrorAs(t, err, &storage)
	assert.Equal(t, "insert order", storage.Op)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutCommitFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	price := decimal.RequireFromString("99.99")

	mock.ExpectBegin()
	mock.ExpectQuery(cartQuery).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"product_id", "quantity"}).AddRow("p1", 1))
	mock.ExpectQuery(regexp.QuoteMeta(productQuery)).
		WithArgs("p1").
		WillReturnRows(pgxmock.NewRows([]string{"price", "stock"}).AddRow(price, 5))
	mock.ExpectExec(`INSERT INTO orders`).
		WithArgs(pgxmock.AnyArg(), "u1", order.StatusPending, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO order_items`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "p1", 1, price).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(stockUpdate)).
		WithArgs("p1", 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta(cartDelete)).
		WithArgs("u1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit().WillReturnError(errors.New("commit failed"))
	mock.ExpectRollback()

	svc := newTestService(mock)
	_, err = svc.Checkout(context.Background(), "u1")

	var storage *StorageError
	require.ErrorAs(t, err, &storage)
	assert.Equal(t, "commit", storage.Op)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutBeginFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	svc := newTestService(mock)
	_, err = svc.Checkout(context.Background(), "u1")

	var storage *StorageError
	require.ErrorAs(t, err, &storage)
	assert.Equal(t, "begin tx", storage.Op)
}

type fakePublisher struct {
	published []*order.Order
	err       error
}

func (f *fakePublisher) PublishOrderCreated(ctx context.Context, o *order.Order) error {
	f.published = append(f.published, o)
	return f.err
}

func TestCheckoutPublishFailureDoesNotFailCall(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	price := decimal.RequireFromString("10.00")

	mock.ExpectBegin()
	mock.ExpectQuery(cartQuery).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"product_id", "quantity"}).AddRow("p1", 1))
	mock.ExpectQuery(regexp.QuoteMeta(productQuery)).
		WithArgs("p1").
		WillReturnRows(pgxmock.NewRows([]string{"price", "stock"}).AddRow(price, 1))
	mock.ExpectExec(`INSERT INTO orders`).
		WithArgs(pgxmock.AnyArg(), "u1", order.StatusPending, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO order_items`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "p1", 1, price).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(stockUpdate)).
		WithArgs("p1", 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta(cartDelete)).
		WithArgs("u1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewService(mock, testLogger(), pub, nil)

	o, err := svc.Checkout(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, pub.published, 1)
	assert.Equal(t, o.ID, pub.published[0].ID)
}
