package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/JivkoJelev91/online-shop/internal/metrics"
	"github.com/JivkoJelev91/online-shop/internal/order"
)

// DB matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Publisher emits the OrderCreated event after a successful commit.
// *events.Publisher satisfies it; nil disables publishing.
type Publisher interface {
	PublishOrderCreated(ctx context.Context, o *order.Order) error
}

// Service converts a user's cart into a persisted order inside a single
// database transaction: cart snapshot, stock validation, order + line
// creation, stock decrement and cart clearing all commit or roll back
// together. Correctness under concurrent checkouts comes from row locks on
// the product rows, not from in-process synchronization.
type Service struct {
	db      DB
	logger  logrus.FieldLogger
	pub     Publisher
	metrics *metrics.CheckoutMetrics
}

func NewService(db DB, logger logrus.FieldLogger, pub Publisher, m *metrics.CheckoutMetrics) *Service {
	return &Service{db: db, logger: logger, pub: pub, metrics: m}
}

func (s *Service) Checkout(ctx context.Context, userID string) (*order.Order, error) {
	start := time.Now()
	o, err := s.checkout(ctx, userID)
	s.observe(time.Since(start), err)

	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":  userID,
		"order_id": o.ID,
		"total":    o.Total.String(),
		"lines":    len(o.Items),
	}).Info("checkout completed")

	// The order is already durable; a publish failure must not fail the call.
	if s.pub != nil {
		if err := s.pub.PublishOrderCreated(ctx, o); err != nil {
			s.logger.WithError(err).WithField("order_id", o.ID).Warn("publish OrderCreated failed")
		}
	}

	return o, nil
}

type cartLine struct {
	productID string
	quantity  int
	price     decimal.Decimal
}

func (s *Service) checkout(ctx context.Context, userID string) (*order.Order, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, &StorageError{Op: "begin tx", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lines, err := lockCartLines(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	// Lock product rows in cart order, which is product-id order, so two
	// overlapping checkouts always acquire locks in the same sequence.
	total := decimal.Zero
	for i := range lines {
		ln := &lines[i]
		var stock int
		err := tx.QueryRow(ctx,
			`SELECT price, stock FROM products WHERE id = $1 FOR UPDATE`, ln.productID).
			Scan(&ln.price, &stock)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, &ProductNotFoundError{ProductID: ln.productID}
			}
			return nil, &StorageError{Op: "lock product", Err: err}
		}
		if stock < ln.quantity {
			return nil, &InsufficientStockError{ProductID: ln.productID, Available: stock, Requested: ln.quantity}
		}
		total = total.Add(ln.price.Mul(decimal.NewFromInt(int64(ln.quantity))))
	}

	now := time.Now().UTC()
	o := &order.Order{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    order.StatusPending,
		Total:     total,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO orders (id, user_id, status, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, o.ID, o.UserID, o.Status, o.Total, now); err != nil {
		return nil, &StorageError{Op: "insert order", Err: err}
	}

	for _, ln := range lines {
		it := order.Item{
			ID:        uuid.NewString(),
			OrderID:   o.ID,
			ProductID: ln.productID,
			Quantity:  ln.quantity,
			Price:     ln.price,
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4, $5)
		`, it.ID, it.OrderID, it.ProductID, it.Quantity, it.Price); err != nil {
			return nil, &StorageError{Op: "insert order_item", Err: err}
		}
		o.Items = append(o.Items, it)
	}

	// The rows are locked, so the condition cannot fail here; it guards the
	// stock >= 0 invariant against any future code path that skips the lock.
	for _, ln := range lines {
		tag, err := tx.Exec(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = now()
			WHERE id = $1 AND stock >= $2
		`, ln.productID, ln.quantity)
		if err != nil {
			return nil, &StorageError{Op: "decrement stock", Err: err}
		}
		if tag.RowsAffected() == 0 {
			available := 0
			_ = tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, ln.productID).Scan(&available)
			return nil, &InsufficientStockError{ProductID: ln.productID, Available: available, Requested: ln.quantity}
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return nil, &StorageError{Op: "clear cart", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &StorageError{Op: "commit", Err: err}
	}
	return o, nil
}

// lockCartLines snapshot-reads the user's cart under row locks so a
// concurrent cart edit on the same user cannot change the lines mid-checkout.
func lockCartLines(ctx context.Context, tx pgx.Tx, userID string) ([]cartLine, error) {
	rows, err := tx.Query(ctx, `
		SELECT product_id, quantity FROM cart_items
		WHERE user_id = $1
		ORDER BY product_id
		FOR UPDATE
	`, userID)
	if err != nil {
		return nil, &StorageError{Op: "load cart", Err: err}
	}
	defer rows.Close()

	var lines []cartLine
	for rows.Next() {
		var ln cartLine
		if err := rows.Scan(&ln.productID, &ln.quantity); err != nil {
			return nil, &StorageError{Op: "scan cart line", Err: err}
		}
		lines = append(lines, ln)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "load cart", Err: err}
	}
	return lines, nil
}

func (s *Service) observe(d time.Duration, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.Duration.Observe(d.Seconds())

	result := metrics.ResultSuccess
	switch {
	case err == nil:
		s.metrics.OrdersCreated.Inc()
	case errors.Is(err, ErrEmptyCart):
		result = metrics.ResultEmptyCart
	default:
		var notFound *ProductNotFoundError
		var short *InsufficientStockError
		switch {
		case errors.As(err, &notFound):
			result = metrics.ResultProductNotFound
		case errors.As(err, &short):
			result = metrics.ResultInsufficientStock
		default:
			result = metrics.ResultStorageFailure
		}
	}
	s.metrics.Attempts.WithLabelValues(result).Inc()
}
