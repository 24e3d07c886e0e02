package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

var (
	ErrItemNotFound    = errors.New("cart item not found")
	ErrProductNotFound = errors.New("product not found")
	ErrNotEnoughStock  = errors.New("not enough stock")
)

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type Repository interface {
	ListByUser(ctx context.Context, userID string) ([]Detail, error)
	Add(ctx context.Context, userID, productID string, quantity int) (*Item, error)
	UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (*Item, error)
	Remove(ctx context.Context, userID, itemID string) error
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Detail, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ci.id, ci.user_id, ci.product_id, ci.quantity, ci.created_at, ci.updated_at,
		       p.name, p.price, p.stock
		FROM cart_items ci
		LEFT JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("select cart items: %w", err)
	}
	defer rows.Close()

	items := make([]Detail, 0)
	for rows.Next() {
		var d Detail
		var name *string
		var price *decimal.Decimal
		var stock *int
		if err := rows.Scan(&d.ID, &d.UserID, &d.ProductID, &d.Quantity, &d.CreatedAt, &d.UpdatedAt,
			&name, &price, &stock); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		if name != nil && price != nil && stock != nil {
			d.Product = &ProductInfo{Name: *name, Price: *price, Stock: *stock}
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return items, nil
}

// Add puts a product into the user's cart. Adding a product that is already
// in the cart bumps the quantity instead of creating a second line, keeping
// (user, product) unique.
func (r *PostgresRepository) Add(ctx context.Context, userID, productID string, quantity int) (*Item, error) {
	if quantity < 1 {
		quantity = 1
	}

	// Advisory availability check only; checkout re-validates under lock.
	var stock int
	err := r.pool.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("select product stock: %w", err)
	}
	if stock < quantity {
		return nil, ErrNotEnoughStock
	}

	var it Item
	err = r.pool.QueryRow(ctx, `
		INSERT INTO cart_items (id, user_id, product_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id, product_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = EXCLUDED.updated_at
		RETURNING id, user_id, product_id, quantity, created_at, updated_at
	`, uuid.NewString(), userID, productID, quantity, time.Now().UTC()).
		Scan(&it.ID, &it.UserID, &it.ProductID, &it.Quantity, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert cart item: %w", err)
	}
	return &it, nil
}

func (r *PostgresRepository) UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (*Item, error) {
	var it Item
	err := r.pool.QueryRow(ctx, `
		UPDATE cart_items
		SET quantity = $3, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, product_id, quantity, created_at, updated_at
	`, itemID, userID, quantity).
		Scan(&it.ID, &it.UserID, &it.ProductID, &it.Quantity, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("update cart item: %w", err)
	}
	return &it, nil
}

func (r *PostgresRepository) Remove(ctx context.Context, userID, itemID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND user_id = $2`, itemID, userID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}
