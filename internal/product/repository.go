package product

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("product not found")

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// ListParams are the catalog browse filters. Zero values mean "no filter".
type ListParams struct {
	Page     int
	Limit    int
	Search   string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

type ListResult struct {
	Products   []Product `json:"products"`
	Page       int       `json:"page"`
	Limit      int       `json:"limit"`
	Total      int       `json:"total"`
	TotalPages int       `json:"totalPages"`
}

// CreateParams are the admin-supplied fields of a new product.
type CreateParams struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
}

// UpdateParams holds a partial update; nil fields are left unchanged.
type UpdateParams struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
}

type Repository interface {
	List(ctx context.Context, p ListParams) (*ListResult, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	Create(ctx context.Context, p CreateParams) (*Product, error)
	Update(ctx context.Context, id string, p UpdateParams) (*Product, error)
	Delete(ctx context.Context, id string) error
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const productColumns = `id, name, description, price, stock, created_at, updated_at`

func (r *PostgresRepository) List(ctx context.Context, p ListParams) (*ListResult, error) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 || p.Limit > 100 {
		p.Limit = 10
	}

	where, args := buildFilter(p)

	var total int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM products`+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY name LIMIT $%d OFFSET $%d`,
		productColumns, where, len(args)+1, len(args)+2)
	args = append(args, p.Limit, (p.Page-1)*p.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		var prod Product
		if err := scanProduct(rows, &prod); err != nil {
			return nil, err
		}
		products = append(products, prod)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return &ListResult{
		Products:   products,
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: (total + p.Limit - 1) / p.Limit,
	}, nil
}

func buildFilter(p ListParams) (string, []any) {
	var conds []string
	var args []any

	if p.MinPrice != nil {
		args = append(args, *p.MinPrice)
		conds = append(conds, fmt.Sprintf("price >= $%d", len(args)))
	}
	if p.MaxPrice != nil {
		args = append(args, *p.MaxPrice)
		conds = append(conds, fmt.Sprintf("price <= $%d", len(args)))
	}
	if p.Search != "" {
		args = append(args, "%"+p.Search+"%")
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Product, error) {
	var p Product
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if err := scanProduct(row, &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PostgresRepository) Create(ctx context.Context, p CreateParams) (*Product, error) {
	now := time.Now().UTC()
	prod := &Product{
		ID:          uuid.NewString(),
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO products (id, name, description, price, stock, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, prod.ID, prod.Name, prod.Description, prod.Price, prod.Stock, prod.CreatedAt, prod.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	return prod, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id string, p UpdateParams) (*Product, error) {
	var sets []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.Description != nil {
		add("description", *p.Description)
	}
	if p.Price != nil {
		add("price", *p.Price)
	}
	if p.Stock != nil {
		add("stock", *p.Stock)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE products SET %s WHERE id = $%d RETURNING `+productColumns,
		strings.Join(sets, ", "), len(args))

	var prod Product
	if err := scanProduct(r.pool.QueryRow(ctx, query, args...), &prod); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}
	return &prod, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.Row, p *Product) error {
	return row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
}
