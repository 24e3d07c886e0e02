package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is one line of a placed order. Price is the unit price captured at
// purchase time and never changes afterwards, regardless of later product
// price updates.
type Item struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"orderId"`
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type Order struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Status    Status          `json:"status"`
	Total     decimal.Decimal `json:"total"`
	Items     []Item          `json:"items"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
