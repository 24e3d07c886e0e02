package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

type Item struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProductInfo is the slice of the product row a cart listing needs.
type ProductInfo struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

// Detail is a cart item joined with its product. Product is nil when the
// product has been deleted since the item was added.
type Detail struct {
	Item
	Product *ProductInfo `json:"product,omitempty"`
}
