package checkout

import (
	"errors"
	"fmt"
)

// ErrEmptyCart means there was nothing to check out. No state is changed.
var ErrEmptyCart = errors.New("cart is empty")

// ProductNotFoundError is returned when a cart line references a product
// that was deleted after being added to the cart.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InsufficientStockError is returned when available stock cannot cover the
// requested quantity, either during validation or at commit time after
// losing a race to a concurrent checkout.
type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

// StorageError wraps infrastructure failures. It is the catch-all only when
// no business rule violation was detected; the transaction is rolled back.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
