package order

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("order not found")

// InvalidTransitionError is returned when a status update is not a legal
// forward move along pending -> shipped -> completed.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: %s -> %s", e.From, e.To)
}
