package order

import (
	"errors"
	"fmt"
	"strings"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusShipped   Status = "shipped"
	StatusCompleted Status = "completed"
)

var ErrUnknownStatus = errors.New("unknown order status")

// validNext holds the only legal forward moves. completed is terminal.
var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusShipped: true},
	StatusShipped:   {StatusCompleted: true},
	StatusCompleted: {},
}

// CanTransition reports whether moving from one status to the other is a
// legal forward step. Skipping a state or moving backward is never allowed.
func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// ParseStatus accepts the status in any casing the admin UI may send.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, nil
	case StatusShipped:
		return StatusShipped, nil
	case StatusCompleted:
		return StatusCompleted, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
}
