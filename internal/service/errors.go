package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Validation errors: malformed input, surfaced as 400.
var (
	ErrEmptyLines         = errors.New("order must contain at least one line")
	ErrInvalidQuantity    = errors.New("quantity must be >= 1")
	ErrNegativeUnitPrice  = errors.New("unit price must be >= 0")
	ErrMenuItemInactive   = errors.New("menu item is not available")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidServiceKind = errors.New("service kind must be 'bill' or 'waiter'")
	ErrInvalidSplit       = errors.New("number of people must be >= 1")
)

// Stale references: surfaced as 404.
var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrVisitNotFound    = errors.New("table visit not found")
	ErrTableNotFound    = errors.New("table not found")
	ErrMenuItemNotFound = errors.New("menu item not found")
	ErrBillNotFound     = errors.New("bill not found")
)

// State conflicts: surfaced as 409.
var (
	ErrTableBusy   = errors.New("table already has an active visit")
	ErrVisitClosed = errors.New("table visit is closed")
	// ErrAlreadyPaid marks a duplicate close. Handlers treat it as a
	// no-op confirmation, not a failure.
	ErrAlreadyPaid = errors.New("visit is already closed and paid")
)

// InvalidTransitionError reports a status change that the state machine
// does not allow, including one lost to a concurrent writer. Callers must
// not retry the same transition.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s cannot transition from %s to %s", e.Entity, e.From, e.To)
}

// OpenOrdersError blocks closing a visit while kitchen work is
// outstanding. It names the blocking orders so staff can act on them.
type OpenOrdersError struct {
	OrderIDs []uuid.UUID
}

func (e *OpenOrdersError) Error() string {
	ids := make([]string, len(e.OrderIDs))
	for i, id := range e.OrderIDs {
		ids[i] = id.String()
	}
	return "visit has open orders: " + strings.Join(ids, ", ")
}
