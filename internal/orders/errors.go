package orders

import "errors"

// Business-rule errors surfaced to the caller. Any of them aborts the
// whole unit of work; the handler layer maps them to HTTP status codes.
var (
	ErrAccountMissing       = errors.New("account missing")
	ErrNoPosition           = errors.New("no position in this stock")
	ErrInsufficientHoldings = errors.New("sell quantity exceeds holdings")
	ErrOverReserved         = errors.New("pending sells exceed holdings")
	ErrInsufficientBalance  = errors.New("insufficient point balance")
	ErrOrderNotFound        = errors.New("order not found")
	ErrHoldingNotFound      = errors.New("holding not found")
	ErrInvalidOrder         = errors.New("invalid order")
)
