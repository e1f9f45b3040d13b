package ports

import (
	"errors"
	"fmt"
)

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrConfiguration     = errors.New("invalid or missing configuration")
	ErrInvalidTransition = errors.New("position state transition not allowed")

	// Exchange Specific Errors
	ErrTransport         = errors.New("exchange transport failure")
	ErrExchangeRejected  = errors.New("request rejected by the exchange")
	ErrSymbolNotFound    = errors.New("symbol not found on the exchange")
	ErrOrderNotFound     = errors.New("order not found on the exchange")
	ErrInsufficientFunds = errors.New("insufficient funds for operation")
	ErrDuplicateOrder    = errors.New("exchange returned an already-recorded order id")
	ErrRetriesExhausted  = errors.New("order retry budget exhausted")
	ErrOrderTooSmall     = errors.New("order below the symbol's minimum size")

	// Database Specific Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
)

// RejectionError carries the exchange's raw response body for a well-formed
// rejection (result=false). It matches ErrExchangeRejected via errors.Is.
type RejectionError struct {
	Operation string // Which call was rejected (e.g., "placeOrder")
	RawBody   string // Raw response body as returned by the exchange
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s rejected by exchange: %s", e.Operation, e.RawBody)
}

// Is makes errors.Is(err, ErrExchangeRejected) succeed for RejectionError values.
func (e *RejectionError) Is(target error) bool {
	return target == ErrExchangeRejected
}
