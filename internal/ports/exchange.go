package ports

import (
	"context"

	"cryptoCrossBot/internal/domain"
)

// TopOfBook holds the best bid and ask for a symbol at one point in time.
type TopOfBook struct {
	BestBid float64
	BestAsk float64
}

// ExchangeClient defines the interface for the authenticated exchange REST API.
// This abstraction decouples the execution core from the concrete exchange.
// Implementations fail with ErrTransport on network/HTTP failures (propagated,
// never retried at this layer) and with a RejectionError when the exchange
// reports result=false.
type ExchangeClient interface {
	// GetSymbolInfo retrieves the trading constraints for a symbol.
	// Returns ErrSymbolNotFound if the exchange does not list it.
	GetSymbolInfo(ctx context.Context, symbol string) (*domain.SymbolInfo, error)

	// InvalidateSymbolInfo drops any cached metadata for the symbol, forcing
	// a refresh on the next GetSymbolInfo call. Used after precision/amount
	// rejections.
	InvalidateSymbolInfo(symbol string)

	// GetBalance retrieves the available balance for a specific asset (e.g., "USDT").
	GetBalance(ctx context.Context, asset string) (float64, error)

	// GetTopOfBook retrieves the current best bid and ask for a symbol.
	GetTopOfBook(ctx context.Context, symbol string) (*TopOfBook, error)

	// GetKlines retrieves recent candlestick data for the given symbol, oldest first.
	GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]domain.Kline, error)

	// PlaceOrder submits an order and returns the exchange's confirmation.
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error)

	// CancelOrder cancels an open order by id. Returns false without error if
	// the order no longer exists (already filled or cancelled).
	CancelOrder(ctx context.Context, symbol string, orderID string) (bool, error)
}
