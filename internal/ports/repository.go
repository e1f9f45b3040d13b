package ports

import (
	"context"

	"cryptoCrossBot/internal/domain"
)

// TradeRepository defines the interface for storing and retrieving completed trades.
type TradeRepository interface {
	// CreateTrade saves a new trade record and returns its assigned ID.
	CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error)
	// FindBySymbol retrieves the most recent trades for a given symbol, up to a limit.
	FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error)
	// GetTotalProfit calculates the sum of PNL across all recorded trades.
	GetTotalProfit(ctx context.Context) (float64, error)
}
