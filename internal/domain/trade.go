package domain

import "time"

// Trade represents a completed round trip, journaled when an exit confirms.
type Trade struct {
	ID          int64       // Unique identifier for the trade (from DB)
	Symbol      string      // Trading symbol (e.g., "BTCUSDT")
	EntryPrice  float64     // Price the entry was sized at
	ExitPrice   float64     // Price the exit was sized at
	Quantity    float64     // Base-asset quantity traded
	PNL         float64     // Profit and loss for this trade
	EntryTime   time.Time   // When the entry was confirmed
	ExitTime    time.Time   // When the exit was confirmed
	CloseReason CloseReason // Why the position was closed
}
