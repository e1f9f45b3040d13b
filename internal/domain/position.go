package domain

import "time"

// Position is the per-symbol record tracked by this engine. Quantity is the
// engine's own bookkeeping (entry fill estimate adjusted by the fee factor),
// deliberately independent of the exchange-reported balance, which can race
// with pending orders. Exactly one Position exists per symbol; it is created
// lazily on first reference and reset to FLAT rather than deleted.
type Position struct {
	Symbol       string        // Trading symbol (e.g., "BTCUSDT")
	State        PositionState // Current lifecycle stage
	Quantity     float64       // Base-asset units held, as tracked by the engine
	EntryPrice   float64       // Price used when the entry was sized
	EntryOrderID string        // Exchange id of the entry order
	ExitOrderID  string        // Exchange id of the paired protective exit, if any
	ExitPrice    float64       // Target price of the protective exit (0 if none)
	EntryTime    time.Time     // When the entry was confirmed
}

// IsFlat reports whether the symbol currently holds nothing.
func (p Position) IsFlat() bool {
	return p.State == StateFlat
}
