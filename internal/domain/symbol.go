package domain

// SymbolInfo holds the exchange-reported trading constraints for one symbol.
// Read-mostly; staleness within a trading cycle is acceptable, but it must be
// refreshed after an order is rejected for precision or amount reasons.
type SymbolInfo struct {
	Symbol         string  // Trading symbol (e.g., "BTCUSDT")
	BaseAsset      string  // Base asset (e.g., "BTC")
	QuoteAsset     string  // Quote asset (e.g., "USDT")
	BasePrecision  int     // Decimal digits accepted for quantities
	QuotePrecision int     // Decimal digits accepted for prices and notional amounts
	MinAmount      float64 // Minimum order value in quote asset (notional floor)
	MinQuantity    float64 // Minimum trade size in base asset
	Tradable       bool    // Whether the exchange currently allows trading the symbol
}
