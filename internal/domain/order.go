package domain

// OrderRequest describes a single order submission. BUY market orders are
// sized in quote-asset notional (Amount); SELL orders and limit orders are
// sized in base-asset quantity. Quantity/price/amount fields are already
// formatted to the symbol's precision by the caller.
type OrderRequest struct {
	Symbol        string
	Side          OrderSide
	Type          OrderType
	Quantity      string // Base-asset quantity (SELL and LIMIT orders)
	Amount        string // Quote-asset notional (MARKET BUY orders)
	Price         string // Limit price (LIMIT orders only)
	ClientOrderID string // Caller-supplied id echoed back by the exchange
}

// OrderResult is the exchange's confirmation for a placed order. It is
// transient; only OrderID outlives the call, inside the Position record.
type OrderResult struct {
	OrderID string
	Symbol  string
	Status  string
}
