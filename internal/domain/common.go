package domain

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// OrderType represents the execution type of an order.
type OrderType string

const (
	Market OrderType = "MARKET"
	Limit  OrderType = "LIMIT"
)

// PositionState represents the lifecycle stage of a per-symbol position.
// Within one trading cycle the only reachable edges are
// FLAT -> ENTERING -> OPEN -> EXITING -> FLAT.
type PositionState string

const (
	StateFlat     PositionState = "FLAT"
	StateEntering PositionState = "ENTERING"
	StateOpen     PositionState = "OPEN"
	StateExiting  PositionState = "EXITING"
)

// CloseReason indicates why a position was closed.
type CloseReason string

const (
	CloseReasonSignal     CloseReason = "EXIT_SIGNAL"
	CloseReasonTakeProfit CloseReason = "TAKE_PROFIT"
	CloseReasonManual     CloseReason = "MANUAL"
	CloseReasonUnknown    CloseReason = "UNKNOWN"
)

// SignalKind is the outcome of the crossover evaluation for one symbol.
type SignalKind string

const (
	SignalNone  SignalKind = "NONE"
	SignalEntry SignalKind = "ENTRY"
	SignalExit  SignalKind = "EXIT"
)

// Signal is the evaluator output the engine acts on: the crossover outcome
// plus the latest close price used for sizing and exit targets.
type Signal struct {
	Kind       SignalKind
	ClosePrice float64
}
