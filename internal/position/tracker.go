package position

import (
	"fmt"
	"sync"
	"time"

	"cryptoCrossBot/internal/domain"
	"cryptoCrossBot/internal/ports"
)

// Tracker owns the per-symbol position records and is the only component
// allowed to mutate them. Every transition is validated against the state
// machine FLAT -> ENTERING -> OPEN -> EXITING -> FLAT and applied atomically;
// an illegal edge fails with ErrInvalidTransition instead of overwriting an
// in-flight transition. Records are created lazily and reset, never deleted.
type Tracker struct {
	mu        sync.Mutex
	positions map[string]*domain.Position
	now       func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		positions: make(map[string]*domain.Position),
		now:       time.Now,
	}
}

// get returns the record for symbol, creating a FLAT one on first reference.
// Callers must hold t.mu.
func (t *Tracker) get(symbol string) *domain.Position {
	pos, ok := t.positions[symbol]
	if !ok {
		pos = &domain.Position{Symbol: symbol, State: domain.StateFlat}
		t.positions[symbol] = pos
	}
	return pos
}

// Get returns a snapshot of the symbol's position.
func (t *Tracker) Get(symbol string) domain.Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.get(symbol)
}

// BeginEntry transitions FLAT -> ENTERING, claiming the symbol for an entry.
func (t *Tracker) BeginEntry(symbol string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos := t.get(symbol)
	if pos.State != domain.StateFlat {
		return fmt.Errorf("%w: beginEntry for %s in state %s", ports.ErrInvalidTransition, symbol, pos.State)
	}
	pos.State = domain.StateEntering
	return nil
}

// ConfirmEntry transitions ENTERING -> OPEN, recording the confirmed entry.
// Quantity is the engine's fee-adjusted fill estimate and must be positive:
// an OPEN position with zero quantity is unrepresentable.
func (t *Tracker) ConfirmEntry(symbol string, quantity float64, orderID string, entryPrice float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos := t.get(symbol)
	if pos.State != domain.StateEntering {
		return fmt.Errorf("%w: confirmEntry for %s in state %s", ports.ErrInvalidTransition, symbol, pos.State)
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: confirmEntry for %s with non-positive quantity %f", ports.ErrInvalidTransition, symbol, quantity)
	}
	pos.State = domain.StateOpen
	pos.Quantity = quantity
	pos.EntryOrderID = orderID
	pos.EntryPrice = entryPrice
	pos.EntryTime = t.now()
	return nil
}

// FailEntry reverts ENTERING -> FLAT after a failed entry order.
func (t *Tracker) FailEntry(symbol string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos := t.get(symbol)
	if pos.State != domain.StateEntering {
		return fmt.Errorf("%w: failEntry for %s in state %s", ports.ErrInvalidTransition, symbol, pos.State)
	}
	t.reset(pos)
	return nil
}

// SetExitOrder records the paired protective exit on an OPEN position.
func (t *Tracker) SetExitOrder(symbol string, orderID string, price float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos := t.get(symbol)
	if pos.State != domain.StateOpen {
		return fmt.Errorf("%w: setExitOrder for %s in state %s", ports.ErrInvalidTransition, symbol, pos.State)
	}
	pos.ExitOrderID = orderID
	pos.ExitPrice = price
	return nil
}

// BeginExit transitions OPEN -> EXITING. It requires a tracked quantity: with
// nothing tracked there is nothing for the engine to sell.
func (t *Tracker) BeginExit(symbol string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos := t.get(symbol)
	if pos.State != domain.StateOpen {
		return fmt.Errorf("%w: beginExit for %s in state %s", ports.ErrInvalidTransition, symbol, pos.State)
	}
	if pos.Quantity <= 0 {
		return fmt.Errorf("%w: beginExit for %s with no tracked quantity", ports.ErrInvalidTransition, symbol)
	}
	pos.State = domain.StateExiting
	return nil
}

// ConfirmExit transitions EXITING -> FLAT and returns the position as it was
// before the reset, for journaling.
func (t *Tracker) ConfirmExit(symbol string) (domain.Position, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos := t.get(symbol)
	if pos.State != domain.StateExiting {
		return domain.Position{}, fmt.Errorf("%w: confirmExit for %s in state %s", ports.ErrInvalidTransition, symbol, pos.State)
	}
	closed := *pos
	t.reset(pos)
	return closed, nil
}

// FailExit leaves an EXITING position in EXITING: the entry already executed,
// the position is real, and the exit stays retryable for manual resolution.
func (t *Tracker) FailExit(symbol string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos := t.get(symbol)
	if pos.State != domain.StateExiting {
		return fmt.Errorf("%w: failExit for %s in state %s", ports.ErrInvalidTransition, symbol, pos.State)
	}
	return nil
}

// reset returns a record to FLAT. Callers must hold t.mu.
func (t *Tracker) reset(pos *domain.Position) {
	symbol := pos.Symbol
	*pos = domain.Position{Symbol: symbol, State: domain.StateFlat}
}
