package position

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoCrossBot/internal/domain"
	"cryptoCrossBot/internal/ports"
)

func TestTracker_FullCycle(t *testing.T) {
	tr := NewTracker()
	const symbol = "BTCUSDT"

	// Lazily created as FLAT.
	assert.Equal(t, domain.StateFlat, tr.Get(symbol).State)

	require.NoError(t, tr.BeginEntry(symbol))
	assert.Equal(t, domain.StateEntering, tr.Get(symbol).State)

	require.NoError(t, tr.ConfirmEntry(symbol, 0.0014925, "ord-1", 64000))
	pos := tr.Get(symbol)
	assert.Equal(t, domain.StateOpen, pos.State)
	assert.Equal(t, 0.0014925, pos.Quantity)
	assert.Equal(t, "ord-1", pos.EntryOrderID)
	assert.False(t, pos.EntryTime.IsZero())

	require.NoError(t, tr.SetExitOrder(symbol, "ord-2", 65000))
	pos = tr.Get(symbol)
	assert.Equal(t, "ord-2", pos.ExitOrderID)
	assert.Equal(t, 65000.0, pos.ExitPrice)

	require.NoError(t, tr.BeginExit(symbol))
	assert.Equal(t, domain.StateExiting, tr.Get(symbol).State)

	closed, err := tr.ConfirmExit(symbol)
	require.NoError(t, err)
	assert.Equal(t, 0.0014925, closed.Quantity)
	assert.Equal(t, "ord-1", closed.EntryOrderID)

	// Reset to FLAT with everything cleared.
	pos = tr.Get(symbol)
	assert.Equal(t, domain.StateFlat, pos.State)
	assert.Zero(t, pos.Quantity)
	assert.Empty(t, pos.EntryOrderID)
	assert.Empty(t, pos.ExitOrderID)
}

func TestTracker_IllegalEdges(t *testing.T) {
	const symbol = "ETHUSDT"

	t.Run("no edge out of FLAT except beginEntry", func(t *testing.T) {
		tr := NewTracker()
		assert.ErrorIs(t, tr.ConfirmEntry(symbol, 1, "o", 1), ports.ErrInvalidTransition)
		assert.ErrorIs(t, tr.BeginExit(symbol), ports.ErrInvalidTransition)
		assert.ErrorIs(t, tr.FailEntry(symbol), ports.ErrInvalidTransition)
		assert.ErrorIs(t, tr.FailExit(symbol), ports.ErrInvalidTransition)
		_, err := tr.ConfirmExit(symbol)
		assert.ErrorIs(t, err, ports.ErrInvalidTransition)
	})

	t.Run("double beginEntry rejected", func(t *testing.T) {
		tr := NewTracker()
		require.NoError(t, tr.BeginEntry(symbol))
		assert.ErrorIs(t, tr.BeginEntry(symbol), ports.ErrInvalidTransition)
	})

	t.Run("beginEntry while OPEN rejected", func(t *testing.T) {
		tr := NewTracker()
		require.NoError(t, tr.BeginEntry(symbol))
		require.NoError(t, tr.ConfirmEntry(symbol, 1, "o", 1))
		assert.ErrorIs(t, tr.BeginEntry(symbol), ports.ErrInvalidTransition)
	})

	t.Run("zero-quantity entry cannot open", func(t *testing.T) {
		tr := NewTracker()
		require.NoError(t, tr.BeginEntry(symbol))
		assert.ErrorIs(t, tr.ConfirmEntry(symbol, 0, "o", 1), ports.ErrInvalidTransition)
	})

	t.Run("failEntry reverts to FLAT", func(t *testing.T) {
		tr := NewTracker()
		require.NoError(t, tr.BeginEntry(symbol))
		require.NoError(t, tr.FailEntry(symbol))
		assert.Equal(t, domain.StateFlat, tr.Get(symbol).State)
		require.NoError(t, tr.BeginEntry(symbol))
	})

	t.Run("failExit stays EXITING", func(t *testing.T) {
		tr := NewTracker()
		require.NoError(t, tr.BeginEntry(symbol))
		require.NoError(t, tr.ConfirmEntry(symbol, 1, "o", 1))
		require.NoError(t, tr.BeginExit(symbol))
		require.NoError(t, tr.FailExit(symbol))
		pos := tr.Get(symbol)
		assert.Equal(t, domain.StateExiting, pos.State)
		assert.Equal(t, 1.0, pos.Quantity, "quantity preserved for the retry")
	})
}

func TestTracker_SymbolsIndependent(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.BeginEntry("BTCUSDT"))
	// A claim on one symbol does not block another.
	require.NoError(t, tr.BeginEntry("ETHUSDT"))
	require.NoError(t, tr.ConfirmEntry("ETHUSDT", 2, "o2", 10))
	assert.Equal(t, domain.StateEntering, tr.Get("BTCUSDT").State)
	assert.Equal(t, domain.StateOpen, tr.Get("ETHUSDT").State)
}

// TestTracker_ConcurrentClaims simulates the scan loop and the user-action
// handler racing to claim the same symbol: exactly one BeginEntry may win,
// and no interleaving may produce OPEN with zero quantity.
func TestTracker_ConcurrentClaims(t *testing.T) {
	tr := NewTracker()
	const symbol = "BTCUSDT"
	const racers = 32

	var wg sync.WaitGroup
	wins := make(chan struct{}, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tr.BeginEntry(symbol) == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	assert.Equal(t, 1, count, "exactly one racer claims the entry")
	assert.Equal(t, domain.StateEntering, tr.Get(symbol).State)

	// Racing confirm/fail after the claim: one of them applies, then the
	// record is either OPEN with quantity or FLAT, never OPEN and empty.
	var wg2 sync.WaitGroup
	wg2.Add(2)
	go func() {
		defer wg2.Done()
		tr.ConfirmEntry(symbol, 0.5, "o", 1)
	}()
	go func() {
		defer wg2.Done()
		tr.FailEntry(symbol)
	}()
	wg2.Wait()

	pos := tr.Get(symbol)
	if pos.State == domain.StateOpen {
		assert.Greater(t, pos.Quantity, 0.0)
	} else {
		assert.Equal(t, domain.StateFlat, pos.State)
	}
}
