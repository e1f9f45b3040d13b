package alert

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoCrossBot/internal/ports"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type mockNotifier struct {
	sent    []string
	sendErr error
	photos  int
	actions chan ports.UserAction
}

func (m *mockNotifier) SendMessage(ctx context.Context, text string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, text)
	return nil
}

func (m *mockNotifier) SendPhoto(ctx context.Context, image []byte, caption string, actions []ports.Action) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.photos++
	m.sent = append(m.sent, caption)
	return nil
}

func (m *mockNotifier) ConfirmAction(symbol string, referencePrice float64) ports.Action {
	return ports.Action{Label: "Buy " + symbol, ID: symbol}
}

func (m *mockNotifier) Actions() <-chan ports.UserAction {
	return m.actions
}

// testDispatcher returns a dispatcher with a controllable clock.
func testDispatcher(t *testing.T, notifier *mockNotifier, cooldown time.Duration) (*Dispatcher, *time.Time) {
	t.Helper()
	d, err := NewDispatcher(notifier, cooldown, nopLogger{})
	require.NoError(t, err)
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return current }
	return d, &current
}

func TestDispatcher_CooldownIdempotence(t *testing.T) {
	notifier := &mockNotifier{}
	d, clock := testDispatcher(t, notifier, 10*time.Minute)
	ctx := context.Background()

	// Within the window the same message goes out exactly once.
	sent, err := d.Dispatch(ctx, "BTCUSDT", "Buy #BTCUSDT")
	require.NoError(t, err)
	assert.True(t, sent)

	for i := 0; i < 5; i++ {
		*clock = clock.Add(time.Minute)
		sent, err = d.Dispatch(ctx, "BTCUSDT", "Buy #BTCUSDT")
		require.NoError(t, err)
		assert.False(t, sent)
	}
	assert.Len(t, notifier.sent, 1)

	// After the window elapses it sends again.
	*clock = clock.Add(10 * time.Minute)
	sent, err = d.Dispatch(ctx, "BTCUSDT", "Buy #BTCUSDT")
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Len(t, notifier.sent, 2)
}

func TestDispatcher_MessageChangeBypassesCooldown(t *testing.T) {
	notifier := &mockNotifier{}
	d, clock := testDispatcher(t, notifier, 10*time.Minute)
	ctx := context.Background()

	sent, _ := d.Dispatch(ctx, "BTCUSDT", "Buy #BTCUSDT")
	assert.True(t, sent)

	*clock = clock.Add(time.Second)
	sent, _ = d.Dispatch(ctx, "BTCUSDT", "Sell #BTCUSDT")
	assert.True(t, sent, "a different message is never debounced")
	assert.Equal(t, []string{"Buy #BTCUSDT", "Sell #BTCUSDT"}, notifier.sent)
}

func TestDispatcher_SymbolsIndependent(t *testing.T) {
	notifier := &mockNotifier{}
	d, _ := testDispatcher(t, notifier, 10*time.Minute)
	ctx := context.Background()

	sent, _ := d.Dispatch(ctx, "BTCUSDT", "Buy")
	assert.True(t, sent)
	sent, _ = d.Dispatch(ctx, "ETHUSDT", "Buy")
	assert.True(t, sent, "records are keyed per symbol")
}

func TestDispatcher_FailedSendStaysEligible(t *testing.T) {
	notifier := &mockNotifier{sendErr: errors.New("boom")}
	d, _ := testDispatcher(t, notifier, 10*time.Minute)
	ctx := context.Background()

	sent, err := d.Dispatch(ctx, "BTCUSDT", "Buy")
	assert.Error(t, err)
	assert.False(t, sent)

	// Delivery failed, so nothing was recorded and a retry may send.
	notifier.sendErr = nil
	sent, err = d.Dispatch(ctx, "BTCUSDT", "Buy")
	require.NoError(t, err)
	assert.True(t, sent)
}

func TestDispatcher_ShouldSendDoesNotRecord(t *testing.T) {
	d, _ := testDispatcher(t, &mockNotifier{}, 10*time.Minute)

	assert.True(t, d.ShouldSend("BTCUSDT", "Buy"))
	assert.True(t, d.ShouldSend("BTCUSDT", "Buy"), "ShouldSend alone records nothing")

	d.RecordSend("BTCUSDT", "Buy")
	assert.False(t, d.ShouldSend("BTCUSDT", "Buy"))
}

func TestDispatcher_DispatchPhoto(t *testing.T) {
	notifier := &mockNotifier{}
	d, _ := testDispatcher(t, notifier, 10*time.Minute)
	ctx := context.Background()

	sent, err := d.DispatchPhoto(ctx, "BTCUSDT", []byte{1}, "Buy #BTCUSDT", nil)
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, 1, notifier.photos)

	// Caption shares the debounce with plain messages.
	sent, err = d.Dispatch(ctx, "BTCUSDT", "Buy #BTCUSDT")
	require.NoError(t, err)
	assert.False(t, sent)
}
