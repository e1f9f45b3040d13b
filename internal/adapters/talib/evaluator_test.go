package talib

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoCrossBot/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{ShortPeriod: 0, LongPeriod: 5}, nopLogger{})
	assert.Error(t, err)
	_, err = New(Config{ShortPeriod: 5, LongPeriod: 5}, nopLogger{})
	assert.Error(t, err)
	_, err = New(Config{ShortPeriod: 2, LongPeriod: 5}, nopLogger{})
	assert.NoError(t, err)
}

func TestEvaluator_Evaluate(t *testing.T) {
	eval, err := New(Config{ShortPeriod: 2, LongPeriod: 4}, nopLogger{})
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("too few closes", func(t *testing.T) {
		_, err := eval.Evaluate(ctx, []float64{1, 2, 3, 4})
		assert.Error(t, err)
	})

	t.Run("entry on upward cross", func(t *testing.T) {
		// Flat series then a sharp rise: the short MA overtakes the long MA
		// on the final bar only.
		closes := []float64{10, 10, 10, 10, 10, 14}
		sig, err := eval.Evaluate(ctx, closes)
		require.NoError(t, err)
		assert.Equal(t, domain.SignalEntry, sig.Kind)
		assert.Equal(t, 14.0, sig.ClosePrice)
	})

	t.Run("exit on downward cross", func(t *testing.T) {
		closes := []float64{10, 10, 10, 10, 10, 6}
		sig, err := eval.Evaluate(ctx, closes)
		require.NoError(t, err)
		assert.Equal(t, domain.SignalExit, sig.Kind)
	})

	t.Run("no signal while trend persists", func(t *testing.T) {
		// Already crossed several bars ago; no fresh cross on the last bar.
		closes := []float64{10, 10, 10, 14, 15, 16}
		sig, err := eval.Evaluate(ctx, closes)
		require.NoError(t, err)
		assert.Equal(t, domain.SignalNone, sig.Kind)
	})
}
