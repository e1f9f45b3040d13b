package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoCrossBot/internal/domain"
)

type testLogger struct{}

func (testLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (testLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (testLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (testLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(Config{
		DBPath: filepath.Join(t.TempDir(), "journal.db"),
		Logger: testLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleTrade(symbol string, pnl float64, exitTime time.Time) *domain.Trade {
	return &domain.Trade{
		Symbol:      symbol,
		EntryPrice:  100.0,
		ExitPrice:   100.0 + pnl,
		Quantity:    1.0,
		PNL:         pnl,
		EntryTime:   exitTime.Add(-time.Hour),
		ExitTime:    exitTime,
		CloseReason: domain.CloseReasonSignal,
	}
}

func TestRepository_CreateAndFind(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	id1, err := repo.CreateTrade(ctx, sampleTrade("BTCUSDT", 5.0, now.Add(-2*time.Minute)))
	require.NoError(t, err)
	id2, err := repo.CreateTrade(ctx, sampleTrade("BTCUSDT", -2.0, now))
	require.NoError(t, err)
	_, err = repo.CreateTrade(ctx, sampleTrade("ETHUSDT", 1.0, now))
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	trades, err := repo.FindBySymbol(ctx, "BTCUSDT", 10)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	// Most recent first.
	assert.Equal(t, -2.0, trades[0].PNL)
	assert.Equal(t, 5.0, trades[1].PNL)
	assert.Equal(t, domain.CloseReasonSignal, trades[0].CloseReason)

	limited, err := repo.FindBySymbol(ctx, "BTCUSDT", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRepository_GetTotalProfit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Empty journal sums to zero.
	total, err := repo.GetTotalProfit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, total)

	now := time.Now().UTC()
	_, err = repo.CreateTrade(ctx, sampleTrade("BTCUSDT", 5.0, now))
	require.NoError(t, err)
	_, err = repo.CreateTrade(ctx, sampleTrade("ETHUSDT", -1.5, now))
	require.NoError(t, err)

	total, err = repo.GetTotalProfit(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 3.5, total, 1e-9)
}
