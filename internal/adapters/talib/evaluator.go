package talib

import (
	"context"
	"fmt"

	talib "github.com/markcheno/go-talib"

	"cryptoCrossBot/internal/domain"
	"cryptoCrossBot/internal/ports"
)

// Evaluator implements ports.SignalEvaluator with a simple moving-average
// crossover: an entry fires when the short MA crosses above the long MA on
// the latest bar, an exit when it crosses below. The indicator math itself
// is delegated to go-talib.
type Evaluator struct {
	shortPeriod int
	longPeriod  int
	logger      ports.Logger
}

// Config holds the crossover periods.
type Config struct {
	ShortPeriod int // e.g., 7
	LongPeriod  int // e.g., 25
}

// New creates a crossover evaluator.
func New(cfg Config, logger ports.Logger) (*Evaluator, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for evaluator")
	}
	if cfg.ShortPeriod <= 0 || cfg.LongPeriod <= 0 {
		return nil, fmt.Errorf("%w: MA periods must be positive", ports.ErrConfiguration)
	}
	if cfg.ShortPeriod >= cfg.LongPeriod {
		return nil, fmt.Errorf("%w: short MA period must be less than long MA period", ports.ErrConfiguration)
	}
	return &Evaluator{shortPeriod: cfg.ShortPeriod, longPeriod: cfg.LongPeriod, logger: logger}, nil
}

// RequiredDataPoints returns the minimum series length Evaluate needs: enough
// for the long MA plus the previous bar the crossover check compares against.
func (e *Evaluator) RequiredDataPoints() int {
	return e.longPeriod + 1
}

// Evaluate computes the crossover outcome for the given close series, oldest first.
func (e *Evaluator) Evaluate(ctx context.Context, closes []float64) (domain.Signal, error) {
	if len(closes) < e.RequiredDataPoints() {
		return domain.Signal{}, fmt.Errorf("need at least %d closes, got %d", e.RequiredDataPoints(), len(closes))
	}

	shortMA := talib.Sma(closes, e.shortPeriod)
	longMA := talib.Sma(closes, e.longPeriod)

	last := len(closes) - 1
	prev := last - 1

	signal := domain.Signal{Kind: domain.SignalNone, ClosePrice: closes[last]}
	switch {
	case shortMA[prev] <= longMA[prev] && shortMA[last] > longMA[last]:
		signal.Kind = domain.SignalEntry
	case shortMA[prev] >= longMA[prev] && shortMA[last] < longMA[last]:
		signal.Kind = domain.SignalExit
	}

	e.logger.Debug(ctx, "Crossover evaluated", map[string]interface{}{
		"close":   closes[last],
		"shortMA": shortMA[last],
		"longMA":  longMA[last],
		"kind":    signal.Kind,
	})
	return signal, nil
}
