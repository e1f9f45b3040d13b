package ports

import (
	"context"

	"cryptoCrossBot/internal/domain"
)

// SignalEvaluator is the analytics collaborator: a pure function over a close
// price series. The execution core only consumes its outcome; indicator math
// lives behind this interface.
type SignalEvaluator interface {
	// RequiredDataPoints returns the minimum series length Evaluate needs.
	RequiredDataPoints() int

	// Evaluate computes the crossover outcome for the given close series
	// (oldest first). The series must be at least RequiredDataPoints long.
	Evaluate(ctx context.Context, closes []float64) (domain.Signal, error)
}
