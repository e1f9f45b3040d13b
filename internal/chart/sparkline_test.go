package chart

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSparkline_ProducesDecodablePNG(t *testing.T) {
	data, err := Sparkline([]float64{100, 102, 101, 105, 104, 110}, 300, 100)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 300, img.Bounds().Dx())
	assert.Equal(t, 100, img.Bounds().Dy())
}

func TestSparkline_FlatSeries(t *testing.T) {
	data, err := Sparkline([]float64{50, 50, 50, 50}, 100, 50)
	require.NoError(t, err)

	_, err = png.Decode(bytes.NewReader(data))
	assert.NoError(t, err)
}

func TestSparkline_TooFewPoints(t *testing.T) {
	_, err := Sparkline([]float64{100}, 100, 50)
	assert.Error(t, err)
}

func TestSparkline_MinimumDimensionsEnforced(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = float64(100 + i)
	}
	data, err := Sparkline(closes, 10, 10)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, img.Bounds().Dx(), 2*len(closes))
	assert.GreaterOrEqual(t, img.Bounds().Dy(), 40)
}
