// Package chart renders a minimal close-price sparkline for chat prompts.
package chart

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
)

var (
	background = color.RGBA{R: 17, G: 20, B: 28, A: 255}
	lineColor  = color.RGBA{R: 80, G: 200, B: 120, A: 255}
	gridColor  = color.RGBA{R: 45, G: 50, B: 60, A: 255}
)

// Sparkline renders the close series (oldest first) as a PNG line chart.
// It is deliberately crude: the image only needs to give the user a sense of
// the recent trend next to the confirmation buttons.
func Sparkline(closes []float64, width, height int) ([]byte, error) {
	if len(closes) < 2 {
		return nil, fmt.Errorf("sparkline needs at least 2 points, got %d", len(closes))
	}
	if width < 2*len(closes) {
		width = 2 * len(closes)
	}
	if height < 40 {
		height = 40
	}

	min, max := closes[0], closes[0]
	for _, c := range closes[1:] {
		if c < min {
			min = c
		}
		if c > max {
			max = c
		}
	}
	span := max - min
	if span == 0 {
		span = 1 // flat series degenerates to a single horizontal line
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, background)
		}
	}
	// Quartile grid lines.
	for _, f := range []float64{0.25, 0.5, 0.75} {
		y := int(f * float64(height-1))
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, gridColor)
		}
	}

	margin := 4
	plotH := height - 2*margin
	toY := func(v float64) int {
		return margin + plotH - 1 - int((v-min)/span*float64(plotH-1))
	}
	toX := func(i int) int {
		return i * (width - 1) / (len(closes) - 1)
	}

	for i := 1; i < len(closes); i++ {
		drawLine(img, toX(i-1), toY(closes[i-1]), toX(i), toY(closes[i]))
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode sparkline: %w", err)
	}
	return buf.Bytes(), nil
}

// drawLine draws a 1px segment using the integer midpoint algorithm.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		img.SetRGBA(x0, y0, lineColor)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
