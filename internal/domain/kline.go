package domain

import "time"

// Kline represents a single candlestick data point.
type Kline struct {
	OpenTime time.Time // Start time of the interval
	Open     float64   // Opening price
	High     float64   // Highest price
	Low      float64   // Lowest price
	Close    float64   // Closing price
	Volume   float64   // Trading volume
}

// Closes extracts the close-price series from a list of klines.
func Closes(klines []Kline) []float64 {
	closes := make([]float64, len(klines))
	for i, k := range klines {
		closes[i] = k.Close
	}
	return closes
}
