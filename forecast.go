package twinfleet

import (
	"gonum.org/v1/gonum/floats"
)

// FutureSteps is the forecast horizon, in ticks.
const FutureSteps = 6

// Forecast fits an ordinary least-squares line through the (index, value) pairs
// of history, with indices 0..n-1, and extrapolates it over the next steps
// indices n..n+steps-1. Every extrapolated value is rounded to 3 decimal places.
//
// With no history the forecast is all zeros; with a single sample it repeats
// that sample. The returned slice always has length steps (zero when steps is
// negative).
func Forecast(history []float64, steps int) []float64 {
	steps = max(steps, 0)
	out := make([]float64, steps)

	n := len(history)
	switch n {
	case 0:
		return out
	case 1:
		for i := range out {
			out[i] = round(history[0], 3)
		}
		return out
	}

	xs := make([]float64, n)
	floats.Span(xs, 0, float64(n-1))
	var (
		fn    = float64(n)
		sumX  = floats.Sum(xs)
		sumY  = floats.Sum(history)
		sumXX = floats.Dot(xs, xs)
		sumXY = floats.Dot(xs, history)
	)
	denom := fn*sumXX - sumX*sumX
	// Distinct indices make the denominator non-zero whenever n >= 2.
	if denom == 0 {
		denom = 1.0
	}
	a := (fn*sumXY - sumX*sumY) / denom
	b := (sumY - a*sumX) / fn

	for i := range out {
		out[i] = round(a*float64(n+i)+b, 3)
	}
	return out
}
