package twinfleet

import (
	"math"
	"strings"
)

// Metric identifies one of the three scalar measurements every twin reports.
type Metric int

const (
	Temperature Metric = iota // degrees Celsius
	Pressure                  // bar
	Performance               // percent
)

// Metrics lists all metrics in their canonical evaluation order.
var Metrics = [...]Metric{Temperature, Pressure, Performance}

// String returns the lower-case metric name used as a key in JSON documents.
func (m Metric) String() string {
	switch m {
	case Temperature:
		return "temperature"
	case Pressure:
		return "pressure"
	case Performance:
		return "performance"
	default:
		return "unknown"
	}
}

// Title returns the metric name with its first letter capitalised, as it
// appears at the start of alert messages.
func (m Metric) Title() string {
	s := m.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

// Precision is the number of decimal places a metric's values are rounded to
// when they are generated, stored and copied out.
func (m Metric) Precision() int {
	if m == Pressure {
		return 3
	}
	return 2
}

// Round rounds v to the metric's Precision.
func (m Metric) Round(v float64) float64 {
	return round(v, m.Precision())
}

// round rounds v to the given number of decimal places, with halves rounded
// away from zero.
func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// A Span is a closed interval [Lo, Hi] of metric values.
type Span struct {
	Lo, Hi float64
}

// seedSpan is the range initial values and initial history samples are drawn
// from.
func (m Metric) seedSpan() Span {
	switch m {
	case Temperature:
		return Span{18, 25}
	case Pressure:
		return Span{0.95, 1.10}
	default:
		return Span{70, 99}
	}
}

// driftSpan is the range of the noise added to a metric on every tick.
func (m Metric) driftSpan() Span {
	switch m {
	case Temperature:
		return Span{-0.5, 0.5}
	case Pressure:
		return Span{-0.01, 0.01}
	default:
		return Span{-2, 2}
	}
}

// Performance is the only clamped metric; temperature and pressure drift
// without bounds.
var performanceBounds = Span{50.0, 100.0}
