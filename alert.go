package twinfleet

import (
	"fmt"
	"strconv"
	"strings"
)

// A Threshold is the band [Low, High] a metric is expected to stay within.
type Threshold struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Thresholds holds one band per metric.
type Thresholds struct {
	Temperature Threshold `json:"temperature"`
	Pressure    Threshold `json:"pressure"`
	Performance Threshold `json:"performance"`
}

// Of returns the band of m.
func (t Thresholds) Of(m Metric) Threshold {
	switch m {
	case Temperature:
		return t.Temperature
	case Pressure:
		return t.Pressure
	default:
		return t.Performance
	}
}

// DefaultThresholds returns the fixed bands forecasts are evaluated against.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Temperature: Threshold{Low: 15.0, High: 28.0},
		Pressure:    Threshold{Low: 0.90, High: 1.20},
		Performance: Threshold{Low: 60.0, High: 100.0},
	}
}

// AlertType is the direction in which a forecast leaves its band.
type AlertType string

const (
	AlertLow  AlertType = "LOW"
	AlertHigh AlertType = "HIGH"
)

// An Alert reports the first forecast step at which a metric leaves its band.
type Alert struct {
	Metric    string    `json:"metric"`
	Type      AlertType `json:"type"`
	Value     float64   `json:"value"`      // forecast value at the crossing, 3 decimal places
	InSeconds int       `json:"in_seconds"` // step * step seconds
	Message   string    `json:"message"`
}

// EvaluateAlert scans forecast in order, counting steps from 1, and reports the
// first step whose value falls below band.Low or rises above band.High. Later
// crossings are ignored, so a metric yields at most one alert. It returns false
// when every step stays within the band.
func EvaluateAlert(m Metric, forecast []float64, band Threshold, stepSeconds int) (Alert, bool) {
	for i, v := range forecast {
		step := i + 1
		var (
			typ   AlertType
			bound float64
			verb  string
		)
		switch {
		case v < band.Low:
			typ, bound, verb = AlertLow, band.Low, "drop below"
		case v > band.High:
			typ, bound, verb = AlertHigh, band.High, "exceed"
		default:
			continue
		}
		secs := step * stepSeconds
		return Alert{
			Metric:    m.String(),
			Type:      typ,
			Value:     round(v, 3),
			InSeconds: secs,
			Message: fmt.Sprintf("%s predicted to %s %s in %ds (~%s min).",
				m.Title(), verb, formatDecimal(bound), secs, formatDecimal(round(float64(secs)/60, 1))),
		}, true
	}
	return Alert{}, false
}

// formatDecimal formats v in its shortest form, always keeping at least one
// fractional digit (15 is written as "15.0").
func formatDecimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
