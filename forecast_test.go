package twinfleet_test

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/go-digitaltwin/twinfleet"
)

func TestForecast(t *testing.T) {
	var tests = []struct {
		name    string
		history []float64
		steps   int
		want    []float64
	}{
		{name: "NoHistory", history: nil, steps: 3, want: []float64{0, 0, 0}},
		{name: "EmptyHistory", history: []float64{}, steps: 2, want: []float64{0, 0}},
		{name: "SingleSample", history: []float64{21.5}, steps: 3, want: []float64{21.5, 21.5, 21.5}},
		{name: "SingleSampleRounded", history: []float64{1.23456}, steps: 1, want: []float64{1.235}},
		{name: "Increasing", history: []float64{1, 2, 3, 4, 5}, steps: 3, want: []float64{6, 7, 8}},
		{name: "Decreasing", history: []float64{10, 8, 6}, steps: 2, want: []float64{4, 2}},
		{name: "Flat", history: []float64{20, 20, 20, 20}, steps: 2, want: []float64{20, 20}},
		{name: "TwoSamples", history: []float64{1, 3}, steps: 2, want: []float64{5, 7}},
		// The least-squares line through (0,1) (1,3) (2,2) is y = 0.5x + 1.5.
		{name: "Noisy", history: []float64{1, 3, 2}, steps: 2, want: []float64{3, 3.5}},
		// y = x/3, rounded to 3 decimal places.
		{name: "Rounded", history: []float64{0, 1.0 / 3, 2.0 / 3}, steps: 1, want: []float64{1}},
		{name: "NoSteps", history: []float64{1, 2}, steps: 0, want: []float64{}},
		{name: "NegativeSteps", history: []float64{1, 2}, steps: -4, want: []float64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := twinfleet.Forecast(tt.history, tt.steps)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
				t.Errorf("Forecast(%v, %d) mismatch (-want +got):\n%s", tt.history, tt.steps, diff)
			}
		})
	}
}

func TestForecastLength(t *testing.T) {
	for n := range 8 {
		history := make([]float64, n)
		for i := range history {
			history[i] = float64(i * i)
		}
		for steps := range 8 {
			t.Run(fmt.Sprintf("n=%d/steps=%d", n, steps), func(t *testing.T) {
				if got := len(twinfleet.Forecast(history, steps)); got != steps {
					t.Errorf("len(Forecast()) = %d, want %d", got, steps)
				}
			})
		}
	}
}

func TestForecastDoesNotModifyHistory(t *testing.T) {
	history := []float64{3, 1, 4, 1, 5}
	want := append([]float64(nil), history...)
	twinfleet.Forecast(history, twinfleet.FutureSteps)
	if diff := cmp.Diff(want, history); diff != "" {
		t.Errorf("Forecast() modified its input (-want +got):\n%s", diff)
	}
}
