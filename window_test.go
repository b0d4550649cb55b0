package twinfleet_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/go-digitaltwin/twinfleet"
)

func TestWindow(t *testing.T) {
	var tests = []struct {
		name     string
		capacity int
		push     []float64
		want     []float64
	}{
		{name: "Empty", capacity: 3, want: []float64{}},
		{name: "Partial", capacity: 3, push: []float64{1, 2}, want: []float64{1, 2}},
		{name: "Full", capacity: 3, push: []float64{1, 2, 3}, want: []float64{1, 2, 3}},
		{name: "EvictsOldest", capacity: 3, push: []float64{1, 2, 3, 4}, want: []float64{2, 3, 4}},
		{name: "WrapsTwice", capacity: 3, push: []float64{1, 2, 3, 4, 5, 6, 7}, want: []float64{5, 6, 7}},
		{name: "SingleSlot", capacity: 1, push: []float64{1, 2, 3}, want: []float64{3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := twinfleet.NewWindow(tt.capacity)
			for _, v := range tt.push {
				w.Push(v)
			}
			if diff := cmp.Diff(tt.want, w.Values()); diff != "" {
				t.Errorf("Values() mismatch (-want +got):\n%s", diff)
			}
			if got := w.Len(); got != len(tt.want) {
				t.Errorf("Len() = %d, want %d", got, len(tt.want))
			}
			if got := w.Cap(); got != tt.capacity {
				t.Errorf("Cap() = %d, want %d", got, tt.capacity)
			}
		})
	}
}

func TestWindowValuesAreCopies(t *testing.T) {
	w := twinfleet.NewWindow(2)
	w.Push(1)
	w.Push(2)

	got := w.Values()
	got[0] = 100
	if diff := cmp.Diff([]float64{1, 2}, w.Values()); diff != "" {
		t.Errorf("Values() changed after modifying a previous copy (-want +got):\n%s", diff)
	}
}

func TestNewWindowPanics(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		func() {
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("NewWindow(%d) did not panic", capacity)
				}
			}()
			twinfleet.NewWindow(capacity)
		}()
	}
}
