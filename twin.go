package twinfleet

import (
	"strconv"
	"sync"
)

// A twin is the live state of one simulated machine. Its metrics and their
// histories are guarded by mu so that a tick's update of all three metrics
// appears atomic to readers.
type twin struct {
	id     string
	name   string
	active bool

	mu      sync.Mutex
	current [len(Metrics)]float64
	history [len(Metrics)]*Window
}

// newTwin seeds a twin with independently drawn current values and a full
// history of independently drawn samples. The history is not a trend leading to
// the current values.
func newTwin(id int, name string, historyLen int, n *noise) *twin {
	t := &twin{
		id:     strconv.Itoa(id),
		name:   name,
		active: true,
	}
	for _, m := range Metrics {
		t.current[m] = m.Round(n.uniform(m.seedSpan()))
	}
	for _, m := range Metrics {
		t.history[m] = NewWindow(historyLen)
	}
	for range historyLen {
		for _, m := range Metrics {
			t.history[m].Push(m.Round(n.uniform(m.seedSpan())))
		}
	}
	return t
}

// perturb applies one tick to t: every metric drifts by bounded noise and its
// new value is appended to its history. Performance is clamped.
func (t *twin) perturb(n *noise) {
	// Draw the noise before locking; readers wait only for the assignments.
	var drift [len(Metrics)]float64
	for _, m := range Metrics {
		drift[m] = n.uniform(m.driftSpan())
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range Metrics {
		v := m.Round(t.current[m] + drift[m])
		if m == Performance {
			v = min(max(v, performanceBounds.Lo), performanceBounds.Hi)
		}
		t.current[m] = v
		t.history[m].Push(v)
	}
}

// view copies t out under its lock.
func (t *twin) view() TwinView {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TwinView{
		ID:          t.id,
		Name:        t.name,
		Active:      t.active,
		Temperature: Temperature.Round(t.current[Temperature]),
		Pressure:    Pressure.Round(t.current[Pressure]),
		Performance: Performance.Round(t.current[Performance]),
		History: Series{
			Temperature: t.history[Temperature].Values(),
			Pressure:    t.history[Pressure].Values(),
			Performance: t.history[Performance].Values(),
		},
	}
}

// TwinView is an independent, point-in-time copy of one twin. Nothing in a
// TwinView is shared with the simulator or with other views.
type TwinView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"` // reserved; always true

	Temperature float64 `json:"temperature"`
	Pressure    float64 `json:"pressure"`
	Performance float64 `json:"performance"`

	History Series `json:"history"`
}

// Value returns the view's current value of m.
func (v TwinView) Value(m Metric) float64 {
	switch m {
	case Temperature:
		return v.Temperature
	case Pressure:
		return v.Pressure
	default:
		return v.Performance
	}
}

// Series holds one ordered sequence of values per metric. Histories are oldest
// first; forecasts are nearest first.
type Series struct {
	Temperature []float64 `json:"temperature"`
	Pressure    []float64 `json:"pressure"`
	Performance []float64 `json:"performance"`
}

// Of returns the samples of m.
func (h Series) Of(m Metric) []float64 {
	switch m {
	case Temperature:
		return h.Temperature
	case Pressure:
		return h.Pressure
	default:
		return h.Performance
	}
}
