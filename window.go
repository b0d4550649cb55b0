package twinfleet

// A Window is a fixed-capacity ring buffer of metric samples. Once full, every
// Push evicts the oldest sample. Insertion order is chronological order.
//
// A Window is not safe for concurrent use; twins guard their windows with their
// own mutex.
type Window struct {
	buf   []float64
	head  int // index of the oldest sample
	count int
}

// NewWindow returns an empty Window holding at most capacity samples. It panics
// if capacity is not positive.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		panic("twinfleet: non-positive window capacity")
	}
	return &Window{buf: make([]float64, capacity)}
}

// Push appends v as the newest sample, evicting the oldest one if the window is
// already at capacity.
func (w *Window) Push(v float64) {
	if w.count < len(w.buf) {
		w.buf[(w.head+w.count)%len(w.buf)] = v
		w.count++
		return
	}
	w.buf[w.head] = v
	w.head = (w.head + 1) % len(w.buf)
}

// Len returns the number of samples currently held.
func (w *Window) Len() int { return w.count }

// Cap returns the maximum number of samples the window holds.
func (w *Window) Cap() int { return len(w.buf) }

// Values returns a copy of the held samples, oldest first. Modifying the
// returned slice does not affect the window.
func (w *Window) Values() []float64 {
	out := make([]float64, w.count)
	for i := range out {
		out[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return out
}
