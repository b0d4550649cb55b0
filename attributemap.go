package twinfleet

import (
	"context"
	"iter"
	"maps"
	"sync"
	"time"

	"github.com/danielorbach/go-component"
	"gocloud.dev/pubsub"
)

// An AttributeFunc derives a single attribute from the state of a twin. It
// returns the attribute's value and a bool indicating whether that attribute is
// valid for that twin.
type AttributeFunc[V any] func(view TwinView) (V, bool)

// AttributeMap correlates twins with their last known attribute value. The
// generic parameter V denotes the type of the attribute's value.
//
// Use the map's Update (or Observe) and Find methods to modify and access the
// stored attribute values by twin id.
//
// AttributeMap is safe for concurrent use.
type AttributeMap[V any] struct {
	mu          sync.Mutex
	m           map[string]attributeValue[V]
	attributeOf AttributeFunc[V]
}

type attributeValue[V any] struct {
	value V
	at    time.Time // timestamp of the observation the value was derived from
}

// NewAttributeMap returns a view of a single attribute of every twin. The
// provided attr function defines the attribute to store.
func NewAttributeMap[V any](attr AttributeFunc[V]) *AttributeMap[V] {
	return &AttributeMap[V]{
		m:           make(map[string]attributeValue[V]),
		attributeOf: attr,
	}
}

// Find looks up the given twin id and returns its last known attribute value.
// If the twin is unknown, Find indicates that by returning ok == false.
func (a *AttributeMap[V]) Find(id string) (v V, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	x, ok := a.m[id]
	return x.value, ok
}

// Update determines the effective value of the mapped attribute based on the
// given view, regardless of when the view was taken.
//
// If the attribute is deemed invalid for the view, the twin is expunged from the
// map; we cannot keep a previous value once the current state invalidates it.
func (a *AttributeMap[V]) Update(view TwinView) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.update(view, time.Time{})
}

// Observe is like Update, except that it ignores observations older than the one
// the stored value was derived from. Brokers may redeliver or reorder messages
// across broadcasts.
func (a *AttributeMap[V]) Observe(o TwinObserved) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if prev, ok := a.m[o.Twin.ID]; ok && o.Timestamp.Before(prev.at) {
		return
	}
	a.update(o.Twin, o.Timestamp)
}

func (a *AttributeMap[V]) update(view TwinView, at time.Time) {
	v, ok := a.attributeOf(view)
	if !ok {
		delete(a.m, view.ID)
		return
	}
	a.m[view.ID] = attributeValue[V]{value: v, at: at}
}

// All returns an iterator over a copy of the map taken when All is called.
func (a *AttributeMap[V]) All() iter.Seq2[string, V] {
	a.mu.Lock()
	values := make(map[string]V, len(a.m))
	for id, x := range a.m {
		values[id] = x.value
	}
	a.mu.Unlock()
	return maps.All(values)
}

// Track observes every TwinObserved event received from source until ctx is
// done. It returns nil once ctx is done, or an error if receiving or decoding
// fails.
func (a *AttributeMap[V]) Track(ctx context.Context, source *pubsub.Subscription) error {
	return NewTelemetrySource(source).Consume(ctx, func(_ context.Context, o TwinObserved) error {
		a.Observe(o)
		return nil
	})
}

// TrackAttribute returns a component.Proc that tracks TwinObserved
// notifications and maintains an up-to-date view of attribute values in m.
func TrackAttribute[V any](m *AttributeMap[V], source *pubsub.Subscription) component.Proc {
	return func(l *component.L) {
		if err := m.Track(l.GraceContext(), source); err != nil {
			l.Fatalf("Stopping attribute tracking: %v", err)
		}
	}
}
