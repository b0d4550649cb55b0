package twinfleet_test

import (
	"context"
	"maps"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gocloud.dev/pubsub"

	"github.com/go-digitaltwin/twinfleet"
)

// overheating maps twins to their temperature, as long as it exceeds 25 degrees.
func overheating(v twinfleet.TwinView) (float64, bool) {
	return v.Temperature, v.Temperature > 25
}

func TestAttributeMap(t *testing.T) {
	hot := twinfleet.TwinView{ID: "1", Temperature: 30}
	cold := twinfleet.TwinView{ID: "1", Temperature: 20}
	other := twinfleet.TwinView{ID: "2", Temperature: 26}

	t.Run("Update", func(t *testing.T) {
		m := twinfleet.NewAttributeMap(overheating)
		if _, ok := m.Find("1"); ok {
			t.Errorf("Find(empty map) = true, expected false")
		}

		m.Update(hot)
		got, ok := m.Find("1")
		if !ok {
			t.Fatalf("Find(1) not found")
		}
		if got != 30 {
			t.Errorf("Find(1) = %v, want 30", got)
		}

		// An invalid attribute expunges the twin.
		m.Update(cold)
		if _, ok := m.Find("1"); ok {
			t.Errorf("Find(1) = true after the attribute became invalid, expected false")
		}
	})

	t.Run("Observe", func(t *testing.T) {
		m := twinfleet.NewAttributeMap(overheating)
		now := time.Now()

		m.Observe(twinfleet.TwinObserved{Twin: hot, Timestamp: now})
		// Older observations are ignored, newer ones are applied.
		m.Observe(twinfleet.TwinObserved{Twin: cold, Timestamp: now.Add(-time.Second)})
		if got, ok := m.Find("1"); !ok || got != 30 {
			t.Errorf("Find(1) = (%v, %v) after a stale observation, want (30, true)", got, ok)
		}
		m.Observe(twinfleet.TwinObserved{Twin: twinfleet.TwinView{ID: "1", Temperature: 31}, Timestamp: now.Add(time.Second)})
		if got, ok := m.Find("1"); !ok || got != 31 {
			t.Errorf("Find(1) = (%v, %v) after a newer observation, want (31, true)", got, ok)
		}
	})

	t.Run("All", func(t *testing.T) {
		m := twinfleet.NewAttributeMap(overheating)
		m.Update(hot)
		m.Update(other)
		m.Update(twinfleet.TwinView{ID: "3", Temperature: 10})

		want := map[string]float64{"1": 30, "2": 26}
		if diff := cmp.Diff(want, maps.Collect(m.All())); diff != "" {
			t.Errorf("All() mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestAttributeMapTrack(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sim := newSimulator(t, testConfig())
	topic, sub := newTopic(t)
	m := twinfleet.NewAttributeMap(func(v twinfleet.TwinView) (string, bool) {
		return v.Name, true
	})

	trackCtx, stopTracking := context.WithCancel(ctx)
	defer stopTracking()
	errc := make(chan error, 1)
	go func() { errc <- m.Track(trackCtx, sub) }()

	if err := twinfleet.NewPublisher(sim, topic).Publish(ctx); err != nil {
		t.Fatal("Publish():", err)
	}

	want := make(map[string]string)
	for _, v := range sim.Snapshot(ctx) {
		want[v.ID] = v.Name
	}
	for !cmp.Equal(want, maps.Collect(m.All())) {
		select {
		case <-ctx.Done():
			t.Fatalf("Tracked attributes never converged (-want +got):\n%s", cmp.Diff(want, maps.Collect(m.All())))
		case err := <-errc:
			t.Fatalf("Track() returned early: %v", err)
		case <-time.After(10 * time.Millisecond):
		}
	}

	stopTracking()
	if err := <-errc; err != nil {
		t.Errorf("Track() error = %v after cancellation, want nil", err)
	}
}

func TestAttributeMapTrackBrokenMessage(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	topic, sub := newTopic(t)
	if err := topic.Send(ctx, &pubsub.Message{Body: []byte("not gob")}); err != nil {
		t.Fatal("Send():", err)
	}

	m := twinfleet.NewAttributeMap(overheating)
	if err := m.Track(ctx, sub); err == nil {
		t.Error("Track() succeeded on a broken message, want error")
	}
}
