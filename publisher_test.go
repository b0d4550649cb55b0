package twinfleet_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gocloud.dev/pubsub"
	"gocloud.dev/pubsub/mempubsub"

	"github.com/go-digitaltwin/twinfleet"
)

// newTopic returns an in-memory topic with one subscription, both shut down when
// the test completes.
func newTopic(t *testing.T) (*pubsub.Topic, *pubsub.Subscription) {
	t.Helper()
	topic := mempubsub.NewTopic()
	sub := mempubsub.NewSubscription(topic, time.Minute)
	t.Cleanup(func() {
		ctx := context.Background()
		_ = sub.Shutdown(ctx)
		_ = topic.Shutdown(ctx)
	})
	return topic, sub
}

func TestPublisher(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sim := newSimulator(t, testConfig())
	topic, sub := newTopic(t)

	want := make(map[string]twinfleet.TwinView)
	for _, v := range sim.Snapshot(ctx) {
		want[v.ID] = v
	}

	start := time.Now()
	if err := twinfleet.NewPublisher(sim, topic).Publish(ctx); err != nil {
		t.Fatal("Publish():", err)
	}

	got := make(map[string]twinfleet.TwinView)
	batches := make(map[string]bool)
	for range len(want) {
		msg, err := sub.Receive(ctx)
		if err != nil {
			t.Fatal("Receive():", err)
		}
		msg.Ack()

		o, err := twinfleet.DecodeTwinObserved(msg.Body)
		if err != nil {
			t.Fatal("DecodeTwinObserved():", err)
		}
		if o.Timestamp.Before(start.Add(-time.Second)) || o.Timestamp.After(time.Now()) {
			t.Errorf("twin %s observed at %v, want around %v", o.Twin.ID, o.Timestamp, start)
		}
		if id := msg.Metadata["twinID"]; id != o.Twin.ID {
			t.Errorf("twinID metadata = %q, want %q", id, o.Twin.ID)
		}
		batches[msg.Metadata["batchID"]] = true
		got[o.Twin.ID] = o.Twin
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("published twins mismatch (-want +got):\n%s", diff)
	}
	if len(batches) != 1 || batches[""] {
		t.Errorf("batchID metadata = %v, want a single non-empty batch", batches)
	}
}

func TestPublisherShutdownTopic(t *testing.T) {
	ctx := context.Background()
	sim := newSimulator(t, testConfig())
	topic, _ := newTopic(t)
	if err := topic.Shutdown(ctx); err != nil {
		t.Fatal("Shutdown():", err)
	}

	if err := twinfleet.NewPublisher(sim, topic).Publish(ctx); err == nil {
		t.Error("Publish() to a shut down topic succeeded, want error")
	}
}

func TestDecodeTwinObservedError(t *testing.T) {
	if _, err := twinfleet.DecodeTwinObserved([]byte("not gob")); err == nil {
		t.Error("DecodeTwinObserved(garbage) succeeded, want error")
	}
}
