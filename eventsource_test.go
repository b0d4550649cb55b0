package twinfleet_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-digitaltwin/twinfleet"
)

func TestTelemetrySourceConsume(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sim := newSimulator(t, testConfig())
	topic, sub := newTopic(t)
	if err := twinfleet.NewPublisher(sim, topic).Publish(ctx); err != nil {
		t.Fatal("Publish():", err)
	}

	t.Run("HandlerError", func(t *testing.T) {
		errBoom := errors.New("boom")
		err := twinfleet.NewTelemetrySource(sub).Consume(ctx, func(context.Context, twinfleet.TwinObserved) error {
			return errBoom
		})
		if !errors.Is(err, errBoom) {
			t.Errorf("Consume() error = %v, want %v", err, errBoom)
		}
	})

	t.Run("Cancelled", func(t *testing.T) {
		consumeCtx, stop := context.WithCancel(ctx)
		// The first event was consumed by the previous subtest.
		remaining := testConfig().NumTwins - 1
		var seen int
		err := twinfleet.NewTelemetrySource(sub).Consume(consumeCtx, func(_ context.Context, o twinfleet.TwinObserved) error {
			if o.Twin.ID == "" {
				t.Error("Consume() handled an observation without a twin id")
			}
			if seen++; seen == remaining {
				stop()
			}
			return nil
		})
		stop()
		if err != nil {
			t.Errorf("Consume() error = %v after cancellation, want nil", err)
		}
		if seen != remaining {
			t.Errorf("Consume() handled %d observations, want %d", seen, remaining)
		}
	})
}
