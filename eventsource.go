package twinfleet

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielorbach/go-component"
	"gocloud.dev/pubsub"
)

// A TelemetrySource wraps a pubsub subscription to the topic a Publisher sends
// to, and decodes incoming messages into TwinObserved events.
type TelemetrySource struct {
	subscription *pubsub.Subscription
}

// NewTelemetrySource returns a TelemetrySource receiving from sub.
func NewTelemetrySource(sub *pubsub.Subscription) TelemetrySource {
	return TelemetrySource{subscription: sub}
}

// ObservationHandler processes a single decoded TwinObserved event.
type ObservationHandler func(ctx context.Context, o TwinObserved) error

// errStreamClosed is returned by next once its context is done.
var errStreamClosed = errors.New("stream closed")

// next blocks until the next event is received and decoded.
func (s TelemetrySource) next(ctx context.Context) (TwinObserved, error) {
	msg, err := s.subscription.Receive(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return TwinObserved{}, errStreamClosed
		}
		return TwinObserved{}, fmt.Errorf("receive: %w", err)
	}
	// Always ack, even if we fail to decode. Otherwise, we might get stuck
	// processing the same broken message.
	msg.Ack()

	o, err := DecodeTwinObserved(msg.Body)
	if err != nil {
		return TwinObserved{}, fmt.Errorf("decode: %w", err)
	}
	return o, nil
}

// Consume passes every received event to h until ctx is done, in which case it
// returns nil. It returns an error as soon as receiving, decoding or handling an
// event fails.
func (s TelemetrySource) Consume(ctx context.Context, h ObservationHandler) error {
	for {
		o, err := s.next(ctx)
		if errors.Is(err, errStreamClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := h(ctx, o); err != nil {
			return fmt.Errorf("process twin %s: %w", o.Twin.ID, err)
		}
	}
}

// Stream returns a component.Proc that continuously receives events and passes
// them to h, for as long as the component lives. Any failure is fatal to the
// component.
func (s TelemetrySource) Stream(h ObservationHandler) component.Proc {
	return func(l *component.L) {
		for l.Continue() {
			o, err := s.next(l.Context())
			if errors.Is(err, errStreamClosed) {
				// we're shutting down
				return
			}
			if err != nil {
				l.Fatal(err)
			}
			if err := h(l.Context(), o); err != nil {
				l.Fatal(fmt.Errorf("process twin %s: %w", o.Twin.ID, err))
			}
		}
	}
}
