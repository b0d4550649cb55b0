package twinfleet

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielorbach/go-component"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gocloud.dev/pubsub"
	"golang.org/x/sync/errgroup"
)

// TwinObserved notifies about the state of a single twin at a point in time.
// Publishers send one TwinObserved per twin per broadcast; the messages are
// gob-encoded.
type TwinObserved struct {
	Twin TwinView
	// The time, in UTC, the broadcast was started. The information in this message
	// is accurate up to this timestamp, not a moment afterwards.
	Timestamp time.Time
}

// Metadata keys attached to every published message.
const (
	// twinIDKey carries the twin id. Brokers that partition by key (e.g. Kafka)
	// preserve the order of messages about the same twin.
	twinIDKey = "twinID"
	// batchIDKey correlates all messages sent by a single broadcast.
	batchIDKey = "batchID"
)

// A Publisher broadcasts the telemetry of a Fleet to a pubsub topic.
type Publisher struct {
	fleet Fleet
	sink  *pubsub.Topic
}

// NewPublisher returns a Publisher that snapshots fleet and sends to sink.
func NewPublisher(fleet Fleet, sink *pubsub.Topic) *Publisher {
	return &Publisher{fleet: fleet, sink: sink}
}

// Publish snapshots the fleet once and sends one TwinObserved message per twin.
// Messages are sent concurrently; Publish returns an error if it fails to send
// even a single message.
func (p *Publisher) Publish(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "Publisher.Publish")
	defer span.End()
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			publishFailures.Add(ctx, 1)
		}
	}()

	batch := uuid.NewString()
	logger := component.Logger(ctx).With(slog.String("batch-id", batch))
	now := time.Now().UTC()
	views := p.fleet.Snapshot(ctx)

	g, ctx := errgroup.WithContext(ctx)
	for _, v := range views {
		g.Go(func() error {
			return p.send(ctx, logger, batch, TwinObserved{Twin: v, Timestamp: now})
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("send twin observations: %w", err)
	}
	logger.Debug("Fleet telemetry published", slog.Int("twins", len(views)))
	return nil
}

func (p *Publisher) send(ctx context.Context, logger *slog.Logger, batch string, o TwinObserved) error {
	ctx, span := tracer.Start(ctx, "Publisher.send", trace.WithAttributes(
		attribute.String("twin.id", o.Twin.ID),
	))
	defer span.End()

	var b bytes.Buffer
	if err := gob.NewEncoder(&b).Encode(o); err != nil {
		err := fmt.Errorf("encode gob: %w", err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	msg := &pubsub.Message{
		Body: b.Bytes(),
		Metadata: map[string]string{
			twinIDKey:  o.Twin.ID,
			batchIDKey: batch,
		},
	}
	if err := p.sink.Send(ctx, msg); err != nil {
		err := fmt.Errorf("send twin %s: %w", o.Twin.ID, err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	logger.Debug("TwinObserved message sent", slog.String("twin-id", o.Twin.ID))
	return nil
}

// Run publishes the fleet every interval until ctx is done. Failed broadcasts
// are logged and retried on the next interval; there is no backlog.
func (p *Publisher) Run(ctx context.Context, every time.Duration) {
	logger := component.Logger(ctx)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := p.Publish(ctx); err != nil {
			logger.Error("Couldn't publish fleet telemetry", slog.Any("error", err))
		}
	}
}

// PublishTelemetry returns a component.Proc that publishes the fleet every
// interval for as long as the component lives.
func PublishTelemetry(p *Publisher, every time.Duration) component.Proc {
	return func(l *component.L) {
		p.Run(l.Context(), every)
	}
}

// DecodeTwinObserved decodes the body of a message sent by a Publisher.
func DecodeTwinObserved(body []byte) (TwinObserved, error) {
	var o TwinObserved
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&o); err != nil {
		return TwinObserved{}, fmt.Errorf("decode gob: %w", err)
	}
	return o, nil
}
