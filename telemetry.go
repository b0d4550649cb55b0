package twinfleet

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("github.com/go-digitaltwin/twinfleet")
var meter = otel.Meter("github.com/go-digitaltwin/twinfleet")

const (
	// Attribute keys attached to measurements. They allow examining alerts per
	// metric and per direction, as well as collectively.
	metricNameKey = "twinfleet.metric"
	alertTypeKey  = "twinfleet.alert.type"
)

var (
	// tickDuration measures how long a single tick takes to perturb every twin of
	// the fleet.
	tickDuration metric.Float64Histogram
	// tickCounter counts the ticks applied since the process started.
	tickCounter metric.Int64Counter
	// alertCounter counts alerts raised by forecasts.
	//
	// Each record is associated with metricNameKey and alertTypeKey.
	alertCounter metric.Int64Counter
	// publishFailures counts telemetry broadcasts that failed to send at least one
	// message.
	publishFailures metric.Int64Counter
)

func init() {
	var err error
	tickDuration, err = meter.Float64Histogram(
		"twinfleet.tick.duration",
		metric.WithDescription("The duration of a single update tick across the entire fleet."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		panic("twinfleet: failed to init 'twinfleet.tick.duration' instrument")
	}

	tickCounter, err = meter.Int64Counter(
		"twinfleet.ticks",
		metric.WithDescription("The number of update ticks applied to the fleet."),
	)
	if err != nil {
		panic("twinfleet: failed to init 'twinfleet.ticks' instrument")
	}

	alertCounter, err = meter.Int64Counter(
		"twinfleet.forecast.alerts",
		metric.WithDescription("The number of threshold alerts raised by forecasts."),
	)
	if err != nil {
		panic("twinfleet: failed to init 'twinfleet.forecast.alerts' instrument")
	}

	publishFailures, err = meter.Int64Counter(
		"twinfleet.publish.failures",
		metric.WithDescription("The number of telemetry broadcasts that have failed."),
	)
	if err != nil {
		panic("twinfleet: failed to init 'twinfleet.publish.failures' instrument")
	}
}

// measureTick records the duration of one tick and counts it.
func measureTick(ctx context.Context, d time.Duration) {
	// Floating-point division keeps sub-millisecond precision.
	tickDuration.Record(ctx, float64(d)/float64(time.Millisecond))
	tickCounter.Add(ctx, 1)
}

// measureAlerts counts every alert in alerts, labelled by metric and direction.
func measureAlerts(ctx context.Context, alerts []Alert) {
	for _, a := range alerts {
		attrs := attribute.NewSet(
			attribute.String(metricNameKey, a.Metric),
			attribute.String(alertTypeKey, string(a.Type)),
		)
		alertCounter.Add(ctx, 1, metric.WithAttributeSet(attrs))
	}
}
