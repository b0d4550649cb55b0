package neo4jmirror

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("github.com/go-digitaltwin/twinfleet/neo4jmirror")
var meter = otel.Meter("github.com/go-digitaltwin/twinfleet/neo4jmirror")

var (
	// writeDuration measures the duration of a single mirror write transaction,
	// including retries performed by the neo4j driver.
	writeDuration metric.Float64Histogram
	// writeFailures counts mirror writes that did not commit.
	writeFailures metric.Int64Counter
)

func init() {
	// Encountering an error during an instrument's initialisation should not
	// occur; if it does, it is likely related to the options applied on the
	// instrument.
	var err error
	writeDuration, err = meter.Float64Histogram(
		"neo4jmirror.write.duration",
		metric.WithDescription("The duration of a single transaction mirroring the fleet into neo4j."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		panic(fmt.Sprintf("neo4jmirror: failed to init 'neo4jmirror.write.duration' instrument: %v", err))
	}

	writeFailures, err = meter.Int64Counter(
		"neo4jmirror.write.failures",
		metric.WithDescription("The number of fleet mirror transactions that have failed."),
	)
	if err != nil {
		panic(fmt.Sprintf("neo4jmirror: failed to init 'neo4jmirror.write.failures' instrument: %v", err))
	}
}
