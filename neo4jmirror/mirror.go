// Package neo4jmirror mirrors the live state of a fleet of twins into a Neo4j
// graph, where every twin is a node labelled Twin keyed by its id.
//
// The mirror is write-only from the fleet's point of view: simulators never read
// it back, so it is a view for graph-side tooling rather than a persistence
// layer.
package neo4jmirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/danielorbach/go-component"
	"github.com/go-digitaltwin/twinfleet"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// TwinLabel is the label of twin nodes.
const TwinLabel = "Twin"

// Mirror writes fleet snapshots into a single neo4j database.
type Mirror struct {
	driver   neo4j.DriverWithContext // Connection to the neo4j server/cluster.
	database string                  // Target database name.
}

// NewMirror returns a Mirror writing into the given database. Call
// BootstrapDatabase once beforehand.
func NewMirror(driver neo4j.DriverWithContext, database string) *Mirror {
	return &Mirror{driver: driver, database: database}
}

// Write upserts one node per view in a single transaction, so a reader of the
// graph sees either the whole snapshot or none of it. Twins missing from views
// are left untouched.
func (m *Mirror) Write(ctx context.Context, views []twinfleet.TwinView) (err error) {
	ctx, span := tracer.Start(ctx, "Mirror.Write", trace.WithAttributes(
		attribute.String("neo4j.database", m.database),
		attribute.Int("fleet.size", len(views)),
	))
	defer span.End()
	logger := component.Logger(ctx).With("neo4j.database", m.database)

	attrs := metric.WithAttributeSet(attribute.NewSet(attribute.String("neo4j.database", m.database)))
	defer func(start time.Time) {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			writeFailures.Add(ctx, 1, attrs)
			return
		}
		writeDuration.Record(ctx, float64(time.Since(start))/float64(time.Millisecond), attrs)
	}(time.Now())

	// A new session for every write keeps session-specific failures from leaking
	// into subsequent writes.
	s := m.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: m.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer func() {
		if err := s.Close(ctx); err != nil {
			logger.Error("Failed to close session", "error", err, "mode", "write")
		}
	}()

	twins := make([]any, len(views))
	for i, v := range views {
		twins[i] = twinProps(v)
	}

	query := `
		UNWIND $twins AS twin
		MERGE (t:` + TwinLabel + ` {id: twin.id})
		ON CREATE SET t._created_at = datetime()
		SET t += twin, t._last_modified = datetime()
		RETURN count(t) AS twins
	`
	_, err = s.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, query, map[string]any{"twins": twins})
		if err != nil {
			return nil, fmt.Errorf("run cypher: %w", err)
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, fmt.Errorf("query single result: %w", err)
		}
		n, err := getRecordProperty[int64](record, "twins")
		if err != nil {
			return nil, fmt.Errorf("get twins: %w", err)
		}
		// Each view maps to exactly one node keyed by id.
		if int(n) != len(views) {
			return nil, fmt.Errorf("upserted %d twin nodes instead of %d", n, len(views))
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neo4j execute: %w", err)
	}
	logger.Debug("Fleet mirrored", slog.Int("twins", len(views)))
	return nil
}

// Read returns every mirrored twin, ordered by numeric id.
func (m *Mirror) Read(ctx context.Context) ([]twinfleet.TwinView, error) {
	ctx, span := tracer.Start(ctx, "Mirror.Read", trace.WithAttributes(
		attribute.String("neo4j.database", m.database),
	))
	defer span.End()

	s := m.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: m.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer func() {
		if err := s.Close(ctx); err != nil {
			component.Logger(ctx).Error("Failed to close session", "error", err, "mode", "read")
		}
	}()

	views, err := s.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			MATCH (t:`+TwinLabel+`)
			RETURN t
			ORDER BY toInteger(t.id)
		`, nil)
		if err != nil {
			return nil, fmt.Errorf("run cypher: %w", err)
		}
		var views []twinfleet.TwinView
		for result.Next(ctx) {
			node, err := getRecordProperty[neo4j.Node](result.Record(), "t")
			if err != nil {
				return nil, fmt.Errorf("get twin node: %w", err)
			}
			v, err := parseTwin(node)
			if err != nil {
				return nil, fmt.Errorf("parse twin node: %w", err)
			}
			views = append(views, v)
		}
		return views, result.Err()
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("neo4j execute: %w", err)
	}
	return views.([]twinfleet.TwinView), nil
}

// Run mirrors a snapshot of fleet every interval until ctx is done. Failed
// writes are logged and retried on the next interval.
func (m *Mirror) Run(ctx context.Context, fleet twinfleet.Fleet, every time.Duration) {
	logger := component.Logger(ctx).With("neo4j.database", m.database)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := m.Write(ctx, fleet.Snapshot(ctx)); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			logger.Error("Couldn't mirror fleet", slog.Any("error", err))
		}
	}
}

// MirrorFleet returns a component.Proc that mirrors fleet into m every interval
// for as long as the component lives.
func MirrorFleet(fleet twinfleet.Fleet, m *Mirror, every time.Duration) component.Proc {
	return func(l *component.L) {
		m.Run(l.Context(), fleet, every)
	}
}

// twinProps flattens a view into the property map of its node. Histories are
// stored as list properties, one per metric.
func twinProps(v twinfleet.TwinView) map[string]any {
	return map[string]any{
		"id":                  v.ID,
		"name":                v.Name,
		"active":              v.Active,
		"temperature":         v.Temperature,
		"pressure":            v.Pressure,
		"performance":         v.Performance,
		"history_temperature": v.History.Temperature,
		"history_pressure":    v.History.Pressure,
		"history_performance": v.History.Performance,
	}
}

// parseTwin reverses twinProps.
func parseTwin(node neo4j.Node) (v twinfleet.TwinView, err error) {
	if v.ID, err = getNodeProperty[string](node, "id"); err != nil {
		return v, err
	}
	if v.Name, err = getNodeProperty[string](node, "name"); err != nil {
		return v, err
	}
	if v.Active, err = getNodeProperty[bool](node, "active"); err != nil {
		return v, err
	}
	if v.Temperature, err = getNodeProperty[float64](node, "temperature"); err != nil {
		return v, err
	}
	if v.Pressure, err = getNodeProperty[float64](node, "pressure"); err != nil {
		return v, err
	}
	if v.Performance, err = getNodeProperty[float64](node, "performance"); err != nil {
		return v, err
	}
	if v.History.Temperature, err = getNodeFloats(node, "history_temperature"); err != nil {
		return v, err
	}
	if v.History.Pressure, err = getNodeFloats(node, "history_pressure"); err != nil {
		return v, err
	}
	if v.History.Performance, err = getNodeFloats(node, "history_performance"); err != nil {
		return v, err
	}
	return v, nil
}

// errPropertyNotFound occurs when a property of a record or node is missing.
//
// It most likely occurs when changing a Cypher query without modifying the
// surrounding code properly.
var errPropertyNotFound = errors.New("property not found")

// An unexpectedPropertyTypeError occurs when a property has a runtime type that
// is different from the expected type. The error message contains the effective
// type of the property at runtime.
type unexpectedPropertyTypeError struct {
	Key  string
	Type reflect.Type // Effective type encountered at runtime.
}

func (e unexpectedPropertyTypeError) Error() string {
	return fmt.Sprintf("property %q: unexpected type: %v", e.Key, e.Type)
}

// The property interface lists the value types this package reads back from
// neo4j. It protects against types the driver never returns, like int or
// uint32.
type property interface {
	int64 | float64 | bool | string | neo4j.Node | []any
}

func getRecordProperty[T property](record *neo4j.Record, key string) (value T, err error) {
	prop, exists := record.Get(key)
	if !exists {
		return value, fmt.Errorf("%q: %w", key, errPropertyNotFound)
	}
	v, ok := prop.(T)
	if !ok {
		return value, unexpectedPropertyTypeError{Key: key, Type: reflect.TypeOf(prop)}
	}
	return v, nil
}

func getNodeProperty[T property](node neo4j.Node, key string) (value T, err error) {
	prop, exists := node.Props[key]
	if !exists {
		return value, fmt.Errorf("%q: %w", key, errPropertyNotFound)
	}
	v, ok := prop.(T)
	if !ok {
		return value, unexpectedPropertyTypeError{Key: key, Type: reflect.TypeOf(prop)}
	}
	return v, nil
}

// getNodeFloats reads a list property of floats. The driver returns lists as
// []any regardless of the type of their elements.
func getNodeFloats(node neo4j.Node, key string) ([]float64, error) {
	list, err := getNodeProperty[[]any](node, key)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(list))
	for i, x := range list {
		f, ok := x.(float64)
		if !ok {
			return nil, unexpectedPropertyTypeError{Key: key, Type: reflect.TypeOf(x)}
		}
		out[i] = f
	}
	return out, nil
}
