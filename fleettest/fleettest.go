/*
Package fleettest provides a suite of tests designed to assess implementations
of [twinfleet.Fleet] (e.g. the in-process simulator, or a client of a remote
one).

The tests operate on the fleet only through the Fleet interface, plus a tick
function that advances the fleet by exactly one update cycle, to check the
behaviours every consumer of a fleet relies on.

Call fleettest.Run in its own test to invoke the test-suite:

	func TestFleet(t *testing.T) {
		sim, err := twinfleet.NewSimulator(twinfleet.DefaultConfig())
		if err != nil {
			t.Fatal(err)
		}
		fleettest.Run(t, sim, sim.Tick)
	}

The update engine of the tested fleet must not run concurrently with the suite;
the suite drives ticks itself so that its checks are deterministic.
*/
package fleettest

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/go-digitaltwin/twinfleet"
)

// TickFunc advances the tested fleet by exactly one update cycle.
type TickFunc func(ctx context.Context)

type testCase struct {
	// Subtest name.
	name string
	// A path leading to the test-case's file and line in the source code.
	location string
	// check exercises the fleet and returns a description of every problem found.
	check func(ctx context.Context, f twinfleet.Fleet, tick TickFunc) []string
}

var cases = []testCase{
	{
		name:     "snapshot-shape",
		location: locateSource(),
		check: func(ctx context.Context, f twinfleet.Fleet, _ TickFunc) []string {
			return inspect(f.Snapshot(ctx), lockstepHistories, performanceClamped, uniqueIDs)
		},
	},
	{
		name:     "snapshot-order-is-stable",
		location: locateSource(),
		check: func(ctx context.Context, f twinfleet.Fleet, tick TickFunc) []string {
			before := ids(f.Snapshot(ctx))
			tick(ctx)
			after := ids(f.Snapshot(ctx))
			if diff := cmp.Diff(before, after); diff != "" {
				return []string{fmt.Sprintf("twin order changed across a tick (-before +after):\n%s", diff)}
			}
			return nil
		},
	},
	{
		name:     "back-to-back-snapshots-are-equal-and-independent",
		location: locateSource(),
		check: func(ctx context.Context, f twinfleet.Fleet, _ TickFunc) []string {
			a, b := f.Snapshot(ctx), f.Snapshot(ctx)
			if diff := cmp.Diff(a, b); diff != "" {
				return []string{fmt.Sprintf("back-to-back snapshots differ (-first +second):\n%s", diff)}
			}
			want := f.Snapshot(ctx)
			// Scribble over every value of the first snapshot.
			for i := range a {
				a[i].Name = "scribbled"
				a[i].Temperature = -1
				for _, m := range twinfleet.Metrics {
					h := a[i].History.Of(m)
					for j := range h {
						h[j] = -1
					}
				}
			}
			var problems []string
			if diff := cmp.Diff(want, b); diff != "" {
				problems = append(problems, fmt.Sprintf("mutating a snapshot changed another snapshot (-want +got):\n%s", diff))
			}
			if diff := cmp.Diff(want, f.Snapshot(ctx)); diff != "" {
				problems = append(problems, fmt.Sprintf("mutating a snapshot changed the fleet (-want +got):\n%s", diff))
			}
			return problems
		},
	},
	{
		name:     "tick-appends-current-values",
		location: locateSource(),
		check: func(ctx context.Context, f twinfleet.Fleet, tick TickFunc) []string {
			before := f.Snapshot(ctx)
			tick(ctx)
			after := f.Snapshot(ctx)
			if len(before) != len(after) {
				return []string{fmt.Sprintf("fleet size changed across a tick: %d, then %d", len(before), len(after))}
			}
			var problems []string
			for i := range after {
				problems = append(problems, appendedOnce(before[i], after[i])...)
			}
			return problems
		},
	},
	{
		name:     "many-ticks-keep-invariants",
		location: locateSource(),
		check: func(ctx context.Context, f twinfleet.Fleet, tick TickFunc) []string {
			before := f.Snapshot(ctx)
			for range 250 {
				tick(ctx)
			}
			after := f.Snapshot(ctx)
			problems := inspect(after, lockstepHistories, performanceClamped, uniqueIDs)
			for i := range after {
				for _, m := range twinfleet.Metrics {
					if got, want := len(after[i].History.Of(m)), len(before[i].History.Of(m)); got != want {
						problems = append(problems, fmt.Sprintf("twin %s: len(history.%v) = %d after many ticks, want %d", after[i].ID, m, got, want))
					}
				}
			}
			return problems
		},
	},
	{
		name:     "forecast-unknown-twin",
		location: locateSource(),
		check: func(ctx context.Context, f twinfleet.Fleet, _ TickFunc) []string {
			p, err := f.Forecast(ctx, "no-such-twin")
			if !errors.Is(err, twinfleet.ErrNotFound) {
				return []string{fmt.Sprintf("Forecast(unknown) error = %v, want %v", err, twinfleet.ErrNotFound)}
			}
			if diff := cmp.Diff(twinfleet.Prediction{}, p); diff != "" {
				return []string{fmt.Sprintf("Forecast(unknown) returned a non-zero prediction:\n%s", diff)}
			}
			return nil
		},
	},
	{
		name:     "forecast-every-twin",
		location: locateSource(),
		check: func(ctx context.Context, f twinfleet.Fleet, _ TickFunc) []string {
			var problems []string
			for _, v := range f.Snapshot(ctx) {
				p, err := f.Forecast(ctx, v.ID)
				if err != nil {
					problems = append(problems, fmt.Sprintf("Forecast(%s) failed: %v", v.ID, err))
					continue
				}
				problems = append(problems, consistentPrediction(v, p)...)
			}
			return problems
		},
	},
}

// Run invokes the test-suite against the given fleet. Test-cases share the
// fleet and run in order, each as its own subtest.
func Run(t *testing.T, f twinfleet.Fleet, tick TickFunc) {
	// The suite does not check performance, and fleets should not depend on
	// specific context values.
	ctx := context.Background()

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			for _, problem := range c.check(ctx, f, tick) {
				t.Error(problem)
			}
			if t.Failed() {
				t.Logf("Read the source for test-case %v at %v", c.name, c.location)
			}
		})
	}
}

func ids(views []twinfleet.TwinView) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.ID
	}
	return out
}

// Call this function to set the location of every test-case in the source file.
func locateSource() (path string) {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		panic("runtime.Caller failed")
	}
	return fmt.Sprintf("%v:%v", file, line)
}
