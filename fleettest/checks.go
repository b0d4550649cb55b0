package fleettest

import (
	"fmt"

	"github.com/google/go-cmp/cmp"

	"github.com/go-digitaltwin/twinfleet"
)

// A check is any function that returns unexpected problems with the given
// snapshot of a fleet.
type check func(views []twinfleet.TwinView) (problems []string)

func inspect(views []twinfleet.TwinView, checks ...check) (problems []string) {
	if len(views) == 0 {
		return []string{"snapshot is empty; a fleet always holds at least one twin"}
	}
	for _, c := range checks {
		problems = append(problems, c(views)...)
	}
	return problems
}

// Checks that the three histories of every twin have the same, positive length.
func lockstepHistories(views []twinfleet.TwinView) (problems []string) {
	for _, v := range views {
		t, p, f := len(v.History.Temperature), len(v.History.Pressure), len(v.History.Performance)
		if t != p || p != f {
			problems = append(problems, fmt.Sprintf("twin %s: history lengths differ: temperature=%d pressure=%d performance=%d", v.ID, t, p, f))
		}
		if t == 0 {
			problems = append(problems, fmt.Sprintf("twin %s: empty history", v.ID))
		}
	}
	return problems
}

// Checks that performance stays within [50, 100], both currently and in
// history samples produced by ticks.
func performanceClamped(views []twinfleet.TwinView) (problems []string) {
	for _, v := range views {
		if v.Performance < 50 || v.Performance > 100 {
			problems = append(problems, fmt.Sprintf("twin %s: performance = %v, want within [50, 100]", v.ID, v.Performance))
		}
		for i, s := range v.History.Performance {
			if s < 50 || s > 100 {
				problems = append(problems, fmt.Sprintf("twin %s: history.performance[%d] = %v, want within [50, 100]", v.ID, i, s))
			}
		}
	}
	return problems
}

// Checks that no two twins share an id, and that none has an empty id.
func uniqueIDs(views []twinfleet.TwinView) (problems []string) {
	seen := make(map[string]bool, len(views))
	for _, v := range views {
		if v.ID == "" {
			problems = append(problems, "twin with an empty id")
		}
		if seen[v.ID] {
			problems = append(problems, fmt.Sprintf("duplicate twin id %q", v.ID))
		}
		seen[v.ID] = true
	}
	return problems
}

// Checks that a single tick appended exactly one sample per metric, equal to the
// new current value, while evicting the oldest sample of a full history.
func appendedOnce(before, after twinfleet.TwinView) (problems []string) {
	if before.ID != after.ID {
		return []string{fmt.Sprintf("twin %s was replaced by twin %s", before.ID, after.ID)}
	}
	for _, m := range twinfleet.Metrics {
		prev, next := before.History.Of(m), after.History.Of(m)
		if len(next) == 0 {
			problems = append(problems, fmt.Sprintf("twin %s: empty history.%v after a tick", after.ID, m))
			continue
		}
		if last := next[len(next)-1]; last != after.Value(m) {
			problems = append(problems, fmt.Sprintf("twin %s: newest history.%v sample = %v, want current value %v", after.ID, m, last, after.Value(m)))
		}
		// The samples preceding the new one must be the previous history, minus
		// the evicted oldest sample when the window was already full.
		kept := prev
		if len(next) == len(prev) {
			kept = prev[1:]
		}
		if diff := cmp.Diff(kept, next[:len(next)-1]); diff != "" {
			problems = append(problems, fmt.Sprintf("twin %s: history.%v was not shifted by one sample (-want +got):\n%s", after.ID, m, diff))
		}
	}
	return problems
}

// Checks that a prediction agrees with the view it was computed from: same
// identity, forecasts of the advertised length that match twinfleet.Forecast,
// and alerts that point at the first crossing of each metric's band.
func consistentPrediction(v twinfleet.TwinView, p twinfleet.Prediction) (problems []string) {
	if p.ID != v.ID || p.Name != v.Name {
		problems = append(problems, fmt.Sprintf("Forecast(%s) identifies as (%s, %q), want (%s, %q)", v.ID, p.ID, p.Name, v.ID, v.Name))
	}
	seen := make(map[string]bool)
	for _, m := range twinfleet.Metrics {
		got := p.Predictions.Of(m)
		if len(got) != p.FutureSteps {
			problems = append(problems, fmt.Sprintf("twin %s: len(predictions.%v) = %d, want %d", v.ID, m, len(got), p.FutureSteps))
		}
		if want := twinfleet.Forecast(v.History.Of(m), p.FutureSteps); !cmp.Equal(want, got) {
			problems = append(problems, fmt.Sprintf("twin %s: predictions.%v = %v, want %v", v.ID, m, got, want))
		}
		want, ok := twinfleet.EvaluateAlert(m, got, p.Thresholds.Of(m), p.StepSeconds)
		if ok {
			seen[m.String()] = true
			if !containsAlert(p.Alerts, want) {
				problems = append(problems, fmt.Sprintf("twin %s: missing alert %+v", v.ID, want))
			}
		}
	}
	for _, a := range p.Alerts {
		if !seen[a.Metric] {
			problems = append(problems, fmt.Sprintf("twin %s: unexpected alert %+v", v.ID, a))
		}
	}
	if len(p.Alerts) > len(twinfleet.Metrics) {
		problems = append(problems, fmt.Sprintf("twin %s: %d alerts, want at most one per metric", v.ID, len(p.Alerts)))
	}
	return problems
}

func containsAlert(alerts []twinfleet.Alert, want twinfleet.Alert) bool {
	for _, a := range alerts {
		if cmp.Equal(a, want) {
			return true
		}
	}
	return false
}
