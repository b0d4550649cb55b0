package neo4jmirror

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/go-digitaltwin/twinfleet"
)

// The driver hands list properties back as []any, so parseTwin must accept
// that shape rather than the []float64 written by twinProps.
func TestParseTwin(t *testing.T) {
	want := twinfleet.TwinView{
		ID:          "4",
		Name:        "Conveyor Belt Motor",
		Active:      true,
		Temperature: 21.5,
		Pressure:    1.012,
		Performance: 88.25,
		History: twinfleet.Series{
			Temperature: []float64{21.1, 21.5},
			Pressure:    []float64{1.01, 1.012},
			Performance: []float64{87, 88.25},
		},
	}

	props := twinProps(want)
	for _, key := range []string{"history_temperature", "history_pressure", "history_performance"} {
		fs := props[key].([]float64)
		list := make([]any, len(fs))
		for i, f := range fs {
			list[i] = f
		}
		props[key] = list
	}

	got, err := parseTwin(neo4j.Node{Labels: []string{TwinLabel}, Props: props})
	if err != nil {
		t.Fatal("parseTwin():", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseTwin() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTwinErrors(t *testing.T) {
	t.Run("MissingProperty", func(t *testing.T) {
		props := twinProps(twinfleet.TwinView{ID: "1"})
		delete(props, "pressure")
		_, err := parseTwin(neo4j.Node{Props: props})
		if !errors.Is(err, errPropertyNotFound) {
			t.Errorf("parseTwin() error = %v, want %v", err, errPropertyNotFound)
		}
	})

	t.Run("UnexpectedType", func(t *testing.T) {
		props := twinProps(twinfleet.TwinView{ID: "1"})
		props["temperature"] = "hot"
		_, err := parseTwin(neo4j.Node{Props: props})
		var typeErr unexpectedPropertyTypeError
		if !errors.As(err, &typeErr) {
			t.Fatalf("parseTwin() error = %v, want unexpectedPropertyTypeError", err)
		}
		if typeErr.Key != "temperature" {
			t.Errorf("unexpectedPropertyTypeError.Key = %q, want %q", typeErr.Key, "temperature")
		}
	})
}
