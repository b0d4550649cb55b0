package neo4jmirror

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/go-digitaltwin/twinfleet"
	"github.com/go-digitaltwin/twinfleet/internal/dbtest"
)

func TestMirror(t *testing.T) {
	d := dbtest.SetupNeo4j(t)
	ctx := context.Background()

	database := dbtest.DatabaseName()
	if err := BootstrapDatabase(ctx, d, database); err != nil {
		t.Fatal("BootstrapDatabase():", err)
	}

	sim, err := twinfleet.NewSimulator(twinfleet.Config{
		NumTwins:       3,
		HistoryLen:     5,
		UpdateInterval: time.Second,
		Seed:           7,
	})
	if err != nil {
		t.Fatal("NewSimulator():", err)
	}
	m := NewMirror(d, database)

	t.Run("Empty", func(t *testing.T) {
		got, err := m.Read(ctx)
		if err != nil {
			t.Fatal("Read():", err)
		}
		if len(got) != 0 {
			t.Errorf("Read() returned %d twins from an empty database", len(got))
		}
	})

	t.Run("Write", func(t *testing.T) {
		want := sim.Snapshot(ctx)
		if err := m.Write(ctx, want); err != nil {
			t.Fatal("Write():", err)
		}
		got, err := m.Read(ctx)
		if err != nil {
			t.Fatal("Read():", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Read() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		// Rewriting the fleet after a tick must update the existing nodes rather
		// than add new ones.
		sim.Tick(ctx)
		want := sim.Snapshot(ctx)
		if err := m.Write(ctx, want); err != nil {
			t.Fatal("Write():", err)
		}
		got, err := m.Read(ctx)
		if err != nil {
			t.Fatal("Read():", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Read() mismatch (-want +got):\n%s", diff)
		}
	})
}
