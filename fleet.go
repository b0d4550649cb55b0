package twinfleet

import (
	"context"
	"errors"
)

// Fleet is the read-side contract of a fleet of twins. It is all that the
// outer layers (web handlers, publishers, mirrors) need from a Simulator.
//
// Implementations must be safe for concurrent use, and must never return values
// that share memory with their internal state.
type Fleet interface {
	// Snapshot returns an independent copy of every twin, in creation order.
	Snapshot(ctx context.Context) []TwinView
	// Forecast returns the prediction and alerts for one twin. If the twin does
	// not exist, the returned error wraps ErrNotFound.
	Forecast(ctx context.Context, id string) (Prediction, error)
}

// ErrNotFound is returned (wrapped) when a requested twin does not exist.
var ErrNotFound = errors.New("twin not found")
