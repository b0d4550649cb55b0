package twinfleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/danielorbach/go-component"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Simulator owns a fixed fleet of twins and the update engine that perturbs
// them on a fixed cadence.
//
// Readers (Snapshot, Twin and Forecast) may run at any time relative to ticks.
// Each twin is updated under its own mutex, and readers copy a twin under that
// same mutex, so a reader observes either all of a tick's mutations of a twin or
// none of them.
//
// The update engine is started explicitly with Start (or run under a component
// lifecycle through Exec) and stopped with Stop.
type Simulator struct {
	cfg   Config
	twins []*twin          // in creation order
	index map[string]*twin // by id
	noise *noise

	// Guards the lifecycle of the background update loop.
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Simulator implements both read operations of a fleet, and runs its update
// engine as a component.
var (
	_ Fleet               = (*Simulator)(nil)
	_ component.Procedure = (*Simulator)(nil)
)

// NewSimulator validates cfg and returns a Simulator holding cfg.NumTwins
// freshly seeded twins. The update engine is not started.
func NewSimulator(cfg Config) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	names := cfg.names()
	s := &Simulator{
		cfg:   cfg,
		twins: make([]*twin, 0, cfg.NumTwins),
		index: make(map[string]*twin, cfg.NumTwins),
		noise: newNoise(cfg.Seed),
	}
	for i := 1; i <= cfg.NumTwins; i++ {
		t := newTwin(i, names[i-1], cfg.HistoryLen, s.noise)
		s.twins = append(s.twins, t)
		s.index[t.id] = t
	}
	return s, nil
}

// Config returns the configuration the Simulator was created with.
func (s *Simulator) Config() Config { return s.cfg }

// ErrStopTimeout is returned by Stop when the update engine has not exited
// within the configured bound.
var ErrStopTimeout = errors.New("update engine did not stop in time")

// Start launches the update engine in the background. Calling Start while the
// engine is already running does nothing. The engine stops when Stop is called
// or when ctx is done, whichever happens first.
//
// The logger injected into ctx (see component.InjectLogger) is used by the
// engine for its whole lifetime.
func (s *Simulator) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running() {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	go func() {
		defer close(done)
		s.run(ctx, func() bool { return true })
	}()
}

// Stop signals the update engine to exit and waits for it, at most for the
// configured StopTimeout. Stopping an engine that is not running is a no-op.
func (s *Simulator) Stop() error {
	s.mu.Lock()
	if !s.running() {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	done := s.done
	s.mu.Unlock()

	timeout := time.NewTimer(s.cfg.stopTimeout())
	defer timeout.Stop()
	select {
	case <-done:
		return nil
	case <-timeout.C:
		return fmt.Errorf("stop after %v: %w", s.cfg.stopTimeout(), ErrStopTimeout)
	}
}

// Running reports whether the update engine started by Start has not exited
// yet.
func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running()
}

func (s *Simulator) running() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Exec runs the update engine as a [component.Procedure] until the component
// lifecycle ends. Use either Exec or Start, not both.
func (s *Simulator) Exec(l *component.L) {
	s.run(l.Context(), l.Continue)
}

// run waits one interval, applies a tick, and repeats until ctx is done or
// proceed returns false. A slow tick delays the following ones; missed ticks
// are never caught up.
func (s *Simulator) run(ctx context.Context, proceed func() bool) {
	logger := component.Logger(ctx)
	logger.Info("Update engine started",
		slog.Int("twins", len(s.twins)),
		slog.Duration("interval", s.cfg.UpdateInterval),
	)
	defer logger.Info("Update engine stopped")

	timer := time.NewTimer(s.cfg.UpdateInterval)
	defer timer.Stop()
	for proceed() {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.Tick(ctx)
			timer.Reset(s.cfg.UpdateInterval)
		}
	}
}

// Tick applies exactly one update cycle to every twin of the fleet. The update
// engine calls it once per interval; tests may call it directly.
func (s *Simulator) Tick(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "Simulator.Tick", trace.WithAttributes(
		attribute.Int("fleet.size", len(s.twins)),
	))
	defer span.End()

	start := time.Now()
	for _, t := range s.twins {
		t.perturb(s.noise)
	}
	elapsed := time.Since(start)
	measureTick(ctx, elapsed)
	component.Logger(ctx).Debug("Fleet updated", slog.Duration("elapsed", elapsed))
}

// Snapshot returns an independent copy of every twin, in creation order.
func (s *Simulator) Snapshot(ctx context.Context) []TwinView {
	_, span := tracer.Start(ctx, "Simulator.Snapshot")
	defer span.End()

	out := make([]TwinView, len(s.twins))
	for i, t := range s.twins {
		out[i] = t.view()
	}
	return out
}

// Twin returns an independent copy of the twin with the given id. If there is
// no such twin, the returned error wraps ErrNotFound.
func (s *Simulator) Twin(ctx context.Context, id string) (TwinView, error) {
	_, span := tracer.Start(ctx, "Simulator.Twin", trace.WithAttributes(
		attribute.String("twin.id", id),
	))
	defer span.End()

	t, ok := s.index[id]
	if !ok {
		err := fmt.Errorf("twin %q: %w", id, ErrNotFound)
		span.SetStatus(codes.Error, err.Error())
		return TwinView{}, err
	}
	return t.view(), nil
}

// Forecast extrapolates the history of the twin with the given id FutureSteps
// ticks ahead and evaluates the forecast against DefaultThresholds. If there is
// no such twin, the returned error wraps ErrNotFound.
func (s *Simulator) Forecast(ctx context.Context, id string) (Prediction, error) {
	ctx, span := tracer.Start(ctx, "Simulator.Forecast", trace.WithAttributes(
		attribute.String("twin.id", id),
	))
	defer span.End()

	view, err := s.Twin(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Prediction{}, err
	}
	p := Predict(view, FutureSteps, s.cfg.StepSeconds(), DefaultThresholds())
	span.SetAttributes(attribute.Int("forecast.alerts", len(p.Alerts)))
	measureAlerts(ctx, p.Alerts)
	return p, nil
}
