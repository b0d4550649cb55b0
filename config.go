package twinfleet

import (
	"errors"
	"fmt"
	"time"
)

// MachineNames is the default name table; twin i (1-based) is named
// MachineNames[i-1].
var MachineNames = []string{
	"CNC Milling Machine",
	"Hydraulic Press",
	"Industrial Compressor",
	"Steam Boiler Unit",
	"Conveyor Belt Motor",
	"Cooling Tower Fan",
	"Power Generator",
	"Robotic Arm",
	"Air Handling Unit",
	"Heat Exchanger",
	"Gas Turbine",
	"Pumping Station",
}

// Config holds the tunables a Simulator consumes at construction.
type Config struct {
	// NumTwins is the number of twins in the fleet. It never changes afterwards.
	NumTwins int
	// HistoryLen is the capacity of every metric history.
	HistoryLen int
	// UpdateInterval is the period between two ticks of the update engine.
	UpdateInterval time.Duration
	// Names is the name table indexed by twin id. It must hold at least NumTwins
	// entries; a nil table means MachineNames.
	Names []string
	// Seed seeds the simulator's noise source. Zero picks a random seed.
	Seed uint64
	// StopTimeout bounds how long Stop waits for the update engine to exit. Zero
	// means one second.
	StopTimeout time.Duration
}

// DefaultConfig returns the configuration of the reference deployment: 12 twins
// keeping 30 samples per metric, updated every 5 seconds.
func DefaultConfig() Config {
	return Config{
		NumTwins:       12,
		HistoryLen:     30,
		UpdateInterval: 5 * time.Second,
		Names:          MachineNames,
		StopTimeout:    time.Second,
	}
}

// ErrInvalidConfig is returned (wrapped) by Config.Validate and NewSimulator
// when a configuration cannot produce a working fleet.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate reports the first problem found in c, if any. The returned error
// wraps ErrInvalidConfig.
func (c Config) Validate() error {
	if c.NumTwins <= 0 {
		return fmt.Errorf("%w: num twins must be positive, got %d", ErrInvalidConfig, c.NumTwins)
	}
	if c.HistoryLen <= 0 {
		return fmt.Errorf("%w: history length must be positive, got %d", ErrInvalidConfig, c.HistoryLen)
	}
	if c.UpdateInterval <= 0 {
		return fmt.Errorf("%w: update interval must be positive, got %v", ErrInvalidConfig, c.UpdateInterval)
	}
	if c.StopTimeout < 0 {
		return fmt.Errorf("%w: stop timeout must not be negative, got %v", ErrInvalidConfig, c.StopTimeout)
	}
	if names := c.names(); len(names) < c.NumTwins {
		return fmt.Errorf("%w: name table holds %d names for %d twins", ErrInvalidConfig, len(names), c.NumTwins)
	}
	return nil
}

func (c Config) names() []string {
	if c.Names == nil {
		return MachineNames
	}
	return c.Names
}

func (c Config) stopTimeout() time.Duration {
	if c.StopTimeout == 0 {
		return time.Second
	}
	return c.StopTimeout
}

// StepSeconds is the whole number of seconds between two ticks, as reported
// alongside forecasts. Sub-second remainders are truncated.
func (c Config) StepSeconds() int {
	return int(c.UpdateInterval / time.Second)
}
