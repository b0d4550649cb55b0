// Package twinfleet provides a library for simulating a fleet of industrial
// digital twins; A digital twin is a virtual representation of a real-world
// machine - here, one whose telemetry (temperature, pressure and performance)
// evolves over time.
//
// Specifically, a Simulator maintains a fixed set of twins, each holding its
// current metric values and a bounded rolling history per metric (see Window).
// A single background procedure perturbs every twin on a fixed cadence, while
// any number of readers take independent copies of the fleet (see
// Simulator.Snapshot) or ask for a short-horizon forecast with threshold-based
// alerts (see Simulator.Forecast).
//
// Consumers outside this package depend on the narrow Fleet interface. The
// telemetry of a fleet may also be broadcast over a pubsub topic (see
// Publisher) and tracked by remote processes (see TrackAttribute).
package twinfleet
