// Package metrics provides interfaces for engine metrics collection.
package metrics

import "time"

//go:generate mockgen -destination=mocks/mock_recorder.go -package=mocks . Recorder

// Recorder receives scheduling events from the worker and pool. The interface
// lets tests assert on engine behavior without a Prometheus registry.
type Recorder interface {
	// JobSpawned is called once per admitted job attempt.
	JobSpawned()

	// JobCompleted is called when a job's outcome is drained. Outcome is the
	// rendered outcome label, e.g. "open" or "error:timeout".
	JobCompleted(outcome string, elapsed time.Duration)

	// JobStashed is called when a resource-exhausted job is parked.
	JobStashed()

	// JobRetried is called when an unclassified failure is re-admitted.
	JobRetried()

	// SetInFlight reports the admitted job count.
	SetInFlight(n int)

	// SetStashed reports the number of parked entries.
	SetStashed(n int)
}

// Nop discards every event.
type Nop struct{}

func (Nop) JobSpawned() {}
func (Nop) JobCompleted(string, time.Duration) {}
func (Nop) JobStashed() {}
func (Nop) JobRetried() {}
func (Nop) SetInFlight(int) {}
func (Nop) SetStashed(int) {}

var (
	_ Recorder = Nop{}
	_ Recorder = (*PrometheusMetrics)(nil)
)
