// Package metrics defines the Recorder interface through which the
// Rebuilder, Patch Registry, and HTTP server report observations, plus a
// Prometheus-backed implementation and a no-op for tests and callers that
// don't care.
package metrics

import "time"

// RebuildOutcome labels the terminal state of a full rebuild.
type RebuildOutcome string

const (
	RebuildOutcomeSuccess RebuildOutcome = "success"
	RebuildOutcomeFailure RebuildOutcome = "failure"
)

// PatchOutcome labels the terminal state of a single-chapter patch task.
type PatchOutcome string

const (
	PatchOutcomeSuccess     PatchOutcome = "success"
	PatchOutcomeRetried     PatchOutcome = "retried"
	PatchOutcomeFellBackToRebuild PatchOutcome = "fell_back_to_rebuild"
)

// Recorder is implemented by anything that wants to observe the preview
// engine's internal behavior: build latencies, patch outcomes, registry
// size, and connected live-reload clients.
type Recorder interface {
	// ObserveRebuildDuration records how long a full rebuild took.
	ObserveRebuildDuration(d time.Duration, outcome RebuildOutcome)
	// ObservePatchDuration records how long a single-chapter patch took.
	ObservePatchDuration(d time.Duration, outcome PatchOutcome)
	// IncPatchRetry records a retried patch-render attempt.
	IncPatchRetry()
	// SetRegistryEntries reports the current number of watched paths in the
	// patch registry.
	SetRegistryEntries(n int)
	// SetConnectedClients reports the current number of subscribed
	// live-reload WebSocket clients.
	SetConnectedClients(n int)
	// IncWatcherEvents counts a raw filesystem event observed by the watcher
	// after debouncing, labeled by whether it triggered a rebuild.
	IncWatcherEvents(causedRebuild bool)
}

// NoopRecorder implements Recorder by discarding everything. It is the
// default when no Prometheus registry is configured.
type NoopRecorder struct{}

func (NoopRecorder) ObserveRebuildDuration(time.Duration, RebuildOutcome) {}
func (NoopRecorder) ObservePatchDuration(time.Duration, PatchOutcome)     {}
func (NoopRecorder) IncPatchRetry()                                      {}
func (NoopRecorder) SetRegistryEntries(int)                              {}
func (NoopRecorder) SetConnectedClients(int)                             {}
func (NoopRecorder) IncWatcherEvents(bool)                               {}

var _ Recorder = NoopRecorder{}
