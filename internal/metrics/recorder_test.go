package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopRecorderDoesNotPanic(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveRebuildDuration(time.Second, RebuildOutcomeSuccess)
	r.ObservePatchDuration(time.Millisecond, PatchOutcomeRetried)
	r.IncPatchRetry()
	r.SetRegistryEntries(5)
	r.SetConnectedClients(2)
	r.IncWatcherEvents(true)
}

func TestPrometheusRecorderRegistersAndRecords(t *testing.T) {
	reg := prom.NewRegistry()
	rec := NewPrometheusRecorder(reg)
	require.NotNil(t, rec)

	rec.ObserveRebuildDuration(200*time.Millisecond, RebuildOutcomeSuccess)
	rec.ObservePatchDuration(10*time.Millisecond, PatchOutcomeSuccess)
	rec.IncPatchRetry()
	rec.SetRegistryEntries(12)
	rec.SetConnectedClients(3)
	rec.IncWatcherEvents(false)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	names := map[string]bool{}
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	assert.True(t, names["bookpreview_rebuild_duration_seconds"])
	assert.True(t, names["bookpreview_patch_duration_seconds"])
	assert.True(t, names["bookpreview_patch_retries_total"])
	assert.True(t, names["bookpreview_registry_entries"])
	assert.True(t, names["bookpreview_connected_clients"])
	assert.True(t, names["bookpreview_watcher_events_total"])
}

func TestPrometheusRecorderNilSafe(t *testing.T) {
	var rec *PrometheusRecorder
	assert.NotPanics(t, func() {
		rec.ObserveRebuildDuration(time.Second, RebuildOutcomeFailure)
		rec.ObservePatchDuration(time.Second, PatchOutcomeFellBackToRebuild)
		rec.IncPatchRetry()
		rec.SetRegistryEntries(0)
		rec.SetConnectedClients(0)
		rec.IncWatcherEvents(true)
	})
}
