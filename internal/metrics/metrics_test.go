package metrics

import (
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPipelineCacheHookRecordsHitsAndMisses(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewRecorder(reg)
	hook := r.PipelineCacheHook("listAllFiles")

	hook("records", true)
	hook("records", false)
	hook("records", true)

	require.Equal(t, float64(2), testutil.ToFloat64(r.pipelineCache.WithLabelValues("listAllFiles:records", "hit")))
	require.Equal(t, float64(1), testutil.ToFloat64(r.pipelineCache.WithLabelValues("listAllFiles:records", "miss")))
}

func TestObserveSearchQueryBucketsEmptyVsNonempty(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewRecorder(reg)

	r.ObserveSearchQuery(0.01, 0)
	r.ObserveSearchQuery(0.02, 5)

	require.Equal(t, float64(1), testutil.ToFloat64(r.searchResults.WithLabelValues("empty")))
	require.Equal(t, float64(1), testutil.ToFloat64(r.searchResults.WithLabelValues("nonempty")))
}

func TestObserveHTTPRequestLabelsByRouteAndStatus(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewRecorder(reg)

	r.ObserveHTTPRequest("file", "200", 0.01)
	r.ObserveHTTPRequest("file", "200", 0.02)
	r.ObserveHTTPRequest("file", "404", 0.01)

	require.Equal(t, float64(2), testutil.ToFloat64(r.httpRequests.WithLabelValues("file", "200")))
	require.Equal(t, float64(1), testutil.ToFloat64(r.httpRequests.WithLabelValues("file", "404")))
}

func TestNilRecorderMethodsAreNoops(t *testing.T) {
	var r *Recorder
	require.NotPanics(t, func() {
		r.SetWorkerPoolSlots("fileset", 3)
		r.ObserveSearchQuery(0.1, 1)
		r.IncBuildOutcome("success")
		r.IncGCDeleted(5)
		r.IncGCError()
		r.ObserveHTTPRequest("file", "200", 0.01)
		_ = r.PipelineCacheHook("x")
	})
}
