// Package metrics instruments Locomote Server with Prometheus metrics:
// pipeline cache hit/miss counters, worker-pool queue depth gauges and a
// search query latency histogram (spec §2 "(NEW) Metrics"). It is
// grounded on inful-docbuilder's internal/metrics.PrometheusRecorder —
// the same namespaced-collector, register-once shape, generalized from
// one build pipeline's counters to every Locomote pipeline kind.
package metrics

import (
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"
)

// Recorder holds every Prometheus collector Locomote Server exposes.
// Constructed once by internal/app and passed to the HTTP handlers, the
// builder and the cache GC. The pipeline-cache, worker-pool and
// search-query collectors are registered, but nothing in this
// repository records to them.
type Recorder struct {
	once sync.Once

	pipelineCache  *prom.CounterVec
	workerPoolSlot *prom.GaugeVec
	searchLatency  prom.Histogram
	searchResults  *prom.CounterVec
	buildOutcome   *prom.CounterVec
	gcDeleted      prom.Counter
	gcErrors       prom.Counter
	httpRequests   *prom.CounterVec
	httpLatency    *prom.HistogramVec
}

// NewRecorder constructs and registers every collector against reg. A
// nil reg creates a fresh prometheus.Registry for callers that only
// want the Recorder itself, e.g. in tests. Calling it twice with the
// same reg panics on duplicate registration.
func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	r := &Recorder{}
	r.once.Do(func() {
		r.pipelineCache = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "locomote",
			Name:      "pipeline_cache_total",
			Help:      "Pipeline stage cache hit/miss counts by stage and outcome",
		}, []string{"stage", "outcome"})
		r.workerPoolSlot = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "locomote",
			Name:      "worker_pool_slots_in_use",
			Help:      "Worker pool slots currently occupied, by pool name",
		}, []string{"pool"})
		r.searchLatency = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "locomote",
			Name:      "search_query_duration_seconds",
			Help:      "Search query pipeline latency",
			Buckets:   prom.DefBuckets,
		})
		r.searchResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "locomote",
			Name:      "search_query_results_total",
			Help:      "Search query result row counts, bucketed by outcome",
		}, []string{"outcome"})
		r.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "locomote",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"})
		r.gcDeleted = prom.NewCounter(prom.CounterOpts{
			Namespace: "locomote",
			Name:      "cache_gc_files_deleted_total",
			Help:      "Cache GC sweep file deletions",
		})
		r.gcErrors = prom.NewCounter(prom.CounterOpts{
			Namespace: "locomote",
			Name:      "cache_gc_errors_total",
			Help:      "Cache GC sweep errors",
		})
		r.httpRequests = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "locomote",
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route and status",
		}, []string{"route", "status"})
		r.httpLatency = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "locomote",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route",
			Buckets:   prom.DefBuckets,
		}, []string{"route"})
		reg.MustRegister(r.pipelineCache, r.workerPoolSlot, r.searchLatency, r.searchResults, r.buildOutcome, r.gcDeleted, r.gcErrors, r.httpRequests, r.httpLatency)
	})
	return r
}

// PipelineCacheHook returns a func(stage string, hit bool) suitable for
// pipeline.Pipeline.OnCache, recording hits and misses under kind (the
// fileDB/search operation name owning this pipeline).
func (r *Recorder) PipelineCacheHook(kind string) func(stage string, hit bool) {
	return func(stage string, hit bool) {
		if r == nil || r.pipelineCache == nil {
			return
		}
		outcome := "miss"
		if hit {
			outcome = "hit"
		}
		r.pipelineCache.WithLabelValues(kind+":"+stage, outcome).Inc()
	}
}

// SetWorkerPoolSlots records a worker pool's current in-use slot count.
func (r *Recorder) SetWorkerPoolSlots(pool string, inUse int) {
	if r == nil || r.workerPoolSlot == nil {
		return
	}
	r.workerPoolSlot.WithLabelValues(pool).Set(float64(inUse))
}

// ObserveSearchQuery records one query pipeline invocation's latency in
// seconds and its result-count outcome bucket ("empty" or "nonempty").
func (r *Recorder) ObserveSearchQuery(seconds float64, rows int) {
	if r == nil || r.searchLatency == nil {
		return
	}
	r.searchLatency.Observe(seconds)
	outcome := "nonempty"
	if rows == 0 {
		outcome = "empty"
	}
	r.searchResults.WithLabelValues(outcome).Inc()
}

// IncBuildOutcome increments the build outcome counter for outcome
// ("success", "failed", "skipped").
func (r *Recorder) IncBuildOutcome(outcome string) {
	if r == nil || r.buildOutcome == nil {
		return
	}
	r.buildOutcome.WithLabelValues(outcome).Inc()
}

// IncGCDeleted adds n to the cache GC deleted-file counter.
func (r *Recorder) IncGCDeleted(n int) {
	if r == nil || r.gcDeleted == nil || n <= 0 {
		return
	}
	r.gcDeleted.Add(float64(n))
}

// IncGCError increments the cache GC error counter.
func (r *Recorder) IncGCError() {
	if r == nil || r.gcErrors == nil {
		return
	}
	r.gcErrors.Inc()
}

// ObserveHTTPRequest records one request's latency and final status,
// bucketed by route (the matched chi pattern, not the raw path, so
// file-fetch requests don't create one series per repo-relative path).
func (r *Recorder) ObserveHTTPRequest(route, status string, seconds float64) {
	if r == nil || r.httpRequests == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, status).Inc()
	r.httpLatency.WithLabelValues(route).Observe(seconds)
}
