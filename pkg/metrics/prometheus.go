package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the process-wide metrics container.
type Metrics struct {
	// Carrier fetch metrics (component E)
	CarrierRequestsTotal   *prometheus.CounterVec
	CarrierRequestDuration *prometheus.HistogramVec
	CarrierRetriesTotal    *prometheus.CounterVec
	CarrierTimeoutsTotal   *prometheus.CounterVec
	SchedulesReturnedTotal *prometheus.HistogramVec

	// Aggregation/validation metrics (component F)
	AggregationDuration     *prometheus.HistogramVec
	ScheduleValidationDrops *prometheus.CounterVec

	// Cache metrics (component B)
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
	CacheErrorsTotal *prometheus.CounterVec

	// System metrics
	CarrierRequestsInFlight prometheus.Gauge
	carrierTracker          *RequestTracker

	// Service info
	ServiceInfo *prometheus.GaugeVec
}

var defaultMetrics *Metrics

// InitMetrics builds and registers the metrics container.
func InitMetrics(namespace, subsystem string) *Metrics {
	m := &Metrics{
		CarrierRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "carrier_requests_total",
				Help:      "Total number of carrier adapter requests",
			},
			[]string{"carrier", "status"},
		),

		CarrierRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "carrier_request_duration_seconds",
				Help:      "Duration of carrier adapter requests",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30},
			},
			[]string{"carrier"},
		),

		CarrierRetriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "carrier_retries_total",
				Help:      "Total number of per-task retry attempts",
			},
			[]string{"carrier"},
		),

		CarrierTimeoutsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "carrier_timeouts_total",
				Help:      "Total number of carrier tasks that exhausted all retries",
			},
			[]string{"carrier"},
		),

		SchedulesReturnedTotal: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "schedules_returned",
				Help:      "Number of schedules a carrier adapter returned per request",
				Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
			},
			[]string{"carrier"},
		),

		AggregationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "aggregation_duration_seconds",
				Help:      "Total duration of a full P2P schedule aggregation",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30},
			},
			[]string{"cache_result"},
		),

		ScheduleValidationDrops: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "schedule_validation_drops_total",
				Help:      "Total number of schedules dropped by validation",
			},
			[]string{"carrier", "code"},
		),

		CacheHitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_hits_total",
				Help:      "Total number of cache hits",
			},
			[]string{"kind"},
		),

		CacheMissesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_misses_total",
				Help:      "Total number of cache misses",
			},
			[]string{"kind"},
		),

		CacheErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_errors_total",
				Help:      "Total number of cache backend errors swallowed by the stale-tolerant wrapper",
			},
			[]string{"op"},
		),

		CarrierRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "carrier_requests_in_flight",
				Help:      "Number of carrier adapter fetches currently in flight",
			},
		),

		ServiceInfo: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "service_info",
				Help:      "Service information",
			},
			[]string{"version", "environment"},
		),
	}

	m.carrierTracker = NewRequestTracker(m.CarrierRequestsInFlight)
	prometheus.MustRegister(NewRuntimeCollector(namespace, subsystem))

	defaultMetrics = m
	return m
}

// Get returns the process-wide metrics container, initializing it with
// default labels if it hasn't been created yet.
func Get() *Metrics {
	if defaultMetrics == nil {
		return InitMetrics("schedulep2p", "")
	}
	return defaultMetrics
}

// RecordCarrierRequest records the outcome and duration of one carrier task.
func (m *Metrics) RecordCarrierRequest(carrier, status string, duration time.Duration) {
	m.CarrierRequestsTotal.WithLabelValues(carrier, status).Inc()
	m.CarrierRequestDuration.WithLabelValues(carrier).Observe(duration.Seconds())
}

// TimeCarrierRequest marks a carrier fetch as in-flight and starts a Timer
// against CarrierRequestDuration; the caller invokes the returned func with
// the outcome once the adapter call returns, which records the duration and
// increments CarrierRequestsTotal together.
func (m *Metrics) TimeCarrierRequest(carrier string) (done func(status string)) {
	m.carrierTracker.Start(carrier)
	timer := NewTimer(m.CarrierRequestDuration, carrier)
	return func(status string) {
		m.carrierTracker.End(carrier)
		timer.ObserveDuration()
		m.CarrierRequestsTotal.WithLabelValues(carrier, status).Inc()
	}
}

// RecordCarrierRetry records one retry attempt for a carrier task.
func (m *Metrics) RecordCarrierRetry(carrier string) {
	m.CarrierRetriesTotal.WithLabelValues(carrier).Inc()
}

// RecordCarrierTimeout records a carrier task exhausting its retry budget.
func (m *Metrics) RecordCarrierTimeout(carrier string) {
	m.CarrierTimeoutsTotal.WithLabelValues(carrier).Inc()
}

// RecordSchedulesReturned records how many schedules a carrier contributed.
func (m *Metrics) RecordSchedulesReturned(carrier string, count int) {
	m.SchedulesReturnedTotal.WithLabelValues(carrier).Observe(float64(count))
}

// RecordAggregation records the duration of a full aggregation, labeled by
// whether the result was served from cache or freshly computed.
func (m *Metrics) RecordAggregation(cacheResult string, duration time.Duration) {
	m.AggregationDuration.WithLabelValues(cacheResult).Observe(duration.Seconds())
}

// RecordValidationDrop records a schedule dropped by validation.
func (m *Metrics) RecordValidationDrop(carrier, code string) {
	m.ScheduleValidationDrops.WithLabelValues(carrier, code).Inc()
}

// RecordCacheHit records a cache hit of the given kind (e.g. "response", "token").
func (m *Metrics) RecordCacheHit(kind string) {
	m.CacheHitsTotal.WithLabelValues(kind).Inc()
}

// RecordCacheMiss records a cache miss of the given kind.
func (m *Metrics) RecordCacheMiss(kind string) {
	m.CacheMissesTotal.WithLabelValues(kind).Inc()
}

// RecordCacheError records a cache backend error swallowed by StaleTolerant.
func (m *Metrics) RecordCacheError(op string) {
	m.CacheErrorsTotal.WithLabelValues(op).Inc()
}

// SetServiceInfo publishes the running version and environment.
func (m *Metrics) SetServiceInfo(version, environment string) {
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

// Handler returns the HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartMetricsServer runs a minimal HTTP server exposing /metrics and /health.
func StartMetricsServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK")) //nolint:errcheck // health endpoint, write error not actionable
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
