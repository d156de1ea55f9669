package prometheus

import (
	"strconv"
	"time"
)

var (
	DefaultHTTPDurationBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	// Calculations are pure arithmetic; anything above a few milliseconds is
	// worth seeing.
	DefaultCalculationBuckets = []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .05}
	DefaultSizeBuckets        = []float64{256, 1024, 4096, 16384, 65536, 262144}
)

// Calculation kinds used as the "kind" label.
const (
	KindNPV         = "npv"
	KindDeal        = "deal"
	KindStrategy    = "strategy"
	KindLaunchPrice = "launch_price"
	KindSensitivity = "sensitivity"
	KindPenetration = "penetration"
)

// AppMetrics groups every metric the service exports.
type AppMetrics struct {
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPResponseSize    HistogramVec
	HTTPActiveRequests  GaugeVec

	CalculationsTotal     CounterVec
	CalculationDuration   HistogramVec
	ValidationErrorsTotal CounterVec

	SessionsCreatedTotal CounterVec
	ActiveSessions       GaugeVec
	FormUpdatesTotal     CounterVec

	CacheHitsTotal   CounterVec
	CacheMissesTotal CounterVec

	ConfigReloadsTotal CounterVec
	ErrorsTotal        CounterVec
}

// NewAppMetrics registers all metrics on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "route", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "route")
	m.HTTPResponseSize = collector.RegisterHistogram("http_response_size_bytes", "HTTP response size", DefaultSizeBuckets, "method", "route")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "In-flight HTTP requests")

	m.CalculationsTotal = collector.RegisterCounter("calculations_total", "Valuation calculations performed", "kind", "result")
	m.CalculationDuration = collector.RegisterHistogram("calculation_duration_seconds", "Valuation calculation duration", DefaultCalculationBuckets, "kind")
	m.ValidationErrorsTotal = collector.RegisterCounter("validation_errors_total", "Rejected inputs by field", "field")

	m.SessionsCreatedTotal = collector.RegisterCounter("sessions_created_total", "Sessions created", "store")
	m.ActiveSessions = collector.RegisterGauge("active_sessions", "Live sessions held in memory")
	m.FormUpdatesTotal = collector.RegisterCounter("form_updates_total", "Form submissions by screen", "screen")

	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Result cache hits", "kind")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Result cache misses", "kind")

	m.ConfigReloadsTotal = collector.RegisterCounter("config_reloads_total", "Configuration reloads", "result")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Errors by component", "component", "code")

	return m
}

func RecordHTTPRequest(m *AppMetrics, method, route string, statusCode int, duration time.Duration, respSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, route).Observe(float64(respSize))
}

// RecordCalculation counts one calculation of kind and observes its latency.
func RecordCalculation(m *AppMetrics, kind string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.CalculationsTotal.WithLabelValues(kind, result).Inc()
	m.CalculationDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func RecordValidationError(m *AppMetrics, field string) {
	m.ValidationErrorsTotal.WithLabelValues(field).Inc()
}

func RecordCacheAccess(m *AppMetrics, kind string, hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues(kind).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(kind).Inc()
}

func RecordConfigReload(m *AppMetrics, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ConfigReloadsTotal.WithLabelValues(result).Inc()
}

func RecordError(m *AppMetrics, component, code string) {
	m.ErrorsTotal.WithLabelValues(component, code).Inc()
}
