package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "gridledger_"

	resultSuccess = "success"
	resultError   = "error"

	cacheHit  = "hit"
	cacheMiss = "miss"
)

var (
	registerOnce sync.Once

	aggregateQueryTotal   *prometheus.CounterVec
	aggregateQueryLatency *prometheus.HistogramVec

	dataQualityWarnings *prometheus.CounterVec

	settlementRunTotal   *prometheus.CounterVec
	settlementRunLatency *prometheus.HistogramVec
	settlementRecords    prometheus.Counter

	reportQueryTotal    *prometheus.CounterVec
	reportExportTotal   *prometheus.CounterVec
	reportExportLatency *prometheus.HistogramVec

	plantCacheRequests *prometheus.CounterVec

	qualityWebhookTotal *prometheus.CounterVec

	fetchRetriesTotal prometheus.Counter

	httpInFlight prometheus.Gauge
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		aggregateQueryTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "aggregate_query_total",
				Help: "Total interval aggregation queries by result",
			},
			[]string{"result"},
		)
		aggregateQueryLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "aggregate_query_latency_seconds",
				Help:    "Interval aggregation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		dataQualityWarnings = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "data_quality_warnings_total",
				Help: "Total data-quality warnings by code",
			},
			[]string{"code"},
		)

		settlementRunTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "settlement_run_total",
				Help: "Total banking settlement runs by result",
			},
			[]string{"result"},
		)
		settlementRunLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "settlement_run_latency_seconds",
				Help:    "Banking settlement run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		settlementRecords = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "settlement_records_total",
				Help: "Total settlement records produced",
			},
		)

		reportQueryTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_query_total",
				Help: "Total reconciliation report queries by result",
			},
			[]string{"result"},
		)
		reportExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total report export operations by format and result",
			},
			[]string{"format", "result"},
		)
		reportExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		plantCacheRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "plant_cache_requests_total",
				Help: "Plant directory cache lookups by outcome",
			},
			[]string{"outcome"},
		)

		qualityWebhookTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "quality_webhook_total",
				Help: "Data-quality webhook deliveries by result",
			},
			[]string{"result"},
		)

		fetchRetriesTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "interval_fetch_retries_total",
				Help: "Total retried interval fetches at the data boundary",
			},
		)

		httpInFlight = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "http_in_flight_requests",
				Help: "HTTP requests currently being served",
			},
		)

		prometheus.MustRegister(
			aggregateQueryTotal,
			aggregateQueryLatency,
			dataQualityWarnings,
			settlementRunTotal,
			settlementRunLatency,
			settlementRecords,
			reportQueryTotal,
			reportExportTotal,
			reportExportLatency,
			plantCacheRequests,
			qualityWebhookTotal,
			fetchRetriesTotal,
			httpInFlight,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveAggregateQuery records aggregation query latency and result.
func ObserveAggregateQuery(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if aggregateQueryTotal != nil {
		aggregateQueryTotal.WithLabelValues(result).Inc()
	}
	if aggregateQueryLatency != nil {
		aggregateQueryLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncDataQualityWarning increments the warning counter for a code.
func IncDataQualityWarning(code string, count int) {
	if code == "" {
		code = "unknown"
	}
	if count <= 0 {
		return
	}
	if dataQualityWarnings != nil {
		dataQualityWarnings.WithLabelValues(code).Add(float64(count))
	}
}

// ObserveSettlementRun records settlement run latency and result.
func ObserveSettlementRun(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if settlementRunTotal != nil {
		settlementRunTotal.WithLabelValues(result).Inc()
	}
	if settlementRunLatency != nil {
		settlementRunLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// AddSettlementRecords counts records produced by a run.
func AddSettlementRecords(count int) {
	if count <= 0 {
		return
	}
	if settlementRecords != nil {
		settlementRecords.Add(float64(count))
	}
}

// ObserveReportQuery records a reconciliation report query result.
func ObserveReportQuery(result string) {
	if result == "" {
		result = resultSuccess
	}
	if reportQueryTotal != nil {
		reportQueryTotal.WithLabelValues(result).Inc()
	}
}

// ObserveReportExport records export latency by format and result.
func ObserveReportExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportExportTotal != nil {
		reportExportTotal.WithLabelValues(format, result).Inc()
	}
	if reportExportLatency != nil {
		reportExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncPlantCacheHit counts a directory cache hit.
func IncPlantCacheHit() {
	if plantCacheRequests != nil {
		plantCacheRequests.WithLabelValues(cacheHit).Inc()
	}
}

// IncPlantCacheMiss counts a directory cache miss.
func IncPlantCacheMiss() {
	if plantCacheRequests != nil {
		plantCacheRequests.WithLabelValues(cacheMiss).Inc()
	}
}

// IncQualityWebhook counts a webhook delivery attempt result.
func IncQualityWebhook(result string) {
	if result == "" {
		result = "unknown"
	}
	if qualityWebhookTotal != nil {
		qualityWebhookTotal.WithLabelValues(result).Inc()
	}
}

// IncFetchRetry counts one retried fetch at the data boundary.
func IncFetchRetry() {
	if fetchRetriesTotal != nil {
		fetchRetriesTotal.Inc()
	}
}

// IncHTTPInFlight marks one request entering the handler chain.
func IncHTTPInFlight() {
	if httpInFlight != nil {
		httpInFlight.Inc()
	}
}

// DecHTTPInFlight marks one request leaving the handler chain.
func DecHTTPInFlight() {
	if httpInFlight != nil {
		httpInFlight.Dec()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
