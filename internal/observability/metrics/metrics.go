package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "fleet_"

	// IngestResultSuccess labels a run that completed, possibly with discards.
	IngestResultSuccess = "success"
	// IngestResultError labels a run aborted by a store or transport failure.
	IngestResultError = "error"
)

var (
	registerOnce sync.Once

	ingestRuns    *prometheus.CounterVec
	ingestLatency *prometheus.HistogramVec

	rowsAccepted  *prometheus.CounterVec
	rowsDiscarded *prometheus.CounterVec

	sessionsCreated prometheus.Counter
	sessionsOmitted prometheus.Counter

	kpiRuns    *prometheus.CounterVec
	kpiLatency *prometheus.HistogramVec

	importerRetries  prometheus.Counter
	importerFailures prometheus.Counter
	decoderFailures  prometheus.Counter
)

// Init registers pipeline metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		ingestRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_runs_total",
				Help: "Total ingestion runs by result",
			},
			[]string{"result"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_run_seconds",
				Help:    "Ingestion run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		rowsAccepted = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rows_accepted_total",
				Help: "Accepted telemetry rows by sensor kind",
			},
			[]string{"kind"},
		)
		rowsDiscarded = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rows_discarded_total",
				Help: "Discarded telemetry rows by sensor kind",
			},
			[]string{"kind"},
		)

		sessionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "sessions_created_total",
			Help: "Sessions persisted by the dedup guard",
		})
		sessionsOmitted = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "sessions_omitted_total",
			Help: "Session candidates skipped as already stored",
		})

		kpiRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "kpi_runs_total",
				Help: "Total KPI computations by result",
			},
			[]string{"result"},
		)
		kpiLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "kpi_run_seconds",
				Help:    "KPI computation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		importerRetries = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "importer_retries_total",
			Help: "Importer per-file retry attempts",
		})
		importerFailures = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "importer_failures_total",
			Help: "Files moved to the error directory",
		})
		decoderFailures = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "decoder_failures_total",
			Help: "External CAN decoder failures",
		})

		prometheus.MustRegister(
			ingestRuns,
			ingestLatency,
			rowsAccepted,
			rowsDiscarded,
			sessionsCreated,
			sessionsOmitted,
			kpiRuns,
			kpiLatency,
			importerRetries,
			importerFailures,
			decoderFailures,
		)
	})
}

// ObserveIngestRun records one ingestion run.
func ObserveIngestRun(result string, elapsed time.Duration) {
	if ingestRuns == nil {
		return
	}
	ingestRuns.WithLabelValues(result).Inc()
	ingestLatency.WithLabelValues(result).Observe(elapsed.Seconds())
}

// AddRows records accepted/discarded row counts for a sensor kind.
func AddRows(kind string, accepted, discarded int) {
	if rowsAccepted == nil {
		return
	}
	rowsAccepted.WithLabelValues(kind).Add(float64(accepted))
	rowsDiscarded.WithLabelValues(kind).Add(float64(discarded))
}

// AddSessions records dedup guard outcomes.
func AddSessions(created, omitted int) {
	if sessionsCreated == nil {
		return
	}
	sessionsCreated.Add(float64(created))
	sessionsOmitted.Add(float64(omitted))
}

// ObserveKPIRun records one KPI computation.
func ObserveKPIRun(result string, elapsed time.Duration) {
	if kpiRuns == nil {
		return
	}
	kpiRuns.WithLabelValues(result).Inc()
	kpiLatency.WithLabelValues(result).Observe(elapsed.Seconds())
}

// IncImporterRetry counts one importer retry attempt.
func IncImporterRetry() {
	if importerRetries != nil {
		importerRetries.Inc()
	}
}

// IncImporterFailure counts one file moved to the error directory.
func IncImporterFailure() {
	if importerFailures != nil {
		importerFailures.Inc()
	}
}

// IncDecoderFailure counts one external decoder failure.
func IncDecoderFailure() {
	if decoderFailures != nil {
		decoderFailures.Inc()
	}
}
