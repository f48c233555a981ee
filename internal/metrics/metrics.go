package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EVE pipeline
	EventsRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telhawk_sensor_events_read_total",
			Help: "Total number of non-empty lines read from the active EVE log",
		},
	)

	EventParseErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telhawk_sensor_event_parse_errors_total",
			Help: "Total number of EVE lines that were not valid JSON",
		},
	)

	EventsForwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_sensor_events_forwarded_total",
			Help: "Total number of events posted to the central API by outcome",
		},
		[]string{"source", "status"},
	)

	ForwardDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "telhawk_sensor_forward_duration_seconds",
			Help:    "Duration of central API log requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	EventsMirrored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_sensor_events_mirrored_total",
			Help: "Total number of events published to the message bus by outcome",
		},
		[]string{"status"},
	)

	WatermarkTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "telhawk_sensor_watermark_timestamp_seconds",
			Help: "Unix time of the most recently ingested EVE line",
		},
	)

	// Log lifecycle
	LogRotations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telhawk_sensor_log_rotations_total",
			Help: "Total number of active EVE log rotations",
		},
	)

	ArchivesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telhawk_sensor_archives_deleted_total",
			Help: "Total number of archived EVE logs removed by retention",
		},
	)

	// Rules and control
	RuleOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_sensor_rule_operations_total",
			Help: "Total number of rules file operations by outcome",
		},
		[]string{"operation", "result"},
	)

	SuricataCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_sensor_suricata_commands_total",
			Help: "Total number of control socket commands by outcome",
		},
		[]string{"command", "result"},
	)

	// Rate limiting
	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telhawk_sensor_rate_limit_hits_total",
			Help: "Total number of requests rejected by the ingest rate limiter",
		},
	)
)

// Result returns the label value for an operation outcome.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
