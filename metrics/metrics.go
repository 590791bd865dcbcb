package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Claim loop metrics
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_consumer_requests_total",
			Help: "Total number of claimed requests by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	IdlePollsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "widget_consumer_idle_polls_total",
			Help: "Total number of polls that found no pending requests",
		},
	)

	FetchErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "widget_consumer_fetch_errors_total",
			Help: "Total number of failed pending-request fetches",
		},
	)

	ParseErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "widget_consumer_parse_errors_total",
			Help: "Total number of requests discarded as malformed JSON",
		},
	)

	DeleteErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "widget_consumer_delete_errors_total",
			Help: "Total number of failed pending-request deletions",
		},
	)

	// Storage metrics
	StoreDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "widget_consumer_store_duration_seconds",
			Help:    "Duration of widget store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	StoreErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "widget_consumer_store_errors_total",
			Help: "Total number of failed widget stores",
		},
	)

	// Audit trail metrics
	ArchiveFlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_consumer_archive_flushes_total",
			Help: "Total number of audit trail flushes by status",
		},
		[]string{"status"},
	)

	ArchiveEntriesBuffered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "widget_consumer_archive_entries_buffered",
			Help: "Audit entries currently buffered for the next flush",
		},
	)

	// Dead letter metrics
	DeadLettersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_consumer_dead_letters_total",
			Help: "Total number of dead-lettered requests by status",
		},
		[]string{"status"},
	)
)
