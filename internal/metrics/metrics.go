// Package metrics holds the process's Prometheus instrumentation. The
// server exposes these on /metrics; the scheduler and collectors feed them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CollectorRuns counts collector executions by source and outcome
	// (ok, error, unavailable).
	CollectorRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repradar_collector_runs_total",
		Help: "Collector executions by source and outcome.",
	}, []string{"source", "outcome"})

	// RecordsIngested counts rows persisted to the store by record kind.
	RecordsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repradar_records_ingested_total",
		Help: "Records persisted to the store by kind.",
	}, []string{"kind"})

	// ScoreCalculations counts composite risk score computations.
	ScoreCalculations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "repradar_score_calculations_total",
		Help: "Composite risk score computations.",
	})

	// AlertsSent counts threshold alerts broadcast to notifiers.
	AlertsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "repradar_alerts_sent_total",
		Help: "Threshold alerts broadcast to notifiers.",
	})
)
