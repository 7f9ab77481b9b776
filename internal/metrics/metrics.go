// Package metrics defines the Prometheus collectors for worker lifecycle
// events and pool activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PrepareAttempts counts every preparation run of the worker, by outcome.
	PrepareAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multig_prepare_attempts_total",
			Help: "Worker preparation attempts by outcome (success/failure)",
		},
		[]string{"outcome"},
	)

	// PrepareFailures counts profiles whose preparation exhausted all retries.
	PrepareFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "multig_prepare_failures_total",
			Help: "Preparation runs that exhausted the retry budget",
		},
	)

	// SpawnErrors counts workers the OS failed to start at all.
	SpawnErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "multig_spawn_errors_total",
			Help: "Worker spawn failures",
		},
	)

	// WorkerExits counts observed worker exits by outcome (clean/abnormal).
	WorkerExits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multig_worker_exits_total",
			Help: "Worker process exits by outcome",
		},
		[]string{"outcome"},
	)

	// SessionsOpen tracks the number of sessions believed running.
	SessionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "multig_sessions_open",
			Help: "Sessions with a registered worker process",
		},
	)
)
