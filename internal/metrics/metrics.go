package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	logsAppended = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reflexive",
			Subsystem: "logs",
			Name:      "appended_total",
			Help:      "Number of log entries appended, by kind.",
		}, []string{"kind"},
	)
	logsEvicted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reflexive",
			Subsystem: "logs",
			Name:      "evicted_total",
			Help:      "Number of log entries evicted because the buffer was full.",
		},
	)
	stateSets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reflexive",
			Subsystem: "state",
			Name:      "sets_total",
			Help:      "Number of state writes.",
		},
	)
	chatRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reflexive",
			Subsystem: "bridge",
			Name:      "chat_requests_total",
			Help:      "Number of chat requests by result (ok, error, timeout, disabled).",
		}, []string{"result"},
	)
	chatDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "reflexive",
			Subsystem: "bridge",
			Name:      "chat_duration_seconds",
			Help:      "Wall time of chat round trips including the streamed read.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	syncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reflexive",
			Subsystem: "bridge",
			Name:      "sync_total",
			Help:      "State sync notifications by result (sent, failed, dropped).",
		}, []string{"result"},
	)
	monitorSpawns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reflexive",
			Subsystem: "monitor",
			Name:      "spawns_total",
			Help:      "Monitor spawn attempts by result (ok, not_found, exited, error).",
		}, []string{"result"},
	)
	monitorRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "reflexive",
			Subsystem: "monitor",
			Name:      "running",
			Help:      "1 while a monitor process owned by this instance is running.",
		},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reflexive",
			Subsystem: "instance",
			Name:      "state_transitions_total",
			Help:      "Number of instance lifecycle transitions.",
		}, []string{"from", "to"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{logsAppended, logsEvicted, stateSets, chatRequests, chatDuration, syncs, monitorSpawns, monitorRunning, stateTransitions}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncLogAppended(kind string) {
	if regOK.Load() {
		logsAppended.WithLabelValues(kind).Inc()
	}
}

func IncLogEvicted() {
	if regOK.Load() {
		logsEvicted.Inc()
	}
}

func IncStateSet() {
	if regOK.Load() {
		stateSets.Inc()
	}
}

func ObserveChat(result string, seconds float64) {
	if regOK.Load() {
		chatRequests.WithLabelValues(result).Inc()
		chatDuration.Observe(seconds)
	}
}

func IncChat(result string) {
	if regOK.Load() {
		chatRequests.WithLabelValues(result).Inc()
	}
}

func IncSync(result string) {
	if regOK.Load() {
		syncs.WithLabelValues(result).Inc()
	}
}

func IncSpawn(result string) {
	if regOK.Load() {
		monitorSpawns.WithLabelValues(result).Inc()
	}
}

func SetMonitorRunning(running bool) {
	if regOK.Load() {
		var v float64
		if running {
			v = 1
		}
		monitorRunning.Set(v)
	}
}

func RecordStateTransition(from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(from, to).Inc()
	}
}
