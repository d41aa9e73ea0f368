package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Remote states reported through the remote_state gauge.
var remoteStates = []string{"running", "stopped", "unknown", "connection_error"}

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	commandTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botctl",
			Subsystem: "command",
			Name:      "total",
			Help:      "Number of control commands by command and outcome.",
		}, []string{"command", "outcome"},
	)
	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "botctl",
			Subsystem: "command",
			Name:      "duration_seconds",
			Help:      "Round trip time of control commands.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"},
	)
	commandInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "botctl",
			Subsystem: "command",
			Name:      "in_flight",
			Help:      "1 while a control command is outstanding.",
		},
	)
	pollTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botctl",
			Subsystem: "poll",
			Name:      "total",
			Help:      "Number of status and stats polls by outcome.",
		}, []string{"kind", "outcome"},
	)
	remoteState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "botctl",
			Subsystem: "remote",
			Name:      "state",
			Help:      "Last observed state of the bot (1 = current state, 0 = other).",
		}, []string{"state"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{commandTotal, commandDuration, commandInFlight, pollTotal, remoteState}
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

// Below are lightweight helpers used by the controller to record metrics.
// They no-op if Register hasn't been called.

func IncCommand(command, outcome string) {
	if regOK.Load() {
		commandTotal.WithLabelValues(command, outcome).Inc()
	}
}

func ObserveCommandDuration(command string, seconds float64) {
	if regOK.Load() {
		commandDuration.WithLabelValues(command).Observe(seconds)
	}
}

func SetCommandInFlight(inFlight bool) {
	if regOK.Load() {
		var v float64
		if inFlight {
			v = 1
		}
		commandInFlight.Set(v)
	}
}

func IncPoll(kind, outcome string) {
	if regOK.Load() {
		pollTotal.WithLabelValues(kind, outcome).Inc()
	}
}

// SetRemoteState marks state as the current one and zeroes the others.
func SetRemoteState(state string) {
	if !regOK.Load() {
		return
	}
	for _, s := range remoteStates {
		var v float64
		if s == state {
			v = 1
		}
		remoteState.WithLabelValues(s).Set(v)
	}
}
