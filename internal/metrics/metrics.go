// Package metrics holds the Prometheus collectors recorded by the executor and
// the polling loops. Collectors live in a private registry so library users
// do not get them mixed into the process-wide default registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeTimeout = "timeout"
)

// Poll loop label values.
const (
	LoopReady        = "ready"
	LoopForwardStart = "forward_start"
	LoopForwardStop  = "forward_stop"
)

var (
	// Registry is the registry all kubetestenv collectors are registered with.
	Registry = prometheus.NewRegistry()

	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kubetestenv",
			Name:      "commands_total",
			Help:      "External commands executed, by binary and outcome.",
		},
		[]string{"binary", "outcome"},
	)

	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kubetestenv",
			Name:      "command_duration_seconds",
			Help:      "Duration of external commands in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"binary"},
	)

	pollAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kubetestenv",
			Name:      "poll_attempts_total",
			Help:      "Attempts made by polling loops, by loop and result.",
		},
		[]string{"loop", "result"},
	)

	activeForwards = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kubetestenv",
			Name:      "active_port_forwards",
			Help:      "Number of port-forwards currently active.",
		},
	)
)

func init() {
	Registry.MustRegister(commandsTotal, commandDuration, pollAttempts, activeForwards)
}

// ObserveCommand records one finished external command.
func ObserveCommand(binary, outcome string, d time.Duration) {
	commandsTotal.WithLabelValues(binary, outcome).Inc()
	commandDuration.WithLabelValues(binary).Observe(d.Seconds())
}

// ObservePoll records one attempt of a polling loop.
func ObservePoll(loop string, ok bool) {
	result := OutcomeFailure
	if ok {
		result = OutcomeSuccess
	}
	pollAttempts.WithLabelValues(loop, result).Inc()
}

// ForwardStarted and ForwardStopped track the number of live port-forwards.
func ForwardStarted() { activeForwards.Inc() }
func ForwardStopped() { activeForwards.Dec() }

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
