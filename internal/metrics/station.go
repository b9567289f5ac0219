package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lifecycleState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "station_lifecycle_state",
		Help: "Current lifecycle state of the station (1 for the active state, 0 otherwise)",
	}, []string{"state"})

	transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "station_transitions_total",
		Help: "Lifecycle transitions by source, target and outcome",
	}, []string{"from", "to", "outcome"})

	watchdogExpiries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "station_watchdog_expiries_total",
		Help: "Watchdog expiries by watchdog, split into acted-on and stale",
	}, []string{"watchdog", "disposition"})

	commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "station_commands_total",
		Help: "Inbound commands by name and outcome",
	}, []string{"command", "outcome"})

	hubFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "station_hub_call_failures_total",
		Help: "Failed calls to the hub by operation",
	}, []string{"operation"})
)

// SetLifecycleState marks state as the single active lifecycle state.
func SetLifecycleState(state string, all []string) {
	for _, s := range all {
		value := 0.0
		if s == state {
			value = 1.0
		}
		lifecycleState.WithLabelValues(s).Set(value)
	}
}

// RecordTransition counts a transition attempt. outcome is "ok", "unconfirmed" or "failed".
func RecordTransition(from, to, outcome string) {
	transitions.WithLabelValues(from, to, outcome).Inc()
}

// RecordWatchdogExpiry counts an expiry; stale expiries are those discarded by the guard.
func RecordWatchdogExpiry(watchdog string, stale bool) {
	disposition := "acted"
	if stale {
		disposition = "stale"
	}
	watchdogExpiries.WithLabelValues(watchdog, disposition).Inc()
}

// RecordCommand counts an inbound command.
func RecordCommand(command, outcome string) {
	commands.WithLabelValues(command, outcome).Inc()
}

// RecordHubFailure counts a failed hub call.
func RecordHubFailure(operation string) {
	hubFailures.WithLabelValues(operation).Inc()
}
