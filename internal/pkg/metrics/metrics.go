// Package metrics registers the supervisor's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kevinbot-io/kevinbot/internal/supervisor/core"
)

var (
	// CurrentMode is a one-hot gauge over the mode labels.
	CurrentMode = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "kevinbot",
		Name:      "mode",
		Help:      "Current supervisor mode, one-hot over the mode label.",
	}, []string{"mode"})

	// ModeTransitions counts completed transitions by edge.
	ModeTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kevinbot",
		Name:      "mode_transitions_total",
		Help:      "Completed mode transitions by edge.",
	}, []string{"from", "to"})

	// Commands counts bus and supervisor command dispositions.
	Commands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kevinbot",
		Name:      "commands_total",
		Help:      "Command dispositions by source and outcome.",
	}, []string{"source", "disposition"})

	// TickDuration observes supervisor tick latency.
	TickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "kevinbot",
		Name:      "tick_duration_seconds",
		Help:      "Supervisor tick latency.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
	})

	// DeviceWriteFailures counts writes that missed their deadline or errored.
	DeviceWriteFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kevinbot",
		Name:      "device_write_failures_total",
		Help:      "Device writes that failed, by subsystem.",
	}, []string{"subsystem"})

	// TelemetryDropped counts telemetry events shed by overloaded sinks.
	TelemetryDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kevinbot",
		Name:      "telemetry_dropped_total",
		Help:      "Telemetry events dropped by sink.",
	}, []string{"sink"})
)

func init() {
	prometheus.MustRegister(
		CurrentMode,
		ModeTransitions,
		Commands,
		TickDuration,
		DeviceWriteFailures,
		TelemetryDropped,
	)
}

// SetMode flips the one-hot mode gauge to m.
func SetMode(m core.Mode) {
	for _, mode := range core.Modes() {
		v := 0.0
		if mode == m {
			v = 1.0
		}
		CurrentMode.WithLabelValues(string(mode)).Set(v)
	}
}

// Command disposition labels.
const (
	DispositionAccepted  = "accepted"
	DispositionRejected  = "rejected"
	DispositionDenied    = "denied"
	DispositionPreempted = "preempted"
)
