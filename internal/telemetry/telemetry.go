// Package telemetry delivers supervisor events to operators: the log, the
// MQTT uplink and the onboard speaker. Emit never blocks the tick loop;
// each sink buffers and sheds load instead.
package telemetry

import (
	"github.com/kevinbot-io/kevinbot/internal/supervisor/core"
	"github.com/kevinbot-io/kevinbot/pkg/log"
)

// Fanout duplicates every event to each sink.
type Fanout []core.TelemetrySink

func (f Fanout) Emit(ev core.TelemetryEvent) {
	for _, sink := range f {
		sink.Emit(ev)
	}
}

// LogSink writes every event to the structured log.
type LogSink struct {
	logger log.Logger
}

func NewLogSink() *LogSink {
	return &LogSink{logger: log.WithName("telemetry")}
}

func (s *LogSink) Emit(ev core.TelemetryEvent) {
	s.logger.Info("Event", "kind", string(ev.Kind), "mode", string(ev.Mode), "fields", ev.Fields)
}
