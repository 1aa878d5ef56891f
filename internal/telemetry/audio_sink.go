package telemetry

import (
	"github.com/kevinbot-io/kevinbot/internal/supervisor/core"
)

// Announcer voices a line of text without blocking.
type Announcer interface {
	SayAsync(text string)
}

// AudioSink announces safety-relevant events over the robot speaker so a
// nearby human hears what the robot just decided. Routine events stay
// silent; a talking robot is only useful if it talks rarely.
type AudioSink struct {
	announcer Announcer
}

func NewAudioSink(announcer Announcer) *AudioSink {
	return &AudioSink{announcer: announcer}
}

func (s *AudioSink) Emit(ev core.TelemetryEvent) {
	switch ev.Kind {
	case core.EventDeviceWriteFailed:
		if sub, ok := ev.Fields["subsystem"].(string); ok {
			s.announcer.SayAsync(sub + " not responding")
		}
	case core.EventCommandDenied:
		if reason, ok := ev.Fields["reason"].(string); ok && reason == string(core.ReasonActuatorMismatch) {
			s.announcer.SayAsync("Actuator mismatch")
		}
	}
}
