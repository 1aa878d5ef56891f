package core

import "time"

// EventKind classifies a telemetry event.
type EventKind string

const (
	// EventModeChanged reports a completed mode transition.
	// Fields: "from", "to", "cause".
	EventModeChanged EventKind = "mode.changed"

	// EventCommandRejected reports a command refused by the supervisor,
	// for example enable while faulted. Fields: "id", "source", "kind", "reason".
	EventCommandRejected EventKind = "command.rejected"

	// EventCommandDenied reports a candidate discarded by the interlock.
	// Fields: "id", "source", "kind", "reason", "detail".
	EventCommandDenied EventKind = "command.denied"

	// EventCommandPreempted reports a candidate discarded because a forced
	// transition won the same tick. Fields: "id", "source", "kind".
	EventCommandPreempted EventKind = "command.preempted"

	// EventDeviceWriteFailed reports a device write that missed its
	// deadline. Fields: "subsystem", "error".
	EventDeviceWriteFailed EventKind = "device.write_failed"

	// EventSensorFault reports the hardware fault condition that forced
	// the Fault mode. Fields: "detail".
	EventSensorFault EventKind = "safety.sensor_fault"

	// EventEmergencyStop reports an asserted emergency stop.
	EventEmergencyStop EventKind = "safety.estop"

	// EventCleared reports an operator-acknowledged clear out of a
	// terminal mode. Fields: "from".
	EventCleared EventKind = "safety.cleared"
)

// TelemetryEvent is one entry in the append-only operational event stream.
type TelemetryEvent struct {
	Kind EventKind `json:"kind"`

	// Time is when the supervisor emitted the event.
	Time time.Time `json:"time"`

	// Mode is the robot mode at emission time.
	Mode Mode `json:"mode"`

	// Fields carries the kind-specific payload. Values are JSON-friendly.
	Fields map[string]any `json:"fields,omitempty"`
}

// TelemetrySink consumes telemetry events. Emit must not block the caller;
// sinks buffer internally and shed load rather than stall the tick loop.
type TelemetrySink interface {
	Emit(ev TelemetryEvent)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Emit(TelemetryEvent) {}
