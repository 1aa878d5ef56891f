package core

import "errors"

// Reason is a stable machine-readable code attached to rejections, denials
// and forced transitions. Reasons appear in telemetry, command acks and
// metric labels, so they must not change between releases.
type Reason string

const (
	// ReasonStaleCommand marks a command older than the staleness window
	// at bus receipt.
	ReasonStaleCommand Reason = "stale-command"

	// ReasonMalformedCommand marks a command that failed validation.
	ReasonMalformedCommand Reason = "malformed-command"

	// ReasonQueueFull marks a command dropped because its priority tier
	// queue was at capacity.
	ReasonQueueFull Reason = "queue-full"

	// ReasonActuatorMismatch marks a denial because observed actuator
	// state diverged from the last commanded state.
	ReasonActuatorMismatch Reason = "actuator-mismatch"

	// ReasonDeviceWriteFailed marks a device write that missed its deadline.
	ReasonDeviceWriteFailed Reason = "device-write-failed"

	// ReasonInvalidModeForCommand marks a command that is not legal in the
	// current mode, including transitions with no edge from it.
	ReasonInvalidModeForCommand Reason = "invalid-mode-for-command"

	// ReasonSensorFault marks a hardware fault condition read from sensors.
	ReasonSensorFault Reason = "sensor-fault"

	// ReasonEmergencyStop marks an asserted emergency stop.
	ReasonEmergencyStop Reason = "emergency-stop"

	// ReasonPreempted marks a candidate command discarded because a forced
	// transition won the same tick.
	ReasonPreempted Reason = "preempted"
)

// Sentinel errors for bus and registry call sites. Callers classify with
// errors.Is and map to the Reason codes above.
var (
	ErrStaleCommand     = errors.New("command is stale")
	ErrMalformedCommand = errors.New("command is malformed")
	ErrQueueFull        = errors.New("command queue is full")
	ErrWriteTimeout     = errors.New("device write deadline exceeded")
	ErrUnknownSubsystem = errors.New("unknown subsystem")
)

// ReasonForSubmitError maps a bus submit error to its telemetry reason.
func ReasonForSubmitError(err error) Reason {
	switch {
	case errors.Is(err, ErrStaleCommand):
		return ReasonStaleCommand
	case errors.Is(err, ErrQueueFull):
		return ReasonQueueFull
	default:
		return ReasonMalformedCommand
	}
}
