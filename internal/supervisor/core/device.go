package core

import (
	"context"
	"time"
)

// Subsystem names an actuator group exposed by the hardware layer.
type Subsystem string

const (
	SubsystemDrivebase Subsystem = "drivebase"
	SubsystemArm       Subsystem = "arm"
	SubsystemLighting  Subsystem = "lighting"
	SubsystemSpeaker   Subsystem = "speaker"
)

// Subsystems lists every actuator group in a stable order.
func Subsystems() []Subsystem {
	return []Subsystem{SubsystemDrivebase, SubsystemArm, SubsystemLighting, SubsystemSpeaker}
}

// KnownSubsystem reports whether s names a defined actuator group.
func KnownSubsystem(s Subsystem) bool {
	switch s {
	case SubsystemDrivebase, SubsystemArm, SubsystemLighting, SubsystemSpeaker:
		return true
	}
	return false
}

// DeviceState is the registry's view of one subsystem. LastCommanded and
// LastObserved are kept separately so the interlock can detect actuators
// that stopped following commands.
type DeviceState struct {
	Subsystem Subsystem `json:"subsystem"`

	// LastCommanded holds the channel values of the most recent accepted write.
	LastCommanded map[string]float64 `json:"lastCommanded,omitempty"`

	// LastObserved holds the channel values most recently read back from hardware.
	LastObserved map[string]float64 `json:"lastObserved,omitempty"`

	// LastWrite is when the most recent write attempt finished.
	LastWrite time.Time `json:"lastWrite,omitempty"`

	// WriteFailed is set when the most recent write attempt did not complete
	// before its deadline. It clears on the next successful write.
	WriteFailed bool `json:"writeFailed,omitempty"`
}

// DeviceReader is the read side of the device registry, enough for the
// interlock and the status endpoint.
type DeviceReader interface {
	// Read returns a copy of the state for sub, false if sub is not registered.
	Read(sub Subsystem) (DeviceState, bool)

	// States returns a copy of every registered subsystem state.
	States() []DeviceState
}

// DeviceWriter is the write side of the device registry. The supervisor is
// the only caller, and only in actuating modes.
type DeviceWriter interface {
	// Write pushes channel values to sub. The context carries the write
	// deadline; an expired deadline marks the subsystem failed.
	Write(ctx context.Context, sub Subsystem, values map[string]float64) error
}
