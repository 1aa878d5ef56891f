package core

import "time"

// SensorID names one reading in a snapshot.
type SensorID string

// Well-known sensor IDs published by the hardware layer and the poller.
const (
	// SensorEStop is true while the physical emergency stop is asserted.
	SensorEStop SensorID = "estop.asserted"

	// SensorCoreTemp is the controller core temperature in degrees Celsius.
	SensorCoreTemp SensorID = "core.temperature"

	// SensorDriveCurrent is the drivebase motor current draw in amps.
	SensorDriveCurrent SensorID = "drive.current"

	// SensorBatteryVoltage is the main battery voltage in volts.
	SensorBatteryVoltage SensorID = "battery.voltage"

	// SensorTeleopLinkAge is the milliseconds since the last teleop
	// command-bus receipt. Synthesized by the poller, not the hardware.
	SensorTeleopLinkAge SensorID = "link.teleop_age_ms"
)

// ReadingKind discriminates the value carried by a Reading.
type ReadingKind int

const (
	ReadingNumeric ReadingKind = iota
	ReadingBoolean
)

// Reading is one sensor sample, numeric or boolean.
type Reading struct {
	Kind   ReadingKind `json:"kind"`
	Number float64     `json:"number,omitempty"`
	Bool   bool        `json:"bool,omitempty"`
}

// NumberReading wraps a numeric sample.
func NumberReading(v float64) Reading {
	return Reading{Kind: ReadingNumeric, Number: v}
}

// BoolReading wraps a boolean sample.
func BoolReading(b bool) Reading {
	return Reading{Kind: ReadingBoolean, Bool: b}
}

// SensorSnapshot is an immutable point-in-time view of every sensor. The
// poller produces snapshots off the tick path; the supervisor reads one
// consistent snapshot per tick and never blocks on hardware I/O.
type SensorSnapshot struct {
	// Taken is when the snapshot was assembled.
	Taken time.Time `json:"taken"`

	Readings map[SensorID]Reading `json:"readings"`
}

// Number returns the numeric reading for id, false if absent or boolean.
func (s SensorSnapshot) Number(id SensorID) (float64, bool) {
	r, ok := s.Readings[id]
	if !ok || r.Kind != ReadingNumeric {
		return 0, false
	}
	return r.Number, true
}

// Flag returns the boolean reading for id. Absent readings are false.
func (s SensorSnapshot) Flag(id SensorID) bool {
	r, ok := s.Readings[id]
	return ok && r.Kind == ReadingBoolean && r.Bool
}

// Empty reports whether the snapshot carries no readings at all, which
// happens before the first poll completes.
func (s SensorSnapshot) Empty() bool {
	return len(s.Readings) == 0
}
