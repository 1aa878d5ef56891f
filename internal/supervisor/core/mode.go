package core

// Mode is the robot's exclusive operating state. Exactly one Mode is active
// at any instant and it only changes through supervisor transitions inside
// the tick boundary.
type Mode string

const (
	// ModeDisabled is the initial state after boot. No actuation.
	ModeDisabled Mode = "Disabled"

	// ModeIdle means the robot is enabled but not running a control mode.
	ModeIdle Mode = "Idle"

	// ModeTeleop means the robot is driven by the teleoperation link.
	ModeTeleop Mode = "Teleop"

	// ModeAutonomous means the robot is driven by the onboard sequencer.
	ModeAutonomous Mode = "Autonomous"

	// ModeEStopped is entered when the emergency stop is asserted.
	// Absorbing until an operator-acknowledged clear.
	ModeEStopped Mode = "EStopped"

	// ModeFault is entered on a hardware fault condition.
	// Absorbing until an explicit clear; never auto-recovered.
	ModeFault Mode = "Fault"
)

// Modes lists every defined mode.
func Modes() []Mode {
	return []Mode{ModeDisabled, ModeIdle, ModeTeleop, ModeAutonomous, ModeEStopped, ModeFault}
}

// Valid reports whether m is one of the defined modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeDisabled, ModeIdle, ModeTeleop, ModeAutonomous, ModeEStopped, ModeFault:
		return true
	}
	return false
}

// Terminal reports whether m requires an explicit clear event to leave.
func (m Mode) Terminal() bool {
	return m == ModeEStopped || m == ModeFault
}

// CanActuate reports whether device writes are permitted in m.
func (m Mode) CanActuate() bool {
	return m == ModeTeleop || m == ModeAutonomous
}

// Selectable reports whether m is a valid target for a mode-select command.
func (m Mode) Selectable() bool {
	return m == ModeIdle || m == ModeTeleop || m == ModeAutonomous
}
