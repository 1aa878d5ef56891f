// Package interlock implements the safety policy consulted by the
// supervisor on every tick, plus the sensor poller that feeds it.
package interlock

import (
	"fmt"
	"math"
	"time"

	"github.com/kevinbot-io/kevinbot/internal/supervisor/core"
)

// Config carries the safety thresholds. Zero-valued thresholds disable the
// matching check, except the mismatch tolerance which falls back to its
// default.
type Config struct {
	// MaxCoreTemp is the core temperature fault threshold in Celsius.
	MaxCoreTemp float64 `json:"maxCoreTemp" mapstructure:"max-core-temp"`

	// MaxDriveCurrent is the drivebase over-current fault threshold in amps.
	MaxDriveCurrent float64 `json:"maxDriveCurrent" mapstructure:"max-drive-current"`

	// MinBatteryVoltage is the brown-out fault threshold in volts.
	MinBatteryVoltage float64 `json:"minBatteryVoltage" mapstructure:"min-battery-voltage"`

	// TeleopTimeout is the maximum silence on the teleop link before the
	// robot faults while in Teleop.
	TeleopTimeout time.Duration `json:"teleopTimeout" mapstructure:"teleop-timeout"`

	// MismatchTolerance is the per-channel absolute difference between
	// commanded and observed actuator values tolerated before writes to
	// that subsystem are denied.
	MismatchTolerance float64 `json:"mismatchTolerance" mapstructure:"mismatch-tolerance"`
}

// DefaultConfig returns thresholds suitable for the stock chassis.
func DefaultConfig() Config {
	return Config{
		MaxCoreTemp:       70,
		MaxDriveCurrent:   40,
		MinBatteryVoltage: 10.5,
		TeleopTimeout:     time.Second,
		MismatchTolerance: 0.05,
	}
}

// Interlock evaluates the safety policy. It is stateless between ticks; all
// inputs arrive as arguments so the decision is a pure function of the
// snapshot, the candidate and the device registry view.
type Interlock struct {
	cfg     Config
	devices core.DeviceReader
}

// New returns an interlock over the given device registry view.
func New(cfg Config, devices core.DeviceReader) *Interlock {
	if cfg.MismatchTolerance <= 0 {
		cfg.MismatchTolerance = DefaultConfig().MismatchTolerance
	}
	return &Interlock{cfg: cfg, devices: devices}
}

// Evaluate returns the verdict for one tick. candidate may be nil; forced
// transitions fire from sensor state alone, with or without traffic.
//
// Precedence: hardware fault forces Fault, emergency stop forces EStopped,
// actuator mismatch denies the candidate, otherwise allow. Fault outranks
// EStopped because a faulted robot needs service before a stop chain reset
// means anything.
func (il *Interlock) Evaluate(candidate *core.Command, snap core.SensorSnapshot, mode core.Mode) core.Verdict {
	if detail, faulted := il.FaultCondition(snap, mode); faulted {
		if mode == core.ModeFault {
			return core.Allow()
		}
		return core.ForceMode(core.ModeFault, core.ReasonSensorFault, detail)
	}

	if snap.Flag(core.SensorEStop) && !mode.Terminal() {
		return core.ForceMode(core.ModeEStopped, core.ReasonEmergencyStop, "emergency stop asserted")
	}

	if candidate != nil && candidate.Kind == core.KindActuate {
		if detail, mismatched := il.mismatch(candidate.Target); mismatched {
			return core.Deny(core.ReasonActuatorMismatch, detail)
		}
	}

	return core.Allow()
}

// FaultCondition reports whether the snapshot shows a hardware fault.
// An empty snapshot is not a fault; before the first poll completes the
// robot simply stays in Disabled.
func (il *Interlock) FaultCondition(snap core.SensorSnapshot, mode core.Mode) (string, bool) {
	if snap.Empty() {
		return "", false
	}

	if temp, ok := snap.Number(core.SensorCoreTemp); ok && il.cfg.MaxCoreTemp > 0 && temp > il.cfg.MaxCoreTemp {
		return fmt.Sprintf("core temperature %.1fC above limit %.1fC", temp, il.cfg.MaxCoreTemp), true
	}
	if amps, ok := snap.Number(core.SensorDriveCurrent); ok && il.cfg.MaxDriveCurrent > 0 && amps > il.cfg.MaxDriveCurrent {
		return fmt.Sprintf("drive current %.1fA above limit %.1fA", amps, il.cfg.MaxDriveCurrent), true
	}
	if volts, ok := snap.Number(core.SensorBatteryVoltage); ok && il.cfg.MinBatteryVoltage > 0 && volts < il.cfg.MinBatteryVoltage {
		return fmt.Sprintf("battery %.1fV below limit %.1fV", volts, il.cfg.MinBatteryVoltage), true
	}

	// The teleop link only matters while the link is driving the robot.
	if mode == core.ModeTeleop && il.cfg.TeleopTimeout > 0 {
		if ageMs, ok := snap.Number(core.SensorTeleopLinkAge); ok {
			if age := time.Duration(ageMs) * time.Millisecond; age > il.cfg.TeleopTimeout {
				return fmt.Sprintf("teleop link silent for %s", age), true
			}
		}
	}

	return "", false
}

// mismatch reports whether sub's observed state diverged from its last
// commanded state beyond the tolerance. A failed write counts as a
// mismatch until a write succeeds again.
func (il *Interlock) mismatch(sub core.Subsystem) (string, bool) {
	state, ok := il.devices.Read(sub)
	if !ok {
		return "", false
	}
	if state.WriteFailed {
		return fmt.Sprintf("%s last write failed", sub), true
	}
	if len(state.LastObserved) == 0 {
		// Nothing read back yet; divergence is undefined, not dangerous.
		return "", false
	}
	for ch, want := range state.LastCommanded {
		got, ok := state.LastObserved[ch]
		if !ok {
			continue
		}
		if diff := math.Abs(want - got); diff > il.cfg.MismatchTolerance {
			return fmt.Sprintf("%s channel %s commanded %.3f observed %.3f", sub, ch, want, got), true
		}
	}
	return "", false
}
