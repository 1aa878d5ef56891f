package interlock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinbot-io/kevinbot/internal/supervisor/core"
)

type fakeDevices struct {
	states map[core.Subsystem]core.DeviceState
}

func (f *fakeDevices) Read(sub core.Subsystem) (core.DeviceState, bool) {
	s, ok := f.states[sub]
	return s, ok
}

func (f *fakeDevices) States() []core.DeviceState {
	out := make([]core.DeviceState, 0, len(f.states))
	for _, s := range f.states {
		out = append(out, s)
	}
	return out
}

func cleanSnapshot() core.SensorSnapshot {
	return core.SensorSnapshot{
		Taken: time.Now(),
		Readings: map[core.SensorID]core.Reading{
			core.SensorEStop:          core.BoolReading(false),
			core.SensorCoreTemp:       core.NumberReading(35),
			core.SensorDriveCurrent:   core.NumberReading(8),
			core.SensorBatteryVoltage: core.NumberReading(12.4),
			core.SensorTeleopLinkAge:  core.NumberReading(40),
		},
	}
}

func actuateDrive() *core.Command {
	return &core.Command{
		ID:       "c-1",
		Source:   core.SourceTeleop,
		Kind:     core.KindActuate,
		Target:   core.SubsystemDrivebase,
		Values:   map[string]float64{"left": 0.5},
		IssuedAt: time.Now(),
	}
}

func newTestInterlock(devices core.DeviceReader) *Interlock {
	if devices == nil {
		devices = &fakeDevices{}
	}
	return New(DefaultConfig(), devices)
}

func TestEvaluateAllowsCleanTick(t *testing.T) {
	il := newTestInterlock(nil)

	v := il.Evaluate(actuateDrive(), cleanSnapshot(), core.ModeTeleop)
	assert.Equal(t, core.VerdictAllow, v.Kind)
}

func TestEvaluateNilCandidate(t *testing.T) {
	il := newTestInterlock(nil)

	// Forced transitions fire with no traffic at all.
	snap := cleanSnapshot()
	snap.Readings[core.SensorEStop] = core.BoolReading(true)

	v := il.Evaluate(nil, snap, core.ModeIdle)
	require.Equal(t, core.VerdictForceMode, v.Kind)
	assert.Equal(t, core.ModeEStopped, v.Mode)
	assert.Equal(t, core.ReasonEmergencyStop, v.Reason)
}

func TestEvaluateFaultOutranksEStop(t *testing.T) {
	il := newTestInterlock(nil)

	snap := cleanSnapshot()
	snap.Readings[core.SensorEStop] = core.BoolReading(true)
	snap.Readings[core.SensorCoreTemp] = core.NumberReading(92)

	v := il.Evaluate(actuateDrive(), snap, core.ModeTeleop)
	require.Equal(t, core.VerdictForceMode, v.Kind)
	assert.Equal(t, core.ModeFault, v.Mode)
	assert.Equal(t, core.ReasonSensorFault, v.Reason)
}

func TestEvaluateOverCurrent(t *testing.T) {
	il := newTestInterlock(nil)

	snap := cleanSnapshot()
	snap.Readings[core.SensorDriveCurrent] = core.NumberReading(55)

	v := il.Evaluate(nil, snap, core.ModeAutonomous)
	require.Equal(t, core.VerdictForceMode, v.Kind)
	assert.Equal(t, core.ModeFault, v.Mode)
	assert.Contains(t, v.Detail, "drive current")
}

func TestEvaluateBrownOut(t *testing.T) {
	il := newTestInterlock(nil)

	snap := cleanSnapshot()
	snap.Readings[core.SensorBatteryVoltage] = core.NumberReading(9.8)

	v := il.Evaluate(nil, snap, core.ModeIdle)
	require.Equal(t, core.VerdictForceMode, v.Kind)
	assert.Equal(t, core.ModeFault, v.Mode)
}

func TestEvaluateTeleopTimeoutOnlyInTeleop(t *testing.T) {
	il := newTestInterlock(nil)

	snap := cleanSnapshot()
	snap.Readings[core.SensorTeleopLinkAge] = core.NumberReading(5000)

	v := il.Evaluate(nil, snap, core.ModeTeleop)
	require.Equal(t, core.VerdictForceMode, v.Kind)
	assert.Equal(t, core.ModeFault, v.Mode)

	// The same silence is harmless while the sequencer is driving.
	v = il.Evaluate(nil, snap, core.ModeAutonomous)
	assert.Equal(t, core.VerdictAllow, v.Kind)
	v = il.Evaluate(nil, snap, core.ModeIdle)
	assert.Equal(t, core.VerdictAllow, v.Kind)
}

func TestEvaluateNoReforceWhileTerminal(t *testing.T) {
	il := newTestInterlock(nil)

	snap := cleanSnapshot()
	snap.Readings[core.SensorCoreTemp] = core.NumberReading(92)
	v := il.Evaluate(nil, snap, core.ModeFault)
	assert.Equal(t, core.VerdictAllow, v.Kind, "already faulted, nothing to force")

	snap = cleanSnapshot()
	snap.Readings[core.SensorEStop] = core.BoolReading(true)
	v = il.Evaluate(nil, snap, core.ModeEStopped)
	assert.Equal(t, core.VerdictAllow, v.Kind, "already stopped, nothing to force")

	// A faulted robot absorbs the stop condition too; there is no edge
	// from Fault to EStopped.
	v = il.Evaluate(nil, snap, core.ModeFault)
	assert.Equal(t, core.VerdictAllow, v.Kind)
}

func TestEvaluateEmptySnapshotIsNotAFault(t *testing.T) {
	il := newTestInterlock(nil)

	v := il.Evaluate(nil, core.SensorSnapshot{}, core.ModeDisabled)
	assert.Equal(t, core.VerdictAllow, v.Kind)
}

func TestEvaluateActuatorMismatch(t *testing.T) {
	devices := &fakeDevices{states: map[core.Subsystem]core.DeviceState{
		core.SubsystemDrivebase: {
			Subsystem:     core.SubsystemDrivebase,
			LastCommanded: map[string]float64{"left": 0.5, "right": 0.5},
			LastObserved:  map[string]float64{"left": 0.5, "right": 0.1},
		},
	}}
	il := newTestInterlock(devices)

	v := il.Evaluate(actuateDrive(), cleanSnapshot(), core.ModeTeleop)
	require.Equal(t, core.VerdictDeny, v.Kind)
	assert.Equal(t, core.ReasonActuatorMismatch, v.Reason)
	assert.Contains(t, v.Detail, "right")
}

func TestEvaluateMismatchWithinTolerance(t *testing.T) {
	devices := &fakeDevices{states: map[core.Subsystem]core.DeviceState{
		core.SubsystemDrivebase: {
			Subsystem:     core.SubsystemDrivebase,
			LastCommanded: map[string]float64{"left": 0.50},
			LastObserved:  map[string]float64{"left": 0.48},
		},
	}}
	il := newTestInterlock(devices)

	v := il.Evaluate(actuateDrive(), cleanSnapshot(), core.ModeTeleop)
	assert.Equal(t, core.VerdictAllow, v.Kind)
}

func TestEvaluateFailedWriteCountsAsMismatch(t *testing.T) {
	devices := &fakeDevices{states: map[core.Subsystem]core.DeviceState{
		core.SubsystemDrivebase: {
			Subsystem:   core.SubsystemDrivebase,
			WriteFailed: true,
		},
	}}
	il := newTestInterlock(devices)

	v := il.Evaluate(actuateDrive(), cleanSnapshot(), core.ModeTeleop)
	require.Equal(t, core.VerdictDeny, v.Kind)
	assert.Equal(t, core.ReasonActuatorMismatch, v.Reason)
}

func TestEvaluateMismatchChecksOnlyCandidateTarget(t *testing.T) {
	devices := &fakeDevices{states: map[core.Subsystem]core.DeviceState{
		core.SubsystemArm: {
			Subsystem:   core.SubsystemArm,
			WriteFailed: true,
		},
	}}
	il := newTestInterlock(devices)

	// Drivebase writes stay allowed while the arm is misbehaving.
	v := il.Evaluate(actuateDrive(), cleanSnapshot(), core.ModeTeleop)
	assert.Equal(t, core.VerdictAllow, v.Kind)
}
