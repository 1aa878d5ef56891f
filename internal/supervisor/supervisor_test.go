package supervisor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinbot-io/kevinbot/internal/supervisor/bus"
	"github.com/kevinbot-io/kevinbot/internal/supervisor/core"
	"github.com/kevinbot-io/kevinbot/internal/supervisor/interlock"
)

type fakeSnapshots struct {
	mu   sync.Mutex
	snap core.SensorSnapshot
}

func (f *fakeSnapshots) Latest() core.SensorSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSnapshots) set(id core.SensorID, r core.Reading) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snap.Readings == nil {
		f.snap.Readings = map[core.SensorID]core.Reading{}
	}
	f.snap.Taken = time.Now()
	f.snap.Readings[id] = r
}

type fakeDeviceStates struct {
	mu     sync.Mutex
	states map[core.Subsystem]core.DeviceState
}

func (f *fakeDeviceStates) Read(sub core.Subsystem) (core.DeviceState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[sub]
	return s, ok
}

func (f *fakeDeviceStates) States() []core.DeviceState { return nil }

type fakeWriter struct {
	mu     sync.Mutex
	writes []core.Subsystem
	err    error
}

func (f *fakeWriter) Write(ctx context.Context, sub core.Subsystem, values map[string]float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.writes = append(f.writes, sub)
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []core.TelemetryEvent
}

func (r *recordingSink) Emit(ev core.TelemetryEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) kinds() []core.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *recordingSink) last(kind core.EventKind) (core.TelemetryEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == kind {
			return r.events[i], true
		}
	}
	return core.TelemetryEvent{}, false
}

type harness struct {
	sup     *Supervisor
	bus     *bus.Bus
	snaps   *fakeSnapshots
	devices *fakeDeviceStates
	writer  *fakeWriter
	sink    *recordingSink
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		bus:     bus.New(),
		snaps:   &fakeSnapshots{},
		devices: &fakeDeviceStates{states: map[core.Subsystem]core.DeviceState{}},
		writer:  &fakeWriter{},
		sink:    &recordingSink{},
	}

	h.snaps.set(core.SensorEStop, core.BoolReading(false))
	h.snaps.set(core.SensorCoreTemp, core.NumberReading(35))
	h.snaps.set(core.SensorBatteryVoltage, core.NumberReading(12.5))

	h.sup = New(Config{
		Bus:       h.bus,
		Interlock: interlock.New(interlock.DefaultConfig(), h.devices),
		Devices:   h.writer,
		Snapshots: h.snaps,
		Sink:      h.sink,
	})
	return h
}

func (h *harness) submit(t *testing.T, cmd core.Command) {
	t.Helper()
	if cmd.ID == "" {
		cmd.ID = "test-cmd"
	}
	if cmd.IssuedAt.IsZero() {
		cmd.IssuedAt = time.Now()
	}
	require.NoError(t, h.bus.Submit(cmd))
}

func (h *harness) tick() {
	h.sup.step(context.Background())
}

// enterMode drives the supervisor to the target mode through real commands.
func (h *harness) enterMode(t *testing.T, target core.Mode) {
	t.Helper()

	h.submit(t, core.Command{ID: "setup-enable", Source: core.SourceOperator, Kind: core.KindEnable})
	h.tick()
	if target == core.ModeIdle {
		require.Equal(t, core.ModeIdle, h.sup.Mode())
		return
	}
	h.submit(t, core.Command{ID: "setup-select", Source: core.SourceOperator, Kind: core.KindSelectMode, Mode: target})
	h.tick()
	require.Equal(t, target, h.sup.Mode())
}

func TestStartsDisabled(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, core.ModeDisabled, h.sup.Mode())
}

func TestEnableThenSelectTeleop(t *testing.T) {
	h := newHarness(t)
	h.enterMode(t, core.ModeTeleop)

	ev, ok := h.sink.last(core.EventModeChanged)
	require.True(t, ok)
	assert.Equal(t, string(core.ModeIdle), ev.Fields["from"])
	assert.Equal(t, string(core.ModeTeleop), ev.Fields["to"])
}

func TestNoEdgeDisabledToTeleop(t *testing.T) {
	h := newHarness(t)

	h.submit(t, core.Command{Source: core.SourceOperator, Kind: core.KindSelectMode, Mode: core.ModeTeleop})
	h.tick()

	assert.Equal(t, core.ModeDisabled, h.sup.Mode())
	ev, ok := h.sink.last(core.EventCommandRejected)
	require.True(t, ok)
	assert.Equal(t, string(core.ReasonInvalidModeForCommand), ev.Fields["reason"])
}

func TestActuateOnlyInActuatingModes(t *testing.T) {
	h := newHarness(t)
	h.enterMode(t, core.ModeIdle)

	h.submit(t, core.Command{Source: core.SourceTeleop, Kind: core.KindActuate,
		Target: core.SubsystemDrivebase, Values: map[string]float64{"left": 0.5}})
	h.tick()

	assert.Empty(t, h.writer.writes)
	ev, ok := h.sink.last(core.EventCommandRejected)
	require.True(t, ok)
	assert.Equal(t, string(core.ReasonInvalidModeForCommand), ev.Fields["reason"])
}

func TestActuateWritesInTeleop(t *testing.T) {
	h := newHarness(t)
	h.enterMode(t, core.ModeTeleop)

	h.submit(t, core.Command{Source: core.SourceTeleop, Kind: core.KindActuate,
		Target: core.SubsystemDrivebase, Values: map[string]float64{"left": 0.5, "right": 0.5}})
	h.tick()

	assert.Equal(t, []core.Subsystem{core.SubsystemDrivebase}, h.writer.writes)
}

func TestDeviceWriteFailureEmitsTelemetry(t *testing.T) {
	h := newHarness(t)
	h.enterMode(t, core.ModeTeleop)

	h.writer.err = core.ErrWriteTimeout
	h.submit(t, core.Command{Source: core.SourceTeleop, Kind: core.KindActuate,
		Target: core.SubsystemArm, Values: map[string]float64{"shoulder": 0.2}})
	h.tick()

	ev, ok := h.sink.last(core.EventDeviceWriteFailed)
	require.True(t, ok)
	assert.Equal(t, string(core.SubsystemArm), ev.Fields["subsystem"])
}

// An asserted emergency stop during teleop preempts the pending drive
// command in the same tick and lands the robot in EStopped.
func TestEStopPreemptsPendingCommand(t *testing.T) {
	h := newHarness(t)
	h.enterMode(t, core.ModeTeleop)

	h.submit(t, core.Command{ID: "drive-1", Source: core.SourceTeleop, Kind: core.KindActuate,
		Target: core.SubsystemDrivebase, Values: map[string]float64{"left": 1}})
	h.snaps.set(core.SensorEStop, core.BoolReading(true))
	h.tick()

	assert.Equal(t, core.ModeEStopped, h.sup.Mode())
	assert.Empty(t, h.writer.writes, "preempted command must not reach the device")

	kinds := h.sink.kinds()
	assert.Contains(t, kinds, core.EventCommandPreempted)
	assert.Contains(t, kinds, core.EventEmergencyStop)
	ev, _ := h.sink.last(core.EventModeChanged)
	assert.Equal(t, string(core.ModeEStopped), ev.Fields["to"])
}

func TestEStopFiresWithEmptyBus(t *testing.T) {
	h := newHarness(t)
	h.enterMode(t, core.ModeIdle)

	h.snaps.set(core.SensorEStop, core.BoolReading(true))
	h.tick()

	assert.Equal(t, core.ModeEStopped, h.sup.Mode())
}

func TestEStoppedIsAbsorbing(t *testing.T) {
	h := newHarness(t)
	h.enterMode(t, core.ModeIdle)
	h.snaps.set(core.SensorEStop, core.BoolReading(true))
	h.tick()
	require.Equal(t, core.ModeEStopped, h.sup.Mode())

	h.submit(t, core.Command{Source: core.SourceOperator, Kind: core.KindSelectMode, Mode: core.ModeTeleop})
	h.tick()
	assert.Equal(t, core.ModeEStopped, h.sup.Mode())

	h.submit(t, core.Command{Source: core.SourceOperator, Kind: core.KindEnable})
	h.tick()
	assert.Equal(t, core.ModeEStopped, h.sup.Mode())
}

func TestClearRequiresDeassertedEStop(t *testing.T) {
	h := newHarness(t)
	h.enterMode(t, core.ModeIdle)
	h.snaps.set(core.SensorEStop, core.BoolReading(true))
	h.tick()
	require.Equal(t, core.ModeEStopped, h.sup.Mode())

	// Still asserted: the clear is refused.
	h.submit(t, core.Command{ID: "clear-1", Source: core.SourceOperator, Kind: core.KindClear})
	h.tick()
	assert.Equal(t, core.ModeEStopped, h.sup.Mode())

	// Deasserted: the clear lands in Idle.
	h.snaps.set(core.SensorEStop, core.BoolReading(false))
	h.submit(t, core.Command{ID: "clear-2", Source: core.SourceOperator, Kind: core.KindClear})
	h.tick()
	assert.Equal(t, core.ModeIdle, h.sup.Mode())

	ev, ok := h.sink.last(core.EventCleared)
	require.True(t, ok)
	assert.Equal(t, string(core.ModeEStopped), ev.Fields["from"])
}

func TestSensorFaultForcesFault(t *testing.T) {
	h := newHarness(t)
	h.enterMode(t, core.ModeAutonomous)

	h.snaps.set(core.SensorCoreTemp, core.NumberReading(92))
	h.tick()

	assert.Equal(t, core.ModeFault, h.sup.Mode())
	ev, ok := h.sink.last(core.EventSensorFault)
	require.True(t, ok)
	assert.Contains(t, ev.Fields["detail"], "core temperature")
}

// Scenario: enable while faulted is rejected and the mode does not move.
func TestEnableWhileFaultedRejected(t *testing.T) {
	h := newHarness(t)
	h.enterMode(t, core.ModeIdle)
	h.snaps.set(core.SensorCoreTemp, core.NumberReading(92))
	h.tick()
	require.Equal(t, core.ModeFault, h.sup.Mode())

	h.submit(t, core.Command{ID: "enable-1", Source: core.SourceOperator, Kind: core.KindEnable})
	h.tick()

	assert.Equal(t, core.ModeFault, h.sup.Mode())
	ev, ok := h.sink.last(core.EventCommandRejected)
	require.True(t, ok)
	assert.Equal(t, "enable-1", ev.Fields["id"])
}

func TestFaultNotClearedWhileConditionPersists(t *testing.T) {
	h := newHarness(t)
	h.enterMode(t, core.ModeIdle)
	h.snaps.set(core.SensorCoreTemp, core.NumberReading(92))
	h.tick()
	require.Equal(t, core.ModeFault, h.sup.Mode())

	h.submit(t, core.Command{Source: core.SourceOperator, Kind: core.KindClear})
	h.tick()
	assert.Equal(t, core.ModeFault, h.sup.Mode())

	h.snaps.set(core.SensorCoreTemp, core.NumberReading(40))
	h.submit(t, core.Command{Source: core.SourceOperator, Kind: core.KindClear})
	h.tick()
	assert.Equal(t, core.ModeIdle, h.sup.Mode())
}

func TestFaultEscalatesFromEStopped(t *testing.T) {
	h := newHarness(t)
	h.enterMode(t, core.ModeIdle)
	h.snaps.set(core.SensorEStop, core.BoolReading(true))
	h.tick()
	require.Equal(t, core.ModeEStopped, h.sup.Mode())

	h.snaps.set(core.SensorCoreTemp, core.NumberReading(92))
	h.tick()
	assert.Equal(t, core.ModeFault, h.sup.Mode())
}

func TestMismatchDeniesWithoutTransition(t *testing.T) {
	h := newHarness(t)
	h.enterMode(t, core.ModeTeleop)

	h.devices.mu.Lock()
	h.devices.states[core.SubsystemDrivebase] = core.DeviceState{
		Subsystem:     core.SubsystemDrivebase,
		LastCommanded: map[string]float64{"left": 0.5},
		LastObserved:  map[string]float64{"left": 0.1},
	}
	h.devices.mu.Unlock()

	h.submit(t, core.Command{ID: "drive-2", Source: core.SourceTeleop, Kind: core.KindActuate,
		Target: core.SubsystemDrivebase, Values: map[string]float64{"left": 0.5}})
	h.tick()

	assert.Equal(t, core.ModeTeleop, h.sup.Mode(), "a mismatch denies, it does not fault")
	assert.Empty(t, h.writer.writes)
	ev, ok := h.sink.last(core.EventCommandDenied)
	require.True(t, ok)
	assert.Equal(t, string(core.ReasonActuatorMismatch), ev.Fields["reason"])
}

func TestForcedTransitionDrainsBus(t *testing.T) {
	h := newHarness(t)
	h.enterMode(t, core.ModeTeleop)

	for i := 0; i < 5; i++ {
		h.submit(t, core.Command{ID: "drive-" + string(rune('a'+i)), Source: core.SourceTeleop,
			Kind: core.KindActuate, Target: core.SubsystemDrivebase, Values: map[string]float64{"left": 0.1}})
	}
	h.snaps.set(core.SensorEStop, core.BoolReading(true))
	h.tick()

	require.Equal(t, core.ModeEStopped, h.sup.Mode())
	assert.Zero(t, h.bus.Depth(), "entering a terminal mode flushes stale traffic")
}
