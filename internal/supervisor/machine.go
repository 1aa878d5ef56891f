package supervisor

import (
	"context"
	"errors"

	"github.com/looplab/fsm"

	"github.com/kevinbot-io/kevinbot/internal/supervisor/core"
)

const (
	// EventEnable arms the robot out of Disabled.
	EventEnable = "event_enable"
	// EventSelectTeleop hands control to the teleoperation link.
	EventSelectTeleop = "event_select_teleop"
	// EventSelectAutonomous hands control to the onboard sequencer.
	EventSelectAutonomous = "event_select_autonomous"
	// EventSelectIdle drops back out of an actuating mode.
	EventSelectIdle = "event_select_idle"
	// EventEStop is the forced transition for an asserted emergency stop.
	EventEStop = "event_estop"
	// EventFault is the forced transition for a hardware fault.
	EventFault = "event_fault"
	// EventClear is the operator-acknowledged exit from a terminal mode.
	EventClear = "event_clear"
)

// healthCheck reports a fault detail when the snapshot is unhealthy.
type healthCheck func(snap core.SensorSnapshot, mode core.Mode) (string, bool)

// machine is the mode transition graph. Every edge the supervisor may take
// is declared here; anything else fails with an invalid-event error, which
// is how edges absent from the graph (Disabled to Teleop, enable while
// faulted) are rejected without case-by-case code.
type machine struct {
	*fsm.FSM
	faulted healthCheck
}

func newMachine(initial core.Mode, faulted healthCheck) *machine {
	m := &machine{faulted: faulted}

	events := fsm.Events{
		{Name: EventEnable, Src: []string{string(core.ModeDisabled)}, Dst: string(core.ModeIdle)},

		{Name: EventSelectTeleop, Src: []string{string(core.ModeIdle)}, Dst: string(core.ModeTeleop)},
		{Name: EventSelectAutonomous, Src: []string{string(core.ModeIdle)}, Dst: string(core.ModeAutonomous)},
		{Name: EventSelectIdle, Src: []string{string(core.ModeTeleop), string(core.ModeAutonomous)}, Dst: string(core.ModeIdle)},

		// Safety edges. EStop fires from any non-terminal mode; a hardware
		// fault escalates even out of EStopped.
		{Name: EventEStop, Src: []string{
			string(core.ModeDisabled), string(core.ModeIdle),
			string(core.ModeTeleop), string(core.ModeAutonomous),
		}, Dst: string(core.ModeEStopped)},
		{Name: EventFault, Src: []string{
			string(core.ModeDisabled), string(core.ModeIdle),
			string(core.ModeTeleop), string(core.ModeAutonomous),
			string(core.ModeEStopped),
		}, Dst: string(core.ModeFault)},

		{Name: EventClear, Src: []string{string(core.ModeEStopped), string(core.ModeFault)}, Dst: string(core.ModeIdle)},
	}

	callbacks := fsm.Callbacks{
		// Guards: a snapshot travels as Args[0] on guarded events.
		"before_" + EventEnable: wrapEvent(m.guardHealthy),
		"before_" + EventClear:  wrapEvent(m.guardHealthy),
	}

	m.FSM = fsm.NewFSM(string(initial), events, callbacks)
	return m
}

// wrapEvent adapts an error-returning callback to the fsm signature.
func wrapEvent(fn func(ctx context.Context, e *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, e *fsm.Event) {
		if err := fn(ctx, e); err != nil {
			e.Err = err
		}
	}
}

// guardHealthy cancels arming and clearing transitions while the emergency
// stop is asserted or a fault condition persists. Clearing a fault whose
// cause is still present would bounce straight back next tick.
func (m *machine) guardHealthy(ctx context.Context, e *fsm.Event) error {
	if len(e.Args) == 0 {
		return nil
	}
	snap, ok := e.Args[0].(core.SensorSnapshot)
	if !ok {
		return nil
	}
	if snap.Flag(core.SensorEStop) {
		e.Cancel(errors.New("emergency stop still asserted"))
		return nil
	}
	if detail, bad := m.faulted(snap, core.Mode(m.Current())); bad {
		e.Cancel(errors.New(detail))
		return nil
	}
	return nil
}

// Mode returns the current mode. Safe for concurrent readers; looplab/fsm
// guards its state internally.
func (m *machine) Mode() core.Mode {
	return core.Mode(m.Current())
}

// Fire drives one event through the graph. The returned bool reports
// whether the mode actually changed; err carries the guard or graph error.
func (m *machine) Fire(ctx context.Context, event string, args ...any) (changed bool, err error) {
	err = m.Event(ctx, event, args...)
	if err == nil {
		return true, nil
	}

	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return false, nil
	}
	return false, err
}

// eventForCommand maps a transition command to its graph event.
func eventForCommand(cmd *core.Command) (string, bool) {
	switch cmd.Kind {
	case core.KindEnable:
		return EventEnable, true
	case core.KindClear:
		return EventClear, true
	case core.KindSelectMode:
		switch cmd.Mode {
		case core.ModeTeleop:
			return EventSelectTeleop, true
		case core.ModeAutonomous:
			return EventSelectAutonomous, true
		case core.ModeIdle:
			return EventSelectIdle, true
		}
	}
	return "", false
}
