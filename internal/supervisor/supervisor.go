// Package supervisor owns the robot mode and runs the fixed-cadence
// control tick. All mode transitions happen here and nowhere else.
package supervisor

import (
	"context"
	"time"

	"github.com/kevinbot-io/kevinbot/internal/pkg/metrics"
	"github.com/kevinbot-io/kevinbot/internal/supervisor/bus"
	"github.com/kevinbot-io/kevinbot/internal/supervisor/core"
	"github.com/kevinbot-io/kevinbot/internal/supervisor/interlock"
	"github.com/kevinbot-io/kevinbot/pkg/log"
)

const (
	// DefaultTick is the control cadence, 50Hz.
	DefaultTick = 20 * time.Millisecond

	// DefaultWriteTimeout is the per-write device deadline.
	DefaultWriteTimeout = 10 * time.Millisecond
)

// SnapshotSource serves the latest sensor snapshot without blocking.
type SnapshotSource interface {
	Latest() core.SensorSnapshot
}

// Speaker voices operator feedback. Implementations must not block.
type Speaker interface {
	SayAsync(text string)
}

// Config assembles a Supervisor.
type Config struct {
	Bus       *bus.Bus
	Interlock *interlock.Interlock
	Devices   core.DeviceWriter
	Snapshots SnapshotSource
	Sink      core.TelemetrySink
	Speaker   Speaker

	Tick         time.Duration
	WriteTimeout time.Duration
}

// Supervisor consumes at most one command per tick, consults the safety
// interlock and applies the result. It is the only writer of the mode.
type Supervisor struct {
	machine *machine

	bus       *bus.Bus
	interlock *interlock.Interlock
	devices   core.DeviceWriter
	snapshots SnapshotSource
	sink      core.TelemetrySink
	speaker   Speaker
	logger    log.Logger

	tick         time.Duration
	writeTimeout time.Duration
}

// New returns a supervisor in Disabled.
func New(cfg Config) *Supervisor {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Sink == nil {
		cfg.Sink = core.NopSink{}
	}

	s := &Supervisor{
		bus:          cfg.Bus,
		interlock:    cfg.Interlock,
		devices:      cfg.Devices,
		snapshots:    cfg.Snapshots,
		sink:         cfg.Sink,
		speaker:      cfg.Speaker,
		logger:       log.WithName("supervisor"),
		tick:         cfg.Tick,
		writeTimeout: cfg.WriteTimeout,
	}
	s.machine = newMachine(core.ModeDisabled, cfg.Interlock.FaultCondition)
	metrics.SetMode(core.ModeDisabled)
	return s
}

// Mode returns the current mode. Safe for concurrent readers.
func (s *Supervisor) Mode() core.Mode {
	return s.machine.Mode()
}

// Start runs the tick loop until ctx is cancelled.
func (s *Supervisor) Start(ctx context.Context) error {
	s.logger.Info("Supervisor starting", "tick", s.tick.String(), "mode", s.Mode())

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Supervisor stopping", "mode", s.Mode())
			return nil
		case <-ticker.C:
			start := time.Now()
			s.step(ctx)
			metrics.TickDuration.Observe(time.Since(start).Seconds())
		}
	}
}

// step is one control tick: read the snapshot, pop at most one command,
// let the interlock rule, then act. The interlock runs every tick even
// when the bus is empty so forced transitions never wait for traffic.
func (s *Supervisor) step(ctx context.Context) {
	snap := s.snapshots.Latest()
	mode := s.Mode()

	var candidate *core.Command
	if cmd, ok := s.bus.Next(); ok {
		candidate = &cmd
	}

	verdict := s.interlock.Evaluate(candidate, snap, mode)
	switch verdict.Kind {
	case core.VerdictForceMode:
		s.applyForced(ctx, verdict, candidate, snap)
	case core.VerdictDeny:
		s.denyCandidate(candidate, verdict)
	case core.VerdictAllow:
		if candidate != nil {
			s.applyCommand(ctx, candidate, snap)
		}
	}
}

// applyForced executes a safety-forced transition. A forced transition
// wins over any candidate popped the same tick; the candidate is dropped
// on the floor, not re-queued, because post-transition it would be invalid
// anyway.
func (s *Supervisor) applyForced(ctx context.Context, v core.Verdict, candidate *core.Command, snap core.SensorSnapshot) {
	if candidate != nil {
		metrics.Commands.WithLabelValues(string(candidate.Source), metrics.DispositionPreempted).Inc()
		s.emit(core.EventCommandPreempted, map[string]any{
			"id":     candidate.ID,
			"source": string(candidate.Source),
			"kind":   string(candidate.Kind),
		})
	}

	event := EventFault
	if v.Mode == core.ModeEStopped {
		event = EventEStop
	}

	from := s.Mode()
	changed, err := s.machine.Fire(ctx, event)
	if err != nil {
		// Only unreachable edges end up here, e.g. a forced estop while
		// already faulted. The robot is in a terminal mode either way.
		s.logger.Warn("Forced transition had no edge", "event", event, "mode", from, "err", err.Error())
		return
	}
	if !changed {
		return
	}

	dropped := s.bus.Drain()
	s.logger.Error(nil, "Safety interlock forced a transition",
		"from", from, "to", v.Mode, "reason", string(v.Reason), "detail", v.Detail, "dropped", dropped)

	switch v.Reason {
	case core.ReasonEmergencyStop:
		s.emit(core.EventEmergencyStop, map[string]any{"detail": v.Detail})
		s.say("Emergency stop")
	case core.ReasonSensorFault:
		s.emit(core.EventSensorFault, map[string]any{"detail": v.Detail})
		s.say("Hardware fault detected")
	}
	s.transitioned(from, v.Mode, string(v.Reason))
}

func (s *Supervisor) denyCandidate(candidate *core.Command, v core.Verdict) {
	if candidate == nil {
		return
	}
	metrics.Commands.WithLabelValues(string(candidate.Source), metrics.DispositionDenied).Inc()
	s.logger.Warn("Interlock denied command",
		"id", candidate.ID, "kind", string(candidate.Kind), "reason", string(v.Reason), "detail", v.Detail)
	s.emit(core.EventCommandDenied, map[string]any{
		"id":     candidate.ID,
		"source": string(candidate.Source),
		"kind":   string(candidate.Kind),
		"reason": string(v.Reason),
		"detail": v.Detail,
	})
}

func (s *Supervisor) applyCommand(ctx context.Context, cmd *core.Command, snap core.SensorSnapshot) {
	switch cmd.Kind {
	case core.KindEnable, core.KindClear, core.KindSelectMode:
		s.applyTransition(ctx, cmd, snap)
	case core.KindActuate:
		s.applyActuate(ctx, cmd)
	case core.KindSay:
		s.say(cmd.Text)
		metrics.Commands.WithLabelValues(string(cmd.Source), metrics.DispositionAccepted).Inc()
	}
}

func (s *Supervisor) applyTransition(ctx context.Context, cmd *core.Command, snap core.SensorSnapshot) {
	event, ok := eventForCommand(cmd)
	if !ok {
		s.reject(cmd, core.ReasonMalformedCommand, "no event for command")
		return
	}

	from := s.Mode()
	changed, err := s.machine.Fire(ctx, event, snap)
	if err != nil {
		s.reject(cmd, core.ReasonInvalidModeForCommand, err.Error())
		return
	}
	metrics.Commands.WithLabelValues(string(cmd.Source), metrics.DispositionAccepted).Inc()
	if !changed {
		return
	}

	to := s.Mode()
	s.logger.Info("Mode transition", "from", from, "to", to, "command", cmd.ID)
	if cmd.Kind == core.KindClear {
		s.emit(core.EventCleared, map[string]any{"from": string(from)})
		s.say("Safety condition cleared")
	}
	s.transitioned(from, to, "command:"+cmd.ID)
	s.announceMode(to)
}

func (s *Supervisor) applyActuate(ctx context.Context, cmd *core.Command) {
	mode := s.Mode()
	if !mode.CanActuate() {
		s.reject(cmd, core.ReasonInvalidModeForCommand, "actuation not permitted in "+string(mode))
		return
	}

	wctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	if err := s.devices.Write(wctx, cmd.Target, cmd.Values); err != nil {
		metrics.DeviceWriteFailures.WithLabelValues(string(cmd.Target)).Inc()
		s.logger.Error(err, "Device write failed", "subsystem", cmd.Target, "command", cmd.ID)
		s.emit(core.EventDeviceWriteFailed, map[string]any{
			"subsystem": string(cmd.Target),
			"id":        cmd.ID,
			"error":     err.Error(),
		})
		return
	}
	metrics.Commands.WithLabelValues(string(cmd.Source), metrics.DispositionAccepted).Inc()
}

func (s *Supervisor) reject(cmd *core.Command, reason core.Reason, detail string) {
	metrics.Commands.WithLabelValues(string(cmd.Source), metrics.DispositionRejected).Inc()
	s.logger.Warn("Rejected command",
		"id", cmd.ID, "kind", string(cmd.Kind), "reason", string(reason), "detail", detail)
	s.emit(core.EventCommandRejected, map[string]any{
		"id":     cmd.ID,
		"source": string(cmd.Source),
		"kind":   string(cmd.Kind),
		"reason": string(reason),
		"detail": detail,
	})
}

func (s *Supervisor) transitioned(from, to core.Mode, cause string) {
	metrics.SetMode(to)
	metrics.ModeTransitions.WithLabelValues(string(from), string(to)).Inc()
	s.emit(core.EventModeChanged, map[string]any{
		"from":  string(from),
		"to":    string(to),
		"cause": cause,
	})
}

func (s *Supervisor) announceMode(to core.Mode) {
	switch to {
	case core.ModeTeleop:
		s.say("Teleop mode")
	case core.ModeAutonomous:
		s.say("Autonomous mode")
	case core.ModeIdle:
		s.say("Robot idle")
	}
}

func (s *Supervisor) emit(kind core.EventKind, fields map[string]any) {
	s.sink.Emit(core.TelemetryEvent{
		Kind:   kind,
		Time:   time.Now(),
		Mode:   s.Mode(),
		Fields: fields,
	})
}

func (s *Supervisor) say(text string) {
	if s.speaker != nil {
		s.speaker.SayAsync(text)
	}
}
