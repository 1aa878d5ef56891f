package ingress

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kevinbot-io/kevinbot/internal/supervisor/core"
	"github.com/kevinbot-io/kevinbot/pkg/log"
)

// Step is one action of an autonomous routine. Dwell is how long the
// sequencer holds on this step before advancing.
type Step struct {
	Name   string
	Dwell  time.Duration
	Kind   core.Kind
	Target core.Subsystem
	Values map[string]float64
	Text   string
}

// ModeSource reports the current robot mode.
type ModeSource interface {
	Mode() core.Mode
}

// Sequencer feeds a looping scripted routine onto the bus while the robot
// is in Autonomous. Outside Autonomous it idles and rewinds, so every
// autonomous session starts from step zero.
type Sequencer struct {
	routine []Step
	modes   ModeSource
	bus     Acceptor
	period  time.Duration
	logger  log.Logger

	index int
	dwell time.Duration
}

// NewSequencer returns a sequencer evaluating the routine every period.
func NewSequencer(routine []Step, modes ModeSource, bus Acceptor, period time.Duration) *Sequencer {
	if period <= 0 {
		period = 100 * time.Millisecond
	}
	return &Sequencer{
		routine: routine,
		modes:   modes,
		bus:     bus,
		period:  period,
		logger:  log.WithName("ingress.sequencer"),
	}
}

// Start runs the routine until ctx is cancelled.
func (s *Sequencer) Start(ctx context.Context) error {
	if len(s.routine) == 0 {
		s.logger.Info("No autonomous routine configured")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.advance()
		}
	}
}

func (s *Sequencer) advance() {
	if s.modes.Mode() != core.ModeAutonomous {
		s.index = 0
		s.dwell = 0
		return
	}

	step := s.routine[s.index]
	if s.dwell == 0 {
		s.emit(step)
	}

	s.dwell += s.period
	if s.dwell >= step.Dwell {
		s.index = (s.index + 1) % len(s.routine)
		s.dwell = 0
	}
}

func (s *Sequencer) emit(step Step) {
	cmd := core.Command{
		ID:       uuid.NewString(),
		Source:   core.SourceAutonomous,
		Kind:     step.Kind,
		Target:   step.Target,
		Values:   step.Values,
		Text:     step.Text,
		IssuedAt: time.Now(),
	}
	if err := s.bus.Submit(cmd); err != nil {
		s.logger.Warn("Routine step not accepted", "step", step.Name, "err", err.Error())
	}
}

// DefaultRoutine is the demo patrol shipped with the robot: announce,
// light up, creep forward, stop, spin, stop, go dark, repeat.
func DefaultRoutine() []Step {
	return []Step{
		{Name: "announce", Dwell: 2 * time.Second, Kind: core.KindSay, Text: "Starting patrol"},
		{Name: "lights-on", Dwell: time.Second, Kind: core.KindActuate, Target: core.SubsystemLighting,
			Values: map[string]float64{"effect": 3, "brightness": 0.6}},
		{Name: "creep", Dwell: 3 * time.Second, Kind: core.KindActuate, Target: core.SubsystemDrivebase,
			Values: map[string]float64{"left": 0.25, "right": 0.25}},
		{Name: "halt", Dwell: time.Second, Kind: core.KindActuate, Target: core.SubsystemDrivebase,
			Values: map[string]float64{"left": 0, "right": 0}},
		{Name: "spin", Dwell: 2 * time.Second, Kind: core.KindActuate, Target: core.SubsystemDrivebase,
			Values: map[string]float64{"left": 0.3, "right": -0.3}},
		{Name: "halt-2", Dwell: time.Second, Kind: core.KindActuate, Target: core.SubsystemDrivebase,
			Values: map[string]float64{"left": 0, "right": 0}},
		{Name: "lights-off", Dwell: time.Second, Kind: core.KindActuate, Target: core.SubsystemLighting,
			Values: map[string]float64{"effect": 0, "brightness": 0}},
	}
}
