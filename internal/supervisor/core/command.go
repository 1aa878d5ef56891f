package core

import (
	"fmt"
	"time"
)

// Source identifies where a command originated.
type Source string

const (
	// SourceOperator is the driver-station operator. Reserved highest tier.
	SourceOperator Source = "operator"

	// SourceTeleop is the teleoperation link.
	SourceTeleop Source = "teleop"

	// SourceAutonomous is the onboard autonomous sequencer.
	SourceAutonomous Source = "autonomous"
)

// Priority is the bus queue tier of a command. Lower value drains first.
type Priority int

const (
	PriorityOperator Priority = iota
	PriorityTeleop
	PriorityAutonomous

	// NumPriorities is the number of queue tiers.
	NumPriorities
)

// PriorityFor maps a command source to its reserved queue tier.
func PriorityFor(src Source) Priority {
	switch src {
	case SourceOperator:
		return PriorityOperator
	case SourceAutonomous:
		return PriorityAutonomous
	default:
		return PriorityTeleop
	}
}

// Kind discriminates the intent carried by a command.
type Kind string

const (
	// KindEnable requests Disabled -> Idle.
	KindEnable Kind = "enable"

	// KindClear acknowledges and clears an EStopped or Fault state.
	KindClear Kind = "clear"

	// KindSelectMode requests a transition to Command.Mode.
	KindSelectMode Kind = "select-mode"

	// KindActuate requests a device write to Command.Target.
	KindActuate Kind = "actuate"

	// KindSay requests spoken feedback of Command.Text.
	KindSay Kind = "say"
)

// Command is the normalized control request flowing through the bus.
// Heterogeneous sources are unified by the Source discriminant rather than
// one type per source, keeping the tick path free of dynamic dispatch.
// A Command is immutable once enqueued and consumed exactly once.
type Command struct {
	// ID is a unique trace ID, usually a UUID minted by the ingress adapter.
	ID string `json:"id"`

	// Source identifies the producer and fixes the priority tier.
	Source Source `json:"source"`

	// Kind is the intent discriminant.
	Kind Kind `json:"kind"`

	// Target is the subsystem for actuate commands.
	Target Subsystem `json:"target,omitempty"`

	// Values carries the channel values for actuate commands.
	Values map[string]float64 `json:"values,omitempty"`

	// Mode is the requested mode for select-mode commands.
	Mode Mode `json:"mode,omitempty"`

	// Text is the utterance for say commands.
	Text string `json:"text,omitempty"`

	// IssuedAt is when the producer created the command.
	IssuedAt time.Time `json:"issuedAt"`

	// ReceivedAt is the bus-receipt timestamp, stamped on accept for audit.
	ReceivedAt time.Time `json:"receivedAt,omitempty"`
}

// Priority returns the queue tier reserved for the command's source.
func (c *Command) Priority() Priority {
	return PriorityFor(c.Source)
}

// Validate reports whether the command is well formed.
// The bus rejects malformed commands before they reach the supervisor.
func (c *Command) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("command has no id")
	}

	switch c.Source {
	case SourceOperator, SourceTeleop, SourceAutonomous:
	default:
		return fmt.Errorf("unknown command source %q", c.Source)
	}

	if c.IssuedAt.IsZero() {
		return fmt.Errorf("command %s has no issue timestamp", c.ID)
	}

	switch c.Kind {
	case KindEnable:
	case KindClear:
		// Clears are operator-acknowledged by definition.
		if c.Source != SourceOperator {
			return fmt.Errorf("clear command %s from non-operator source %q", c.ID, c.Source)
		}
	case KindSelectMode:
		if !c.Mode.Selectable() {
			return fmt.Errorf("command %s selects invalid mode %q", c.ID, c.Mode)
		}
	case KindActuate:
		if !KnownSubsystem(c.Target) {
			return fmt.Errorf("command %s targets unknown subsystem %q", c.ID, c.Target)
		}
		if len(c.Values) == 0 {
			return fmt.Errorf("actuate command %s carries no values", c.ID)
		}
	case KindSay:
		if c.Text == "" {
			return fmt.Errorf("say command %s carries no text", c.ID)
		}
	default:
		return fmt.Errorf("unknown command kind %q", c.Kind)
	}

	return nil
}
