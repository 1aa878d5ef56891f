// Package ingress adapts external command producers onto the command bus:
// the teleoperation MQTT link, the operator console and the onboard
// autonomous sequencer.
package ingress

import (
	"time"

	"github.com/google/uuid"

	"github.com/kevinbot-io/kevinbot/internal/supervisor/core"
)

// Acceptor is the bus submit side.
type Acceptor interface {
	Submit(cmd core.Command) error
}

// WireCommand is the JSON shape accepted from remote producers.
type WireCommand struct {
	ID       string             `json:"id,omitempty"`
	Source   string             `json:"source,omitempty"`
	Kind     string             `json:"kind"`
	Target   string             `json:"target,omitempty"`
	Values   map[string]float64 `json:"values,omitempty"`
	Mode     string             `json:"mode,omitempty"`
	Text     string             `json:"text,omitempty"`
	IssuedAt time.Time          `json:"issuedAt"`
}

// Ack is the JSON disposition published for each received command.
type Ack struct {
	ID       string    `json:"id"`
	Accepted bool      `json:"accepted"`
	Reason   string    `json:"reason,omitempty"`
	Time     time.Time `json:"time"`
}

// ToCommand normalizes a wire command, minting an ID when the producer
// sent none and defaulting the source.
func (w WireCommand) ToCommand(defaultSource core.Source) core.Command {
	cmd := core.Command{
		ID:       w.ID,
		Source:   core.Source(w.Source),
		Kind:     core.Kind(w.Kind),
		Target:   core.Subsystem(w.Target),
		Values:   w.Values,
		Mode:     core.Mode(w.Mode),
		Text:     w.Text,
		IssuedAt: w.IssuedAt,
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	if cmd.Source == "" {
		cmd.Source = defaultSource
	}
	return cmd
}
