package ingress

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kevinbot-io/kevinbot/internal/pkg/metrics"
	"github.com/kevinbot-io/kevinbot/internal/supervisor/core"
	"github.com/kevinbot-io/kevinbot/pkg/log"
	"github.com/kevinbot-io/kevinbot/pkg/mqtt"
	"github.com/kevinbot-io/kevinbot/pkg/mqtt/topic"
)

const ackPublishWait = 2 * time.Second

// TeleopAdapter bridges the robot's MQTT command topic onto the bus. Every
// received command gets a disposition ack on the ack topic so the driver
// station can surface rejections immediately.
//
// Operator-console traffic arrives on the same topic tagged with the
// operator source; the broker ACLs decide who may publish there, the
// adapter only routes.
type TeleopAdapter struct {
	client  mqtt.Client
	topics  *topic.Builder
	robotID string
	bus     Acceptor
	logger  log.Logger
}

func NewTeleopAdapter(client mqtt.Client, topics *topic.Builder, robotID string, bus Acceptor) *TeleopAdapter {
	return &TeleopAdapter{
		client:  client,
		topics:  topics,
		robotID: robotID,
		bus:     bus,
		logger:  log.WithName("ingress.teleop"),
	}
}

// Start subscribes and serves until ctx is cancelled.
func (a *TeleopAdapter) Start(ctx context.Context) error {
	if err := a.client.AwaitConnection(ctx); err != nil {
		return err
	}

	commandTopic := a.topics.Command(a.robotID)
	if err := a.client.Subscribe(ctx, commandTopic, 1, a.handle); err != nil {
		return err
	}
	a.logger.Info("Command ingress subscribed", "topic", commandTopic)

	<-ctx.Done()
	return nil
}

func (a *TeleopAdapter) handle(ctx context.Context, _ string, payload []byte) {
	var wire WireCommand
	if err := json.Unmarshal(payload, &wire); err != nil {
		a.logger.Warn("Dropping undecodable command payload", "err", err.Error())
		metrics.Commands.WithLabelValues(string(core.SourceTeleop), metrics.DispositionRejected).Inc()
		a.ack(ctx, Ack{Accepted: false, Reason: string(core.ReasonMalformedCommand), Time: time.Now()})
		return
	}

	cmd := wire.ToCommand(core.SourceTeleop)
	if err := a.bus.Submit(cmd); err != nil {
		metrics.Commands.WithLabelValues(string(cmd.Source), metrics.DispositionRejected).Inc()
		a.ack(ctx, Ack{ID: cmd.ID, Accepted: false, Reason: string(core.ReasonForSubmitError(err)), Time: time.Now()})
		return
	}
	a.ack(ctx, Ack{ID: cmd.ID, Accepted: true, Time: time.Now()})
}

func (a *TeleopAdapter) ack(ctx context.Context, ack Ack) {
	payload, err := json.Marshal(ack)
	if err != nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, ackPublishWait)
	defer cancel()

	if err := a.client.Publish(pubCtx, a.topics.CommandAck(a.robotID), 0, false, payload); err != nil {
		a.logger.Warn("Failed to publish command ack", "id", ack.ID, "err", err.Error())
	}
}
