package telemetry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kevinbot-io/kevinbot/internal/pkg/metrics"
	"github.com/kevinbot-io/kevinbot/internal/supervisor/core"
	"github.com/kevinbot-io/kevinbot/pkg/log"
	"github.com/kevinbot-io/kevinbot/pkg/mqtt"
)

const (
	mqttSinkBuffer  = 256
	mqttPublishWait = 5 * time.Second
)

// MQTTSink uplinks events as JSON to the robot's telemetry topic. A bounded
// buffer decouples the tick loop from broker latency; when the buffer is
// full the newest event is dropped and counted, because on a robot the
// freshest events are in the log anyway and a stalled uplink must never
// stall control.
type MQTTSink struct {
	client mqtt.Client
	topic  string
	buf    chan core.TelemetryEvent
	logger log.Logger
}

// NewMQTTSink returns a sink publishing to topic. Start must be running
// for events to drain.
func NewMQTTSink(client mqtt.Client, topic string) *MQTTSink {
	return &MQTTSink{
		client: client,
		topic:  topic,
		buf:    make(chan core.TelemetryEvent, mqttSinkBuffer),
		logger: log.WithName("telemetry.mqtt"),
	}
}

// Emit queues ev for publication without blocking.
func (s *MQTTSink) Emit(ev core.TelemetryEvent) {
	select {
	case s.buf <- ev:
	default:
		metrics.TelemetryDropped.WithLabelValues("mqtt").Inc()
	}
}

// Start drains the buffer until ctx is cancelled.
func (s *MQTTSink) Start(ctx context.Context) error {
	s.logger.Info("Telemetry uplink starting", "topic", s.topic)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Telemetry uplink stopping")
			return nil
		case ev := <-s.buf:
			s.publish(ctx, ev)
		}
	}
}

func (s *MQTTSink) publish(ctx context.Context, ev core.TelemetryEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error(err, "Failed to encode telemetry event", "kind", string(ev.Kind))
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, mqttPublishWait)
	defer cancel()

	if err := s.client.Publish(pubCtx, s.topic, 1, false, payload); err != nil {
		metrics.TelemetryDropped.WithLabelValues("mqtt").Inc()
		s.logger.Warn("Failed to publish telemetry event", "kind", string(ev.Kind), "err", err.Error())
	}
}
