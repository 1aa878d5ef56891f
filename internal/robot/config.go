// Package robot assembles the supervisor process: hardware, safety, bus,
// ingress, telemetry and the operator surfaces.
package robot

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/kevinbot-io/kevinbot/internal/ingress"
	"github.com/kevinbot-io/kevinbot/internal/server"
	"github.com/kevinbot-io/kevinbot/internal/speech"
	"github.com/kevinbot-io/kevinbot/internal/supervisor"
	"github.com/kevinbot-io/kevinbot/internal/supervisor/bus"
	"github.com/kevinbot-io/kevinbot/internal/supervisor/devices"
	"github.com/kevinbot-io/kevinbot/internal/supervisor/devices/hal"
	"github.com/kevinbot-io/kevinbot/internal/supervisor/interlock"
	"github.com/kevinbot-io/kevinbot/internal/telemetry"
	"github.com/kevinbot-io/kevinbot/pkg/mqtt"
	"github.com/kevinbot-io/kevinbot/pkg/mqtt/topic"
	"github.com/kevinbot-io/kevinbot/pkg/options"
)

// Config aggregates every option group of the supervisor process.
type Config struct {
	Robot *Options             `json:"robot" mapstructure:"robot"`
	Mqtt  *options.MqttOptions `json:"mqtt" mapstructure:"mqtt"`
	Http  *options.HttpOptions `json:"http" mapstructure:"http"`
	S3    *options.S3Options   `json:"s3" mapstructure:"s3"`
}

// presence is the retained online payload and the broker will message.
type presence struct {
	RobotID string `json:"robotId"`
	Online  bool   `json:"online"`
	Reason  string `json:"reason,omitempty"`
}

// NewRuntime wires the full process from configuration. Nothing starts
// here; Runtime.Start owns all goroutines.
func (cfg *Config) NewRuntime() (*Runtime, error) {
	robotID := cfg.Robot.RobotID
	topics := topic.NewBuilder(cfg.Mqtt.TopicRoot)

	client, err := cfg.newMqttClient(robotID, topics)
	if err != nil {
		return nil, fmt.Errorf("init mqtt client: %w", err)
	}

	systemHAL := hal.NewHAL()
	registry := devices.NewRegistry(systemHAL)

	commandBus := bus.New(
		bus.WithCapacity(cfg.Robot.QueueCapacity),
		bus.WithStaleness(cfg.Robot.Staleness),
	)

	safety := interlock.New(cfg.Robot.SafetyConfig(), registry)
	poller := interlock.NewPoller(registry, commandBus, cfg.Robot.PollInterval)

	speaker, modelStore, err := cfg.newSpeaker()
	if err != nil {
		return nil, err
	}

	uplink := telemetry.NewMQTTSink(client, topics.Telemetry(robotID))
	sink := telemetry.Fanout{
		telemetry.NewLogSink(),
		uplink,
		telemetry.NewAudioSink(speaker),
	}

	sup := supervisor.New(supervisor.Config{
		Bus:          commandBus,
		Interlock:    safety,
		Devices:      registry,
		Snapshots:    poller,
		Sink:         sink,
		Speaker:      speaker,
		Tick:         cfg.Robot.Tick,
		WriteTimeout: cfg.Robot.WriteTimeout,
	})

	teleop := ingress.NewTeleopAdapter(client, topics, robotID, commandBus)
	sequencer := ingress.NewSequencer(ingress.DefaultRoutine(), sup, commandBus, cfg.Robot.AutonomousPeriod)

	httpSrv := server.NewServer(server.Config{
		Options:   cfg.Http,
		RobotID:   robotID,
		Modes:     sup,
		Snapshots: poller,
		Queue:     commandBus,
		Devices:   registry,
		Bus:       commandBus,
		Ready:     client.IsConnected,
	})

	return &Runtime{
		robotID:    robotID,
		hal:        systemHAL,
		client:     client,
		topics:     topics,
		speaker:    speaker,
		modelStore: modelStore,
		voice:      cfg.Robot.Voice,
		servers:    []Server{sup, poller, teleop, sequencer, uplink, speaker, httpSrv},
	}, nil
}

func (cfg *Config) newMqttClient(robotID string, topics *topic.Builder) (mqtt.Client, error) {
	mqttConfig := cfg.Mqtt.ToClientConfig()
	if mqttConfig.ClientID == "" {
		mqttConfig.ClientID = fmt.Sprintf("kevinbot-%s", robotID)
	}

	// The broker announces an unclean death for us. No timestamp in the
	// payload: consoles use broker receipt time.
	offline, _ := json.Marshal(presence{RobotID: robotID, Online: false, Reason: "UnexpectedDisconnect"})
	mqttConfig.WillTopic = topics.Online(robotID)
	mqttConfig.WillPayload = offline
	mqttConfig.WillQoS = 1
	mqttConfig.WillRetain = true

	return mqtt.NewClient(mqttConfig)
}

func (cfg *Config) newSpeaker() (*speech.AsyncSpeaker, *speech.Store, error) {
	if !cfg.Robot.SpeechEnabled {
		return speech.NewAsyncSpeaker(speech.NullEngine{}), nil, nil
	}

	var store *speech.Store
	if cfg.Robot.FetchModels {
		var err error
		store, err = speech.NewStore(cfg.S3, cfg.Robot.ModelDir)
		if err != nil {
			return nil, nil, fmt.Errorf("init voice model store: %w", err)
		}
	}

	modelPath := filepath.Join(cfg.Robot.ModelDir, cfg.Robot.Voice+".onnx")
	engine := speech.NewPiperEngine(cfg.Robot.PiperPath, cfg.Robot.PlayerPath, modelPath)
	return speech.NewAsyncSpeaker(engine), store, nil
}
