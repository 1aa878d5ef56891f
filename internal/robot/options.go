package robot

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kevinbot-io/kevinbot/internal/supervisor"
	"github.com/kevinbot-io/kevinbot/internal/supervisor/bus"
	"github.com/kevinbot-io/kevinbot/internal/supervisor/interlock"
	"github.com/kevinbot-io/kevinbot/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options carries the robot-specific tunables: identity, control cadence,
// safety thresholds and the speech stack.
type Options struct {
	RobotID string `json:"robot-id" mapstructure:"robot-id"`

	Tick         time.Duration `json:"tick" mapstructure:"tick"`
	WriteTimeout time.Duration `json:"write-timeout" mapstructure:"write-timeout"`
	PollInterval time.Duration `json:"poll-interval" mapstructure:"poll-interval"`

	QueueCapacity int           `json:"queue-capacity" mapstructure:"queue-capacity"`
	Staleness     time.Duration `json:"staleness" mapstructure:"staleness"`

	MaxCoreTemp       float64       `json:"max-core-temp" mapstructure:"max-core-temp"`
	MaxDriveCurrent   float64       `json:"max-drive-current" mapstructure:"max-drive-current"`
	MinBatteryVoltage float64       `json:"min-battery-voltage" mapstructure:"min-battery-voltage"`
	TeleopTimeout     time.Duration `json:"teleop-timeout" mapstructure:"teleop-timeout"`
	MismatchTolerance float64       `json:"mismatch-tolerance" mapstructure:"mismatch-tolerance"`

	SpeechEnabled bool   `json:"speech-enabled" mapstructure:"speech-enabled"`
	Voice         string `json:"voice" mapstructure:"voice"`
	PiperPath     string `json:"piper-path" mapstructure:"piper-path"`
	PlayerPath    string `json:"player-path" mapstructure:"player-path"`
	ModelDir      string `json:"model-dir" mapstructure:"model-dir"`
	FetchModels   bool   `json:"fetch-models" mapstructure:"fetch-models"`

	AutonomousPeriod time.Duration `json:"autonomous-period" mapstructure:"autonomous-period"`
}

// NewOptions returns the stock chassis defaults.
func NewOptions() *Options {
	safety := interlock.DefaultConfig()
	return &Options{
		RobotID:           "kbot-01",
		Tick:              supervisor.DefaultTick,
		WriteTimeout:      supervisor.DefaultWriteTimeout,
		PollInterval:      interlock.DefaultPollInterval,
		QueueCapacity:     bus.DefaultCapacity,
		Staleness:         bus.DefaultStaleness,
		MaxCoreTemp:       safety.MaxCoreTemp,
		MaxDriveCurrent:   safety.MaxDriveCurrent,
		MinBatteryVoltage: safety.MinBatteryVoltage,
		TeleopTimeout:     safety.TeleopTimeout,
		MismatchTolerance: safety.MismatchTolerance,
		SpeechEnabled:     true,
		Voice:             "en_US-lessac-medium",
		ModelDir:          "/var/lib/kevinbot/voices",
		FetchModels:       false,
		AutonomousPeriod:  100 * time.Millisecond,
	}
}

// Validate checks the tunables against their operating ranges.
func (o *Options) Validate() []error {
	var errs []error

	if o.RobotID == "" {
		errs = append(errs, fmt.Errorf("robot.robot-id must not be empty"))
	}
	// 10ms to 100ms keeps the control rate between 10Hz and 100Hz.
	if o.Tick < 10*time.Millisecond || o.Tick > 100*time.Millisecond {
		errs = append(errs, fmt.Errorf("robot.tick %s outside 10ms..100ms", o.Tick))
	}
	if o.WriteTimeout <= 0 || o.WriteTimeout >= o.Tick {
		errs = append(errs, fmt.Errorf("robot.write-timeout %s must be positive and below the tick", o.WriteTimeout))
	}
	if o.QueueCapacity <= 0 {
		errs = append(errs, fmt.Errorf("robot.queue-capacity must be positive"))
	}
	if o.Staleness <= 0 {
		errs = append(errs, fmt.Errorf("robot.staleness must be positive"))
	}
	if o.MismatchTolerance <= 0 {
		errs = append(errs, fmt.Errorf("robot.mismatch-tolerance must be positive"))
	}
	if o.SpeechEnabled && o.Voice == "" {
		errs = append(errs, fmt.Errorf("robot.voice must be set when speech is enabled"))
	}

	return errs
}

// AddFlags adds robot tunables to the given flag set.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.RobotID, "robot.robot-id", o.RobotID, "Robot identity used in MQTT topics and the status API.")
	fs.DurationVar(&o.Tick, "robot.tick", o.Tick, "Supervisor control tick period.")
	fs.DurationVar(&o.WriteTimeout, "robot.write-timeout", o.WriteTimeout, "Per-write device deadline.")
	fs.DurationVar(&o.PollInterval, "robot.poll-interval", o.PollInterval, "Sensor poll period.")
	fs.IntVar(&o.QueueCapacity, "robot.queue-capacity", o.QueueCapacity, "Command bus capacity per priority tier.")
	fs.DurationVar(&o.Staleness, "robot.staleness", o.Staleness, "Maximum command age accepted at bus receipt.")
	fs.Float64Var(&o.MaxCoreTemp, "robot.max-core-temp", o.MaxCoreTemp, "Core temperature fault threshold in Celsius.")
	fs.Float64Var(&o.MaxDriveCurrent, "robot.max-drive-current", o.MaxDriveCurrent, "Drive over-current fault threshold in amps.")
	fs.Float64Var(&o.MinBatteryVoltage, "robot.min-battery-voltage", o.MinBatteryVoltage, "Battery brown-out fault threshold in volts.")
	fs.DurationVar(&o.TeleopTimeout, "robot.teleop-timeout", o.TeleopTimeout, "Maximum teleop link silence before faulting in Teleop.")
	fs.Float64Var(&o.MismatchTolerance, "robot.mismatch-tolerance", o.MismatchTolerance, "Commanded versus observed actuator tolerance.")
	fs.BoolVar(&o.SpeechEnabled, "robot.speech-enabled", o.SpeechEnabled, "Voice announcements through the onboard speaker.")
	fs.StringVar(&o.Voice, "robot.voice", o.Voice, "Piper voice model name.")
	fs.StringVar(&o.PiperPath, "robot.piper-path", o.PiperPath, "Path to the piper binary, defaults to PATH lookup.")
	fs.StringVar(&o.PlayerPath, "robot.player-path", o.PlayerPath, "Path to the audio player binary, defaults to aplay.")
	fs.StringVar(&o.ModelDir, "robot.model-dir", o.ModelDir, "Local voice model cache directory.")
	fs.BoolVar(&o.FetchModels, "robot.fetch-models", o.FetchModels, "Fetch missing voice models from the S3 model bucket on startup.")
	fs.DurationVar(&o.AutonomousPeriod, "robot.autonomous-period", o.AutonomousPeriod, "Autonomous sequencer evaluation period.")
}

// SafetyConfig converts the threshold options to the interlock config.
func (o *Options) SafetyConfig() interlock.Config {
	return interlock.Config{
		MaxCoreTemp:       o.MaxCoreTemp,
		MaxDriveCurrent:   o.MaxDriveCurrent,
		MinBatteryVoltage: o.MinBatteryVoltage,
		TeleopTimeout:     o.TeleopTimeout,
		MismatchTolerance: o.MismatchTolerance,
	}
}
