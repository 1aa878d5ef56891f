package options

import (
	"errors"

	"github.com/kevinbot-io/kevinbot/internal/robot"
	"github.com/kevinbot-io/kevinbot/pkg/app"
	"github.com/kevinbot-io/kevinbot/pkg/log"
	"github.com/kevinbot-io/kevinbot/pkg/options"
)

// SupervisorOptions aggregates every option group of the supervisor.
type SupervisorOptions struct {
	RobotOptions *robot.Options       `json:"robot" mapstructure:"robot"`
	MqttOptions  *options.MqttOptions `json:"mqtt" mapstructure:"mqtt"`
	HttpOptions  *options.HttpOptions `json:"http" mapstructure:"http"`
	S3Options    *options.S3Options   `json:"s3" mapstructure:"s3"`
	Log          *log.Options         `json:"log" mapstructure:"log"`
}

var _ app.Options = (*SupervisorOptions)(nil)

// NewSupervisorOptions returns options with stock defaults.
func NewSupervisorOptions() *SupervisorOptions {
	return &SupervisorOptions{
		RobotOptions: robot.NewOptions(),
		MqttOptions:  options.NewMqttOptions(),
		HttpOptions:  options.NewHttpOptions(),
		S3Options:    options.NewS3Options(),
		Log:          log.NewOptions(),
	}
}

// Flags groups the flags for the help output.
func (o *SupervisorOptions) Flags() app.NamedFlagSets {
	fss := app.NamedFlagSets{}
	o.RobotOptions.AddFlags(fss.FlagSet("robot"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.S3Options.AddFlags(fss.FlagSet("s3"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

// Complete initializes the logging stack from the final option values.
func (o *SupervisorOptions) Complete() error {
	log.Init(o.Log)
	return nil
}

// Validate aggregates the validation of every option group.
func (o *SupervisorOptions) Validate() error {
	var errs []error
	errs = append(errs, o.RobotOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.S3Options.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return errors.Join(errs...)
}

// Config converts the options to the runtime configuration.
func (o *SupervisorOptions) Config() (*robot.Config, error) {
	return &robot.Config{
		Robot: o.RobotOptions,
		Mqtt:  o.MqttOptions,
		Http:  o.HttpOptions,
		S3:    o.S3Options,
	}, nil
}
