package app

import (
	"fmt"

	"github.com/kevinbot-io/kevinbot/cmd/kevinbot-supervisor/app/options"
	"github.com/kevinbot-io/kevinbot/pkg/app"
)

const (
	commandName = "kevinbot-supervisor"
	commandDesc = `The Kevinbot supervisor is the robot's control authority. It owns the
operating mode, consumes commands from the teleoperation link, the
operator console and the onboard sequencer, and gates every actuator
write behind the safety interlock.`
)

// NewApp builds the supervisor command.
func NewApp() *app.App {
	opts := options.NewSupervisorOptions()
	return app.NewApp(
		commandName,
		"Launch the Kevinbot robot supervisor",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithRunFunc(run(opts)),
	)
}

func run(opts *options.SupervisorOptions) app.RunFunc {
	return func() error {
		ctx := app.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		runtime, err := cfg.NewRuntime()
		if err != nil {
			return fmt.Errorf("failed to assemble supervisor: %w", err)
		}

		return runtime.Start(ctx)
	}
}
