package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kevinbot-io/kevinbot/pkg/log"
)

// RunFunc defines the application's startup callback function.
type RunFunc func() error

// Options is implemented by the option struct of each command.
type Options interface {
	// Flags returns the flags of the application grouped into named sets.
	Flags() NamedFlagSets

	// Complete fills in any fields not set that are required to have valid data.
	Complete() error

	// Validate checks all the collected options.
	Validate() error
}

// App is the main structure of a cli application.
type App struct {
	name        string
	shortDesc   string
	description string

	options Options
	run     RunFunc

	noConfig bool
	cmdArgs  cobra.PositionalArgs

	cmd *cobra.Command
}

// Option defines optional parameters for initializing the application structure.
type Option func(*App)

// WithDescription is used to set the description of the application.
func WithDescription(desc string) Option {
	return func(a *App) {
		a.description = desc
	}
}

// WithOptions opens the application's function to read from the command line
// or read parameters from a configuration file.
func WithOptions(opts Options) Option {
	return func(a *App) {
		a.options = opts
	}
}

// WithRunFunc is used to set the application startup callback function.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) {
		a.run = run
	}
}

// WithNoConfig disables the --config flag for commands that take no file.
func WithNoConfig() Option {
	return func(a *App) {
		a.noConfig = true
	}
}

// WithDefaultValidArgs rejects any positional arguments.
func WithDefaultValidArgs() Option {
	return func(a *App) {
		a.cmdArgs = cobra.NoArgs
	}
}

// NewApp creates a new application instance.
func NewApp(name string, shortDesc string, opts ...Option) *App {
	a := &App{
		name:      name,
		shortDesc: shortDesc,
	}

	for _, o := range opts {
		o(a)
	}

	a.buildCommand()

	return a
}

// Run launches the application.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Command returns the underlying cobra command, mainly for tests.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:           a.name,
		Short:         a.shortDesc,
		Long:          a.description,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          a.cmdArgs,
		RunE:          a.runCommand,
	}

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	if a.options != nil {
		nfs := a.options.Flags()
		for _, fs := range nfs.FlagSets() {
			cmd.Flags().AddFlagSet(fs)
		}
	}

	if !a.noConfig {
		addConfigFlag(a.name, cmd)
	}

	a.cmd = cmd
}

func (a *App) runCommand(cmd *cobra.Command, args []string) error {
	if !a.noConfig {
		if err := readConfig(cmd, a.options); err != nil {
			return err
		}
	}

	if a.options != nil {
		if err := a.options.Complete(); err != nil {
			return err
		}

		if err := a.options.Validate(); err != nil {
			return err
		}
	}

	log.Info("Starting application", "name", a.name)

	if a.run != nil {
		return a.run()
	}

	return nil
}
