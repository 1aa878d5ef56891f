package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kevinbot-io/kevinbot/pkg/log"
)

const configFlagName = "config"

// addConfigFlag registers the --config flag on the command.
func addConfigFlag(basename string, cmd *cobra.Command) {
	cmd.PersistentFlags().StringP(configFlagName, "c", "",
		fmt.Sprintf("Read configuration from the specified FILE "+
			"(default search: ./%[1]s.yaml, $HOME/.%[1]s/%[1]s.yaml, /etc/%[1]s/%[1]s.yaml).", basename))
}

// readConfig loads the optional configuration file, overlays it under the
// command-line flags and installs a hot-reload watch.
//
// Precedence (high to low): explicit flags, environment, config file, defaults.
func readConfig(cmd *cobra.Command, opts Options) error {
	v := viper.New()

	cfgFile, _ := cmd.Flags().GetString(configFlagName)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(cmd.Name())
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join("$HOME", "."+cmd.Name()))
		v.AddConfigPath(filepath.Join("/etc", cmd.Name()))
	}

	v.SetEnvPrefix("KEVINBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read configuration: %w", err)
		}
		// No config file anywhere in the search path: flags and env only.
		return unmarshalOptions(v, opts)
	}

	log.Info("Loaded configuration file", "file", v.ConfigFileUsed())

	// Hot reload: safety tolerances and log levels may be tuned on a live
	// robot. Modules re-read their config snapshot on the next tick, so a
	// re-unmarshal here is enough.
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info("Configuration file changed, reloading", "file", e.Name, "op", e.Op.String())
		if err := unmarshalOptions(v, opts); err != nil {
			log.Error(err, "Failed to apply changed configuration, keeping previous values")
			return
		}
		if err := opts.Validate(); err != nil {
			log.Error(err, "Changed configuration is invalid, keeping previous values")
		}
	})
	v.WatchConfig()

	return unmarshalOptions(v, opts)
}

func unmarshalOptions(v *viper.Viper, opts Options) error {
	if opts == nil {
		return nil
	}
	if err := v.Unmarshal(opts); err != nil {
		return fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return nil
}
