package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clippo/internal/logging"
)

// bindViper wires a command's flags into a viper instance with the standard
// config file search order and CLIPPO_* env var prefix.
//
// Precedence (lowest → highest): defaults → config file → CLIPPO_* env vars → flags
func bindViper(cmd *cobra.Command, v *viper.Viper) error {
	configFlag, _ := cmd.Flags().GetString("config")
	if configFlag != "" {
		v.SetConfigFile(configFlag)
	} else {
		v.SetConfigName("clippo")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/clippo/")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "clippo"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("config: %w", err)
		}
	}

	// CLIPPO_PUSH_ADDR → push-addr
	v.SetEnvPrefix("CLIPPO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// checkDaemonConfig rejects settings the daemon would otherwise silently
// replace with defaults.
func checkDaemonConfig(v *viper.Viper) error {
	if n := v.GetInt("max-history"); n < 1 {
		return fmt.Errorf("max-history must be at least 1, got %d", n)
	}
	if d := v.GetDuration("poll-interval"); d <= 0 {
		return fmt.Errorf("poll-interval must be positive, got %s", d)
	}
	if push, ctl := v.GetString("push-addr"), v.GetString("control-addr"); push == ctl {
		return fmt.Errorf("push-addr and control-addr are both %s", push)
	}
	return nil
}

// addLoggingFlags adds the daemon's logging flags.
func addLoggingFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-background", false, "daemon runs in the foreground: text logs at debug level")
	cmd.Flags().String("log-format", "auto", "log format: auto|text|json (auto: json unless stderr is a terminal)")
	cmd.Flags().String("log-level", "", "log level: debug|info|warn|error (default: info, debug in the foreground)")
}

// addConfigFlag adds the --config flag to a command.
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "path to config file (overrides auto-discovery)")
}

// setupLogging points the default slog logger at stderr per the logging flags.
func setupLogging(v *viper.Viper) error {
	return logging.Setup(os.Stderr, logging.Options{
		Format:     v.GetString("log-format"),
		Level:      v.GetString("log-level"),
		Foreground: v.GetBool("no-background"),
	})
}
