package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configpkg "github.com/drblury/sqsreporter/internal/runtime/config"
	loggingpkg "github.com/drblury/sqsreporter/internal/runtime/logging"
)

// pluginKey is where the engine script keeps the reporter's settings.
const pluginKey = "config.plugins.sqs-reporter"

var (
	scriptFile string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sqs-reporter",
	Short: "Relay load-test engine events to an SQS FIFO queue",
	Long: `sqs-reporter turns the lifecycle and metrics events of a load-test run
into SQS FIFO messages tagged with the run's correlation attributes.

Queue, region and tags are read from SQS_* environment variables first and
from the script's config.plugins.sqs-reporter section second.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&scriptFile, "script", "", "engine test script (YAML or JSON) holding config.plugins.sqs-reporter")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

// loadPluginConfig reads the reporter section of an engine script. A missing
// script or section yields an empty PluginConfig so the environment alone
// can configure the reporter.
func loadPluginConfig(path string) (configpkg.PluginConfig, error) {
	var plugin configpkg.PluginConfig
	if path == "" {
		return plugin, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return plugin, fmt.Errorf("read script %s: %w", path, err)
	}

	section := v.Sub(pluginKey)
	if section == nil {
		return plugin, nil
	}
	if err := section.Unmarshal(&plugin); err != nil {
		return plugin, fmt.Errorf("decode %s: %w", pluginKey, err)
	}
	return plugin, nil
}

func newLogger(w io.Writer, level string) (loggingpkg.ServiceLogger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	return loggingpkg.NewSlogServiceLogger(slog.New(handler)), nil
}
