package main

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/rxbind/internal/config"
	"github.com/vango-dev/rxbind/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configDir string
	logLevel  string
	logFormat string
	noColor   bool
}

func main() {
	var flags globalFlags

	rootCmd := &cobra.Command{
		Use:   "rxbind",
		Short: "Reactive data binding with throttled rendering",
		Long: `rxbind drives a view-model of generated numbers and renders it through
a throttled binding.

  • demo   renders to the terminal and reports render latency
  • serve  serves one view-model per browser over WebSocket
  • bench  loads an in-process live server with WebSocket clients`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.noColor {
				errors.DisableColors()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configDir, "config", "c", ".", "Directory containing rxbind.json or rxbind.yaml")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from config)")
	rootCmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "Log format: text or json (default from config)")
	rootCmd.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "Disable colored error output")

	rootCmd.AddCommand(
		serveCmd(&flags),
		demoCmd(&flags),
		benchCmd(&flags),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		errors.Fprint(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies the global overrides.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configDir)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Log.Format = flags.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// liveMaxWait converts the configured burst bound to live.Config, where
// zero means the default and a negative value disables the bound.
func liveMaxWait(cfg *config.Config) time.Duration {
	if d := cfg.MaxWait(); d > 0 {
		return d
	}
	return -1
}

// newLogger builds the process logger and installs it as the default.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
