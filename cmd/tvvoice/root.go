package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tvvoice/internal/config"
	"tvvoice/internal/logging"
)

type globalOptions struct {
	configPath  string
	logLevel    string
	metricsAddr string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "tvvoice",
		Short: "Voice-controlled TV listings",
		Long: `tvvoice browses TV listings by voice. Say a wake phrase such as "hey tv",
then commands like "show me NBC" or "read prime time".

Configuration is read from --config or $HOME/.config/tvvoice/config.yaml.
Every key can be overridden with TVVOICE_<SECTION>_<KEY>, and DEEPGRAM_API_KEY
is honoured for the recognizer.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default is $HOME/.config/tvvoice/config.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newInterpretCmd(opts))
	root.AddCommand(newDatesCmd(opts))
	return root
}

// load applies flag overrides on top of the resolved configuration.
func (o *globalOptions) load() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, zerolog.Nop(), fmt.Errorf("failed to load configuration: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.metricsAddr != "" {
		cfg.Metrics.Addr = o.metricsAddr
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	return cfg, logger, nil
}
