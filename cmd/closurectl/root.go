package main

import (
	"github.com/danmuck/closurectl/internal/config"
	"github.com/danmuck/closurectl/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "closurectl",
		Short:         "Run scripts through the Closure Compiler",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			logging.ConfigureRuntime()
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "config file (defaults apply when absent)")

	cmd.AddCommand(
		newOptimizeCmd(opts),
		newServeCmd(opts),
		newConfigCmd(),
	)
	return cmd
}

func (o *rootOptions) load() (config.Config, error) {
	cfg, found, err := config.LoadOptional(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if found {
		log.Debug().Str("path", o.configPath).Msg("loaded config")
	} else {
		log.Debug().Str("path", o.configPath).Msg("config not found, using defaults")
	}
	return cfg, nil
}
