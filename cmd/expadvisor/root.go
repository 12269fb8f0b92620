package main

import (
	"github.com/spf13/cobra"

	"github.com/perotf-lab/expadvisor/pkg/config"
	"github.com/perotf-lab/expadvisor/pkg/logger"
)

type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	envFiles   []string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "expadvisor",
		Short: "Suggest the next batch of experiments from past results",
		Long: `expadvisor fits Gaussian-process surrogates to past experiments and proposes
a batch of new parameter settings: half exploiting the best known region,
half exploring uncertain regions, all inside the configured constraints.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.SetDefault(logger.NewWithFormat(opts.logFormat, opts.logLevel, cmd.ErrOrStderr()))
			return config.LoadEnv(opts.envFiles...)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "advisor configuration file (built-in defaults when empty)")
	pf.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&opts.logFormat, "log-format", "text", "log format (text, json)")
	pf.StringSliceVar(&opts.envFiles, "env", []string{".env"}, "dotenv files with credentials")

	root.AddCommand(
		newSuggestCmd(opts),
		newFetchCmd(opts),
		newLHSCmd(opts),
		newServeCmd(opts),
	)
	return root
}

func (o *globalOptions) loadConfig() (*config.Config, error) {
	if o.configPath == "" {
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(o.configPath)
}
