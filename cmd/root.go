package main

import (
	"github.com/spf13/cobra"

	"github.com/MimeLyc/quote-translator/internal/config"
	"github.com/MimeLyc/quote-translator/internal/service"
	"github.com/MimeLyc/quote-translator/pkg/log"
)

type rootOptions struct {
	envFiles []string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "quotes",
		Short: "Translate the quote collection and monitor the run",
		Long: `quotes translates every quote of the collection into every target
language with an OpenAI compatible chat completions API.

Commands:
  translate   Run the batch translation
  cost        Estimate the API cost of a run
  progress    Show progress and ETA of a running translation
  speed       Sample the translation speed
  icon        Check the app icon for transparent pixels
  journal     Inspect recorded runs`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
	}

	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "KEY=VALUE files loaded into the environment")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (default LOG_LEVEL or info)")

	root.AddCommand(
		newTranslateCmd(),
		newCostCmd(),
		newProgressCmd(),
		newSpeedCmd(),
		newIconCmd(),
		newJournalCmd(),
	)
	return root
}

func (o *rootOptions) setup() error {
	if err := config.LoadDotEnv(o.envFiles...); err != nil {
		return service.WrapError(err, service.ErrConfig, "load env file")
	}
	level := o.logLevel
	if level == "" {
		level = config.LogLevelFromEnv()
	}
	log.InitLogger(log.ParseLevel(level))
	return nil
}

func loadConfig(opts ...config.Option) (*config.Config, error) {
	cfg, err := config.NewFromEnv(opts...)
	if err != nil {
		return nil, service.WrapError(err, service.ErrConfig, "load configuration")
	}
	return cfg, nil
}
