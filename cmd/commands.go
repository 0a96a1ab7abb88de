package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/quote-translator/internal/config"
	"github.com/MimeLyc/quote-translator/internal/cost"
	"github.com/MimeLyc/quote-translator/internal/icon"
	"github.com/MimeLyc/quote-translator/internal/persistence"
	"github.com/MimeLyc/quote-translator/internal/progress"
	"github.com/MimeLyc/quote-translator/internal/quote"
	"github.com/MimeLyc/quote-translator/internal/service"
	"github.com/MimeLyc/quote-translator/internal/translator"
	"github.com/MimeLyc/quote-translator/pkg/icron"
)

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

func newTranslateCmd() *cobra.Command {
	var (
		concurrency int
		languages   string
		journal     string
	)
	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate every quote into every target language",
		Long: `Translate the quotes file into the configured languages and write the
translations file. Progress is written to the progress file after every task
so 'progress' and 'speed' can follow the run from another terminal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []config.Option
			if cmd.Flags().Changed("concurrency") {
				opts = append(opts, func(c *config.Config) { c.Translate.Concurrency = concurrency })
			}
			if cmd.Flags().Changed("journal") {
				opts = append(opts, func(c *config.Config) { c.Files.JournalDB = journal })
			}
			if languages != "" {
				langs, err := config.ParseLanguages(languages)
				if err != nil {
					return service.WrapError(err, service.ErrValidation, "invalid --languages")
				}
				opts = append(opts, func(c *config.Config) { c.Translate.Languages = langs })
			}

			cfg, err := loadConfig(opts...)
			if err != nil {
				return err
			}
			summary, err := service.RunTranslation(cmd.Context(), cfg, service.Deps{Out: cmd.OutOrStdout()})
			if err != nil {
				return err
			}
			if summary.Failed > 0 && summary.RunID != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Run 'quotes journal failures --run %s' to list failed tasks\n", summary.RunID)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "in-flight requests (default TRANSLATE_CONCURRENCY or 20)")
	cmd.Flags().StringVarP(&languages, "languages", "l", "", "comma separated code[:Name] list overriding the configured languages")
	cmd.Flags().StringVar(&journal, "journal", "", "SQLite journal path (default JOURNAL_DB, disabled when empty)")
	return cmd
}

// ---------------------------------------------------------------------------
// cost
// ---------------------------------------------------------------------------

func newCostCmd() *cobra.Command {
	var (
		numLanguages int
		pricing      = cost.DefaultPricing()
	)
	cmd := &cobra.Command{
		Use:   "cost",
		Short: "Estimate the API cost of translating the quotes file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			quotes, err := quote.LoadFile(cfg.Files.QuotesFile)
			if err != nil {
				return service.WrapError(err, service.ErrFileRead, "load quotes").WithContext("path", cfg.Files.QuotesFile)
			}
			if numLanguages <= 0 {
				numLanguages = len(cfg.Translate.Languages)
			}
			if !cmd.Flags().Changed("model") {
				pricing.Model = cfg.LLM.Model
			}

			estimate := cost.New(quotes, numLanguages, pricing)
			if snap, err := progress.ReadFile(cfg.Files.ProgressFile); err == nil {
				estimate = estimate.WithProgress(snap)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), estimate.String())
			return err
		},
	}
	cmd.Flags().IntVar(&numLanguages, "languages", 0, "number of target languages (default: configured languages)")
	cmd.Flags().StringVar(&pricing.Model, "model", pricing.Model, "model name shown in the report")
	cmd.Flags().IntVar(&pricing.InputTokens, "input-tokens", pricing.InputTokens, "input tokens per translation")
	cmd.Flags().IntVar(&pricing.OutputTokens, "output-tokens", pricing.OutputTokens, "output tokens per translation")
	cmd.Flags().Float64Var(&pricing.InputPerMillion, "input-price", pricing.InputPerMillion, "USD per 1M input tokens")
	cmd.Flags().Float64Var(&pricing.OutputPerMillion, "output-price", pricing.OutputPerMillion, "USD per 1M output tokens")
	cmd.Flags().Float64Var(&pricing.KRWPerUSD, "krw-rate", pricing.KRWPerUSD, "KRW per USD")
	return cmd
}

// ---------------------------------------------------------------------------
// progress
// ---------------------------------------------------------------------------

func newProgressCmd() *cobra.Command {
	var every string
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show progress and ETA of the current translation",
		Long: `Read the progress file and print completed tasks, elapsed time and ETA.
With --every the report repeats on a cron schedule (e.g. '@every 30s')
until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			report := func(context.Context) error {
				return printProgress(out, cfg.Files.ProgressFile, time.Now())
			}
			if every == "" {
				return report(cmd.Context())
			}

			if info, err := icron.GetTriggerInfo(every, time.Now()); err == nil {
				fmt.Fprintf(out, "Refreshing %s, next at %s\n\n", info.Expression, info.Next.Format(progress.TimeLayout))
			}
			return service.Watch(cmd.Context(), every, func(ctx context.Context) error {
				if err := report(ctx); err != nil {
					return err
				}
				_, err := fmt.Fprintln(out)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&every, "every", "", "cron expression to repeat the report on")
	return cmd
}

func printProgress(w io.Writer, path string, now time.Time) error {
	snap, err := progress.ReadFile(path)
	if err != nil {
		return progressFileError(err, path)
	}
	_, err = io.WriteString(w, progress.NewReport(snap, now).String())
	return err
}

func progressFileError(err error, path string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return service.WrapError(err, service.ErrFileNotFound, "no progress file, is a translation running?").WithContext("path", path)
	}
	return service.WrapError(err, service.ErrParse, "read progress file").WithContext("path", path)
}

// ---------------------------------------------------------------------------
// speed
// ---------------------------------------------------------------------------

func newSpeedCmd() *cobra.Command {
	var window time.Duration
	cmd := &cobra.Command{
		Use:   "speed",
		Short: "Measure translation speed over a short window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path := cfg.Files.ProgressFile
			fmt.Fprintf(cmd.OutOrStdout(), "Sampling %s for %s...\n", path, progress.FormatDuration(window))

			speed, err := progress.Sample(cmd.Context(), progress.FileReader(path), window, translator.NewTimerSleeper(), time.Now)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				return progressFileError(err, path)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), speed.String())
			return err
		},
	}
	cmd.Flags().DurationVarP(&window, "window", "w", progress.DefaultWindow, "time between the two reads")
	return cmd
}

// ---------------------------------------------------------------------------
// icon
// ---------------------------------------------------------------------------

func newIconCmd() *cobra.Command {
	var noFix bool
	cmd := &cobra.Command{
		Use:   "icon [path]",
		Short: "Report icon mode and alpha, flatten transparent icons onto white",
		Long: `Inspect the app icon (default ICON_FILE). Transparent pixels blur the
icon on some launchers, so a flattened <name>_fixed.png is written next to
it unless --no-fix is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path := cfg.Files.IconFile
			if len(args) == 1 {
				path = args[0]
			}
			out := cmd.OutOrStdout()

			if noFix {
				info, _, err := icon.Inspect(path)
				if err != nil {
					return service.WrapError(err, service.ErrFileRead, "inspect icon").WithContext("path", path)
				}
				_, err = io.WriteString(out, info.String())
				return err
			}

			info, fixed, err := icon.FixFile(path)
			if err != nil {
				return service.WrapError(err, service.ErrFileWrite, "fix icon").WithContext("path", path)
			}
			if _, err := io.WriteString(out, info.String()); err != nil {
				return err
			}
			if fixed != "" {
				fmt.Fprintf(out, "Transparent pixels found, wrote %s (transparent -> white)\n", fixed)
			} else {
				fmt.Fprintln(out, "Icon is fully opaque")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noFix, "no-fix", false, "only report, do not write the flattened copy")
	return cmd
}

// ---------------------------------------------------------------------------
// journal
// ---------------------------------------------------------------------------

func newJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect runs recorded in the SQLite journal (JOURNAL_DB)",
	}
	cmd.AddCommand(newJournalFailuresCmd())
	return cmd
}

func newJournalFailuresCmd() *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "failures",
		Short: "List failed tasks of the latest or a given run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Files.JournalDB == "" {
				return service.NewError(service.ErrConfig, "JOURNAL_DB is not set")
			}
			store, err := persistence.NewSQLiteStore(cfg.Files.JournalDB)
			if err != nil {
				return service.WrapError(err, service.ErrFileRead, "open journal").WithContext("path", cfg.Files.JournalDB)
			}
			defer store.Close()

			ctx := cmd.Context()
			var run *persistence.Run
			if runID == "" {
				run, err = store.LatestRun(ctx)
			} else {
				run, err = store.GetRun(ctx, runID)
			}
			if err != nil {
				return service.WrapError(err, service.ErrValidation, "find run")
			}
			failures, err := store.Failures(ctx, run.ID)
			if err != nil {
				return service.WrapError(err, service.ErrFileRead, "list failures").WithContext("run", run.ID)
			}
			return printFailures(cmd.OutOrStdout(), run, failures)
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "run id (default: latest run)")
	return cmd
}

func printFailures(w io.Writer, run *persistence.Run, failures []persistence.Outcome) error {
	status := "running"
	if run.Finished() {
		status = fmt.Sprintf("%d succeeded, %d failed", run.Succeeded, run.Failed)
	}
	fmt.Fprintf(w, "Run %s (%s, started %s): %s\n", run.ID, run.Model,
		run.StartedAt.Local().Format(progress.TimeLayout), status)
	if len(failures) == 0 {
		_, err := fmt.Fprintln(w, "No failed tasks")
		return err
	}
	for _, f := range failures {
		fmt.Fprintf(w, "Quote %d -> %s after %d attempts: %s\n", f.QuoteID, f.Language, f.Attempts, f.Error)
		if f.Rejected != "" {
			fmt.Fprintf(w, "  rejected: %q\n", f.Rejected)
		}
	}
	return nil
}
