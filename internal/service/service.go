package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/MimeLyc/quote-translator/internal/config"
	"github.com/MimeLyc/quote-translator/internal/jobs"
	"github.com/MimeLyc/quote-translator/internal/llm"
	"github.com/MimeLyc/quote-translator/internal/persistence"
	"github.com/MimeLyc/quote-translator/internal/progress"
	"github.com/MimeLyc/quote-translator/internal/quote"
	"github.com/MimeLyc/quote-translator/internal/translator"
	"github.com/MimeLyc/quote-translator/pkg/log"
)

// Deps holds optional collaborators of a translation run. Zero values are
// replaced by the production implementations built from the config.
type Deps struct {
	Translator translator.Translator
	Sleeper    translator.Sleeper
	Journal    jobs.Journal
	Out        io.Writer
	Now        func() time.Time
}

// RunTranslation translates every quote into every configured language,
// writes the output file and prints a summary. Preconditions are checked
// before any request is sent.
func RunTranslation(ctx context.Context, cfg *config.Config, deps Deps) (*jobs.Summary, error) {
	if err := cfg.ValidateTranslate(); err != nil {
		return nil, WrapError(err, ErrConfig, "invalid translate configuration")
	}
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	quotes, err := loadQuotes(cfg.Files.QuotesFile)
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, NewError(ErrValidation, "quotes file is empty").WithContext("path", cfg.Files.QuotesFile)
	}

	tr := deps.Translator
	if tr == nil {
		tr, err = newTranslator(cfg, deps.Sleeper)
		if err != nil {
			return nil, err
		}
	}

	journal := deps.Journal
	if journal == nil && cfg.Files.JournalDB != "" {
		store, err := persistence.NewSQLiteStore(cfg.Files.JournalDB)
		if err != nil {
			return nil, WrapError(err, ErrFileWrite, "open journal").WithContext("path", cfg.Files.JournalDB)
		}
		defer store.Close()
		journal = store
	}

	langs := cfg.Translate.Languages
	opts := []jobs.Option{
		jobs.WithConcurrency(cfg.Translate.Concurrency),
		jobs.WithProgress(progress.NewFileWriter(cfg.Files.ProgressFile)),
		jobs.WithOutput(deps.Out),
		jobs.WithModel(cfg.LLM.Model),
		jobs.WithClock(deps.Now),
	}
	if journal != nil {
		opts = append(opts, jobs.WithJournal(journal))
	}

	fmt.Fprintf(deps.Out, "Translating %s quotes into %d languages (%s tasks)\n",
		humanize.Comma(int64(len(quotes))), len(langs), humanize.Comma(int64(len(quotes)*len(langs))))

	store := quote.NewStore(quotes)
	summary, err := jobs.NewDispatcher(tr, opts...).Run(ctx, quotes, langs, store)
	if err != nil {
		if summary != nil {
			// unwritten results are lost, the progress file shows how far the run got
			log.Warn("Run interrupted after %d of %d tasks, output not written",
				summary.Succeeded+summary.Failed, summary.Total)
			return summary, WrapError(err, ErrTranslation, "translation interrupted")
		}
		return nil, WrapError(err, ErrValidation, "cannot start translation")
	}

	if err := store.WriteFile(cfg.Files.TranslationsFile); err != nil {
		return summary, WrapError(err, ErrFileWrite, "write translations").WithContext("path", cfg.Files.TranslationsFile)
	}

	printSummary(deps.Out, summary, store, langs, len(quotes), cfg.Files.TranslationsFile)
	return summary, nil
}

func loadQuotes(path string) ([]quote.Quote, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, WrapError(err, ErrFileNotFound, "quotes file not found").WithContext("path", path)
		}
		return nil, WrapError(err, ErrFileRead, "read quotes file").WithContext("path", path)
	}
	quotes, err := quote.Parse(data)
	if err != nil {
		return nil, WrapError(err, ErrParse, "parse quotes file").WithContext("path", path)
	}
	return quotes, nil
}

func newTranslator(cfg *config.Config, sleeper translator.Sleeper) (translator.Translator, error) {
	client, err := llm.NewClient(&llm.Config{
		APIKey:      cfg.LLM.APIKey,
		APIURL:      cfg.LLM.APIURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		SiteURL:     cfg.LLM.SiteURL,
		AppName:     cfg.LLM.AppName,
	})
	if err != nil {
		return nil, WrapError(err, ErrConfig, "create LLM client")
	}

	policy := translator.DefaultPolicy()
	policy.MaxAttempts = cfg.Translate.MaxAttempts
	policy.RetryDelay = cfg.Translate.RetryDelay

	opts := []translator.Option{
		translator.WithPolicy(policy),
		translator.WithRateLimit(cfg.Translate.RateLimit),
	}
	if sleeper != nil {
		opts = append(opts, translator.WithSleeper(sleeper))
	}
	return translator.NewLLMTranslator(client, opts...), nil
}

func printSummary(w io.Writer, summary *jobs.Summary, store *quote.Store, langs []quote.Language, quotes int, path string) {
	fmt.Fprintf(w, "\nTranslation finished in %s\n", progress.FormatDuration(summary.Duration()))
	fmt.Fprintf(w, "  succeeded: %s/%s\n", humanize.Comma(int64(summary.Succeeded)), humanize.Comma(int64(summary.Total)))
	fmt.Fprintf(w, "  failed:    %s\n", humanize.Comma(int64(summary.Failed)))

	perLang := make([]string, 0, len(langs))
	for _, l := range langs {
		perLang = append(perLang, fmt.Sprintf("%s %d/%d", l.Code, store.CountLanguage(l.Code), quotes))
	}
	fmt.Fprintf(w, "  languages: %s\n", strings.Join(perLang, ", "))
	if summary.RunID != "" {
		fmt.Fprintf(w, "  run id:    %s\n", summary.RunID)
	}
	fmt.Fprintf(w, "Saved to %s\n", path)
}
