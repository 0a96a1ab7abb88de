package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MimeLyc/quote-translator/internal/progress"
	"github.com/MimeLyc/quote-translator/internal/quote"
	"github.com/MimeLyc/quote-translator/internal/translator"
	"github.com/MimeLyc/quote-translator/pkg/log"
)

const (
	DefaultConcurrency = 20
	DefaultReportEvery = 10
)

// Dispatcher translates the cross product of quotes and languages with a
// bounded number of tasks in flight.
type Dispatcher struct {
	translator  translator.Translator
	concurrency int
	progress    progress.Writer
	journal     Journal
	out         io.Writer
	reportEvery int
	model       string
	now         func() time.Time
}

type Option func(*Dispatcher)

func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithProgress sets where the progress record is written after every task.
func WithProgress(w progress.Writer) Option {
	return func(d *Dispatcher) { d.progress = w }
}

func WithJournal(j Journal) Option {
	return func(d *Dispatcher) { d.journal = j }
}

// WithOutput sets the writer for periodic progress lines, stdout by default.
func WithOutput(w io.Writer) Option {
	return func(d *Dispatcher) { d.out = w }
}

func WithReportEvery(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.reportEvery = n
		}
	}
}

// WithModel names the model in journal run records.
func WithModel(model string) Option {
	return func(d *Dispatcher) { d.model = model }
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(tr translator.Translator, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		translator:  tr,
		concurrency: DefaultConcurrency,
		out:         os.Stdout,
		reportEvery: DefaultReportEvery,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// run holds the state shared by the tasks of one Run call. mu guards the
// store write, the counters and the progress record together.
type run struct {
	id      string
	store   *quote.Store
	total   int
	started time.Time

	mu        sync.Mutex
	completed int
	summary   Summary
}

// Run executes every task and fills store with the successful translations.
// Task failures never fail the run. A cancelled ctx stops dispatching and
// the summary covers only the tasks that finished.
func (d *Dispatcher) Run(ctx context.Context, quotes []quote.Quote, langs []quote.Language, store *quote.Store) (*Summary, error) {
	if len(quotes) == 0 {
		return nil, errors.New("no quotes to translate")
	}
	if len(langs) == 0 {
		return nil, errors.New("no target languages")
	}
	if store == nil {
		return nil, errors.New("nil translation store")
	}

	tasks := BuildTasks(quotes, langs)
	r := &run{store: store, total: len(tasks), started: d.now()}
	r.summary = Summary{Total: r.total, StartedAt: r.started}

	if d.journal != nil {
		id, err := d.journal.StartRun(ctx, RunInfo{
			Quotes:    len(quotes),
			Languages: langs,
			Total:     r.total,
			Model:     d.model,
			StartedAt: r.started,
		})
		if err != nil {
			log.Error("Failed to start journal run: %v", err)
		} else {
			r.id = id
			r.summary.RunID = id
		}
	}

	log.Info("Translating %d quotes into %d languages (%d tasks, %d workers)",
		len(quotes), len(langs), r.total, d.concurrency)

	g := new(errgroup.Group)
	g.SetLimit(d.concurrency)
	for i, task := range tasks {
		task := task
		if ctx.Err() != nil {
			log.Warn("Run cancelled, %d tasks not dispatched", r.total-i)
			break
		}
		g.Go(func() error {
			d.complete(ctx, r, d.execute(ctx, task))
			return nil
		})
	}
	_ = g.Wait()

	r.mu.Lock()
	summary := r.summary
	r.mu.Unlock()
	summary.FinishedAt = d.now()

	if d.journal != nil && r.id != "" {
		if err := d.journal.FinishRun(context.WithoutCancel(ctx), r.id, summary); err != nil {
			log.Error("Failed to finish journal run %s: %v", r.id, err)
		}
	}
	return &summary, ctx.Err()
}

func (d *Dispatcher) execute(ctx context.Context, task Task) Result {
	outcome, err := d.translator.Translate(ctx, task.QuoteText, task.Language)
	res := Result{Task: task, Outcome: outcome, FinishedAt: d.now()}
	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		return res
	}
	res.Status = StatusSuccess
	res.Text = outcome.Text
	return res
}

// complete records a finished task. The store write, the counter and the
// progress file move together under r.mu so the file never runs ahead of
// or behind the count.
func (d *Dispatcher) complete(ctx context.Context, r *run, res Result) {
	r.mu.Lock()
	if res.Succeeded() {
		if err := r.store.Set(res.QuoteID, res.Language.Code, res.Text); err != nil {
			res.Status = StatusFailed
			res.Err = fmt.Errorf("store translation: %w", err)
		}
	}

	r.completed++
	if res.Succeeded() {
		r.summary.Succeeded++
	} else {
		r.summary.Failed++
		r.summary.Failures = append(r.summary.Failures, res)
		log.Warn("%s failed after %d attempts: %v", res.Label(), res.Attempts(), res.Err)
	}

	if d.progress != nil {
		rec := progress.Record{Completed: r.completed, Total: r.total, Current: res.Label(), StartedAt: r.started}
		if err := d.progress.Update(rec); err != nil {
			log.Error("Failed to write progress: %v", err)
		}
	}

	if r.completed%d.reportEvery == 0 || r.completed == r.total {
		status := "OK"
		if !res.Succeeded() {
			status = "FAIL"
		}
		fmt.Fprintf(d.out, "[%d/%d] (%.1f%%) %s [%s]\n", r.completed, r.total,
			float64(r.completed)/float64(r.total)*100, res.Label(), status)
	}
	r.mu.Unlock()

	if d.journal != nil && r.id != "" {
		if err := d.journal.RecordResult(context.WithoutCancel(ctx), r.id, res); err != nil {
			log.Error("Failed to journal %s: %v", res.Label(), err)
		}
	}
}
