package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/MimeLyc/quote-translator/internal/quote"
	"github.com/MimeLyc/quote-translator/internal/translator"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Task is one (quote, language) pair.
type Task struct {
	QuoteID   int
	QuoteText string
	Language  quote.Language
}

// Label is the "Quote <id> -> <language name>" text used in progress output.
func (t Task) Label() string {
	return fmt.Sprintf("Quote %d -> %s", t.QuoteID, t.Language.Name)
}

// Result is the terminal state of a task.
type Result struct {
	Task
	Status     Status
	Text       string
	Outcome    *translator.Outcome
	Err        error
	FinishedAt time.Time
}

func (r Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Attempts returns how many requests were made for the task.
func (r Result) Attempts() int {
	if r.Outcome == nil {
		return 0
	}
	return r.Outcome.Attempts
}

// Summary describes a finished run.
type Summary struct {
	RunID      string
	Total      int
	Succeeded  int
	Failed     int
	Failures   []Result
	StartedAt  time.Time
	FinishedAt time.Time
}

func (s Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// RunInfo describes a run when it starts.
type RunInfo struct {
	Quotes    int
	Languages []quote.Language
	Total     int
	Model     string
	StartedAt time.Time
}

// Journal records runs and task outcomes outside the output file. Journal
// errors are logged and never fail a run.
type Journal interface {
	StartRun(ctx context.Context, info RunInfo) (string, error)
	RecordResult(ctx context.Context, runID string, res Result) error
	FinishRun(ctx context.Context, runID string, summary Summary) error
}
