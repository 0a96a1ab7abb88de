package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/quote-translator/internal/progress"
	"github.com/MimeLyc/quote-translator/internal/quote"
	"github.com/MimeLyc/quote-translator/internal/translator"
)

var (
	korean   = quote.Language{Code: "ko", Name: "Korean"}
	japanese = quote.Language{Code: "ja", Name: "Japanese"}
)

func testQuotes(n int) []quote.Quote {
	ret := make([]quote.Quote, 0, n)
	for i := 1; i <= n; i++ {
		ret = append(ret, quote.Quote{ID: i, Quote: fmt.Sprintf("quote %d", i), Author: "Anon"})
	}
	return ret
}

// fakeTranslator answers "<code>:<text>" unless fail says otherwise.
type fakeTranslator struct {
	fail     func(text string, lang quote.Language) bool
	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
	delay    time.Duration
}

func (f *fakeTranslator) Translate(ctx context.Context, text string, lang quote.Language) (*translator.Outcome, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return &translator.Outcome{Attempts: 1}, &translator.FailedError{Attempts: 1, Last: ctx.Err()}
		}
	}
	if f.fail != nil && f.fail(text, lang) {
		return &translator.Outcome{Attempts: 3}, &translator.FailedError{Attempts: 3, Last: translator.ErrRejected}
	}
	return &translator.Outcome{Text: lang.Code + ":" + text, Attempts: 1}, nil
}

// recordingProgress checks that completed never decreases.
type recordingProgress struct {
	mu      sync.Mutex
	records []progress.Record
}

func (p *recordingProgress) Update(rec progress.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, rec)
	return nil
}

type memJournal struct {
	mu       sync.Mutex
	started  []RunInfo
	results  []Result
	finished []Summary
	failRun  bool
}

func (j *memJournal) StartRun(_ context.Context, info RunInfo) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.failRun {
		return "", errors.New("journal offline")
	}
	j.started = append(j.started, info)
	return "run-1", nil
}

func (j *memJournal) RecordResult(_ context.Context, runID string, res Result) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.results = append(j.results, res)
	return nil
}

func (j *memJournal) FinishRun(_ context.Context, runID string, summary Summary) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.finished = append(j.finished, summary)
	return nil
}

func TestBuildTasks(t *testing.T) {
	tasks := BuildTasks(testQuotes(2), []quote.Language{korean, japanese})
	require.Len(t, tasks, 4)
	assert.Equal(t, Task{QuoteID: 1, QuoteText: "quote 1", Language: korean}, tasks[0])
	assert.Equal(t, Task{QuoteID: 1, QuoteText: "quote 1", Language: japanese}, tasks[1])
	assert.Equal(t, Task{QuoteID: 2, QuoteText: "quote 2", Language: korean}, tasks[2])
	assert.Equal(t, "Quote 2 -> Japanese", tasks[3].Label())

	assert.Empty(t, BuildTasks(nil, []quote.Language{korean}))
}

func TestRun_TwoByTwoEndToEnd(t *testing.T) {
	dir := t.TempDir()
	progressPath := filepath.Join(dir, "progress.txt")
	outputPath := filepath.Join(dir, "out.json")
	quotes := testQuotes(2)
	store := quote.NewStore(quotes)
	var out bytes.Buffer

	d := NewDispatcher(&fakeTranslator{},
		WithConcurrency(2),
		WithProgress(progress.NewFileWriter(progressPath)),
		WithOutput(&out),
	)
	summary, err := d.Run(context.Background(), quotes, []quote.Language{korean, japanese}, store)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 4, summary.Succeeded)
	assert.Zero(t, summary.Failed)

	require.NoError(t, store.WriteFile(outputPath))
	loaded, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Contains(t, string(loaded), `"ko": "ko:quote 1"`)
	assert.Contains(t, string(loaded), `"ja": "ja:quote 2"`)
	assert.Equal(t, 2, store.CountLanguage("ko"))
	assert.Equal(t, 2, store.CountLanguage("ja"))

	content, err := os.ReadFile(progressPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "Progress: 4/4 (100.0%)\n"))
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	assert.Len(t, lines, 3)
	assert.Regexp(t, `^Current: Quote \d -> (Korean|Japanese)$`, lines[1])

	// only the last completion is printed for runs shorter than ten tasks
	assert.Regexp(t, `^\[4/4\] \(100\.0%\) Quote \d -> \w+ \[OK\]\n$`, out.String())
}

func TestRun_FailuresLeaveEntriesAbsent(t *testing.T) {
	quotes := testQuotes(5)
	store := quote.NewStore(quotes)
	tr := &fakeTranslator{fail: func(text string, lang quote.Language) bool {
		return lang.Code == "ja" && (text == "quote 2" || text == "quote 4")
	}}
	langs := []quote.Language{korean, japanese}

	d := NewDispatcher(tr, WithOutput(&bytes.Buffer{}))
	summary, err := d.Run(context.Background(), quotes, langs, store)
	require.NoError(t, err, "task failures never fail the run")
	assert.Equal(t, 8, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)
	require.Len(t, summary.Failures, 2)
	for _, f := range summary.Failures {
		assert.ErrorIs(t, f.Err, translator.ErrRejected)
		assert.Equal(t, 3, f.Attempts())
	}

	_, ok := store.Get(2, "ja")
	assert.False(t, ok)
	_, ok = store.Get(2, "ko")
	assert.True(t, ok)

	// per language: entries + failures == quotes
	for _, l := range langs {
		failed := 0
		for _, f := range summary.Failures {
			if f.Language.Code == l.Code {
				failed++
			}
		}
		assert.Equal(t, len(quotes), store.CountLanguage(l.Code)+failed, l.Code)
	}
}

func TestRun_ProgressIsMonotonicAndBounded(t *testing.T) {
	quotes := testQuotes(30)
	rec := &recordingProgress{}
	tr := &fakeTranslator{delay: time.Millisecond}
	var out bytes.Buffer

	d := NewDispatcher(tr, WithConcurrency(4), WithProgress(rec), WithOutput(&out))
	_, err := d.Run(context.Background(), quotes, []quote.Language{korean, japanese}, quote.NewStore(quotes))
	require.NoError(t, err)

	require.Len(t, rec.records, 60)
	for i, r := range rec.records {
		assert.Equal(t, i+1, r.Completed)
		assert.Equal(t, 60, r.Total)
	}
	assert.LessOrEqual(t, tr.peak.Load(), int32(4))
	assert.Equal(t, int32(60), tr.calls.Load())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "[10/60] (16.7%)"))
	assert.True(t, strings.HasPrefix(lines[5], "[60/60] (100.0%)"))
}

func TestRun_Journal(t *testing.T) {
	quotes := testQuotes(3)
	j := &memJournal{}
	tr := &fakeTranslator{fail: func(text string, _ quote.Language) bool { return text == "quote 3" }}

	d := NewDispatcher(tr, WithJournal(j), WithModel("test-model"), WithOutput(&bytes.Buffer{}))
	summary, err := d.Run(context.Background(), quotes, []quote.Language{korean}, quote.NewStore(quotes))
	require.NoError(t, err)
	assert.Equal(t, "run-1", summary.RunID)

	require.Len(t, j.started, 1)
	assert.Equal(t, 3, j.started[0].Total)
	assert.Equal(t, "test-model", j.started[0].Model)
	assert.Len(t, j.results, 3)
	require.Len(t, j.finished, 1)
	assert.Equal(t, 1, j.finished[0].Failed)
	assert.False(t, j.finished[0].FinishedAt.IsZero())
}

func TestRun_JournalErrorsDoNotFailRun(t *testing.T) {
	quotes := testQuotes(2)
	j := &memJournal{failRun: true}
	d := NewDispatcher(&fakeTranslator{}, WithJournal(j), WithOutput(&bytes.Buffer{}))

	summary, err := d.Run(context.Background(), quotes, []quote.Language{korean}, quote.NewStore(quotes))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Empty(t, summary.RunID)
	assert.Empty(t, j.results, "no run id, nothing journalled")
}

func TestRun_Cancelled(t *testing.T) {
	quotes := testQuotes(50)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := &fakeTranslator{}
	d := NewDispatcher(tr, WithOutput(&bytes.Buffer{}))
	summary, err := d.Run(ctx, quotes, []quote.Language{korean}, quote.NewStore(quotes))
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, tr.calls.Load())
	assert.Zero(t, summary.Succeeded+summary.Failed)
}

func TestRun_InvalidInput(t *testing.T) {
	d := NewDispatcher(&fakeTranslator{})
	_, err := d.Run(context.Background(), nil, []quote.Language{korean}, quote.NewStore(nil))
	assert.Error(t, err)
	_, err = d.Run(context.Background(), testQuotes(1), nil, quote.NewStore(testQuotes(1)))
	assert.Error(t, err)
	_, err = d.Run(context.Background(), testQuotes(1), []quote.Language{korean}, nil)
	assert.Error(t, err)
}
