package progress

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordFormat(t *testing.T) {
	rec := Record{
		Completed: 4,
		Total:     4,
		Current:   "Quote 2 -> Japanese",
		StartedAt: time.Date(2025, 3, 1, 9, 5, 7, 0, time.Local),
	}
	want := "Progress: 4/4 (100.0%)\nCurrent: Quote 2 -> Japanese\nStarted: 2025-03-01 09:05:07\n"
	assert.Equal(t, want, rec.Format())

	rec.Completed = 1
	rec.Total = 3
	assert.Contains(t, rec.Format(), "Progress: 1/3 (33.3%)")
	assert.Zero(t, Record{}.Percent())
}

func TestFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.txt")
	w := NewFileWriter(path)
	started := time.Date(2025, 3, 1, 9, 0, 0, 0, time.Local)

	require.NoError(t, w.Update(Record{Completed: 1, Total: 2, Current: "Quote 1 -> Korean", StartedAt: started}))
	require.NoError(t, w.Update(Record{Completed: 2, Total: 2, Current: "Quote 1 -> French", StartedAt: started}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Progress: 2/2 (100.0%)\nCurrent: Quote 1 -> French\nStarted: 2025-03-01 09:00:00\n", string(data))

	err = w.Update(Record{Completed: 1, Total: 2, StartedAt: started})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backwards")

	err = w.Update(Record{Completed: 3, Total: 2, StartedAt: started})
	require.Error(t, err)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestParseRoundTripsFormat(t *testing.T) {
	started := time.Date(2025, 3, 1, 9, 5, 7, 0, time.UTC)
	rec := Record{Completed: 12, Total: 30, Current: "Quote 7 -> Chinese (Simplified)", StartedAt: started}

	snap, err := Parse(rec.Format(), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 12, snap.Completed)
	assert.Equal(t, 30, snap.Total)
	assert.Equal(t, 18, snap.Remaining())
	assert.Equal(t, "Quote 7 -> Chinese (Simplified)", snap.Current)
	assert.True(t, snap.StartedAt.Equal(started))
}

func TestParseOptionalLines(t *testing.T) {
	snap, err := Parse("Progress: 0/10 (0.0%)\n", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 10, snap.Total)
	assert.False(t, snap.HasStart())
	assert.Empty(t, snap.Current)

	_, err = Parse("garbage", time.UTC)
	assert.Error(t, err)
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewReport(t *testing.T) {
	started := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	now := started.Add(10 * time.Minute)
	snap := Snapshot{Completed: 100, Total: 400, StartedAt: started}

	r := NewReport(snap, now)
	assert.Equal(t, 10*time.Minute, r.Elapsed)
	assert.Equal(t, 6*time.Second, r.PerItem)
	assert.Equal(t, 30*time.Minute, r.ETA)
	assert.Equal(t, now.Add(30*time.Minute), r.Completion)
	assert.True(t, r.HasETA())

	out := r.String()
	assert.Contains(t, out, "Progress:  100/400 (25.0%)")
	assert.Contains(t, out, "Remaining: 300")
	assert.Contains(t, out, "ETA:       30m00s")
}

func TestNewReportWithoutProgress(t *testing.T) {
	started := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	r := NewReport(Snapshot{Completed: 0, Total: 12, StartedAt: started}, started.Add(time.Minute))
	assert.False(t, r.HasETA())
	assert.Contains(t, r.String(), "no progress yet")

	r = NewReport(Snapshot{Completed: 3, Total: 12}, started)
	assert.False(t, r.HasETA())
	assert.Contains(t, r.String(), "Started:   unknown")
}

func TestReportThousandsSeparators(t *testing.T) {
	r := NewReport(Snapshot{Completed: 1234, Total: 30000}, time.Now())
	assert.Contains(t, r.String(), "1,234/30,000")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0s", FormatDuration(0))
	assert.Equal(t, "45s", FormatDuration(45*time.Second))
	assert.Equal(t, "2m05s", FormatDuration(125*time.Second))
	assert.Equal(t, "1h02m03s", FormatDuration(time.Hour+2*time.Minute+3*time.Second))
}

type fakeSleeper struct {
	slept time.Duration
	err   error
}

func (s *fakeSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.slept += d
	return s.err
}

func sequence(snaps ...Snapshot) Reader {
	i := 0
	return func() (Snapshot, error) {
		s := snaps[i]
		if i < len(snaps)-1 {
			i++
		}
		return s, nil
	}
}

func TestSample(t *testing.T) {
	started := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	now := func() time.Time { return started.Add(100 * time.Second) }
	read := sequence(
		Snapshot{Completed: 40, Total: 100, StartedAt: started},
		Snapshot{Completed: 50, Total: 100, StartedAt: started},
	)
	sleeper := &fakeSleeper{}

	s, err := Sample(context.Background(), read, 0, sleeper, now)
	require.NoError(t, err)
	assert.Equal(t, DefaultWindow, sleeper.slept)
	assert.Equal(t, 10, s.Delta)
	assert.InDelta(t, 1.0, s.PerSecond, 1e-9)
	assert.InDelta(t, 60.0, s.PerMinute(), 1e-9)
	assert.Equal(t, 50*time.Second, s.ETA)
	assert.InDelta(t, 0.5, s.Average, 1e-9)
	assert.Contains(t, s.String(), "1.00 items/sec")
}

func TestSampleStalled(t *testing.T) {
	snap := Snapshot{Completed: 5, Total: 10}
	s, err := Sample(context.Background(), sequence(snap, snap), time.Second, &fakeSleeper{}, time.Now)
	require.NoError(t, err)
	assert.True(t, s.Stalled())
	assert.Zero(t, s.PerSecond)
	assert.Contains(t, s.String(), "no progress during the window")
}

func TestSampleErrors(t *testing.T) {
	boom := errors.New("unreadable")
	_, err := Sample(context.Background(), func() (Snapshot, error) { return Snapshot{}, boom }, time.Second, &fakeSleeper{}, time.Now)
	assert.ErrorIs(t, err, boom)

	snap := Snapshot{Completed: 1, Total: 2}
	_, err = Sample(context.Background(), sequence(snap, snap), time.Second, &fakeSleeper{err: context.Canceled}, time.Now)
	assert.ErrorIs(t, err, context.Canceled)
}
