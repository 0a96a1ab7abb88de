package progress

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// DefaultWindow is how long the sampler waits between two reads.
const DefaultWindow = 10 * time.Second

// Sleeper waits for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Reader returns the current snapshot, usually by reading the progress file.
type Reader func() (Snapshot, error)

// FileReader reads snapshots from the progress file at path.
func FileReader(path string) Reader {
	return func() (Snapshot, error) {
		return ReadFile(path)
	}
}

// Speed is the result of two reads taken Window apart.
type Speed struct {
	Before, After Snapshot
	Window        time.Duration
	Delta         int
	PerSecond     float64
	// Average is the overall rate since the run started, 0 if unknown.
	Average float64
	ETA     time.Duration
}

// Stalled reports whether nothing completed during the window.
func (s Speed) Stalled() bool {
	return s.Delta <= 0
}

func (s Speed) PerMinute() float64 {
	return s.PerSecond * 60
}

// Sample reads, waits window and reads again. No progress during the
// window is reported as a stalled result, not an error.
func Sample(ctx context.Context, read Reader, window time.Duration, sleeper Sleeper, now func() time.Time) (Speed, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	before, err := read()
	if err != nil {
		return Speed{}, err
	}
	if err := sleeper.Sleep(ctx, window); err != nil {
		return Speed{}, err
	}
	after, err := read()
	if err != nil {
		return Speed{}, err
	}

	s := Speed{Before: before, After: after, Window: window, Delta: after.Completed - before.Completed}
	if after.HasStart() {
		if elapsed := now().Sub(after.StartedAt); elapsed > 0 && after.Completed > 0 {
			s.Average = float64(after.Completed) / elapsed.Seconds()
		}
	}
	if s.Stalled() {
		return s, nil
	}
	s.PerSecond = float64(s.Delta) / window.Seconds()
	if remaining := after.Remaining(); remaining > 0 {
		s.ETA = time.Duration(float64(remaining) / s.PerSecond * float64(time.Second))
	}
	return s, nil
}

func (s Speed) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Window:    %s\n", FormatDuration(s.Window))
	fmt.Fprintf(&sb, "Progress:  %s -> %s of %s\n",
		humanize.Comma(int64(s.Before.Completed)), humanize.Comma(int64(s.After.Completed)), humanize.Comma(int64(s.After.Total)))
	if s.Stalled() {
		sb.WriteString("Speed:     no progress during the window\n")
	} else {
		fmt.Fprintf(&sb, "Speed:     %.2f items/sec (%.1f items/min)\n", s.PerSecond, s.PerMinute())
		fmt.Fprintf(&sb, "Remaining: %s\n", humanize.Comma(int64(max(s.After.Remaining(), 0))))
		fmt.Fprintf(&sb, "ETA:       %s\n", FormatDuration(s.ETA))
	}
	if s.Average > 0 {
		fmt.Fprintf(&sb, "Average:   %.2f items/sec since start\n", s.Average)
	}
	return sb.String()
}
