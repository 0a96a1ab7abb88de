package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Report is the human view of a snapshot at a given moment.
type Report struct {
	Snapshot
	Now        time.Time
	Elapsed    time.Duration
	PerItem    time.Duration
	ETA        time.Duration
	Completion time.Time
}

// HasETA reports whether enough progress exists to estimate the finish.
func (r Report) HasETA() bool {
	return r.PerItem > 0
}

// NewReport computes elapsed time and ETA. The estimate needs a start time
// and at least one completed item.
func NewReport(snap Snapshot, now time.Time) Report {
	r := Report{Snapshot: snap, Now: now}
	if !snap.HasStart() {
		return r
	}
	r.Elapsed = now.Sub(snap.StartedAt)
	if r.Elapsed < 0 {
		r.Elapsed = 0
	}
	if snap.Completed <= 0 || r.Elapsed == 0 {
		return r
	}
	r.PerItem = r.Elapsed / time.Duration(snap.Completed)
	remaining := snap.Remaining()
	if remaining < 0 {
		remaining = 0
	}
	r.ETA = r.PerItem * time.Duration(remaining)
	r.Completion = now.Add(r.ETA)
	return r
}

func (r Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Progress:  %s/%s (%.1f%%)\n",
		humanize.Comma(int64(r.Completed)), humanize.Comma(int64(r.Total)), r.Percent())
	fmt.Fprintf(&sb, "Remaining: %s\n", humanize.Comma(int64(max(r.Remaining(), 0))))
	if r.Current != "" {
		fmt.Fprintf(&sb, "Current:   %s\n", r.Current)
	}
	if !r.HasStart() {
		sb.WriteString("Started:   unknown\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "Started:   %s (%s)\n", r.StartedAt.Format(TimeLayout), humanize.RelTime(r.StartedAt, r.Now, "ago", "from now"))
	fmt.Fprintf(&sb, "Elapsed:   %s\n", FormatDuration(r.Elapsed))
	if !r.HasETA() {
		sb.WriteString("ETA:       no progress yet\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "Per item:  %.2fs\n", r.PerItem.Seconds())
	fmt.Fprintf(&sb, "ETA:       %s (at %s)\n", FormatDuration(r.ETA), r.Completion.Format(TimeLayout))
	return sb.String()
}

// FormatDuration renders d as "1h02m03s" style text with second precision.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
