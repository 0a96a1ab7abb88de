package progress

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MimeLyc/quote-translator/pkg/file"
)

// TimeLayout is the layout of the Started line.
const TimeLayout = "2006-01-02 15:04:05"

// Record is the state written to the progress file after every task.
type Record struct {
	Completed int
	Total     int
	Current   string
	StartedAt time.Time
}

// Percent returns the completed share in percent, 0 for an empty run.
func (r Record) Percent() float64 {
	if r.Total <= 0 {
		return 0
	}
	return float64(r.Completed) / float64(r.Total) * 100
}

// Format renders the three-line progress file. Monitoring tools match
// these lines by prefix, so the layout must stay stable.
func (r Record) Format() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Progress: %d/%d (%.1f%%)\n", r.Completed, r.Total, r.Percent())
	fmt.Fprintf(&sb, "Current: %s\n", r.Current)
	fmt.Fprintf(&sb, "Started: %s\n", r.StartedAt.Format(TimeLayout))
	return sb.String()
}

// Writer receives every progress update.
type Writer interface {
	Update(rec Record) error
}

// FileWriter overwrites a progress file with the latest record.
type FileWriter struct {
	path string

	mu   sync.Mutex
	last int
}

func NewFileWriter(path string) *FileWriter {
	return &FileWriter{path: path, last: -1}
}

func (w *FileWriter) Path() string {
	return w.path
}

// Update replaces the file atomically. Records older than the last written
// one are rejected so the file never moves backwards.
func (w *FileWriter) Update(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if rec.Completed < w.last {
		return fmt.Errorf("progress went backwards: %d after %d", rec.Completed, w.last)
	}
	if rec.Total >= 0 && rec.Completed > rec.Total {
		return fmt.Errorf("progress %d exceeds total %d", rec.Completed, rec.Total)
	}
	if err := file.WriteAtomic(w.path, []byte(rec.Format()), 0o644); err != nil {
		return fmt.Errorf("write progress file: %w", err)
	}
	w.last = rec.Completed
	return nil
}
