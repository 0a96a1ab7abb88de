package progress

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"
)

var (
	progressPattern = regexp.MustCompile(`Progress: (\d+)/(\d+)`)
	currentPattern  = regexp.MustCompile(`Current: (.+)`)
	startedPattern  = regexp.MustCompile(`Started: (\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})`)
)

// Snapshot is what a monitoring tool can read back from the progress file.
// Current and StartedAt are optional.
type Snapshot struct {
	Completed int
	Total     int
	Current   string
	StartedAt time.Time
}

func (s Snapshot) HasStart() bool {
	return !s.StartedAt.IsZero()
}

func (s Snapshot) Remaining() int {
	return s.Total - s.Completed
}

func (s Snapshot) Percent() float64 {
	if s.Total <= 0 {
		return 0
	}
	return float64(s.Completed) / float64(s.Total) * 100
}

// ReadFile reads and parses a progress file without modifying it.
func ReadFile(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read progress file %s: %w", path, err)
	}
	return Parse(string(data), time.Local)
}

// Parse extracts a snapshot from progress file content. The Started line
// is interpreted in loc.
func Parse(content string, loc *time.Location) (Snapshot, error) {
	m := progressPattern.FindStringSubmatch(content)
	if m == nil {
		return Snapshot{}, fmt.Errorf("no progress line found")
	}

	var snap Snapshot
	var err error
	if snap.Completed, err = strconv.Atoi(m[1]); err != nil {
		return Snapshot{}, fmt.Errorf("parse completed count: %w", err)
	}
	if snap.Total, err = strconv.Atoi(m[2]); err != nil {
		return Snapshot{}, fmt.Errorf("parse total count: %w", err)
	}

	if m := currentPattern.FindStringSubmatch(content); m != nil {
		snap.Current = m[1]
	}
	if m := startedPattern.FindStringSubmatch(content); m != nil {
		started, err := time.ParseInLocation(TimeLayout, m[1], loc)
		if err != nil {
			return Snapshot{}, fmt.Errorf("parse start time: %w", err)
		}
		snap.StartedAt = started
	}
	return snap, nil
}
