package persistence

import "time"

// Run is one row of the runs table.
type Run struct {
	ID         string
	Model      string
	Quotes     int
	Languages  []string
	Total      int
	Succeeded  int
	Failed     int
	StartedAt  time.Time
	FinishedAt *time.Time
}

func (r Run) Finished() bool {
	return r.FinishedAt != nil
}

// Outcome is one row of the task_outcomes table.
type Outcome struct {
	RunID            string
	QuoteID          int
	Language         string
	Status           string
	Attempts         int
	Text             string
	Error            string
	Rejected         string
	DetectedLanguage string
	FinishedAt       time.Time
}
