package jobs

import "github.com/MimeLyc/quote-translator/internal/quote"

// BuildTasks returns one task per (quote, language) pair, quote-major in the
// input order of both slices.
func BuildTasks(quotes []quote.Quote, langs []quote.Language) []Task {
	tasks := make([]Task, 0, len(quotes)*len(langs))
	for _, q := range quotes {
		for _, l := range langs {
			tasks = append(tasks, Task{QuoteID: q.ID, QuoteText: q.Quote, Language: l})
		}
	}
	return tasks
}
