package cost

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/MimeLyc/quote-translator/internal/progress"
	"github.com/MimeLyc/quote-translator/internal/quote"
)

// Pricing holds per-translation token assumptions and model prices.
type Pricing struct {
	Model            string
	InputTokens      int     // per translation
	OutputTokens     int     // per translation
	InputPerMillion  float64 // USD per 1M input tokens
	OutputPerMillion float64 // USD per 1M output tokens
	KRWPerUSD        float64
}

// DefaultPricing is gpt-4o-mini list pricing.
func DefaultPricing() Pricing {
	return Pricing{
		Model:            "gpt-4o-mini",
		InputTokens:      150,
		OutputTokens:     50,
		InputPerMillion:  0.15,
		OutputPerMillion: 0.60,
		KRWPerUSD:        1300,
	}
}

type Estimate struct {
	Pricing

	Quotes       int
	Languages    int
	Translations int

	TotalInputTokens  int64
	TotalOutputTokens int64
	InputCost         float64
	OutputCost        float64
	TotalCost         float64

	// Average characters of the prompt and of the expected output per quote.
	AvgPromptChars float64
	AvgOutputChars float64

	// Set by WithProgress.
	HasProgress bool
	Completed   float64 // fraction in [0,1]
	Spent       float64
}

// New estimates the cost of translating quotes into numLanguages languages.
func New(quotes []quote.Quote, numLanguages int, p Pricing) Estimate {
	e := Estimate{
		Pricing:      p,
		Quotes:       len(quotes),
		Languages:    numLanguages,
		Translations: len(quotes) * numLanguages,
	}
	e.TotalInputTokens = int64(e.Translations) * int64(p.InputTokens)
	e.TotalOutputTokens = int64(e.Translations) * int64(p.OutputTokens)
	e.InputCost = float64(e.TotalInputTokens) / 1e6 * p.InputPerMillion
	e.OutputCost = float64(e.TotalOutputTokens) / 1e6 * p.OutputPerMillion
	e.TotalCost = e.InputCost + e.OutputCost

	if len(quotes) > 0 {
		var prompt, output int
		for _, q := range quotes {
			prompt += utf8.RuneCountInString(samplePrompt(q))
			output += utf8.RuneCountInString(q.Quote) + utf8.RuneCountInString(q.Author)
		}
		e.AvgPromptChars = float64(prompt) / float64(len(quotes))
		e.AvgOutputChars = float64(output) / float64(len(quotes))
	}
	return e
}

func samplePrompt(q quote.Quote) string {
	return fmt.Sprintf("Translate the following quote to {language}: '%s' by %s", q.Quote, q.Author)
}

// WithProgress sets the already spent share from a progress snapshot.
func (e Estimate) WithProgress(snap progress.Snapshot) Estimate {
	if snap.Total <= 0 {
		return e
	}
	frac := float64(snap.Completed) / float64(snap.Total)
	frac = min(max(frac, 0), 1)
	e.HasProgress = true
	e.Completed = frac
	e.Spent = e.TotalCost * frac
	return e
}

// TotalKRW is the total cost in won, truncated.
func (e Estimate) TotalKRW() int64 {
	return int64(e.TotalCost * e.KRWPerUSD)
}

func (e Estimate) TotalTokens() int64 {
	return e.TotalInputTokens + e.TotalOutputTokens
}

func (e Estimate) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== %s API cost estimate ===\n\n", e.Model)
	sb.WriteString("Workload:\n")
	fmt.Fprintf(&sb, "  - quotes:       %s\n", humanize.Comma(int64(e.Quotes)))
	fmt.Fprintf(&sb, "  - languages:    %d\n", e.Languages)
	fmt.Fprintf(&sb, "  - translations: %s\n", humanize.Comma(int64(e.Translations)))
	fmt.Fprintf(&sb, "  - avg prompt:   %.1f chars\n", e.AvgPromptChars)
	fmt.Fprintf(&sb, "  - avg output:   %.1f chars\n", e.AvgOutputChars)
	sb.WriteString("\nTokens:\n")
	fmt.Fprintf(&sb, "  - input:  %s (%.2fM)\n", humanize.Comma(e.TotalInputTokens), float64(e.TotalInputTokens)/1e6)
	fmt.Fprintf(&sb, "  - output: %s (%.2fM)\n", humanize.Comma(e.TotalOutputTokens), float64(e.TotalOutputTokens)/1e6)
	fmt.Fprintf(&sb, "  - total:  %s (%.2fM)\n", humanize.Comma(e.TotalTokens()), float64(e.TotalTokens())/1e6)
	sb.WriteString("\nCost:\n")
	fmt.Fprintf(&sb, "  - input:  $%.4f\n", e.InputCost)
	fmt.Fprintf(&sb, "  - output: $%.4f\n", e.OutputCost)
	fmt.Fprintf(&sb, "  - total:  $%.4f (about $%.2f)\n", e.TotalCost, e.TotalCost)
	fmt.Fprintf(&sb, "  - KRW:    about %s won at %s KRW/USD\n", humanize.Comma(e.TotalKRW()), humanize.Commaf(e.KRWPerUSD))
	if e.HasProgress {
		fmt.Fprintf(&sb, "\nAlready spent at %.1f%% progress: about $%.4f\n", e.Completed*100, e.Spent)
	}
	return sb.String()
}
