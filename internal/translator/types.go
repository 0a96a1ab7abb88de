package translator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MimeLyc/quote-translator/internal/quote"
)

var (
	// ErrEmpty is returned for a successful response with no text.
	ErrEmpty = errors.New("empty translation")
	// ErrRejected is returned when the response looks like an apology or
	// refusal instead of a translation.
	ErrRejected = errors.New("response rejected by blocklist")
)

// DefaultBlocklist holds the case-insensitive substrings that mark a
// response as a refusal. It can drop legitimate translations that happen
// to contain one of these words; rejected texts are kept in the Outcome.
var DefaultBlocklist = []string{"error", "sorry", "cannot"}

// Translator translates one quote into one language, retrying internally.
type Translator interface {
	Translate(ctx context.Context, text string, target quote.Language) (*Outcome, error)
}

// Completer is the part of the LLM client the translator needs.
type Completer interface {
	SimpleChat(ctx context.Context, prompt string, systemPrompt string) (string, error)
}

// Outcome describes how a task ended. It is returned on success and on
// permanent failure.
type Outcome struct {
	Text     string
	Attempts int
	// Waited is the total backoff time spent between attempts.
	Waited time.Duration
	// Rejected is the last response dropped by the blocklist, if any.
	Rejected string
	// DetectedLanguage is the ISO 639-1 code detected in Text when the
	// detection was confident, otherwise empty.
	DetectedLanguage string
	LanguageMismatch bool
}

// FailedError is returned once every attempt of a task has failed.
type FailedError struct {
	Attempts int
	Last     error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("translation failed after %d attempt(s): %v", e.Attempts, e.Last)
}

func (e *FailedError) Unwrap() error {
	return e.Last
}
