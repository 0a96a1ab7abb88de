package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/time/rate"

	"github.com/MimeLyc/quote-translator/internal/quote"
	"github.com/MimeLyc/quote-translator/pkg/log"
)

// minDetectRunes is the shortest text worth running language detection on.
const minDetectRunes = 12

const detectConfidence = 0.8

type llmTranslator struct {
	client    Completer
	policy    Policy
	blocklist []string
	sleeper   Sleeper
	limiter   *rate.Limiter
}

type Option func(*llmTranslator)

// WithPolicy replaces the default retry policy.
func WithPolicy(p Policy) Option {
	return func(t *llmTranslator) { t.policy = p }
}

// WithBlocklist replaces the refusal blocklist.
func WithBlocklist(words []string) Option {
	return func(t *llmTranslator) {
		t.blocklist = make([]string, 0, len(words))
		for _, w := range words {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				t.blocklist = append(t.blocklist, w)
			}
		}
	}
}

// WithSleeper replaces the timer based sleeper.
func WithSleeper(s Sleeper) Option {
	return func(t *llmTranslator) { t.sleeper = s }
}

// WithRateLimit caps request starts across all callers of this translator.
// A non-positive rate disables the limiter.
func WithRateLimit(perSecond float64) Option {
	return func(t *llmTranslator) {
		if perSecond <= 0 {
			t.limiter = nil
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewLLMTranslator creates a Translator that sends one chat completion per
// attempt. It is safe for concurrent use.
func NewLLMTranslator(client Completer, opts ...Option) Translator {
	t := &llmTranslator{
		client:  client,
		policy:  DefaultPolicy(),
		sleeper: NewTimerSleeper(),
	}
	WithBlocklist(DefaultBlocklist)(t)
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SystemPrompt is the instruction sent with every quote.
func SystemPrompt(languageName string) string {
	return fmt.Sprintf("Translate this English quote to %s. Keep the meaning and style. Return only the translation.", languageName)
}

func (t *llmTranslator) Translate(ctx context.Context, text string, target quote.Language) (*Outcome, error) {
	retry := NewRetry(t.policy)
	outcome := &Outcome{}

	for {
		attempt := retry.Begin()
		outcome.Attempts = attempt

		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				retry.Abort(err)
				break
			}
		}

		translated, err := t.attempt(ctx, text, target)
		if err == nil {
			retry.Succeed()
			outcome.Text = translated
			t.detectLanguage(outcome, target)
			return outcome, nil
		}

		var rejected *rejectedError
		if errors.As(err, &rejected) {
			outcome.Rejected = rejected.text
		}

		again, delay := retry.Fail(err)
		if !again {
			break
		}
		log.Debug("Attempt %d/%d for %s failed, retrying in %v: %v",
			attempt, t.policy.MaxAttempts, target.Code, delay, err)

		if err := t.sleeper.Sleep(ctx, delay); err != nil {
			retry.Abort(err)
			break
		}
		outcome.Waited += delay
	}

	return outcome, &FailedError{Attempts: retry.Attempt(), Last: retry.Err()}
}

func (t *llmTranslator) attempt(ctx context.Context, text string, target quote.Language) (string, error) {
	response, err := t.client.SimpleChat(ctx, text, SystemPrompt(target.Name))
	if err != nil {
		return "", err
	}
	return t.check(response)
}

// check accepts a response only if it is non-empty and free of blocklisted
// substrings.
func (t *llmTranslator) check(response string) (string, error) {
	translated := strings.TrimSpace(response)
	if translated == "" {
		return "", ErrEmpty
	}

	lower := strings.ToLower(translated)
	for _, word := range t.blocklist {
		if strings.Contains(lower, word) {
			return "", &rejectedError{word: word, text: translated}
		}
	}
	return translated, nil
}

// detectLanguage annotates the outcome; it never turns a success into a
// failure.
func (t *llmTranslator) detectLanguage(outcome *Outcome, target quote.Language) {
	if utf8.RuneCountInString(outcome.Text) < minDetectRunes {
		return
	}
	info := whatlanggo.Detect(outcome.Text)
	if info.Confidence < detectConfidence {
		return
	}
	detected := info.Lang.Iso6391()
	if detected == "" {
		return
	}
	outcome.DetectedLanguage = detected

	base, _, _ := strings.Cut(strings.ToLower(target.Code), "-")
	if base != detected {
		outcome.LanguageMismatch = true
		log.Debug("Translation for %s looks like %s: %q", target.Code, detected, outcome.Text)
	}
}

type rejectedError struct {
	word string
	text string
}

func (e *rejectedError) Error() string {
	return fmt.Sprintf("%v: contains %q", ErrRejected, e.word)
}

func (e *rejectedError) Is(target error) bool {
	return target == ErrRejected
}
