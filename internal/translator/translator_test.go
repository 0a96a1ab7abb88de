package translator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/quote-translator/internal/llm"
	"github.com/MimeLyc/quote-translator/internal/quote"
)

type reply struct {
	text string
	err  error
}

type scriptedClient struct {
	mu      sync.Mutex
	replies []reply
	prompts []string
	systems []string
}

func (c *scriptedClient) SimpleChat(_ context.Context, prompt string, systemPrompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	c.systems = append(c.systems, systemPrompt)
	if len(c.replies) == 0 {
		return "", fmt.Errorf("no scripted reply")
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r.text, r.err
}

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
	err    error
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return s.err
}

func rateLimited() error {
	return fmt.Errorf("chat completion failed: %w", &llm.StatusError{StatusCode: http.StatusTooManyRequests, Body: "rate limited"})
}

var french = quote.Language{Code: "fr", Name: "French"}

func TestTranslate_FirstAttemptSucceeds(t *testing.T) {
	client := &scriptedClient{replies: []reply{{text: "  Moins, c'est plus.\n"}}}
	sleeper := &recordingSleeper{}
	tr := NewLLMTranslator(client, WithSleeper(sleeper))

	outcome, err := tr.Translate(context.Background(), "Less is more.", french)
	require.NoError(t, err)
	assert.Equal(t, "Moins, c'est plus.", outcome.Text)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Zero(t, outcome.Waited)
	assert.Empty(t, sleeper.delays)

	require.Len(t, client.prompts, 1)
	assert.Equal(t, "Less is more.", client.prompts[0])
	assert.Equal(t, "Translate this English quote to French. Keep the meaning and style. Return only the translation.", client.systems[0])
}

func TestTranslate_RateLimitBackoff(t *testing.T) {
	client := &scriptedClient{replies: []reply{
		{err: rateLimited()},
		{err: rateLimited()},
		{text: "Moins, c'est plus."},
	}}
	sleeper := &recordingSleeper{}
	tr := NewLLMTranslator(client, WithSleeper(sleeper))

	outcome, err := tr.Translate(context.Background(), "Less is more.", french)
	require.NoError(t, err)
	assert.Equal(t, "Moins, c'est plus.", outcome.Text)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, sleeper.delays)
	assert.GreaterOrEqual(t, outcome.Waited, 6*time.Second)
}

func TestTranslate_RefusalNeverSucceeds(t *testing.T) {
	client := &scriptedClient{replies: []reply{
		{text: "Sorry, I can't help with that."},
		{text: "I CANNOT translate this."},
		{text: "An Error occurred."},
	}}
	sleeper := &recordingSleeper{}
	tr := NewLLMTranslator(client, WithSleeper(sleeper))

	outcome, err := tr.Translate(context.Background(), "Less is more.", french)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Empty(t, outcome.Text)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Equal(t, "An Error occurred.", outcome.Rejected)
	// no wait after the final attempt
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, sleeper.delays)

	var failed *FailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, 3, failed.Attempts)
}

func TestTranslate_TransientErrorsUseFixedDelay(t *testing.T) {
	client := &scriptedClient{replies: []reply{
		{err: fmt.Errorf("request timed out: %w", context.DeadlineExceeded)},
		{err: &llm.StatusError{StatusCode: http.StatusBadGateway, Body: "bad gateway"}},
		{text: "   "},
	}}
	sleeper := &recordingSleeper{}
	tr := NewLLMTranslator(client, WithSleeper(sleeper), WithPolicy(Policy{
		MaxAttempts: 3,
		RetryDelay:  250 * time.Millisecond,
		BackoffBase: time.Second,
	}))

	outcome, err := tr.Translate(context.Background(), "Less is more.", french)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmpty)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 250 * time.Millisecond}, sleeper.delays)
	assert.Equal(t, 500*time.Millisecond, outcome.Waited)
}

func TestTranslate_CancelledWhileWaiting(t *testing.T) {
	client := &scriptedClient{replies: []reply{{err: rateLimited()}, {text: "never used"}}}
	sleeper := &recordingSleeper{err: context.Canceled}
	tr := NewLLMTranslator(client, WithSleeper(sleeper))

	outcome, err := tr.Translate(context.Background(), "Less is more.", french)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Len(t, client.prompts, 1)
}

func TestTranslate_CustomBlocklist(t *testing.T) {
	client := &scriptedClient{replies: []reply{{text: "Je suis désolé."}}}
	tr := NewLLMTranslator(client, WithSleeper(&recordingSleeper{}), WithBlocklist([]string{" Désolé "}),
		WithPolicy(Policy{MaxAttempts: 1}))

	_, err := tr.Translate(context.Background(), "I am sorry.", french)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRejected)

	client = &scriptedClient{replies: []reply{{text: "Sorry seems to be the hardest word"}}}
	tr = NewLLMTranslator(client, WithSleeper(&recordingSleeper{}), WithBlocklist(nil))
	outcome, err := tr.Translate(context.Background(), "Sorry seems to be the hardest word", quote.Language{Code: "en", Name: "English"})
	require.NoError(t, err)
	assert.Equal(t, "Sorry seems to be the hardest word", outcome.Text)
}

func TestTranslate_LanguageDetection(t *testing.T) {
	korean := "천 리 길도 한 걸음부터 시작된다는 것을 잊지 마세요"

	client := &scriptedClient{replies: []reply{{text: korean}}}
	tr := NewLLMTranslator(client, WithSleeper(&recordingSleeper{}))
	outcome, err := tr.Translate(context.Background(), "A journey of a thousand miles begins with a single step.",
		quote.Language{Code: "ja", Name: "Japanese"})
	require.NoError(t, err, "a language mismatch is reported, not treated as a failure")
	assert.Equal(t, "ko", outcome.DetectedLanguage)
	assert.True(t, outcome.LanguageMismatch)

	client = &scriptedClient{replies: []reply{{text: korean}}}
	tr = NewLLMTranslator(client, WithSleeper(&recordingSleeper{}))
	outcome, err = tr.Translate(context.Background(), "A journey of a thousand miles begins with a single step.",
		quote.Language{Code: "ko", Name: "Korean"})
	require.NoError(t, err)
	assert.False(t, outcome.LanguageMismatch)
}

func TestTranslate_RateLimiterOption(t *testing.T) {
	client := &scriptedClient{replies: []reply{{text: "un"}, {text: "deux"}}}
	tr := NewLLMTranslator(client, WithSleeper(&recordingSleeper{}), WithRateLimit(1000))

	for i := 0; i < 2; i++ {
		_, err := tr.Translate(context.Background(), "x", french)
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tr.Translate(ctx, "x", french)
	require.Error(t, err, "limiter wait honours cancellation")
}

func TestRetryStateMachine(t *testing.T) {
	r := NewRetry(Policy{MaxAttempts: 3, RetryDelay: 500 * time.Millisecond, BackoffBase: time.Second})
	assert.Equal(t, StatePending, r.State())

	assert.Equal(t, 1, r.Begin())
	assert.Equal(t, StateAttempting, r.State())

	again, delay := r.Fail(rateLimited())
	assert.True(t, again)
	assert.Equal(t, 2*time.Second, delay)
	assert.Equal(t, StateRetrying, r.State())
	assert.Equal(t, 2*time.Second, r.NextDelay())

	assert.Equal(t, 2, r.Begin())
	again, delay = r.Fail(errors.New("boom"))
	assert.True(t, again)
	assert.Equal(t, 500*time.Millisecond, delay)

	assert.Equal(t, 3, r.Begin())
	again, delay = r.Fail(rateLimited())
	assert.False(t, again)
	assert.Zero(t, delay)
	assert.Equal(t, StateFailed, r.State())
	assert.True(t, llm.IsRateLimited(r.Err()))

	// terminal states do not start new attempts
	assert.Equal(t, 3, r.Begin())
	assert.Equal(t, StateFailed, r.State())
}

func TestRetrySucceed(t *testing.T) {
	r := NewRetry(DefaultPolicy())
	r.Begin()
	r.Fail(errors.New("boom"))
	r.Begin()
	r.Succeed()
	assert.Equal(t, StateSucceeded, r.State())
	assert.NoError(t, r.Err())
	assert.Equal(t, 2, r.Attempt())
	assert.Equal(t, "succeeded", r.State().String())
}

func TestRetryCancelledStopsImmediately(t *testing.T) {
	r := NewRetry(DefaultPolicy())
	r.Begin()
	again, _ := r.Fail(fmt.Errorf("failed to make request: %w", context.Canceled))
	assert.False(t, again)
	assert.Equal(t, StateFailed, r.State())
}

func TestTimerSleeper(t *testing.T) {
	s := NewTimerSleeper()
	require.NoError(t, s.Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Sleep(ctx, time.Hour), context.Canceled)
}
