package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "profilegrab/pkg/errors"
	"profilegrab/pkg/logger"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{9, 1 * time.Second},
	}

	for _, tt := range tests {
		if got := backoff.NextDelay(tt.attempt); got != tt.expected {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, got, tt.expected)
		}
	}
}

func TestExponentialBackoffJitterStaysInBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	for i := 0; i < 50; i++ {
		d := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, d, 140*time.Millisecond)
		assert.LessOrEqual(t, d, 260*time.Millisecond)
	}
}

func fastConfig(max int) *Config {
	return &Config{
		MaxAttempts: max,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Logger:      logger.NewNopLogger(),
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	var seen []int
	err := Do(context.Background(), fastConfig(5), func(_ context.Context, attempt int) error {
		seen = append(seen, attempt)
		if attempt < 3 {
			return &errs.HTTPStatusError{StatusCode: 503, URL: "https://cdn/x.jpg"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestDoStopsOnPermanentStatus(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(5), func(context.Context, int) error {
		calls++
		return &errs.HTTPStatusError{StatusCode: 404, URL: "https://cdn/x.jpg"}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var statusErr *errs.HTTPStatusError
	assert.True(t, errors.As(err, &statusErr))
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	var retried []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, _ error, _ time.Duration) { retried = append(retried, attempt) }

	err := Do(context.Background(), cfg, func(context.Context, int) error {
		calls++
		return errors.New("connection reset")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retry attempts (3) exceeded")
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(10)
	cfg.Backoff = &ConstantBackoff{Delay: time.Hour}

	calls := 0
	err := Do(ctx, cfg, func(context.Context, int) error {
		calls++
		cancel()
		return errors.New("timeout")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("eof"), true},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"429", &errs.HTTPStatusError{StatusCode: 429}, true},
		{"500", &errs.HTTPStatusError{StatusCode: 500}, true},
		{"403", &errs.HTTPStatusError{StatusCode: 403}, false},
		{"download", errs.Download("fetch", "short body", nil), true},
		{"credential", errs.Credential("load", "missing", nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultRetryIf(tt.err))
		})
	}
}

func TestDoWithResult(t *testing.T) {
	n, err := DoWithResult(context.Background(), fastConfig(3), func(_ context.Context, attempt int) (int, error) {
		if attempt == 1 {
			return 0, errors.New("flaky")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestDelayForHonoursRetryAfter(t *testing.T) {
	backoff := &ConstantBackoff{Delay: 100 * time.Millisecond}

	tests := []struct {
		name string
		err  error
		want time.Duration
	}{
		{"plain error", errors.New("reset"), 100 * time.Millisecond},
		{"shorter retry-after", &errs.HTTPStatusError{StatusCode: 429, RetryAfter: 10 * time.Millisecond}, 100 * time.Millisecond},
		{"longer retry-after", &errs.HTTPStatusError{StatusCode: 429, RetryAfter: 3 * time.Second}, 3 * time.Second},
		{"capped retry-after", &errs.HTTPStatusError{StatusCode: 503, RetryAfter: time.Hour}, MaxServerDelay},
	}
	for _, tt := range tests {
		if got := delayFor(backoff, 1, tt.err); got != tt.want {
			t.Errorf("%s: delayFor = %v, want %v", tt.name, got, tt.want)
		}
	}
}
