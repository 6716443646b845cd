package pagination

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"profilegrab/pkg/browser"
)

func newTestController(cfg Config) (*Controller, *[]time.Duration) {
	c := New(cfg, nil)
	var slept []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return c, &slept
}

func collect(t *testing.T, seq func(func(int, error) bool)) ([]int, error) {
	t.Helper()
	var counts []int
	var last error
	for n, err := range seq {
		if err != nil {
			last = err
			break
		}
		counts = append(counts, n)
	}
	return counts, last
}

func TestDriveStopsWhenHeightSettles(t *testing.T) {
	s := browser.NewMockSession()
	s.Heights = []int64{1000, 2000, 3000, 3000}
	c, slept := newTestController(Config{ScrollDelay: time.Second, MaxAttempts: 3})

	calls := 0
	counts, err := collect(t, c.Drive(context.Background(), s, func() int {
		calls++
		return calls * 12
	}))

	require.NoError(t, err)
	assert.Equal(t, []int{12, 24, 36}, counts)
	assert.Equal(t, 3, s.Scrolls())
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, *slept)
}

func TestDriveCountsNeverDecrease(t *testing.T) {
	s := browser.NewMockSession()
	s.Heights = []int64{1, 2, 3, 4, 4}
	c, _ := newTestController(Config{MaxAttempts: 1})

	seen := []int{5, 9, 3, 9}
	i := 0
	counts, err := collect(t, c.Drive(context.Background(), s, func() int {
		n := seen[i]
		i++
		return n
	}))

	require.NoError(t, err)
	assert.Equal(t, []int{5, 9, 9, 9}, counts)
}

func TestDriveRestartsWhenNotLoaded(t *testing.T) {
	s := browser.NewMockSession()
	s.Heights = []int64{500}
	s.ReadyStates = []string{"loading", "complete"}
	c, slept := newTestController(Config{NotLoadedDelay: 5 * time.Second, MaxAttempts: 3})

	counts, err := collect(t, c.Drive(context.Background(), s, func() int { return 1 }))

	require.NoError(t, err)
	assert.Len(t, counts, 2, "one progress per pass")
	assert.Contains(t, *slept, 5*time.Second)
}

func TestDriveRetryIsBounded(t *testing.T) {
	s := browser.NewMockSession()
	s.Heights = []int64{500}
	s.ReadyStates = []string{"loading"}
	c, _ := newTestController(Config{MaxAttempts: 3})

	counts, err := collect(t, c.Drive(context.Background(), s, func() int { return 7 }))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.Len(t, counts, 3)
	assert.Equal(t, 3, s.Scrolls())
}

func TestDriveStopsWhenConsumerBreaks(t *testing.T) {
	s := browser.NewMockSession()
	s.Heights = []int64{1, 2, 3, 4, 5, 6}
	c, _ := newTestController(Config{MaxAttempts: 1})

	n := 0
	for range c.Drive(context.Background(), s, func() int { return 0 }) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, s.Scrolls())
}

func TestDrivePropagatesBrowserErrors(t *testing.T) {
	s := browser.NewMockSession()
	s.EvalErr = errors.New("target closed")
	c, _ := newTestController(Config{MaxAttempts: 1})

	_, err := collect(t, c.Drive(context.Background(), s, func() int { return 0 }))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target closed")
}

func TestDriveHonoursCancellation(t *testing.T) {
	s := browser.NewMockSession()
	s.Heights = []int64{1, 2, 3}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c, _ := newTestController(Config{MaxAttempts: 1})

	_, err := collect(t, c.Drive(ctx, s, func() int { return 0 }))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), 0))
}
