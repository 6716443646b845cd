// Package pagination drives infinite scroll on a live page until the page
// stops growing, reporting how many records have been seen so far.
package pagination

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"profilegrab/pkg/browser"
	"profilegrab/pkg/logger"
)

// ErrNotLoaded is returned when the page still is not ready after every attempt
var ErrNotLoaded = errors.New("page did not finish loading")

// Config holds the waits and the restart bound
type Config struct {
	// ScrollDelay is waited after each scroll before the page is measured
	ScrollDelay time.Duration
	// NotLoadedDelay is waited before restarting on a page that is not ready
	NotLoadedDelay time.Duration
	// MaxAttempts bounds full scroll passes, including the first
	MaxAttempts int
}

// Counter reports how many records the traffic seen so far yields
type Counter func() int

// Controller runs scroll passes against a browser session
type Controller struct {
	cfg   Config
	log   logger.Logger
	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg Config, log logger.Logger) *Controller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Controller{cfg: cfg, log: log, sleep: Sleep}
}

// Sleep waits for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Drive scrolls to the bottom until the page height stops changing, then
// scrolls back to the top. Each scroll yields the current record count;
// counts never decrease. If the page is not ready after a pass, Drive
// waits and starts over, up to MaxAttempts passes, then yields ErrNotLoaded.
// Any error ends the sequence.
func (c *Controller) Drive(ctx context.Context, s browser.Session, count Counter) iter.Seq2[int, error] {
	return func(yield func(int, error) bool) {
		highest := 0
		for attempt := 1; ; attempt++ {
			ok, err := c.pass(ctx, s, count, &highest, yield)
			if err != nil {
				yield(highest, err)
				return
			}
			if !ok {
				return
			}

			ready, err := browser.Ready(ctx, s)
			if err != nil {
				yield(highest, fmt.Errorf("failed to check page readiness: %w", err))
				return
			}
			if ready {
				return
			}
			if attempt >= c.cfg.MaxAttempts {
				yield(highest, fmt.Errorf("%w after %d attempts", ErrNotLoaded, attempt))
				return
			}

			c.log.WarnWithFields("Page not loaded, restarting scroll", map[string]interface{}{
				"attempt": attempt,
				"max":     c.cfg.MaxAttempts,
			})
			if err := c.sleep(ctx, c.cfg.NotLoadedDelay); err != nil {
				yield(highest, err)
				return
			}
		}
	}
}

// pass runs one scroll pass. It returns false when the consumer stopped.
func (c *Controller) pass(ctx context.Context, s browser.Session, count Counter, highest *int, yield func(int, error) bool) (bool, error) {
	last, err := browser.PageHeight(ctx, s)
	if err != nil {
		return false, err
	}

	for {
		if err := browser.ScrollToBottom(ctx, s); err != nil {
			return false, fmt.Errorf("failed to scroll: %w", err)
		}
		if err := c.sleep(ctx, c.cfg.ScrollDelay); err != nil {
			return false, err
		}

		if n := count(); n > *highest {
			*highest = n
		}
		if !yield(*highest, nil) {
			return false, nil
		}

		height, err := browser.PageHeight(ctx, s)
		if err != nil {
			return false, err
		}
		if height == last {
			break
		}
		last = height
	}

	if err := browser.ScrollToTop(ctx, s); err != nil {
		return false, fmt.Errorf("failed to scroll to top: %w", err)
	}
	return true, nil
}
