package browser

import (
	"context"
	"fmt"
)

// Page checks and scroll commands shared by every platform
const (
	ScriptPageHeight     = "document.body.scrollHeight"
	ScriptScrollToBottom = "window.scrollTo(0, document.body.scrollHeight)"
	ScriptScrollToTop    = "window.scrollTo(0, 0)"
	ScriptReadyState     = "document.readyState"
)

// PageHeight returns the scrollable height of the current document
func PageHeight(ctx context.Context, s Session) (int64, error) {
	var h float64
	if err := s.Evaluate(ctx, ScriptPageHeight, &h); err != nil {
		return 0, fmt.Errorf("failed to read page height: %w", err)
	}
	return int64(h), nil
}

// ScrollToBottom scrolls the window to the end of the document
func ScrollToBottom(ctx context.Context, s Session) error {
	return s.Evaluate(ctx, ScriptScrollToBottom, nil)
}

// ScrollToTop scrolls the window back to the start
func ScrollToTop(ctx context.Context, s Session) error {
	return s.Evaluate(ctx, ScriptScrollToTop, nil)
}

// Ready reports whether the document finished loading
func Ready(ctx context.Context, s Session) (bool, error) {
	var state string
	if err := s.Evaluate(ctx, ScriptReadyState, &state); err != nil {
		return false, err
	}
	return state == "complete", nil
}
