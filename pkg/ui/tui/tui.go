package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"profilegrab/pkg/events"
	"profilegrab/pkg/models"
)

// Run shows the full screen UI for a scrape session until the user quits.
// stream is the session's events, cancel aborts it. Run waits for the stream
// to close before returning so the session has released its browser, and
// returns the number of failed users.
func Run(ctx context.Context, p models.Platform, usernames []string, stream <-chan events.Event, cancel context.CancelFunc) (int, error) {
	model := NewModel(p, usernames, stream, cancel)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	_, err := program.Run()

	cancel()
	for range stream {
	}
	return model.Failures(), err
}
