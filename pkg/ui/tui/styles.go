package tui

import (
	"github.com/charmbracelet/lipgloss"

	"profilegrab/pkg/models"
)

var (
	cyan     = lipgloss.Color("#00D7FF")
	green    = lipgloss.Color("#5FFF87")
	amber    = lipgloss.Color("#FFAF00")
	red      = lipgloss.Color("#FF5F5F")
	ink      = lipgloss.Color("#101322")
	inkLight = lipgloss.Color("#1C2035")
	muted    = lipgloss.Color("#A8A8B3")
	faint    = lipgloss.Color("#62627A")

	// brand colors of each site, used for panel borders and titles
	accents = map[models.Platform]lipgloss.Color{
		models.Instagram: lipgloss.Color("#E1306C"),
		models.Threads:   lipgloss.Color("#C8C8C8"),
		models.Facebook:  lipgloss.Color("#1877F2"),
	}

	baseStyle = lipgloss.NewStyle().Background(ink).Foreground(muted)

	logoStyle = lipgloss.NewStyle().
			Foreground(cyan).
			Bold(true).
			Align(lipgloss.Center)

	labelStyle   = lipgloss.NewStyle().Foreground(cyan).Bold(true)
	valueStyle   = lipgloss.NewStyle().Foreground(amber)
	successStyle = lipgloss.NewStyle().Foreground(green).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(red).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(amber).Bold(true)
	textStyle    = lipgloss.NewStyle().Foreground(muted)

	targetStyle       = lipgloss.NewStyle().PaddingLeft(2)
	targetActiveStyle = targetStyle.Foreground(green).Bold(true)
	targetDoneStyle   = targetStyle.Foreground(muted).Faint(true)
	targetFailedStyle = targetStyle.Foreground(red)

	timestampStyle = lipgloss.NewStyle().Foreground(faint)
	helpStyle      = lipgloss.NewStyle().Foreground(faint).Padding(1, 0, 0, 2)
)

// theme holds the styles tinted with a platform's accent
type theme struct {
	panel lipgloss.Style
	title lipgloss.Style
}

func newTheme(p models.Platform) theme {
	accent, ok := accents[p]
	if !ok {
		accent = cyan
	}
	return theme{
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Background(inkLight).
			Padding(1, 2),
		title: lipgloss.NewStyle().
			Background(accent).
			Foreground(ink).
			Bold(true).
			Padding(0, 1),
	}
}

// levelColor maps a log level to its color
func levelColor(level string) lipgloss.Color {
	switch level {
	case LevelError:
		return red
	case LevelWarn:
		return amber
	case LevelSuccess:
		return green
	case LevelInfo:
		return cyan
	}
	return muted
}
