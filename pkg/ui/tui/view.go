package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"profilegrab/pkg/scraper"
	"profilegrab/pkg/ui"
)

// View renders the entire TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, logoStyle.Width(m.width).Render(ui.ASCIILogo))

	leftColumn := m.renderLeftColumn()
	rightColumn := m.renderRightColumn()
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, leftColumn, "  ", rightColumn))

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m *Model) renderLeftColumn() string {
	width := (m.width - 4) / 2
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderRunPanel(width),
		m.renderQueuePanel(width),
	)
}

func (m *Model) renderRightColumn() string {
	width := (m.width - 4) / 2
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(width),
		m.renderLogsPanel(width),
	)
}

// renderRunPanel shows the user currently being scraped
func (m *Model) renderRunPanel(width int) string {
	title := m.theme.title.Render(" CURRENT RUN ")

	if m.current >= len(m.trackers) {
		content := successStyle.Render("All targets processed")
		return m.theme.panel.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	t := m.trackers[m.current]
	name := "-"
	if t.Profile != nil {
		name = t.Profile.Name
		if name == "" {
			name = t.Profile.ID
		}
	}

	bar := m.bar
	bar.Width = max(width-12, 10)

	lines := []string{
		fmt.Sprintf("%s %s %s", m.spinner.View(), labelStyle.Render("Target:"), valueStyle.Render(string(m.platform)+"/"+m.targets[m.current])),
		fmt.Sprintf("%s %s", labelStyle.Render("Profile:"), valueStyle.Render(name)),
		fmt.Sprintf("%s %s", labelStyle.Render("Stage:"), stageStyle(t.State).Render(string(t.State))),
		bar.ViewAs(t.Percent()),
		fmt.Sprintf("%s %s", labelStyle.Render("Media found:"), valueStyle.Render(fmt.Sprintf("%d", t.Found))),
		textStyle.Render(truncate(t.Message, width-6)),
	}

	return m.theme.panel.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, lines...)),
	)
}

// renderQueuePanel lists the users of the session with their outcome
func (m *Model) renderQueuePanel(width int) string {
	title := m.theme.title.Render(" TARGETS ")

	var items []string
	for i, user := range m.targets {
		t := m.trackers[i]
		switch {
		case t.Failed:
			items = append(items, targetFailedStyle.Render("✗ "+user))
		case t.Finished():
			items = append(items, targetDoneStyle.Render("✓ "+user+"  "+t.Message))
		case i == m.current:
			items = append(items, targetActiveStyle.Render("▶ "+user))
		default:
			items = append(items, targetStyle.Render("• "+user))
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Left, items...)
	return m.theme.panel.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

func (m *Model) renderStatsPanel(width int) string {
	title := m.theme.title.Render(" SESSION ")

	done, found := 0, 0
	for _, t := range m.trackers {
		if t.Finished() {
			done++
		}
		found += t.Found
	}

	stats := []string{
		fmt.Sprintf("%s %s", labelStyle.Render("Session Time:"), valueStyle.Render(formatDuration(time.Since(m.sessionStartTime)))),
		fmt.Sprintf("%s %s", labelStyle.Render("Targets:"), valueStyle.Render(fmt.Sprintf("%d/%d", done, len(m.targets)))),
		fmt.Sprintf("%s %s", labelStyle.Render("Failures:"), valueStyle.Render(fmt.Sprintf("%d", m.Failures()))),
		fmt.Sprintf("%s %s", labelStyle.Render("Media Found:"), valueStyle.Render(fmt.Sprintf("%d", found))),
	}
	if m.finished {
		stats = append(stats, successStyle.Render("FINISHED"))
	}

	return m.theme.panel.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, stats...)),
	)
}

func (m *Model) renderLogsPanel(width int) string {
	title := m.theme.title.Render(" LOG ")

	start := max(len(m.logMessages)-10, 0)

	var logs []string
	for _, log := range m.logMessages[start:] {
		timestamp := timestampStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))
		message := textStyle.Render(truncate(log.Message, width-25))
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, message))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = textStyle.Render("No events yet...")
	}

	logsHeight := max(m.height-30, 5)
	return m.theme.panel.Width(width).Height(logsHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

func (m *Model) renderHelp() string {
	help := `
  Keys:
    q/Q      - Quit, cancelling the running scrape
    ctrl+l   - Clear the log
    ?        - Toggle this help

  Status:
    ` + successStyle.Render("Green") + `    - Finished
    ` + warningStyle.Render("Orange") + `   - In progress
    ` + errorStyle.Render("Red") + `      - Failed
`
	return m.theme.panel.Width(m.width).Render(help)
}

func stageStyle(s scraper.State) lipgloss.Style {
	switch s {
	case scraper.StateDone:
		return successStyle
	case scraper.StateInit:
		return valueStyle
	}
	return warningStyle
}

// truncate shortens s to n runes
func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// formatDuration formats a duration as [hh:]mm:ss
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
