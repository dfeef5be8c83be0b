package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/charliek/m3tail/internal/domain"
)

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.mode == ModeHelp {
		return m.helpView()
	}

	var sb strings.Builder
	sb.WriteString(m.headerView())
	sb.WriteString("\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	sb.WriteString(m.statusBar())
	return sb.String()
}

// updateViewport updates the viewport content
func (m *Model) updateViewport() {
	lines := make([]string, len(m.records))
	for i, r := range m.records {
		lines[i] = formatRecord(r)
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
}

// formatRecord formats a single record for display
func formatRecord(r domain.LogRecord) string {
	level := levelStyle(r.Level).Render(fmt.Sprintf("%-5s", r.Level))
	ts := dimStyle.Render(r.Timestamp)

	if len(r.Tags) == 0 {
		return fmt.Sprintf("%s %s %s", ts, level, r.Content)
	}
	tags := tagStyle.Render("[" + strings.Join(r.Tags, ", ") + "]")
	return fmt.Sprintf("%s %s %s %s", ts, level, tags, r.Content)
}

// headerView renders the watch state and counts
func (m *Model) headerView() string {
	state := idleStyle.Render("idle")
	if m.watch.State == domain.WatchStateWatching {
		state = watchingStyle.Render("watching")
	}

	parts := []string{"m3tail", state}
	if m.watch.Path != "" {
		parts = append(parts, m.watch.Path)
	}
	if len(m.watch.Include) > 0 {
		parts = append(parts, dimStyle.Render(strings.Join(m.watch.Include, " ")))
	}
	parts = append(parts, fmt.Sprintf("%d records", m.total))

	return headerStyle.Render(strings.Join(parts, "  "))
}

// criteriaSummary describes the active criteria, or "" when there are none
func criteriaSummary(c domain.FilterCriteria) string {
	var parts []string
	if c.SearchQuery != "" {
		parts = append(parts, fmt.Sprintf("search: %q", c.SearchQuery))
	}
	if c.SelectedLevel != "" {
		parts = append(parts, "level: "+c.SelectedLevel)
	}
	if len(c.SelectedTags) > 0 {
		parts = append(parts, "tags: "+strings.Join(c.SelectedTags, ","))
	}
	return strings.Join(parts, " | ")
}

// statusBar renders the bottom status bar
func (m *Model) statusBar() string {
	var left string
	switch m.mode {
	case ModeSearch:
		left = "Search: " + m.textInput.View()
	case ModeTags:
		left = "Tags: " + m.textInput.View()
	default:
		if summary := criteriaSummary(m.criteria); summary != "" {
			left = summary + " (ESC to reset)"
		} else {
			left = "? for help"
		}
		if m.notice != "" {
			left += " | " + truncate(m.notice, maxNoticeDisplayLen)
		}
	}

	followIndicator := "[FOLLOW]"
	if !m.followMode {
		followIndicator = "[PAUSED]"
	}
	right := fmt.Sprintf("%s %d/%d", followIndicator, len(m.records), m.total)

	leftWidth := m.width - len(right) - 4
	if leftWidth < 0 {
		leftWidth = 0
	}

	leftPart := statusStyle.Width(leftWidth).Render(left)
	rightPart := statusStyle.Render(right)

	return lipgloss.JoinHorizontal(lipgloss.Top, leftPart, "  ", rightPart)
}

// helpView renders the help overlay
func (m *Model) helpView() string {
	help := `
m3tail - m3log viewer

Navigation:
  j/↓        Scroll down
  k/↑        Scroll up (pauses auto-follow)
  g/Home     Go to top (pauses auto-follow)
  G/End      Go to bottom (resumes auto-follow)
  PgUp/PgDn  Page up/down
  F          Toggle auto-follow mode

Filtering:
  /          Search content and tags (case-insensitive)
  l          Cycle level
  t          Select tags (comma separated, any match)
  ESC        Reset all criteria

Other:
  c          Clear all records
  ?          Toggle help
  q/Ctrl+C   Quit

Press any key to close help...
`
	return helpStyle.Render(help)
}

// truncate shortens s to maxLen characters
func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen-3] + "..."
	}
	return s
}
