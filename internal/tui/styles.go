package tui

import "github.com/charmbracelet/lipgloss"

// Colors
var (
	// Watch state colors
	watchingColor = lipgloss.Color("10") // Green
	idleColor     = lipgloss.Color("8")  // Gray

	// UI colors
	headerBg = lipgloss.Color("235")
	statusBg = lipgloss.Color("236")
	helpBg   = lipgloss.Color("234")
	dimColor = lipgloss.Color("8")
	tagColor = lipgloss.Color("13") // Magenta

	// Level colors for well-known levels
	levelColorMap = map[string]lipgloss.Color{
		"ERROR": lipgloss.Color("9"),  // Red
		"WARN":  lipgloss.Color("11"), // Yellow
		"INFO":  lipgloss.Color("10"), // Green
		"DEBUG": lipgloss.Color("14"), // Cyan
		"TRACE": lipgloss.Color("12"), // Blue
	}
)

// Styles
var (
	watchingStyle = lipgloss.NewStyle().
			Foreground(watchingColor).
			Bold(true)

	idleStyle = lipgloss.NewStyle().
			Foreground(idleColor)

	defaultLevelStyle = lipgloss.NewStyle().Bold(true)

	// Header style
	headerStyle = lipgloss.NewStyle().
			Background(headerBg).
			Padding(0, 1).
			MarginBottom(1)

	// Status bar style
	statusStyle = lipgloss.NewStyle().
			Background(statusBg).
			Padding(0, 1)

	// Help overlay style
	helpStyle = lipgloss.NewStyle().
			Background(helpBg).
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240"))

	// Dim style for timestamps
	dimStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	tagStyle = lipgloss.NewStyle().
			Foreground(tagColor)

	levelStyles = make(map[string]lipgloss.Style)
)

func init() {
	for level, color := range levelColorMap {
		levelStyles[level] = lipgloss.NewStyle().Foreground(color).Bold(true)
	}
}

// levelStyle returns the style for a level, falling back to plain bold
func levelStyle(level string) lipgloss.Style {
	if s, ok := levelStyles[level]; ok {
		return s
	}
	return defaultLevelStyle
}
