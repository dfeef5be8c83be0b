package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/charliek/m3tail/internal/domain"
	"github.com/charliek/m3tail/internal/notify"
)

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.handleWindowSize(msg)
		m.updateViewport()
		if m.followMode {
			m.viewport.GotoBottom()
		}

	case ViewChangedMsg:
		m.applyChange(domain.ViewChange(msg))

	case NoticeMsg:
		m.notice = msg.Message

	case TickMsg:
		m.refreshStatus()
		// Catches changes dropped by a full subscription buffer
		if m.store.Stats().Version != m.version {
			m.refresh()
		}
		cmds = append(cmds, tickCmd())
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleWindowSize handles window resize messages
func (m *Model) handleWindowSize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height

	headerHeight := 2
	footerHeight := 2
	viewportHeight := msg.Height - headerHeight - footerHeight
	if viewportHeight < 1 {
		viewportHeight = 1
	}

	m.viewport.Width = msg.Width
	m.viewport.Height = viewportHeight
	m.viewport.YPosition = headerHeight
	m.ready = true
}

// handleKey processes keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case ModeSearch, ModeTags:
		return m.handleInputKey(msg)
	case ModeHelp:
		// Any key closes help
		m.mode = ModeNormal
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "?":
		m.mode = ModeHelp

	case "/":
		m.startInput(ModeSearch, m.criteria.SearchQuery, "search content and tags")

	case "t":
		m.startInput(ModeTags, strings.Join(m.criteria.SelectedTags, ", "), "comma separated tags")

	case "l":
		m.store.SetLevelFilter(nextLevel(m.store.AvailableLevels(), m.criteria.SelectedLevel))
		m.refresh()

	case "c":
		m.store.Clear()
		if m.notifier != nil {
			m.notifier.Notify(notify.LevelInfo, "logs cleared")
		}
		m.refresh()

	case "esc":
		m.store.SetCriteria(domain.FilterCriteria{})
		m.refresh()

	default:
		m.handleNavigationKey(msg)
	}

	return m, nil
}

func (m *Model) startInput(mode Mode, value, placeholder string) {
	m.mode = mode
	m.textInput.Placeholder = placeholder
	m.textInput.SetValue(value)
	m.textInput.CursorEnd()
	m.textInput.Focus()
}

// handleInputKey handles keys while the search or tags prompt is open.
// Enter applies the value to the store; esc abandons it.
func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = ModeNormal
		m.textInput.Blur()
		return m, nil

	case "enter":
		value := m.textInput.Value()
		if m.mode == ModeSearch {
			m.store.SetSearchQuery(value)
		} else {
			m.store.SetTagsFilter(parseTags(value))
		}
		m.mode = ModeNormal
		m.textInput.Blur()
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

// handleNavigationKey handles scrolling keys.
// Returns true if the key was handled
func (m *Model) handleNavigationKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "up", "k":
		m.viewport.LineUp(1)
		m.followMode = false
	case "down", "j":
		m.viewport.LineDown(1)
	case "pgup":
		m.viewport.HalfViewUp()
		m.followMode = false
	case "pgdown":
		m.viewport.HalfViewDown()
	case "home", "g":
		m.viewport.GotoTop()
		m.followMode = false
	case "end", "G":
		m.viewport.GotoBottom()
		m.followMode = true
	case "F":
		m.followMode = !m.followMode
		if m.followMode {
			m.viewport.GotoBottom()
		}
	default:
		return false
	}
	return true
}

// parseTags splits a comma separated tag list, dropping blanks
func parseTags(s string) []string {
	var tags []string
	for _, tag := range strings.Split(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
