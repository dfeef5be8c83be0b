package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/charliek/m3tail/internal/domain"
	"github.com/charliek/m3tail/internal/ingest"
	"github.com/charliek/m3tail/internal/logs"
	"github.com/charliek/m3tail/internal/notify"
)

// Mode represents the current TUI mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeSearch
	ModeTags
	ModeHelp
)

// maxNoticeDisplayLen is the maximum length of a notice in the status bar
const maxNoticeDisplayLen = 60

// nearBottomThreshold is the scroll percentage (0.0-1.0) at which we consider
// the viewport to be "near" the bottom for auto-follow purposes.
const nearBottomThreshold = 0.98

// StatusSource reports the watch state shown in the header
type StatusSource interface {
	Status() ingest.Status
}

// Model is the bubbletea model for the viewer. The store is the source of
// truth; the model holds a copy of its view at a known version.
type Model struct {
	// Dependencies
	store    *logs.Store
	status   StatusSource
	notifier notify.Notifier

	// State
	records  []domain.LogRecord
	criteria domain.FilterCriteria
	total    int
	version  uint64
	watch    ingest.Status
	notice   string

	// UI components
	viewport  viewport.Model
	textInput textinput.Model

	mode       Mode
	followMode bool // Auto-scroll to bottom on new records

	// Dimensions
	width  int
	height int
	ready  bool
}

// NewModel creates a viewer over store. status and notifier may be nil.
func NewModel(store *logs.Store, status StatusSource, notifier notify.Notifier) Model {
	ti := textinput.New()
	ti.CharLimit = 200
	ti.Width = 40

	m := Model{
		store:      store,
		status:     status,
		notifier:   notifier,
		viewport:   viewport.New(0, 0),
		textInput:  ti,
		mode:       ModeNormal,
		followMode: true,
	}
	m.refresh()
	m.refreshStatus()
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// ViewChangedMsg carries a store view change
type ViewChangedMsg domain.ViewChange

// NoticeMsg carries a user notice
type NoticeMsg notify.Notice

// TickMsg is sent periodically
type TickMsg time.Time

// tickCmd returns a command that ticks periodically
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// refresh replaces the local copy with a store snapshot
func (m *Model) refresh() {
	snap := m.store.Snapshot()
	m.records = snap.View
	m.criteria = snap.Criteria
	m.total = snap.Total
	m.version = snap.Version
	m.updateViewport()
	if m.followMode {
		m.viewport.GotoBottom()
	}
}

func (m *Model) refreshStatus() {
	if m.status != nil {
		m.watch = m.status.Status()
	}
}

// applyChange folds one change into the local copy. Inserts that follow
// the local version directly are appended; anything else, including a gap
// left by dropped events, reloads the snapshot.
func (m *Model) applyChange(c domain.ViewChange) {
	if c.Version <= m.version {
		return
	}
	if c.Version != m.version+1 || c.Reason != domain.ViewReasonInsert {
		m.refresh()
		return
	}

	m.version = c.Version
	m.total = c.Total
	if !c.Matched || c.Record == nil {
		return
	}

	wasNearBottom := m.isNearBottom()
	m.records = append(m.records, *c.Record)
	m.updateViewport()

	// If user was at bottom, re-enable follow mode and stay at bottom
	if wasNearBottom {
		m.followMode = true
		m.viewport.GotoBottom()
	} else if m.followMode {
		m.viewport.GotoBottom()
	}
}

// isNearBottom checks if the viewport is at or near the bottom
func (m *Model) isNearBottom() bool {
	if !m.ready || m.viewport.AtBottom() {
		return true
	}
	return m.viewport.ScrollPercent() >= nearBottomThreshold
}

// nextLevel returns the level after current in levels, cycling back to no
// level constraint after the last one
func nextLevel(levels []string, current string) string {
	if current == "" {
		if len(levels) > 0 {
			return levels[0]
		}
		return ""
	}
	for i, l := range levels {
		if l == current && i+1 < len(levels) {
			return levels[i+1]
		}
	}
	return ""
}
