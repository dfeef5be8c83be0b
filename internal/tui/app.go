package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/charliek/m3tail/internal/domain"
	"github.com/charliek/m3tail/internal/logs"
	"github.com/charliek/m3tail/internal/notify"
)

// Run starts the viewer over store and blocks until the user quits or ctx
// is cancelled. notices may be nil.
func Run(ctx context.Context, store *logs.Store, status StatusSource, notices *notify.Center) error {
	var notifier notify.Notifier
	if notices != nil {
		notifier = notices
	}
	model := NewModel(store, status, notifier)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	fwdCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Subscribe before starting the forwarders
	subID, changes := store.Subscribe()
	defer store.Unsubscribe(subID)
	go forward(fwdCtx, p, changes, func(c domain.ViewChange) tea.Msg { return ViewChangedMsg(c) })

	if notices != nil {
		noticeID, ch := notices.Subscribe()
		defer notices.Unsubscribe(noticeID)
		go forward(fwdCtx, p, ch, func(n notify.Notice) tea.Msg { return NoticeMsg(n) })
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// forward sends values from ch to the program until ctx is cancelled or
// the channel is closed
func forward[T any](ctx context.Context, p *tea.Program, ch <-chan T, wrap func(T) tea.Msg) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-ch:
			if !ok {
				return
			}
			p.Send(wrap(v))
		}
	}
}
