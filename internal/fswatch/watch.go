package fswatch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"

	"github.com/charliek/m3tail/internal/domain"
)

// CancelFunc stops a watch registration. It blocks until the event loop
// has exited and is safe to call more than once.
type CancelFunc func()

// kindOrder is the order in which a debounced batch is delivered
var kindOrder = []domain.ChangeKind{
	domain.ChangeCreate,
	domain.ChangeModify,
	domain.ChangeRemove,
	domain.ChangeRename,
}

// Watch registers for changes under path. With opts.Recursive every
// directory below path is watched, including directories created later.
// Changes are grouped by kind and delivered opts.Debounce after the first
// change of a batch, so a file written continuously still reports once
// per interval; a zero debounce delivers each change as it arrives.
// handler runs on the watch goroutine.
//
// Watch always observes the operating system, whatever afero backend the
// FS reads from.
func (f *FS) Watch(path string, opts domain.WatchOptions, handler func(domain.WatchEvent)) (CancelFunc, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrWatchRegistration, err)
	}

	l := &loop{
		fs:      f,
		w:       w,
		opts:    opts,
		handler: handler,
		pending: make(map[domain.ChangeKind]map[string]struct{}),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	if err := l.add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrWatchRegistration, path, err)
	}

	go l.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(l.stop)
			<-l.done
		})
	}, nil
}

type loop struct {
	fs      *FS
	w       *fsnotify.Watcher
	opts    domain.WatchOptions
	handler func(domain.WatchEvent)
	pending map[domain.ChangeKind]map[string]struct{}
	stop    chan struct{}
	done    chan struct{}
}

// add registers root, and every directory below it when recursive
func (l *loop) add(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() || !l.opts.Recursive {
		return l.w.Add(root)
	}

	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return l.w.Add(p)
		}
		return nil
	})
}

func (l *loop) run() {
	defer close(l.done)
	defer l.w.Close()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()
	armed := false

	for {
		select {
		case <-l.stop:
			return

		case ev, ok := <-l.w.Events:
			if !ok {
				return
			}
			kind, relevant := kindOf(ev.Op)
			if !relevant {
				continue
			}
			l.queue(kind, ev.Name)
			if kind == domain.ChangeCreate && l.opts.Recursive {
				l.adopt(ev.Name)
			}
			if l.opts.Debounce <= 0 {
				l.flush()
			} else if !armed {
				timer.Reset(l.opts.Debounce)
				armed = true
			}

		case <-timer.C:
			armed = false
			l.flush()

		case err, ok := <-l.w.Errors:
			if !ok {
				return
			}
			l.fs.logger.Warn("file watch error", "err", err)
		}
	}
}

// adopt starts watching a newly created directory. Files that appeared
// inside it before the watch was in place are queued as creates.
func (l *loop) adopt(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}

	if err := l.add(path); err != nil {
		l.fs.logger.Warn("cannot watch new directory", "path", path, "err", err)
		return
	}

	_ = afero.Walk(afero.NewOsFs(), path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.Mode().IsRegular() {
			l.queue(domain.ChangeCreate, p)
		}
		return nil
	})
}

func (l *loop) queue(kind domain.ChangeKind, path string) {
	set, ok := l.pending[kind]
	if !ok {
		set = make(map[string]struct{})
		l.pending[kind] = set
	}
	set[path] = struct{}{}
}

func (l *loop) flush() {
	for _, kind := range kindOrder {
		set := l.pending[kind]
		if len(set) == 0 {
			continue
		}
		paths := make([]string, 0, len(set))
		for p := range set {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		l.handler(domain.WatchEvent{Kind: kind, Paths: paths})
	}
	clear(l.pending)
}

// kindOf maps an fsnotify op to a change kind. Chmod-only events are
// not relevant.
func kindOf(op fsnotify.Op) (domain.ChangeKind, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return domain.ChangeCreate, true
	case op.Has(fsnotify.Write):
		return domain.ChangeModify, true
	case op.Has(fsnotify.Remove):
		return domain.ChangeRemove, true
	case op.Has(fsnotify.Rename):
		return domain.ChangeRename, true
	default:
		return "", false
	}
}
