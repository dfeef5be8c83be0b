package domain

import "time"

// WatchState represents the ingestion controller lifecycle state
type WatchState string

const (
	WatchStateIdle     WatchState = "idle"
	WatchStateWatching WatchState = "watching"
)

// String returns the string representation of WatchState
func (s WatchState) String() string {
	return string(s)
}

// ChangeKind is the kind of a file-system change notification
type ChangeKind string

const (
	ChangeAny    ChangeKind = "any"
	ChangeModify ChangeKind = "modify"
	ChangeCreate ChangeKind = "create"
	ChangeRemove ChangeKind = "remove"
	ChangeRename ChangeKind = "rename"
)

// TriggersRead returns true if a change of this kind should cause the
// implicated files to be re-read
func (k ChangeKind) TriggersRead() bool {
	switch k {
	case ChangeAny, ChangeModify, ChangeCreate:
		return true
	default:
		return false
	}
}

// WatchEvent is a (possibly debounced) batch of changes of one kind
type WatchEvent struct {
	Kind  ChangeKind
	Paths []string
}

// WatchOptions configures a watch registration
type WatchOptions struct {
	Recursive bool
	Debounce  time.Duration
}

// DirEntry is a single directory listing entry
type DirEntry struct {
	Name        string
	IsDirectory bool
	IsFile      bool
}
