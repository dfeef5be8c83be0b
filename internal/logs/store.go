package logs

import (
	"sort"
	"sync"

	"github.com/charliek/m3tail/internal/domain"
)

// StoreConfig holds configuration for the record store
type StoreConfig struct {
	SubscriptionBuffer int // Buffer size for view-change subscription channels
}

// DefaultStoreConfig returns the default configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		SubscriptionBuffer: 100,
	}
}

// Store owns every ingested record, deduplicates on insert and keeps the
// filtered view equal to FilterRecords(records, criteria) after every
// mutation. Each mutating call publishes exactly one ViewChange, from
// inside the write lock so subscribers see changes in version order.
type Store struct {
	mu       sync.RWMutex
	records  []domain.LogRecord
	keys     map[domain.DedupKey]struct{}
	criteria domain.FilterCriteria
	view     []domain.LogRecord
	version  uint64

	changes *Hub[domain.ViewChange]
}

// NewStore creates an empty store
func NewStore(config StoreConfig) *Store {
	if config.SubscriptionBuffer <= 0 {
		config.SubscriptionBuffer = DefaultStoreConfig().SubscriptionBuffer
	}
	return &Store{
		keys:    make(map[domain.DedupKey]struct{}),
		view:    []domain.LogRecord{},
		changes: NewHub[domain.ViewChange](config.SubscriptionBuffer),
	}
}

// Insert adds a record unless one with the same dedup key exists.
// Returns true if the record was accepted.
func (s *Store) Insert(record domain.LogRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := record.Key()
	if _, dup := s.keys[key]; dup {
		return false
	}

	record = record.Clone()
	s.keys[key] = struct{}{}
	s.records = append(s.records, record)

	// Appending a matching record to the view is the same as recomputing:
	// the filter is per-record and order preserving.
	matched := Matches(record, s.criteria)
	if matched {
		s.view = append(s.view, record)
	}

	s.publish(domain.ViewChange{
		Reason:  domain.ViewReasonInsert,
		Record:  &record,
		Matched: matched,
	})
	return true
}

// SetSearchQuery replaces the search query
func (s *Store) SetSearchQuery(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria.SearchQuery = query
	s.recompute()
}

// SetLevelFilter replaces the level constraint. Empty clears it.
func (s *Store) SetLevelFilter(level string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria.SelectedLevel = level
	s.recompute()
}

// SetTagsFilter replaces the selected tags. Empty clears the constraint.
func (s *Store) SetTagsFilter(tags []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria.SelectedTags = append([]string(nil), tags...)
	s.recompute()
}

// SetCriteria replaces all three constraints with a single recompute
func (s *Store) SetCriteria(c domain.FilterCriteria) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria = c.Clone()
	s.recompute()
}

// Criteria returns the active criteria
func (s *Store) Criteria() domain.FilterCriteria {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.criteria.Clone()
}

// View returns the filtered view in insertion order.
// Callers must not modify the returned records' tag slices.
func (s *Store) View() []domain.LogRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.LogRecord, len(s.view))
	copy(out, s.view)
	return out
}

// Snapshot is the view and criteria read under one lock, stamped with
// the version of the last change they reflect
type Snapshot struct {
	View     []domain.LogRecord
	Criteria domain.FilterCriteria
	Total    int
	Version  uint64
}

// Snapshot returns a consistent copy of the view state
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view := make([]domain.LogRecord, len(s.view))
	copy(view, s.view)
	return Snapshot{
		View:     view,
		Criteria: s.criteria.Clone(),
		Total:    len(s.records),
		Version:  s.version,
	}
}

// Records returns every stored record in insertion order.
// Callers must not modify the returned records' tag slices.
func (s *Store) Records() []domain.LogRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.LogRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Backlog returns every stored record in insertion order, read under
// one lock with the version of the last change they reflect. A
// subscriber taken before Backlog can skip changes at or below it.
func (s *Store) Backlog() ([]domain.LogRecord, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.LogRecord, len(s.records))
	copy(out, s.records)
	return out, s.version
}

// Query filters all records with ad-hoc criteria without touching the
// session criteria, returning at most the last limit matches and the
// match count before limiting
func (s *Store) Query(c domain.FilterCriteria, limit int) ([]domain.LogRecord, int) {
	filtered := FilterRecords(s.Records(), c)
	return LastN(filtered, limit), len(filtered)
}

// AvailableLevels returns the sorted set of non-empty levels present
func (s *Store) AvailableLevels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := make(map[string]struct{})
	for _, r := range s.records {
		if r.Level != "" {
			set[r.Level] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// AvailableTags returns the sorted set of tags present
func (s *Store) AvailableTags() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := make(map[string]struct{})
	for _, r := range s.records {
		for _, tag := range r.Tags {
			set[tag] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// Clear drops every record and the filtered view. Criteria are kept.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.keys = make(map[domain.DedupKey]struct{})
	s.view = []domain.LogRecord{}
	s.publish(domain.ViewChange{Reason: domain.ViewReasonClear})
}

// Subscribe registers for view-change notifications
func (s *Store) Subscribe() (string, <-chan domain.ViewChange) {
	return s.changes.Subscribe(nil)
}

// SubscribeFunc registers for view changes accepted by fn
func (s *Store) SubscribeFunc(fn func(domain.ViewChange) bool) (string, <-chan domain.ViewChange) {
	return s.changes.Subscribe(fn)
}

// Unsubscribe removes a subscription
func (s *Store) Unsubscribe(id string) {
	s.changes.Unsubscribe(id)
}

// Stats returns statistics about the store
func (s *Store) Stats() domain.StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.StoreStats{
		TotalRecords:   len(s.records),
		VisibleRecords: len(s.view),
		Subscribers:    s.changes.Count(),
		Version:        s.version,
	}
}

// Close closes all subscriptions
func (s *Store) Close() {
	s.changes.Close()
}

// recompute rebuilds the view from scratch; caller holds the write lock
func (s *Store) recompute() {
	s.view = FilterRecords(s.records, s.criteria)
	s.publish(domain.ViewChange{Reason: domain.ViewReasonCriteria})
}

// publish stamps and broadcasts a change; caller holds the write lock
func (s *Store) publish(change domain.ViewChange) {
	s.version++
	change.Version = s.version
	change.Total = len(s.records)
	change.Visible = len(s.view)
	s.changes.Broadcast(change)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
