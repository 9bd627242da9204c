// Package store holds the in-memory state of one operator session: the draft
// collection, the global loading and error slots, and per-draft operation flags.
//
// All derived views are computed on read from the current collection and return
// copies, so callers can never mutate stored records.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/reviewdesk/draft-review-console/internal/domain"
)

// ChangeKind describes what a mutation touched.
type ChangeKind string

const (
	ChangeDraftsReplaced ChangeKind = "drafts_replaced"
	ChangeDraftUpdated   ChangeKind = "draft_updated"
	ChangeLoading        ChangeKind = "loading"
	ChangeError          ChangeKind = "error"
	ChangeInFlight       ChangeKind = "in_flight"
)

// Change is delivered to subscribers after every mutation.
type Change struct {
	Kind     ChangeKind
	DraftID  string
	Revision uint64
}

// Listener receives change notifications. It runs outside the store lock and may read the store.
type Listener func(Change)

// Snapshot is a consistent copy of the whole store state.
type Snapshot struct {
	Drafts    []domain.DraftRecord
	Pending   []domain.DraftRecord
	History   []domain.DraftRecord
	Loading   bool
	LastError string
	InFlight  map[string][]domain.OperationKind
	Revision  uint64
}

type flagKey struct {
	id string
	op domain.OperationKind
}

// DraftStore is the authoritative in-memory draft collection of a session.
type DraftStore struct {
	mu        sync.RWMutex
	drafts    []domain.DraftRecord
	loading   bool
	lastError string
	inFlight  map[flagKey]bool
	revision  uint64

	listenersMu sync.RWMutex
	listeners   map[uint64]Listener
	nextID      uint64
}

// New creates an empty store.
func New() *DraftStore {
	return &DraftStore{
		inFlight:  make(map[flagKey]bool),
		listeners: make(map[uint64]Listener),
	}
}

// ReplaceAll swaps the whole collection in one step. Records are copied and
// duplicate ids keep their first occurrence.
func (s *DraftStore) ReplaceAll(records []domain.DraftRecord) {
	next := make([]domain.DraftRecord, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		next = append(next, r.Clone())
	}

	s.mu.Lock()
	s.drafts = next
	rev := s.bump()
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeDraftsReplaced, Revision: rev})
}

// UpsertField patches the draft with the given id. It reports false and changes
// nothing when the id is not present.
func (s *DraftStore) UpsertField(id string, patch domain.DraftPatch) bool {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.drafts[idx] = patch.Apply(s.drafts[idx])
	rev := s.bump()
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeDraftUpdated, DraftID: id, Revision: rev})
	return true
}

// SetLoading sets the global transport flag.
func (s *DraftStore) SetLoading(loading bool) {
	s.mu.Lock()
	if s.loading == loading {
		s.mu.Unlock()
		return
	}
	s.loading = loading
	rev := s.bump()
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeLoading, Revision: rev})
}

// SetError stores a human-readable error; an empty message clears the slot.
func (s *DraftStore) SetError(message string) {
	s.mu.Lock()
	if s.lastError == message {
		s.mu.Unlock()
		return
	}
	s.lastError = message
	rev := s.bump()
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeError, Revision: rev})
}

// ClearError empties the error slot.
func (s *DraftStore) ClearError() {
	s.SetError("")
}

// SetInFlight raises or clears the flag for one (draft, operation) pair.
func (s *DraftStore) SetInFlight(id string, op domain.OperationKind, active bool) {
	key := flagKey{id: id, op: op}
	s.mu.Lock()
	if s.inFlight[key] == active {
		s.mu.Unlock()
		return
	}
	if active {
		s.inFlight[key] = true
	} else {
		delete(s.inFlight, key)
	}
	rev := s.bump()
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeInFlight, DraftID: id, Revision: rev})
}

// InFlight reports whether the operation is running for the draft.
func (s *DraftStore) InFlight(id string, op domain.OperationKind) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight[flagKey{id: id, op: op}]
}

// AnyInFlight reports whether any operation is running for the draft.
func (s *DraftStore) AnyInFlight(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for key := range s.inFlight {
		if key.id == id {
			return true
		}
	}
	return false
}

// Get returns a copy of the draft with the given id.
func (s *DraftStore) Get(id string) (domain.DraftRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return domain.DraftRecord{}, false
	}
	return s.drafts[idx].Clone(), true
}

// Drafts returns the collection in store order.
func (s *DraftStore) Drafts() []domain.DraftRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.drafts)
}

// Pending returns drafts awaiting a decision, in store order.
func (s *DraftStore) Pending() []domain.DraftRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pendingOf(s.drafts)
}

// History returns processed drafts, newest first.
func (s *DraftStore) History() []domain.DraftRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return historyOf(s.drafts)
}

// Loading reports the global loading flag.
func (s *DraftStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// LastError returns the error slot; empty means no error.
func (s *DraftStore) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// Revision increases on every mutation; views can poll it to detect change.
func (s *DraftStore) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Snapshot copies the full state under one read lock.
func (s *DraftStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flags := make(map[string][]domain.OperationKind)
	for key := range s.inFlight {
		flags[key.id] = append(flags[key.id], key.op)
	}
	for id := range flags {
		ops := flags[id]
		sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	}

	return Snapshot{
		Drafts:    cloneAll(s.drafts),
		Pending:   pendingOf(s.drafts),
		History:   historyOf(s.drafts),
		Loading:   s.loading,
		LastError: s.lastError,
		InFlight:  flags,
		Revision:  s.revision,
	}
}

// Subscribe registers a listener and returns a function that removes it.
func (s *DraftStore) Subscribe(fn Listener) func() {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *DraftStore) notify(change Change) {
	s.listenersMu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(change)
	}
}

// bump must be called with mu held.
func (s *DraftStore) bump() uint64 {
	s.revision++
	return s.revision
}

func (s *DraftStore) indexOf(id string) int {
	for i := range s.drafts {
		if s.drafts[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneAll(in []domain.DraftRecord) []domain.DraftRecord {
	out := make([]domain.DraftRecord, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

func pendingOf(drafts []domain.DraftRecord) []domain.DraftRecord {
	out := []domain.DraftRecord{}
	for _, d := range drafts {
		if d.IsPending() {
			out = append(out, d.Clone())
		}
	}
	return out
}

func historyOf(drafts []domain.DraftRecord) []domain.DraftRecord {
	out := []domain.DraftRecord{}
	for _, d := range drafts {
		if !d.IsPending() {
			out = append(out, d.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return processedAt(out[i]).After(processedAt(out[j]))
	})
	return out
}

// processedAt treats a missing timestamp as the oldest possible instant.
func processedAt(d domain.DraftRecord) time.Time {
	if d.ProcessedAt == nil {
		return time.Time{}
	}
	return *d.ProcessedAt
}
