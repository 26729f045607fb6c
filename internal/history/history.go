// Package history implements the in-memory clipboard history shared by the
// monitor and the control listener.
//
// The Store owns an ordered, most-recent-first list of entries with two
// invariants: no two entries are equal, and the length never exceeds the
// limit (the oldest entry is evicted). Every operation runs under one mutex
// and the Store never performs I/O, so callers take a Snapshot, release the
// lock, and then write files or sockets.
package history

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"go.klb.dev/clippo/internal/entry"
)

// DefaultLimit is the maximum history length when none is configured.
const DefaultLimit = 100

// ErrPoisoned is returned by every operation after an operation panicked
// while holding the lock. The list may be half-updated, so the Store refuses
// further use instead of serving it.
var ErrPoisoned = errors.New("history store poisoned by an earlier panic")

// Snapshot is a consistent copy of the history. Version increases with every
// mutation and lets writers discard stale snapshots.
type Snapshot struct {
	Version uint64
	Entries []entry.Entry
}

// Store is the shared history. Entries handed to the Store must not be
// modified afterwards; snapshots share their image buffers.
type Store struct {
	mu       sync.Mutex
	entries  []entry.Entry
	digests  []entry.Digest // parallel to entries
	limit    int
	version  uint64
	poisoned any

	subs    map[int]chan struct{}
	nextSub int
}

// New returns a Store holding initial, deduplicated (first occurrence wins)
// and truncated to limit. limit <= 0 means DefaultLimit.
func New(limit int, initial []entry.Entry) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	s := &Store{
		limit: limit,
		subs:  make(map[int]chan struct{}),
	}
	for _, e := range initial {
		if len(s.entries) == limit {
			break
		}
		d := e.Digest()
		if s.indexLocked(e, d) >= 0 {
			continue
		}
		s.entries = append(s.entries, e)
		s.digests = append(s.digests, d)
	}
	return s
}

// Limit returns the configured maximum length.
func (s *Store) Limit() int { return s.limit }

// Contains reports whether an entry equal to e is in the history.
func (s *Store) Contains(e entry.Entry) (bool, error) {
	d := e.Digest()
	var found bool
	err := s.with(func() {
		found = s.indexLocked(e, d) >= 0
	})
	return found, err
}

// InsertFront prepends e unless an equal entry is already present anywhere
// in the history. When the list grows past the limit the oldest entry is
// dropped. inserted reports whether the history changed.
func (s *Store) InsertFront(e entry.Entry) (inserted bool, err error) {
	_, inserted, err = s.insert(e, false)
	return inserted, err
}

// Record is InsertFront that also returns the history as it stood right
// after the insert, taken under the same lock. When inserted is false the
// snapshot is the current history.
func (s *Store) Record(e entry.Entry) (snap Snapshot, inserted bool, err error) {
	return s.insert(e, true)
}

func (s *Store) insert(e entry.Entry, withSnap bool) (snap Snapshot, inserted bool, err error) {
	if e.IsZero() {
		return Snapshot{Entries: []entry.Entry{}}, false, errors.New("insert: zero entry")
	}
	d := e.Digest()
	err = s.with(func() {
		if s.indexLocked(e, d) < 0 {
			s.entries = slices.Insert(s.entries, 0, e)
			s.digests = slices.Insert(s.digests, 0, d)
			if len(s.entries) > s.limit {
				s.entries[len(s.entries)-1] = entry.Entry{}
				s.entries = s.entries[:s.limit]
				s.digests = s.digests[:s.limit]
			}
			s.version++
			s.notifyLocked()
			inserted = true
		}
		if withSnap {
			snap = Snapshot{Version: s.version, Entries: slices.Clone(s.entries)}
		}
	})
	if snap.Entries == nil {
		snap.Entries = []entry.Entry{}
	}
	return snap, inserted, err
}

// Clear empties the history and returns the new version.
func (s *Store) Clear() (version uint64, err error) {
	err = s.with(func() {
		clear(s.entries)
		s.entries = s.entries[:0]
		s.digests = s.digests[:0]
		s.version++
		s.notifyLocked()
		version = s.version
	})
	return version, err
}

// Snapshot returns a copy of the current history.
func (s *Store) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := s.with(func() {
		snap = Snapshot{
			Version: s.version,
			Entries: slices.Clone(s.entries),
		}
	})
	if snap.Entries == nil {
		snap.Entries = []entry.Entry{}
	}
	return snap, err
}

// At returns the entry at index i of the current history.
func (s *Store) At(i int) (entry.Entry, error) {
	var (
		e  entry.Entry
		ok bool
	)
	err := s.with(func() {
		if i >= 0 && i < len(s.entries) {
			e, ok = s.entries[i], true
		}
	})
	if err != nil {
		return entry.Entry{}, err
	}
	if !ok {
		return entry.Entry{}, fmt.Errorf("no history entry at index %d", i)
	}
	return e, nil
}

// Len returns the current history length, or 0 if the store is poisoned.
func (s *Store) Len() int {
	var n int
	_ = s.with(func() { n = len(s.entries) })
	return n
}

// Subscribe returns a channel that receives a signal after every mutation.
// Signals coalesce: a slow reader sees at least one signal after the latest
// change, not one per change. Call cancel to unsubscribe.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// with runs fn under the lock, converting a panic in fn into ErrPoisoned for
// this and every later call.
func (s *Store) with(fn func()) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.poisoned != nil {
		return fmt.Errorf("%w: %v", ErrPoisoned, s.poisoned)
	}
	defer func() {
		if r := recover(); r != nil {
			s.poisoned = r
			slog.Error("history operation panicked, store is now unusable", "panic", r)
			err = fmt.Errorf("%w: %v", ErrPoisoned, r)
		}
	}()
	fn()
	return nil
}

func (s *Store) indexLocked(e entry.Entry, d entry.Digest) int {
	for i := range s.entries {
		if s.digests[i] == d && s.entries[i].Equal(e) {
			return i
		}
	}
	return -1
}

// notifyLocked signals every subscriber without blocking.
// Must be called with s.mu held.
func (s *Store) notifyLocked() {
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
