// Package replica keeps a client-side copy of server-owned records.
//
// A Store is keyed by record id and lists newest first. Writers are the
// change-feed subscriber, full reloads, and optimistic local writes; readers
// are views that re-derive projections whenever the store changes.
package replica

import (
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/xavierca1/leadsync/internal/entity"
)

// forever marks an id whose removal version is unknown.
var forever = time.Unix(1<<62, 0)

type Store[T entity.Record] struct {
	mu       sync.RWMutex
	items    map[string]T
	removed  map[string]time.Time
	watchers map[int]func()
	nextID   int

	// While a reload runs, every id written is stamped with seq so Merge
	// can tell writes the snapshot may not include.
	reloads int
	seq     uint64
	touched map[string]uint64
}

func New[T entity.Record]() *Store[T] {
	return &Store[T]{
		items:    make(map[string]T),
		removed:  make(map[string]time.Time),
		watchers: make(map[int]func()),
		touched:  make(map[string]uint64),
	}
}

// touch must be called with mu held.
func (s *Store[T]) touch(id string) {
	if s.reloads > 0 {
		s.touched[id] = s.seq
	}
}

// buried reports whether rec predates the removal of its id. Late
// redeliveries must not resurrect a removed record.
func (s *Store[T]) buried(rec T) bool {
	at, ok := s.removed[rec.RecordID()]
	return ok && !rec.Version().After(at)
}

func (s *Store[T]) bury(id string) {
	if cur, ok := s.items[id]; ok {
		s.removed[id] = cur.Version()
		delete(s.items, id)
		return
	}
	s.removed[id] = forever
}

// Upsert stores rec unless it is older than, or identical to, the current
// version for its id. It reports whether the replica changed.
func (s *Store[T]) Upsert(rec T) bool {
	s.mu.Lock()
	if s.buried(rec) {
		s.mu.Unlock()
		return false
	}
	cur, ok := s.items[rec.RecordID()]
	if ok {
		if rec.Version().Before(cur.Version()) {
			s.mu.Unlock()
			return false
		}
		if rec.Version().Equal(cur.Version()) && reflect.DeepEqual(cur, rec) {
			s.mu.Unlock()
			return false
		}
	}
	s.items[rec.RecordID()] = rec
	s.touch(rec.RecordID())
	s.mu.Unlock()

	s.notify()
	return true
}

// Insert adds rec only when its id is absent. A second delivery of the same
// insert, or the echo of an optimistic local insert, is a no-op.
func (s *Store[T]) Insert(rec T) bool {
	s.mu.Lock()
	if _, ok := s.items[rec.RecordID()]; ok || s.buried(rec) {
		s.mu.Unlock()
		return false
	}
	s.items[rec.RecordID()] = rec
	s.touch(rec.RecordID())
	s.mu.Unlock()

	s.notify()
	return true
}

// Remove drops id. Removing an absent id still remembers it so that a late
// insert for the same id is ignored.
func (s *Store[T]) Remove(id string) bool {
	s.mu.Lock()
	_, ok := s.items[id]
	s.bury(id)
	s.touch(id)
	s.mu.Unlock()

	if !ok {
		return false
	}

	s.notify()
	return true
}

// Evict drops rec's id because rec no longer belongs in this replica, for
// instance after an update moved it out of a view's scope. Only versions up to
// rec's are suppressed afterwards, so a later change can bring it back.
func (s *Store[T]) Evict(rec T) bool {
	s.mu.Lock()
	_, ok := s.items[rec.RecordID()]
	delete(s.items, rec.RecordID())
	if at, seen := s.removed[rec.RecordID()]; !seen || rec.Version().After(at) {
		s.removed[rec.RecordID()] = rec.Version()
	}
	s.touch(rec.RecordID())
	s.mu.Unlock()

	if !ok {
		return false
	}

	s.notify()
	return true
}

// RemoveWhere drops every record matching pred and returns how many went.
func (s *Store[T]) RemoveWhere(pred func(T) bool) int {
	s.mu.Lock()
	n := 0
	for id, rec := range s.items {
		if pred(rec) {
			s.bury(id)
			s.touch(id)
			n++
		}
	}
	s.mu.Unlock()

	if n > 0 {
		s.notify()
	}
	return n
}

func snapshot[T entity.Record](recs []T) map[string]T {
	items := make(map[string]T, len(recs))
	for _, rec := range recs {
		if cur, ok := items[rec.RecordID()]; ok && rec.Version().Before(cur.Version()) {
			continue
		}
		items[rec.RecordID()] = rec
	}
	return items
}

// Replace swaps the whole content for recs and forgets every removal. Use
// it to clear the store; a reload that races the feed goes through
// BeginReload and Merge.
func (s *Store[T]) Replace(recs []T) {
	items := snapshot(recs)

	s.mu.Lock()
	s.items = items
	s.removed = make(map[string]time.Time)
	s.mu.Unlock()

	s.notify()
}

// Reload marks the start of a full reload. Writes applied after it are
// kept by Merge when the snapshot does not already supersede them.
type Reload struct {
	seq uint64
}

// BeginReload must be called before the snapshot is queried. Every
// BeginReload is paired with Merge or CancelReload.
func (s *Store[T]) BeginReload() Reload {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.reloads++
	return Reload{seq: s.seq}
}

func (s *Store[T]) CancelReload(Reload) {
	s.mu.Lock()
	s.endReloadLocked()
	s.mu.Unlock()
}

func (s *Store[T]) endReloadLocked() {
	s.reloads--
	if s.reloads == 0 {
		s.touched = make(map[string]uint64)
	}
}

// Merge installs recs, a snapshot queried after r began, as the new
// content. Records and removals written since r stay unless the snapshot
// holds a newer version of the same id. Removal memory for every other id
// is reset.
func (s *Store[T]) Merge(r Reload, recs []T) {
	items := snapshot(recs)
	removed := make(map[string]time.Time)

	s.mu.Lock()
	for id, at := range s.touched {
		if at < r.seq {
			continue
		}
		snap, inSnap := items[id]
		if cur, ok := s.items[id]; ok {
			if !inSnap || !cur.Version().Before(snap.Version()) {
				items[id] = cur
			}
			continue
		}
		gone, ok := s.removed[id]
		if !ok {
			continue
		}
		if inSnap && snap.Version().After(gone) {
			continue
		}
		delete(items, id)
		removed[id] = gone
	}
	s.items = items
	s.removed = removed
	s.endReloadLocked()
	s.mu.Unlock()

	s.notify()
}

func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.items[id]
	return rec, ok
}

func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// List returns a snapshot ordered by creation time, newest first. Ties are
// broken by id so the order is stable across calls.
func (s *Store[T]) List() []T {
	s.mu.RLock()
	out := make([]T, 0, len(s.items))
	for _, rec := range s.items {
		out = append(out, rec)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ci, cj := out[i].Created(), out[j].Created()
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return out[i].RecordID() < out[j].RecordID()
	})
	return out
}

// Watch registers fn to run after every change. The returned func
// unregisters it. fn runs on the writer's goroutine and must not block.
func (s *Store[T]) Watch(fn func()) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store[T]) notify() {
	s.mu.RLock()
	fns := make([]func(), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}
