package prefab

import (
	"cmp"
	"iter"
	"slices"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

type entry struct {
	rec   Record
	order uint64
}

// Store maps instance ids to their records. It is the single source of
// truth for transforms and flags; live scene nodes only cache them.
// Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records map[string]*entry
	seq     uint64
}

func NewStore() *Store {
	return &Store{records: make(map[string]*entry)}
}

// Upsert inserts rec or replaces the record with the same id. A replaced
// record keeps its position in iteration order.
func (s *Store) Upsert(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.records[rec.ID]; ok {
		e.rec = rec
		return
	}
	s.seq++
	s.records[rec.ID] = &entry{rec: rec, order: s.seq}
}

// Get returns a copy of the record for id, including tombstoned records.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return e.rec, true
}

// MarkDeleted tombstones the record. Unknown ids are ignored; the result
// reports whether a record was found.
func (s *Store) MarkDeleted(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.records[id]
	if !ok {
		return false
	}
	e.rec.Deleted = true
	return true
}

// SetRenderDistance overwrites the stored render distance without clamping.
func (s *Store) SetRenderDistance(id string, distance float32) error {
	return s.mutate(id, func(r *Record) { r.RenderDistance = distance })
}

func (s *Store) SetHidden(id string, hidden bool) error {
	return s.mutate(id, func(r *Record) { r.Hidden = hidden })
}

// UpdateTransform replaces position, rotation and scale together; readers
// never observe a partial update.
func (s *Store) UpdateTransform(id string, position, rotation, scale mgl32.Vec3) error {
	return s.mutate(id, func(r *Record) {
		r.Position = position
		r.Rotation = rotation
		r.Scale = scale
	})
}

func (s *Store) mutate(id string, fn func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	fn(&e.rec)
	return nil
}

// Entries yields the non-deleted records in insertion order. Each range over
// the sequence works on a fresh snapshot taken when iteration starts, so
// mutations during iteration are not observed.
func (s *Store) Entries() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for _, rec := range s.snapshot() {
			if !yield(rec) {
				return
			}
		}
	}
}

func (s *Store) snapshot() []Record {
	s.mu.RLock()
	entries := make([]entry, 0, len(s.records))
	for _, e := range s.records {
		if !e.rec.Deleted {
			entries = append(entries, *e)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(entries, func(a, b entry) int { return cmp.Compare(a.order, b.order) })
	out := make([]Record, len(entries))
	for i, e := range entries {
		out[i] = e.rec
	}
	return out
}

// Len counts non-deleted records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.records {
		if !e.rec.Deleted {
			n++
		}
	}
	return n
}

// Reset drops every record, tombstones included.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*entry)
}

// Compact removes tombstoned records and returns how many were dropped.
func (s *Store) Compact() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.records {
		if e.rec.Deleted {
			delete(s.records, id)
			n++
		}
	}
	return n
}
