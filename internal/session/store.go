package session

import (
	"sync"
	"time"
)

// Store accumulates the single in-flight transfer. Mutations come from one
// owner (the relay hub); the lock only makes snapshots safe to read from
// other goroutines.
type Store struct {
	mu        sync.RWMutex
	state     State
	metadata  *Metadata
	order     []string
	points    map[string]PointRecord
	photos    map[string][]PhotoRecord
	startedAt time.Time
	updatedAt time.Time
	last      *Summary
	now       func() time.Time
}

func NewStore() *Store {
	s := &Store{now: time.Now}
	s.resetLocked()
	return s
}

func (s *Store) resetLocked() {
	s.state = Idle
	s.metadata = nil
	s.order = nil
	s.points = make(map[string]PointRecord)
	s.photos = make(map[string][]PhotoRecord)
	s.startedAt = time.Time{}
	s.updatedAt = time.Time{}
}

// touchLocked moves an idle session to Collecting.
func (s *Store) touchLocked() {
	now := s.now()
	if s.state == Idle {
		s.state = Collecting
		s.startedAt = now
	}
	s.updatedAt = now
}

// Begin records declared totals. It reports whether this call opened the
// session; a second metadata frame only replaces the totals.
func (s *Store) Begin(meta Metadata) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	started := s.state == Idle
	s.touchLocked()
	m := meta
	s.metadata = &m
	return started
}

// UpsertPoint stores p, replacing any earlier record with the same id.
// Insertion order and already attached photos are kept on replacement.
// It reports whether the id was new.
func (s *Store) UpsertPoint(p PointRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	_, exists := s.points[p.ID]
	if !exists {
		s.order = append(s.order, p.ID)
		s.photos[p.ID] = []PhotoRecord{}
	}
	s.points[p.ID] = p
	return !exists
}

// AppendPhoto attaches ph to its point. It returns false, storing nothing,
// when the point id was never accepted.
func (s *Store) AppendPhoto(ph PhotoRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, ok := s.photos[ph.PointID]
	if !ok {
		return false
	}
	s.touchLocked()
	s.photos[ph.PointID] = append(list, ph)
	return true
}

// Complete synthesizes the consolidated transfer and resets the store to
// Idle. Completing an idle store yields an empty transfer and leaves
// LastCompleted as it was.
func (s *Store) Complete() *Transfer {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &Transfer{
		Timestamp:   s.now(),
		TotalPoints: len(s.points),
		Points:      make([]ConsolidatedPoint, 0, len(s.order)),
	}
	if s.metadata != nil {
		t.EventUUID = s.metadata.EventUUID
	}
	for _, id := range s.order {
		photos := s.photos[id]
		t.TotalPhotos += len(photos)
		t.Points = append(t.Points, ConsolidatedPoint{
			Point:  s.points[id],
			Photos: append([]PhotoRecord(nil), photos...),
		})
	}

	if s.state == Collecting {
		sum := t.Summary()
		s.last = &sum
	}
	s.resetLocked()
	return t
}

// Flush discards the in-flight transfer without completing it and returns
// what was dropped.
func (s *Store) Flush() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshotLocked()
	s.resetLocked()
	return snap
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:  s.state,
		Points: len(s.points),
	}
	for _, list := range s.photos {
		snap.Photos += len(list)
	}
	if s.metadata != nil {
		m := *s.metadata
		snap.Declared = &m
		snap.EventUUID = m.EventUUID
	}
	if !s.startedAt.IsZero() {
		started, updated := s.startedAt, s.updatedAt
		snap.StartedAt = &started
		snap.UpdatedAt = &updated
	}
	return snap
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Point returns a stored point and its photos.
func (s *Store) Point(id string) (PointRecord, []PhotoRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.points[id]
	if !ok {
		return PointRecord{}, nil, false
	}
	return p, append([]PhotoRecord(nil), s.photos[id]...), true
}

// LastCompleted returns the summary of the most recent completed transfer.
func (s *Store) LastCompleted() (Summary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Summary{}, false
	}
	return *s.last, true
}
