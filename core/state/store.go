package state

import (
	"errors"
	"fmt"
	"sync"

	"swapescrow/storage"
)

var (
	// ErrConflict signals that another transaction committed a key this one
	// read or wrote after this one's snapshot. The caller should resubmit.
	ErrConflict = errors.New("state: transaction conflict")
	// ErrClosed is returned when a committed or released manager is reused.
	ErrClosed = errors.New("state: manager closed")
)

// Store hands out staged managers over a database and serialises their
// commits with optimistic conflict detection.
type Store struct {
	db storage.Database

	mu       sync.Mutex
	seq      uint64
	versions map[string]uint64
	active   map[uint64]int
}

// NewStore wraps db.
func NewStore(db storage.Database) *Store {
	return &Store{
		db:       db,
		versions: make(map[string]uint64),
		active:   make(map[uint64]int),
	}
}

// Database exposes the backing database.
func (s *Store) Database() storage.Database { return s.db }

// Seq returns the number of commits applied so far.
func (s *Store) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Begin opens a manager on the current committed state.
func (s *Store) Begin() (*Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.db.Snapshot()
	if err != nil {
		return nil, err
	}
	s.active[s.seq]++
	return newManager(s, snap, s.seq), nil
}

// Commit atomically applies the manager's writes. It fails with ErrConflict
// when any key the manager touched was committed after its snapshot. The
// manager is released in every case.
func (s *Store) Commit(m *Manager) error {
	if m == nil || m.store != s {
		return fmt.Errorf("state: manager does not belong to this store")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	defer s.releaseLocked(m)

	for _, k := range m.touched() {
		if v, ok := s.versions[k]; ok && v > m.seq {
			return fmt.Errorf("%w: key %x changed at commit %d", ErrConflict, k, v)
		}
	}
	if m.writes.len() == 0 {
		return nil
	}
	if err := s.db.Write(m.batch()); err != nil {
		return fmt.Errorf("state: write batch: %w", err)
	}
	s.seq++
	for _, k := range m.writes.order {
		s.versions[k] = s.seq
	}
	return nil
}

func (s *Store) release(m *Manager) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.closed {
		return
	}
	s.releaseLocked(m)
}

func (s *Store) releaseLocked(m *Manager) {
	m.closed = true
	m.snap.Release()
	m.writes = newWriteSet()
	m.reads = nil
	if s.active[m.seq] <= 1 {
		delete(s.active, m.seq)
	} else {
		s.active[m.seq]--
	}
	s.pruneLocked()
}

// pruneLocked drops versions that can no longer cause a conflict: nothing
// older than the oldest open snapshot is ever compared again.
func (s *Store) pruneLocked() {
	if len(s.active) == 0 {
		if len(s.versions) > 0 {
			s.versions = make(map[string]uint64)
		}
		return
	}
	oldest := s.seq
	for seq := range s.active {
		if seq < oldest {
			oldest = seq
		}
	}
	for k, v := range s.versions {
		if v <= oldest {
			delete(s.versions, k)
		}
	}
}
