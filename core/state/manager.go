package state

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"swapescrow/storage"
)

// Manager is the staged state of one ledger transaction. Reads come from the
// staged writes first and then from a snapshot taken when the transaction
// began; writes stay in memory until Store.Commit applies them as one batch.
//
// Manager is not safe for concurrent use.
type Manager struct {
	store  *Store
	snap   storage.Snapshot
	seq    uint64
	writes writeSet
	reads  map[string]struct{}
	closed bool
}

func newManager(store *Store, snap storage.Snapshot, seq uint64) *Manager {
	return &Manager{
		store:  store,
		snap:   snap,
		seq:    seq,
		writes: newWriteSet(),
		reads:  make(map[string]struct{}),
	}
}

// Seq returns the commit sequence the snapshot reflects.
func (m *Manager) Seq() uint64 { return m.seq }

// Get returns the value for key and whether it exists. The key is recorded in
// the read set for conflict detection.
func (m *Manager) Get(key []byte) ([]byte, bool, error) {
	if m.closed {
		return nil, false, ErrClosed
	}
	if p, ok := m.writes.lookup(key); ok {
		if p.deleted {
			return nil, false, nil
		}
		return append([]byte(nil), p.value...), true, nil
	}
	m.reads[string(key)] = struct{}{}
	value, err := m.snap.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Put stages a write.
func (m *Manager) Put(key, value []byte) error {
	if m.closed {
		return ErrClosed
	}
	if len(key) == 0 {
		return fmt.Errorf("state: empty key")
	}
	m.writes.put(key, value)
	return nil
}

// Delete stages a removal.
func (m *Manager) Delete(key []byte) error {
	if m.closed {
		return ErrClosed
	}
	if len(key) == 0 {
		return fmt.Errorf("state: empty key")
	}
	m.writes.remove(key)
	return nil
}

// Iterate walks every live key under prefix in ascending order, merging the
// staged writes over the snapshot. Iteration does not feed conflict
// detection; it serves read-only queries.
func (m *Manager) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	if m.closed {
		return ErrClosed
	}
	merged := make(map[string][]byte)
	if err := m.snap.Iterate(prefix, func(key, value []byte) error {
		merged[string(key)] = value
		return nil
	}); err != nil {
		return err
	}
	p := string(prefix)
	for _, k := range m.writes.order {
		if !strings.HasPrefix(k, p) {
			continue
		}
		w := m.writes.entries[k]
		if w.deleted {
			delete(merged, k)
			continue
		}
		merged[k] = w.value
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn([]byte(k), merged[k]); err != nil {
			return err
		}
	}
	return nil
}

// Dirty reports the number of staged keys.
func (m *Manager) Dirty() int { return m.writes.len() }

// Release discards the staged writes and frees the snapshot. It is safe to
// call after Commit.
func (m *Manager) Release() {
	if m.closed {
		return
	}
	m.store.release(m)
}

func (m *Manager) touched() []string {
	keys := make([]string, 0, len(m.reads)+m.writes.len())
	for k := range m.reads {
		keys = append(keys, k)
	}
	keys = append(keys, m.writes.order...)
	return keys
}

func (m *Manager) batch() *storage.Batch {
	batch := storage.NewBatch()
	for _, k := range m.writes.order {
		w := m.writes.entries[k]
		if w.deleted {
			batch.Delete([]byte(k))
		} else {
			batch.Put([]byte(k), w.value)
		}
	}
	return batch
}
