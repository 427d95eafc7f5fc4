package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// KV is the minimal key/value surface the native programs operate on.
// Get reports whether the key exists.
type KV interface {
	Get(key []byte) ([]byte, bool, error)
	Put(key, value []byte) error
	Delete(key []byte) error
}

type pendingWrite struct {
	value   []byte
	deleted bool
}

// writeSet tracks staged writes in first-touch order so flushing is
// deterministic.
type writeSet struct {
	entries map[string]pendingWrite
	order   []string
}

func newWriteSet() writeSet {
	return writeSet{entries: make(map[string]pendingWrite)}
}

func (w *writeSet) lookup(key []byte) (pendingWrite, bool) {
	p, ok := w.entries[string(key)]
	return p, ok
}

func (w *writeSet) put(key, value []byte) {
	k := string(key)
	if _, seen := w.entries[k]; !seen {
		w.order = append(w.order, k)
	}
	w.entries[k] = pendingWrite{value: append([]byte(nil), value...)}
}

func (w *writeSet) remove(key []byte) {
	k := string(key)
	if _, seen := w.entries[k]; !seen {
		w.order = append(w.order, k)
	}
	w.entries[k] = pendingWrite{deleted: true}
}

func (w *writeSet) len() int { return len(w.order) }

// Overlay stages writes on top of a parent KV. Nothing reaches the parent
// until Flush, so a failed operation can simply drop the overlay.
type Overlay struct {
	parent KV
	writes writeSet
}

// NewOverlay returns an empty overlay over parent.
func NewOverlay(parent KV) *Overlay {
	return &Overlay{parent: parent, writes: newWriteSet()}
}

// Get reads through the staged writes to the parent.
func (o *Overlay) Get(key []byte) ([]byte, bool, error) {
	if p, ok := o.writes.lookup(key); ok {
		if p.deleted {
			return nil, false, nil
		}
		return append([]byte(nil), p.value...), true, nil
	}
	return o.parent.Get(key)
}

// Put stages a write.
func (o *Overlay) Put(key, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("state: empty key")
	}
	o.writes.put(key, value)
	return nil
}

// Delete stages a removal.
func (o *Overlay) Delete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("state: empty key")
	}
	o.writes.remove(key)
	return nil
}

// Pending reports the number of staged keys.
func (o *Overlay) Pending() int { return o.writes.len() }

// Flush applies the staged writes to the parent in first-touch order and
// clears the overlay.
func (o *Overlay) Flush() error {
	for _, k := range o.writes.order {
		p := o.writes.entries[k]
		var err error
		if p.deleted {
			err = o.parent.Delete([]byte(k))
		} else {
			err = o.parent.Put([]byte(k), p.value)
		}
		if err != nil {
			return fmt.Errorf("state: flush %x: %w", k, err)
		}
	}
	o.writes = newWriteSet()
	return nil
}

// Discard drops every staged write.
func (o *Overlay) Discard() { o.writes = newWriteSet() }

// PutRLP RLP-encodes value under key.
func PutRLP(kv KV, key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return kv.Put(key, encoded)
}

// GetRLP decodes the value stored under key into out. The boolean reports
// whether the key existed.
func GetRLP(kv KV, key []byte, out interface{}) (bool, error) {
	data, ok, err := kv.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}
