package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestMemDBBatchIsAtomicAndSnapshotsAreFrozen(t *testing.T) {
	db := NewMemDB()
	t.Cleanup(db.Close)

	if err := db.Put([]byte("a/1"), []byte("one")); err != nil {
		t.Fatalf("put: %v", err)
	}
	snap, err := db.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	defer snap.Release()

	batch := NewBatch()
	batch.Put([]byte("a/2"), []byte("two"))
	batch.Delete([]byte("a/1"))
	if batch.Len() != 2 {
		t.Fatalf("expected 2 staged ops, got %d", batch.Len())
	}
	if err := db.Write(batch); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := db.Get([]byte("a/1")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a/1 removed, got %v", err)
	}
	value, err := snap.Get([]byte("a/1"))
	if err != nil || string(value) != "one" {
		t.Fatalf("snapshot should still see a/1: %q %v", value, err)
	}
	if _, err := snap.Get([]byte("a/2")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("snapshot must not see later writes, got %v", err)
	}
}

func TestSnapshotIteratePrefix(t *testing.T) {
	db := NewMemDB()
	t.Cleanup(db.Close)
	for _, k := range []string{"x/b", "x/a", "y/a", "x/c"} {
		if err := db.Put([]byte(k), []byte(k)); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	snap, err := db.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	defer snap.Release()

	var keys []string
	if err := snap.Iterate([]byte("x/"), func(key, _ []byte) error {
		keys = append(keys, string(key))
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	want := []string{"x/a", "x/b", "x/c"}
	if len(keys) != len(want) {
		t.Fatalf("unexpected keys %v", keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("key %d: want %s got %s", i, want[i], keys[i])
		}
	}

	stop := errors.New("stop")
	if err := snap.Iterate([]byte("x/"), func([]byte, []byte) error { return stop }); !errors.Is(err, stop) {
		t.Fatalf("expected callback error to propagate, got %v", err)
	}
}

func TestLevelDBPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	db, err := NewLevelDB(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	db.Close()

	reopened, err := NewLevelDB(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	ok, err := reopened.Has([]byte("k"))
	if err != nil || !ok {
		t.Fatalf("expected key to survive reopen: %v %v", ok, err)
	}
}
