package state

import (
	"errors"
	"testing"

	"swapescrow/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	return NewStore(db)
}

func mustBegin(t *testing.T, s *Store) *Manager {
	t.Helper()
	m, err := s.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	return m
}

func TestManagerStagesUntilCommit(t *testing.T) {
	s := newTestStore(t)
	m := mustBegin(t, s)
	if err := m.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	value, ok, err := m.Get([]byte("k"))
	if err != nil || !ok || string(value) != "v" {
		t.Fatalf("staged read failed: %q %v %v", value, ok, err)
	}

	other := mustBegin(t, s)
	if _, ok, _ := other.Get([]byte("k")); ok {
		t.Fatalf("uncommitted write leaked to another transaction")
	}
	other.Release()

	if err := s.Commit(m); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := s.Database().Get([]byte("k")); err != nil {
		t.Fatalf("expected committed key: %v", err)
	}
	if err := m.Put([]byte("x"), []byte("y")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected closed manager, got %v", err)
	}
}

func TestReleaseDiscardsWrites(t *testing.T) {
	s := newTestStore(t)
	m := mustBegin(t, s)
	_ = m.Put([]byte("k"), []byte("v"))
	m.Release()
	m.Release()
	if _, err := s.Database().Get([]byte("k")); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("released write must not persist, got %v", err)
	}
	if s.Seq() != 0 {
		t.Fatalf("no commit expected, seq=%d", s.Seq())
	}
}

func TestConcurrentWritersOnSameKeyConflict(t *testing.T) {
	s := newTestStore(t)
	first := mustBegin(t, s)
	second := mustBegin(t, s)

	if _, _, err := first.Get([]byte("record")); err != nil {
		t.Fatalf("read: %v", err)
	}
	if _, _, err := second.Get([]byte("record")); err != nil {
		t.Fatalf("read: %v", err)
	}
	_ = first.Delete([]byte("record"))
	_ = second.Delete([]byte("record"))

	if err := s.Commit(first); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if err := s.Commit(second); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict for the second writer, got %v", err)
	}
}

func TestDisjointTransactionsCommit(t *testing.T) {
	s := newTestStore(t)
	first := mustBegin(t, s)
	second := mustBegin(t, s)
	_ = first.Put([]byte("a"), []byte("1"))
	_ = second.Put([]byte("b"), []byte("2"))
	if err := s.Commit(first); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if err := s.Commit(second); err != nil {
		t.Fatalf("disjoint commit should succeed: %v", err)
	}
	if s.Seq() != 2 {
		t.Fatalf("expected two commits, got %d", s.Seq())
	}
}

func TestStaleReadConflicts(t *testing.T) {
	s := newTestStore(t)
	reader := mustBegin(t, s)
	if _, _, err := reader.Get([]byte("balance")); err != nil {
		t.Fatalf("read: %v", err)
	}
	writer := mustBegin(t, s)
	_ = writer.Put([]byte("balance"), []byte{1})
	if err := s.Commit(writer); err != nil {
		t.Fatalf("writer commit: %v", err)
	}
	_ = reader.Put([]byte("derived"), []byte{2})
	if err := s.Commit(reader); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected stale read conflict, got %v", err)
	}
}

func TestIterateMergesStagedWrites(t *testing.T) {
	s := newTestStore(t)
	seed := mustBegin(t, s)
	_ = seed.Put([]byte("p/a"), []byte("a"))
	_ = seed.Put([]byte("p/b"), []byte("b"))
	_ = seed.Put([]byte("q/a"), []byte("q"))
	if err := s.Commit(seed); err != nil {
		t.Fatalf("commit: %v", err)
	}

	m := mustBegin(t, s)
	defer m.Release()
	_ = m.Delete([]byte("p/a"))
	_ = m.Put([]byte("p/c"), []byte("c"))

	var got []string
	if err := m.Iterate([]byte("p/"), func(key, value []byte) error {
		got = append(got, string(key)+"="+string(value))
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	want := []string{"p/b=b", "p/c=c"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("unexpected iteration %v", got)
	}
}

func TestOverlayFlushAndDiscard(t *testing.T) {
	s := newTestStore(t)
	m := mustBegin(t, s)
	defer m.Release()
	_ = m.Put([]byte("keep"), []byte("1"))

	o := NewOverlay(m)
	_ = o.Put([]byte("new"), []byte("2"))
	_ = o.Delete([]byte("keep"))
	if _, ok, _ := o.Get([]byte("keep")); ok {
		t.Fatalf("overlay delete not visible")
	}
	if _, ok, _ := m.Get([]byte("new")); ok {
		t.Fatalf("overlay write leaked before flush")
	}
	o.Discard()
	if _, ok, _ := o.Get([]byte("keep")); !ok {
		t.Fatalf("discard should restore parent view")
	}

	_ = o.Put([]byte("new"), []byte("2"))
	if err := o.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if value, ok, _ := m.Get([]byte("new")); !ok || string(value) != "2" {
		t.Fatalf("flush did not reach parent")
	}
	if o.Pending() != 0 {
		t.Fatalf("flush should clear the overlay")
	}
}

func TestRLPHelpers(t *testing.T) {
	s := newTestStore(t)
	m := mustBegin(t, s)
	defer m.Release()
	type entry struct {
		Name  string
		Count uint64
	}
	if err := PutRLP(m, []byte("e"), entry{Name: "x", Count: 3}); err != nil {
		t.Fatalf("put: %v", err)
	}
	var out entry
	ok, err := GetRLP(m, []byte("e"), &out)
	if err != nil || !ok || out.Count != 3 || out.Name != "x" {
		t.Fatalf("unexpected decode %+v %v %v", out, ok, err)
	}
	ok, err = GetRLP(m, []byte("missing"), &out)
	if err != nil || ok {
		t.Fatalf("missing key should report false: %v %v", ok, err)
	}
}
