package storage

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	lvlstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("storage: key not found")

// Database is a generic interface for a key-value store.
// This allows the ledger to use any database backend (in-memory or persistent).
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Delete(key []byte) error
	// Write applies every operation in the batch atomically.
	Write(batch *Batch) error
	// Snapshot returns a consistent read-only view of the committed data.
	Snapshot() (Snapshot, error)
	Close() // A way to gracefully shut down the database connection.
}

// Snapshot is a frozen view of the database. Callers must Release it.
type Snapshot interface {
	Get(key []byte) ([]byte, error)
	// Iterate walks every key starting with prefix in ascending order. Returning
	// an error from fn stops the walk and is passed through.
	Iterate(prefix []byte, fn func(key, value []byte) error) error
	Release()
}

// Batch collects writes that are applied together by Database.Write.
type Batch struct {
	inner leveldb.Batch
}

// NewBatch returns an empty batch.
func NewBatch() *Batch { return &Batch{} }

// Put stages a key/value write.
func (b *Batch) Put(key, value []byte) { b.inner.Put(key, value) }

// Delete stages a key removal.
func (b *Batch) Delete(key []byte) { b.inner.Delete(key) }

// Len reports the number of staged operations.
func (b *Batch) Len() int { return b.inner.Len() }

// --- Persistent DB (for mainnet) ---

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// Put inserts or updates a key-value pair.
func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.db.Put(key, value, nil)
}

// Get retrieves a value for a given key.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := ldb.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

// Has reports whether the key exists.
func (ldb *LevelDB) Has(key []byte) (bool, error) {
	return ldb.db.Has(key, nil)
}

// Delete removes the key. Deleting a missing key is not an error.
func (ldb *LevelDB) Delete(key []byte) error {
	return ldb.db.Delete(key, nil)
}

// Write commits the batch atomically.
func (ldb *LevelDB) Write(batch *Batch) error {
	if batch == nil || batch.Len() == 0 {
		return nil
	}
	return ldb.db.Write(&batch.inner, nil)
}

// Snapshot captures the current committed state.
func (ldb *LevelDB) Snapshot() (Snapshot, error) {
	snap, err := ldb.db.GetSnapshot()
	if err != nil {
		return nil, fmt.Errorf("storage: snapshot: %w", err)
	}
	return &levelSnapshot{snap: snap}, nil
}

// Close closes the database connection.
func (ldb *LevelDB) Close() {
	ldb.db.Close()
}

type levelSnapshot struct {
	snap *leveldb.Snapshot
}

func (s *levelSnapshot) Get(key []byte) ([]byte, error) {
	value, err := s.snap.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

func (s *levelSnapshot) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	iter := s.snap.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		// The iterator reuses its buffers between steps.
		key := append([]byte(nil), iter.Key()...)
		value := append([]byte(nil), iter.Value()...)
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (s *levelSnapshot) Release() { s.snap.Release() }

// --- In-Memory DB (for testing) ---

// MemDB is a LevelDB instance backed by memory storage. It shares the batch
// and snapshot semantics of the persistent store.
type MemDB struct {
	*LevelDB
}

// NewMemDB opens an empty in-memory database.
func NewMemDB() *MemDB {
	db, err := leveldb.Open(lvlstorage.NewMemStorage(), nil)
	if err != nil {
		// Opening memory storage only fails on programmer error.
		panic(fmt.Sprintf("storage: open memory db: %v", err))
	}
	return &MemDB{LevelDB: &LevelDB{db: db}}
}
