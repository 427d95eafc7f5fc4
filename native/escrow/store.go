package escrow

import (
	"fmt"

	"swapescrow/core/state"
	"swapescrow/core/types"
)

var recordPrefix = []byte("escrow/record/")

func recordKey(addr types.Address) []byte {
	return append(append([]byte(nil), recordPrefix...), addr[:]...)
}

// Store is the keyed record store. Records are kept in their encoded layout.
type Store struct {
	kv state.KV
}

// NewStore binds a record store to kv.
func NewStore(kv state.KV) *Store { return &Store{kv: kv} }

// Create writes rec at addr. It fails with ErrAlreadyExists when the address
// is occupied.
func (s *Store) Create(addr types.Address, rec *Escrow) error {
	if s == nil || s.kv == nil {
		return errNilState
	}
	if _, ok, err := s.kv.Get(recordKey(addr)); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, addr)
	}
	encoded, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	return s.kv.Put(recordKey(addr), encoded)
}

// Get loads the record at addr.
func (s *Store) Get(addr types.Address) (*Escrow, error) {
	if s == nil || s.kv == nil {
		return nil, errNilState
	}
	raw, ok, err := s.kv.Get(recordKey(addr))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, addr)
	}
	rec := new(Escrow)
	if err := rec.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes the record at addr.
func (s *Store) Delete(addr types.Address) error {
	if s == nil || s.kv == nil {
		return errNilState
	}
	if _, ok, err := s.kv.Get(recordKey(addr)); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, addr)
	}
	return s.kv.Delete(recordKey(addr))
}
