package escrow

import (
	"bytes"

	"swapescrow/core/state"
	"swapescrow/core/types"
	"swapescrow/native/token"
)

// Iterable is a read view that can walk keys under a prefix in order.
type Iterable interface {
	state.KV
	Iterate(prefix []byte, fn func(key, value []byte) error) error
}

// Entry is a live escrow together with its vault.
type Entry struct {
	Address      types.Address
	Escrow       *Escrow
	Vault        types.Address
	VaultBalance uint64
}

// Lookup returns the record at addr and the current vault balance.
func Lookup(kv state.KV, addr types.Address) (*Entry, error) {
	rec, err := NewStore(kv).Get(addr)
	if err != nil {
		return nil, err
	}
	return entryFor(kv, addr, rec)
}

// Find returns every live escrow offering assetA for assetB, in address
// order. Records are matched on their raw encoded bytes so no index is kept.
func Find(view Iterable, assetA, assetB types.Address) ([]*Entry, error) {
	filter := PairFilter(assetA, assetB)
	var out []*Entry
	err := view.Iterate(recordPrefix, func(key, value []byte) error {
		if len(value) != Size || !bytes.Equal(value[assetAOffset:depositOffset], filter) {
			return nil
		}
		rec := new(Escrow)
		if err := rec.UnmarshalBinary(value); err != nil {
			return err
		}
		addr, err := types.BytesToAddress(key[len(recordPrefix):])
		if err != nil {
			return err
		}
		entry, err := entryFor(view, addr, rec)
		if err != nil {
			return err
		}
		out = append(out, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func entryFor(kv state.KV, addr types.Address, rec *Escrow) (*Entry, error) {
	vault, err := VaultAddress(addr)
	if err != nil {
		return nil, err
	}
	held, err := vaultBalance(token.New(kv), vault)
	if err != nil {
		return nil, err
	}
	return &Entry{Address: addr, Escrow: rec, Vault: vault, VaultBalance: held}, nil
}

// Count returns the number of live escrow records.
func Count(view Iterable) (int, error) {
	n := 0
	err := view.Iterate(recordPrefix, func(_, value []byte) error {
		if len(value) == Size {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
