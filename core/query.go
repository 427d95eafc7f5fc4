package core

import (
	"errors"

	"swapescrow/core/state"
	"swapescrow/core/types"
	"swapescrow/native/escrow"
	"swapescrow/native/token"
)

// ErrQueryNotSupported indicates the requested view is not available.
var ErrQueryNotSupported = errors.New("query: not supported")

// View runs fn against a read-only snapshot of the committed state. Writes made
// by fn are discarded.
func (l *Ledger) View(fn func(view *state.Manager) error) error {
	if fn == nil {
		return ErrQueryNotSupported
	}
	m, err := l.store.Begin()
	if err != nil {
		return err
	}
	defer m.Release()
	return fn(m)
}

// Nonce returns the next nonce signer must use.
func (l *Ledger) Nonce(signer types.Address) (uint64, error) {
	var nonce uint64
	err := l.View(func(view *state.Manager) error {
		_, err := state.GetRLP(view, nonceKey(signer), &nonce)
		return err
	})
	return nonce, err
}

// Asset loads a registered asset.
func (l *Ledger) Asset(id types.Address) (*token.Asset, error) {
	var asset *token.Asset
	err := l.View(func(view *state.Manager) error {
		var err error
		asset, err = token.New(view).Asset(id)
		return err
	})
	return asset, err
}

// Balance returns owner's associated holding balance of asset.
func (l *Ledger) Balance(owner, asset types.Address) (uint64, error) {
	var balance uint64
	err := l.View(func(view *state.Manager) error {
		var err error
		balance, err = token.New(view).BalanceOf(owner, asset)
		return err
	})
	return balance, err
}

// Escrow returns the live escrow at addr with its vault balance.
func (l *Ledger) Escrow(addr types.Address) (*escrow.Entry, error) {
	var entry *escrow.Entry
	err := l.View(func(view *state.Manager) error {
		var err error
		entry, err = escrow.Lookup(view, addr)
		return err
	})
	return entry, err
}

// FindEscrows lists live escrows offering assetA for assetB.
func (l *Ledger) FindEscrows(assetA, assetB types.Address) ([]*escrow.Entry, error) {
	var entries []*escrow.Entry
	err := l.View(func(view *state.Manager) error {
		var err error
		entries, err = escrow.Find(view, assetA, assetB)
		return err
	})
	return entries, err
}
