package token

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"swapescrow/core/state"
	"swapescrow/core/types"
	"swapescrow/storage"
)

type memKV map[string][]byte

func (m memKV) Get(key []byte) ([]byte, bool, error) {
	v, ok := m[string(key)]
	return v, ok, nil
}

func (m memKV) Put(key, value []byte) error {
	m[string(key)] = append([]byte(nil), value...)
	return nil
}

func (m memKV) Delete(key []byte) error {
	delete(m, string(key))
	return nil
}

func addr(b byte) types.Address {
	var a types.Address
	a[0] = b
	a[31] = b
	return a
}

func newAsset(t *testing.T, p *Program, creator types.Address, symbol string) *Asset {
	t.Helper()
	asset, err := p.CreateAsset(creator, symbol, 6)
	require.NoError(t, err)
	return asset
}

func TestCreateAssetRejectsDuplicatesAndBadSymbols(t *testing.T) {
	p := New(memKV{})
	creator := addr(1)
	asset := newAsset(t, p, creator, "usdc")
	require.Equal(t, "USDC", asset.Symbol)
	require.Equal(t, creator, asset.MintAuthority)

	_, err := p.CreateAsset(creator, "USDC", 6)
	require.ErrorIs(t, err, ErrAssetExists)

	for _, bad := range []string{"", "   ", "TOO-LONG-SYMBOL-NAME", "A$"} {
		_, err := p.CreateAsset(creator, bad, 0)
		require.ErrorIs(t, err, ErrInvalidSymbol, "symbol %q", bad)
	}

	other, err := p.CreateAsset(addr(2), "USDC", 6)
	require.NoError(t, err)
	require.NotEqual(t, asset.ID, other.ID)
}

func TestMintToRequiresAuthority(t *testing.T) {
	p := New(memKV{})
	creator, alice := addr(1), addr(2)
	asset := newAsset(t, p, creator, "AAA")

	require.ErrorIs(t, p.MintTo(alice, asset.ID, alice, 10), ErrUnauthorized)
	require.ErrorIs(t, p.MintTo(creator, asset.ID, alice, 0), ErrInvalidAmount)
	require.ErrorIs(t, p.MintTo(creator, addr(9), alice, 1), ErrAssetNotFound)

	require.NoError(t, p.MintTo(creator, asset.ID, alice, 10))
	require.NoError(t, p.MintTo(creator, asset.ID, alice, 5))
	balance, err := p.BalanceOf(alice, asset.ID)
	require.NoError(t, err)
	require.EqualValues(t, 15, balance)

	stored, err := p.Asset(asset.ID)
	require.NoError(t, err)
	require.EqualValues(t, 15, stored.Supply)
}

func TestMintToOverflow(t *testing.T) {
	p := New(memKV{})
	creator := addr(1)
	asset := newAsset(t, p, creator, "BIG")
	require.NoError(t, p.MintTo(creator, asset.ID, creator, ^uint64(0)))
	require.ErrorIs(t, p.MintTo(creator, asset.ID, creator, 1), ErrOverflow)
}

func TestTransferMovesBalance(t *testing.T) {
	p := New(memKV{})
	creator, alice, bob := addr(1), addr(2), addr(3)
	asset := newAsset(t, p, creator, "AAA")
	require.NoError(t, p.MintTo(creator, asset.ID, alice, 100))

	from, err := HoldingAddress(alice, asset.ID)
	require.NoError(t, err)
	to, err := p.EnsureHolding(bob, asset.ID)
	require.NoError(t, err)

	require.NoError(t, p.Transfer(from, to, 40, alice))
	aliceBal, _ := p.BalanceOf(alice, asset.ID)
	bobBal, _ := p.BalanceOf(bob, asset.ID)
	require.EqualValues(t, 60, aliceBal)
	require.EqualValues(t, 40, bobBal)

	// Self transfer and zero amount leave balances alone.
	require.NoError(t, p.Transfer(from, from, 60, alice))
	require.NoError(t, p.Transfer(from, to, 0, alice))
	aliceBal, _ = p.BalanceOf(alice, asset.ID)
	require.EqualValues(t, 60, aliceBal)
}

func TestTransferFailuresLeaveHoldingsUntouched(t *testing.T) {
	p := New(memKV{})
	creator, alice, bob := addr(1), addr(2), addr(3)
	a := newAsset(t, p, creator, "AAA")
	b := newAsset(t, p, creator, "BBB")
	require.NoError(t, p.MintTo(creator, a.ID, alice, 10))
	from, _ := HoldingAddress(alice, a.ID)
	to, err := p.EnsureHolding(bob, a.ID)
	require.NoError(t, err)
	wrongAsset, err := p.EnsureHolding(bob, b.ID)
	require.NoError(t, err)

	require.ErrorIs(t, p.Transfer(from, to, 11, alice), ErrInsufficientBalance)
	require.ErrorIs(t, p.Transfer(from, to, 1, bob), ErrUnauthorized)
	require.ErrorIs(t, p.Transfer(from, wrongAsset, 1, alice), ErrAssetMismatch)
	require.ErrorIs(t, p.Transfer(from, addr(7), 1, alice), ErrHoldingNotFound)

	aliceBal, _ := p.Balance(from)
	bobBal, _ := p.Balance(to)
	require.EqualValues(t, 10, aliceBal)
	require.EqualValues(t, 0, bobBal)
}

func TestOpenAndCloseHolding(t *testing.T) {
	p := New(memKV{})
	creator, alice := addr(1), addr(2)
	asset := newAsset(t, p, creator, "AAA")

	vault := addr(42)
	require.NoError(t, p.OpenHolding(vault, alice, asset.ID))
	require.ErrorIs(t, p.OpenHolding(vault, alice, asset.ID), ErrHoldingExists)
	require.ErrorIs(t, p.OpenHolding(addr(43), alice, addr(99)), ErrAssetNotFound)

	require.NoError(t, p.MintTo(creator, asset.ID, alice, 3))
	src, _ := HoldingAddress(alice, asset.ID)
	require.NoError(t, p.Transfer(src, vault, 3, alice))

	require.ErrorIs(t, p.CloseHolding(vault, creator), ErrUnauthorized)
	require.ErrorIs(t, p.CloseHolding(vault, alice), ErrNonZeroBalance)
	require.NoError(t, p.Transfer(vault, src, 3, alice))
	require.NoError(t, p.CloseHolding(vault, alice))

	exists, err := p.HoldingExists(vault)
	require.NoError(t, err)
	require.False(t, exists)
	_, err = p.Balance(vault)
	require.True(t, errors.Is(err, ErrHoldingNotFound))
}

func TestBalanceOfUnopenedHoldingIsZero(t *testing.T) {
	p := New(memKV{})
	balance, err := p.BalanceOf(addr(1), addr(2))
	require.NoError(t, err)
	require.Zero(t, balance)
}

func TestProgramOverStagedState(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	store := state.NewStore(db)
	creator := addr(1)

	m, err := store.Begin()
	require.NoError(t, err)
	asset, err := New(m).CreateAsset(creator, "AAA", 0)
	require.NoError(t, err)
	require.NoError(t, New(m).MintTo(creator, asset.ID, creator, 5))
	require.NoError(t, store.Commit(m))

	view, err := store.Begin()
	require.NoError(t, err)
	defer view.Release()
	balance, err := New(view).BalanceOf(creator, asset.ID)
	require.NoError(t, err)
	require.EqualValues(t, 5, balance)
}

func TestNilProgram(t *testing.T) {
	var p *Program
	_, err := p.Asset(addr(1))
	require.Error(t, err)
}
