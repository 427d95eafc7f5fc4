package token

import (
	"errors"
	"fmt"
	"math/bits"

	"swapescrow/core/state"
	"swapescrow/core/types"
)

var (
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	ErrAssetNotFound       = errors.New("token: asset not found")
	ErrAssetExists         = errors.New("token: asset already exists")
	ErrHoldingNotFound     = errors.New("token: holding not found")
	ErrHoldingExists       = errors.New("token: holding already exists")
	ErrUnauthorized        = errors.New("token: unauthorized")
	ErrAssetMismatch       = errors.New("token: asset mismatch")
	ErrOverflow            = errors.New("token: amount overflow")
	ErrNonZeroBalance      = errors.New("token: holding balance not zero")
	ErrInvalidSymbol       = errors.New("token: invalid symbol")
	ErrInvalidAmount       = errors.New("token: amount must be positive")
	errNilState            = errors.New("token: state not configured")
)

// ProgramID is the identity of the token program; asset and associated
// holding addresses are derived from it.
var ProgramID = types.ProgramAddress("token")

var (
	assetPrefix   = []byte("token/asset/")
	holdingPrefix = []byte("token/holding/")
)

func assetKey(id types.Address) []byte {
	return append(append([]byte(nil), assetPrefix...), id[:]...)
}

func holdingKey(addr types.Address) []byte {
	return append(append([]byte(nil), holdingPrefix...), addr[:]...)
}

// AssetAddress derives the id of the asset creator registers under symbol.
func AssetAddress(creator types.Address, symbol string) (types.Address, error) {
	normalized, err := NormalizeSymbol(symbol)
	if err != nil {
		return types.ZeroAddress, err
	}
	addr, _, err := types.DeriveAddress(ProgramID, []byte("asset"), creator[:], []byte(normalized))
	return addr, err
}

// HoldingAddress derives the associated holding of owner for asset.
func HoldingAddress(owner, asset types.Address) (types.Address, error) {
	addr, _, err := types.DeriveAddress(ProgramID, []byte("holding"), owner[:], asset[:])
	return addr, err
}

// Program is the asset transfer primitive. It operates on whatever staged
// state it is given; atomicity belongs to the caller's transaction.
type Program struct {
	state state.KV
}

// New binds the program to st.
func New(st state.KV) *Program {
	return &Program{state: st}
}

func (p *Program) ready() error {
	if p == nil || p.state == nil {
		return errNilState
	}
	return nil
}

// CreateAsset registers a new asset with creator as mint authority.
func (p *Program) CreateAsset(creator types.Address, symbol string, decimals uint8) (*Asset, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	normalized, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	id, err := AssetAddress(creator, normalized)
	if err != nil {
		return nil, err
	}
	if _, ok, err := p.state.Get(assetKey(id)); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("%w: %s", ErrAssetExists, normalized)
	}
	asset := &Asset{ID: id, Symbol: normalized, Decimals: decimals, MintAuthority: creator}
	if err := state.PutRLP(p.state, assetKey(id), asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// Asset loads an asset by id.
func (p *Program) Asset(id types.Address) (*Asset, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	asset := new(Asset)
	ok, err := state.GetRLP(p.state, assetKey(id), asset)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, id)
	}
	return asset, nil
}

// MintTo creates amount units of asset in owner's associated holding. Only
// the mint authority may mint.
func (p *Program) MintTo(authority, assetID, owner types.Address, amount uint64) error {
	if err := p.ready(); err != nil {
		return err
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	asset, err := p.Asset(assetID)
	if err != nil {
		return err
	}
	if asset.MintAuthority != authority {
		return fmt.Errorf("%w: %s is not the mint authority", ErrUnauthorized, authority)
	}
	supply, carry := bits.Add64(asset.Supply, amount, 0)
	if carry != 0 {
		return fmt.Errorf("%w: supply", ErrOverflow)
	}
	dst, err := p.EnsureHolding(owner, assetID)
	if err != nil {
		return err
	}
	holding, err := p.Holding(dst)
	if err != nil {
		return err
	}
	balance, carry := bits.Add64(holding.Amount, amount, 0)
	if carry != 0 {
		return fmt.Errorf("%w: holding %s", ErrOverflow, dst)
	}
	holding.Amount = balance
	asset.Supply = supply
	if err := p.putHolding(dst, holding); err != nil {
		return err
	}
	return state.PutRLP(p.state, assetKey(assetID), asset)
}

// Holding loads the holding stored at addr.
func (p *Program) Holding(addr types.Address) (*Holding, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	holding := new(Holding)
	ok, err := state.GetRLP(p.state, holdingKey(addr), holding)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHoldingNotFound, addr)
	}
	return holding, nil
}

// HoldingExists reports whether a holding is stored at addr.
func (p *Program) HoldingExists(addr types.Address) (bool, error) {
	if err := p.ready(); err != nil {
		return false, err
	}
	_, ok, err := p.state.Get(holdingKey(addr))
	return ok, err
}

func (p *Program) putHolding(addr types.Address, h *Holding) error {
	return state.PutRLP(p.state, holdingKey(addr), h)
}

// OpenHolding creates an empty holding of asset at addr owned by owner.
func (p *Program) OpenHolding(addr, owner, assetID types.Address) error {
	if err := p.ready(); err != nil {
		return err
	}
	if _, err := p.Asset(assetID); err != nil {
		return err
	}
	exists, err := p.HoldingExists(addr)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrHoldingExists, addr)
	}
	return p.putHolding(addr, &Holding{Owner: owner, Asset: assetID})
}

// EnsureHolding returns owner's associated holding of asset, opening it when
// missing.
func (p *Program) EnsureHolding(owner, assetID types.Address) (types.Address, error) {
	addr, err := HoldingAddress(owner, assetID)
	if err != nil {
		return types.ZeroAddress, err
	}
	exists, err := p.HoldingExists(addr)
	if err != nil {
		return types.ZeroAddress, err
	}
	if exists {
		return addr, nil
	}
	if err := p.OpenHolding(addr, owner, assetID); err != nil {
		return types.ZeroAddress, err
	}
	return addr, nil
}

// CloseHolding removes an empty holding. Only the owner may close it.
func (p *Program) CloseHolding(addr, authority types.Address) error {
	holding, err := p.Holding(addr)
	if err != nil {
		return err
	}
	if holding.Owner != authority {
		return fmt.Errorf("%w: %s does not own %s", ErrUnauthorized, authority, addr)
	}
	if holding.Amount != 0 {
		return fmt.Errorf("%w: %d remaining", ErrNonZeroBalance, holding.Amount)
	}
	return p.state.Delete(holdingKey(addr))
}

// Balance returns the amount stored in the holding at addr.
func (p *Program) Balance(addr types.Address) (uint64, error) {
	holding, err := p.Holding(addr)
	if err != nil {
		return 0, err
	}
	return holding.Amount, nil
}

// BalanceOf returns owner's associated balance of asset; zero when the holding
// was never opened.
func (p *Program) BalanceOf(owner, assetID types.Address) (uint64, error) {
	addr, err := HoldingAddress(owner, assetID)
	if err != nil {
		return 0, err
	}
	holding, err := p.Holding(addr)
	if errors.Is(err, ErrHoldingNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return holding.Amount, nil
}

// Transfer moves amount units from the holding at from to the holding at to.
// authority must own the source holding and both holdings must carry the same
// asset. It fails with ErrInsufficientBalance when the source is short and
// leaves both holdings untouched.
func (p *Program) Transfer(from, to types.Address, amount uint64, authority types.Address) error {
	src, err := p.Holding(from)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	dst, err := p.Holding(to)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if src.Owner != authority {
		return fmt.Errorf("%w: %s does not own %s", ErrUnauthorized, authority, from)
	}
	if src.Asset != dst.Asset {
		return fmt.Errorf("%w: %s -> %s", ErrAssetMismatch, src.Asset, dst.Asset)
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, src.Amount, amount)
	}
	if from == to || amount == 0 {
		return nil
	}
	credited, carry := bits.Add64(dst.Amount, amount, 0)
	if carry != 0 {
		return fmt.Errorf("%w: holding %s", ErrOverflow, to)
	}
	src.Amount -= amount
	dst.Amount = credited
	if err := p.putHolding(from, src); err != nil {
		return err
	}
	return p.putHolding(to, dst)
}
