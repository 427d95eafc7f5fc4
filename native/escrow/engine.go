package escrow

import (
	"errors"
	"fmt"

	"swapescrow/core/events"
	"swapescrow/core/state"
	"swapescrow/core/types"
	"swapescrow/native/common"
	"swapescrow/native/token"
)

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// Engine runs the escrow lifecycle against a staged ledger state. Every
// operation works on its own overlay: nothing reaches the state and no event
// is emitted unless all checks and transfers succeed.
type Engine struct {
	state   state.KV
	emitter events.Emitter
	pauses  common.PauseView
}

// NewEngine creates an escrow engine with a no-op emitter. Callers can override
// the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(st state.KV) { e.state = st }

// SetPauses installs the pause view consulted before every operation.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(escrowEvent{evt: event})
}

func (e *Engine) begin() (*state.Overlay, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	return state.NewOverlay(e.state), nil
}

// Initialize opens an escrow for maker: it stores the record at the address
// derived from (maker, seed), opens the vault and moves deposit units of
// assetA from the maker's holding into it. The record address is returned.
func (e *Engine) Initialize(maker types.Address, seed, deposit, receive uint64, assetA, assetB types.Address) (types.Address, error) {
	if deposit == 0 || receive == 0 {
		return types.ZeroAddress, ErrInvalidAmount
	}
	overlay, err := e.begin()
	if err != nil {
		return types.ZeroAddress, err
	}
	addr, bump, err := EscrowAddress(maker, seed)
	if err != nil {
		return types.ZeroAddress, err
	}
	vault, err := VaultAddress(addr)
	if err != nil {
		return types.ZeroAddress, err
	}
	rec := &Escrow{
		Seed:    seed,
		Maker:   maker,
		AssetA:  assetA,
		AssetB:  assetB,
		Deposit: deposit,
		Receive: receive,
		Bump:    bump,
	}
	if err := NewStore(overlay).Create(addr, rec); err != nil {
		return types.ZeroAddress, err
	}
	tok := token.New(overlay)
	if _, err := tok.Asset(assetB); err != nil {
		return types.ZeroAddress, err
	}
	if err := tok.OpenHolding(vault, addr, assetA); err != nil {
		return types.ZeroAddress, fmt.Errorf("escrow: open vault: %w", err)
	}
	source, err := token.HoldingAddress(maker, assetA)
	if err != nil {
		return types.ZeroAddress, err
	}
	if err := tok.Transfer(source, vault, deposit, maker); err != nil {
		return types.ZeroAddress, fmt.Errorf("escrow: fund vault: %w", insufficientIfMissing(err))
	}
	if err := overlay.Flush(); err != nil {
		return types.ZeroAddress, err
	}
	e.emit(NewInitializedEvent(addr, rec))
	return addr, nil
}

// Exchange completes the swap recorded at addr on behalf of taker. The vault
// must still hold at least the recorded deposit; otherwise it fails with
// ErrVaultAndEscrowInvalidAmount before any value moves.
func (e *Engine) Exchange(taker, addr types.Address) error {
	overlay, err := e.begin()
	if err != nil {
		return err
	}
	rec, err := NewStore(overlay).Get(addr)
	if err != nil {
		return err
	}
	vault, err := VaultAddress(addr)
	if err != nil {
		return err
	}
	tok := token.New(overlay)
	held, err := vaultBalance(tok, vault)
	if err != nil {
		return err
	}
	if held < rec.Deposit {
		return fmt.Errorf("%w: vault holds %d, escrow records %d", ErrVaultAndEscrowInvalidAmount, held, rec.Deposit)
	}

	takerA, err := tok.EnsureHolding(taker, rec.AssetA)
	if err != nil {
		return err
	}
	if err := tok.Transfer(vault, takerA, rec.Deposit, addr); err != nil {
		return fmt.Errorf("escrow: release deposit: %w", err)
	}
	takerB, err := token.HoldingAddress(taker, rec.AssetB)
	if err != nil {
		return err
	}
	makerB, err := tok.EnsureHolding(rec.Maker, rec.AssetB)
	if err != nil {
		return err
	}
	if err := tok.Transfer(takerB, makerB, rec.Receive, taker); err != nil {
		return fmt.Errorf("escrow: pay maker: %w", insufficientIfMissing(err))
	}
	residual := held - rec.Deposit
	if err := e.retire(tok, overlay, addr, vault, rec, residual); err != nil {
		return err
	}
	if err := overlay.Flush(); err != nil {
		return err
	}
	e.emit(NewExchangedEvent(addr, rec, taker, residual))
	return nil
}

// Refund cancels the escrow at addr and returns the whole vault balance to
// the maker. Only the maker may refund.
func (e *Engine) Refund(caller, addr types.Address) error {
	overlay, err := e.begin()
	if err != nil {
		return err
	}
	rec, err := NewStore(overlay).Get(addr)
	if err != nil {
		return err
	}
	if caller != rec.Maker {
		return fmt.Errorf("%w: %s is not the maker", ErrUnauthorized, caller)
	}
	vault, err := VaultAddress(addr)
	if err != nil {
		return err
	}
	tok := token.New(overlay)
	held, err := vaultBalance(tok, vault)
	if err != nil {
		return err
	}
	if err := e.retire(tok, overlay, addr, vault, rec, held); err != nil {
		return err
	}
	if err := overlay.Flush(); err != nil {
		return err
	}
	e.emit(NewRefundedEvent(addr, rec, held))
	return nil
}

// retire sends amount from the vault to the maker's holding of asset A, then
// closes the vault and deletes the record together.
func (e *Engine) retire(tok *token.Program, overlay *state.Overlay, addr, vault types.Address, rec *Escrow, amount uint64) error {
	exists, err := tok.HoldingExists(vault)
	if err != nil {
		return err
	}
	if exists {
		if amount > 0 {
			makerA, err := tok.EnsureHolding(rec.Maker, rec.AssetA)
			if err != nil {
				return err
			}
			if err := tok.Transfer(vault, makerA, amount, addr); err != nil {
				return fmt.Errorf("escrow: return vault balance: %w", err)
			}
		}
		if err := tok.CloseHolding(vault, addr); err != nil {
			return fmt.Errorf("escrow: close vault: %w", err)
		}
	}
	return NewStore(overlay).Delete(addr)
}

// vaultBalance reads the vault; a vault that no longer exists holds nothing.
func vaultBalance(tok *token.Program, vault types.Address) (uint64, error) {
	held, err := tok.Balance(vault)
	if errors.Is(err, token.ErrHoldingNotFound) {
		return 0, nil
	}
	return held, err
}

// insufficientIfMissing reports a missing source holding as an insufficient
// balance: a party without a holding has none of the asset.
func insufficientIfMissing(err error) error {
	if errors.Is(err, token.ErrHoldingNotFound) {
		return fmt.Errorf("%w: %v", token.ErrInsufficientBalance, err)
	}
	return err
}
