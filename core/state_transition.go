package core

import (
	"fmt"

	"swapescrow/core/events"
	"swapescrow/core/state"
	"swapescrow/core/types"
	"swapescrow/native/common"
	"swapescrow/native/escrow"
	"swapescrow/native/token"
)

const tokenModule = "token"

type ledgerEvent struct {
	evt *types.Event
}

func (e ledgerEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e ledgerEvent) Event() *types.Event { return e.evt }

// applyTransaction dispatches tx to its program. All writes go to m and all
// events to buf; the caller decides whether either survives.
func (l *Ledger) applyTransaction(m *state.Manager, buf *events.Buffer, signer types.Address, tx *types.Transaction, receipt *Receipt) error {
	switch tx.Type {
	case types.TxTypeCreateAsset, types.TxTypeMintTo, types.TxTypeTransfer:
		if err := common.Guard(l.pauses, tokenModule); err != nil {
			return err
		}
		return l.applyToken(token.New(m), buf, signer, tx, receipt)
	case types.TxTypeEscrowInitialize, types.TxTypeEscrowExchange, types.TxTypeEscrowRefund:
		engine := escrow.NewEngine()
		engine.SetState(m)
		engine.SetEmitter(buf)
		engine.SetPauses(l.pauses)
		return l.applyEscrow(engine, signer, tx, receipt)
	}
	return fmt.Errorf("%w: %s", ErrUnknownTxType, tx.Type)
}

func (l *Ledger) applyToken(tok *token.Program, buf *events.Buffer, signer types.Address, tx *types.Transaction, receipt *Receipt) error {
	switch tx.Type {
	case types.TxTypeCreateAsset:
		var p types.CreateAssetPayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		asset, err := tok.CreateAsset(signer, p.Symbol, p.Decimals)
		if err != nil {
			return err
		}
		receipt.Asset = &asset.ID
		buf.Emit(ledgerEvent{evt: token.NewAssetCreatedEvent(asset)})
	case types.TxTypeMintTo:
		var p types.MintToPayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		if err := tok.MintTo(signer, p.Asset, p.Owner, p.Amount); err != nil {
			return err
		}
		receipt.Asset = &p.Asset
		buf.Emit(ledgerEvent{evt: token.NewMintedEvent(p.Asset, p.Owner, p.Amount)})
	case types.TxTypeTransfer:
		var p types.TransferPayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		if p.Amount == 0 {
			return token.ErrInvalidAmount
		}
		from, err := token.HoldingAddress(signer, p.Asset)
		if err != nil {
			return err
		}
		to, err := tok.EnsureHolding(p.To, p.Asset)
		if err != nil {
			return err
		}
		if err := tok.Transfer(from, to, p.Amount, signer); err != nil {
			return err
		}
		receipt.Asset = &p.Asset
		buf.Emit(ledgerEvent{evt: token.NewTransferredEvent(p.Asset, signer, p.To, p.Amount)})
	}
	return nil
}

func (l *Ledger) applyEscrow(engine *escrow.Engine, signer types.Address, tx *types.Transaction, receipt *Receipt) error {
	switch tx.Type {
	case types.TxTypeEscrowInitialize:
		var p types.EscrowInitializePayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		addr, err := engine.Initialize(signer, p.Seed, p.Deposit, p.Receive, p.AssetA, p.AssetB)
		if err != nil {
			return err
		}
		receipt.Escrow = &addr
	case types.TxTypeEscrowExchange:
		var p types.EscrowExchangePayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		if err := engine.Exchange(signer, p.Escrow); err != nil {
			return err
		}
		receipt.Escrow = &p.Escrow
	case types.TxTypeEscrowRefund:
		var p types.EscrowRefundPayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		if err := engine.Refund(signer, p.Escrow); err != nil {
			return err
		}
		receipt.Escrow = &p.Escrow
	}
	return nil
}
