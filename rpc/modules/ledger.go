package modules

import (
	"context"
	"encoding/json"

	"swapescrow/core"
	"swapescrow/core/types"
)

// LedgerModule submits signed transactions and reports signer nonces.
type LedgerModule struct {
	ledger *core.Ledger
}

func NewLedgerModule(ledger *core.Ledger) *LedgerModule {
	return &LedgerModule{ledger: ledger}
}

type nonceParams struct {
	Address string `json:"address"`
}

// NonceResult is the next nonce an address must sign with.
type NonceResult struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"`
}

// SendTransaction executes one signed transaction and returns its receipt.
func (m *LedgerModule) SendTransaction(ctx context.Context, params []json.RawMessage) (*core.Receipt, *ModuleError) {
	var tx types.Transaction
	if err := decodeParams(params, &tx); err != nil {
		return nil, err
	}
	if len(tx.Sig) == 0 {
		return nil, invalidParams("transaction signature required", nil)
	}
	receipt, err := m.ledger.Execute(ctx, &tx)
	if err != nil {
		return nil, FromError(err)
	}
	return receipt, nil
}

// GetNonce returns the next nonce for address.
func (m *LedgerModule) GetNonce(params []json.RawMessage) (*NonceResult, *ModuleError) {
	var p nonceParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	addr, modErr := parseAddress("address", p.Address)
	if modErr != nil {
		return nil, modErr
	}
	nonce, err := m.ledger.Nonce(addr)
	if err != nil {
		return nil, FromError(err)
	}
	return &NonceResult{Address: addr.String(), Nonce: nonce}, nil
}
