package modules

import (
	"encoding/json"
	"strconv"

	"swapescrow/core"
	"swapescrow/native/token"
)

// TokenModule exposes read access to assets and holdings.
type TokenModule struct {
	ledger *core.Ledger
}

func NewTokenModule(ledger *core.Ledger) *TokenModule {
	return &TokenModule{ledger: ledger}
}

type assetParams struct {
	Asset string `json:"asset"`
}

type balanceParams struct {
	Owner string `json:"owner"`
	Asset string `json:"asset"`
}

// AssetResult describes a registered asset. Amounts are decimal strings.
type AssetResult struct {
	ID            string `json:"id"`
	Symbol        string `json:"symbol"`
	Decimals      uint8  `json:"decimals"`
	MintAuthority string `json:"mintAuthority"`
	Supply        string `json:"supply"`
}

// BalanceResult is an owner's associated holding of one asset.
type BalanceResult struct {
	Owner   string `json:"owner"`
	Asset   string `json:"asset"`
	Holding string `json:"holding"`
	Balance string `json:"balance"`
}

func (m *TokenModule) GetAsset(params []json.RawMessage) (*AssetResult, *ModuleError) {
	var p assetParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	id, modErr := parseAddress("asset", p.Asset)
	if modErr != nil {
		return nil, modErr
	}
	asset, err := m.ledger.Asset(id)
	if err != nil {
		return nil, FromError(err)
	}
	return &AssetResult{
		ID:            asset.ID.String(),
		Symbol:        asset.Symbol,
		Decimals:      asset.Decimals,
		MintAuthority: asset.MintAuthority.String(),
		Supply:        strconv.FormatUint(asset.Supply, 10),
	}, nil
}

func (m *TokenModule) GetBalance(params []json.RawMessage) (*BalanceResult, *ModuleError) {
	var p balanceParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	owner, modErr := parseAddress("owner", p.Owner)
	if modErr != nil {
		return nil, modErr
	}
	assetID, modErr := parseAddress("asset", p.Asset)
	if modErr != nil {
		return nil, modErr
	}
	holding, err := token.HoldingAddress(owner, assetID)
	if err != nil {
		return nil, FromError(err)
	}
	balance, err := m.ledger.Balance(owner, assetID)
	if err != nil {
		return nil, FromError(err)
	}
	return &BalanceResult{
		Owner:   owner.String(),
		Asset:   assetID.String(),
		Holding: holding.String(),
		Balance: strconv.FormatUint(balance, 10),
	}, nil
}
