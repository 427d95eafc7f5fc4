package token

import (
	"strconv"

	"swapescrow/core/types"
)

const (
	EventTypeAssetCreated = "token.asset_created"
	EventTypeMinted       = "token.minted"
	EventTypeTransferred  = "token.transferred"
)

// NewAssetCreatedEvent describes a registered asset.
func NewAssetCreatedEvent(a *Asset) *types.Event {
	attrs := map[string]string{}
	if a != nil {
		attrs["asset"] = a.ID.String()
		attrs["symbol"] = a.Symbol
		attrs["decimals"] = strconv.FormatUint(uint64(a.Decimals), 10)
		attrs["mintAuthority"] = a.MintAuthority.String()
	}
	return &types.Event{Type: EventTypeAssetCreated, Attributes: attrs}
}

// NewMintedEvent describes units minted into owner's holding.
func NewMintedEvent(asset, owner types.Address, amount uint64) *types.Event {
	return &types.Event{Type: EventTypeMinted, Attributes: map[string]string{
		"asset":  asset.String(),
		"owner":  owner.String(),
		"amount": strconv.FormatUint(amount, 10),
	}}
}

// NewTransferredEvent describes units moved between two parties.
func NewTransferredEvent(asset, from, to types.Address, amount uint64) *types.Event {
	return &types.Event{Type: EventTypeTransferred, Attributes: map[string]string{
		"asset":  asset.String(),
		"from":   from.String(),
		"to":     to.String(),
		"amount": strconv.FormatUint(amount, 10),
	}}
}
