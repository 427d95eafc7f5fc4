package escrow

import (
	"strconv"

	"swapescrow/core/types"
)

const (
	EventTypeEscrowInitialized = "escrow.initialized"
	EventTypeEscrowExchanged   = "escrow.exchanged"
	EventTypeEscrowRefunded    = "escrow.refunded"
)

// NewInitializedEvent returns the canonical payload for a newly funded escrow.
func NewInitializedEvent(addr types.Address, e *Escrow) *types.Event {
	return newEscrowEvent(EventTypeEscrowInitialized, addr, e, nil)
}

// NewExchangedEvent returns the canonical payload for a completed swap.
// residual is the vault balance above the deposit that went back to the maker.
func NewExchangedEvent(addr types.Address, e *Escrow, taker types.Address, residual uint64) *types.Event {
	extra := map[string]string{"taker": taker.String()}
	if residual > 0 {
		extra["residual"] = strconv.FormatUint(residual, 10)
	}
	return newEscrowEvent(EventTypeEscrowExchanged, addr, e, extra)
}

// NewRefundedEvent returns the canonical payload for a cancelled escrow.
// refunded is the vault balance returned to the maker.
func NewRefundedEvent(addr types.Address, e *Escrow, refunded uint64) *types.Event {
	return newEscrowEvent(EventTypeEscrowRefunded, addr, e, map[string]string{
		"refunded": strconv.FormatUint(refunded, 10),
	})
}

func newEscrowEvent(eventType string, addr types.Address, e *Escrow, extra map[string]string) *types.Event {
	attrs := make(map[string]string)
	if e == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["escrow"] = addr.String()
	attrs["maker"] = e.Maker.String()
	attrs["seed"] = strconv.FormatUint(e.Seed, 10)
	attrs["assetA"] = e.AssetA.String()
	attrs["assetB"] = e.AssetB.String()
	attrs["deposit"] = strconv.FormatUint(e.Deposit, 10)
	attrs["receive"] = strconv.FormatUint(e.Receive, 10)
	for k, v := range extra {
		attrs[k] = v
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
