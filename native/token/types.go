package token

import (
	"fmt"
	"strings"

	"swapescrow/core/types"
)

// MaxSymbolLength bounds asset symbols so they fit a derivation seed.
const MaxSymbolLength = 16

// Asset is the registry entry of a fungible asset.
type Asset struct {
	ID            types.Address
	Symbol        string
	Decimals      uint8
	MintAuthority types.Address
	Supply        uint64
}

// Holding is a balance of one asset controlled by Owner. Only the owner may
// authorise a transfer out of it.
type Holding struct {
	Owner  types.Address
	Asset  types.Address
	Amount uint64
}

// NormalizeSymbol trims and upper-cases a symbol and checks its length.
func NormalizeSymbol(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" {
		return "", ErrInvalidSymbol
	}
	if len(trimmed) > MaxSymbolLength {
		return "", fmt.Errorf("%w: longer than %d bytes", ErrInvalidSymbol, MaxSymbolLength)
	}
	for _, r := range trimmed {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
		}
	}
	return trimmed, nil
}
