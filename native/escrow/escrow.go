package escrow

import (
	"errors"

	"swapescrow/core/types"
)

var (
	ErrNotFound      = errors.New("escrow: not found")
	ErrAlreadyExists = errors.New("escrow: already exists")
	ErrUnauthorized  = errors.New("escrow: unauthorized")
	// ErrVaultAndEscrowInvalidAmount reports a vault holding less than the
	// deposit its record promises. Exchange aborts before any transfer.
	ErrVaultAndEscrowInvalidAmount = errors.New("escrow: the amount stored in vault is less than the amount stored in escrow")
	ErrInvalidAmount               = errors.New("escrow: amount must be positive")
	ErrInvalidRecord               = errors.New("escrow: malformed record")
	errNilState                    = errors.New("escrow engine: state not configured")
)

// ModuleName identifies the escrow program in pause configuration and
// metrics.
const ModuleName = "escrow"

// ProgramID is the identity the escrow and vault addresses are derived from.
var ProgramID = types.ProgramAddress(ModuleName)

// EscrowAddress derives the record address for (maker, seed).
func EscrowAddress(maker types.Address, seed uint64) (types.Address, uint8, error) {
	return types.DeriveAddress(ProgramID, []byte("escrow"), maker[:], SeedBytes(seed))
}

// VaultAddress derives the vault holding address of the record at escrow.
func VaultAddress(escrow types.Address) (types.Address, error) {
	addr, _, err := types.DeriveAddress(ProgramID, []byte("vault"), escrow[:])
	return addr, err
}
