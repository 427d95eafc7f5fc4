package types

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	// MaxSeeds bounds the number of seed components of a derived address.
	MaxSeeds = 16
	// MaxSeedLength bounds the byte length of one seed component.
	MaxSeedLength = 32
)

var derivedAddressMarker = []byte("DerivedAddress")

var (
	ErrMaxSeedLengthExceeded = errors.New("derive: seed too long")
	ErrTooManySeeds          = errors.New("derive: too many seeds")
	ErrInvalidSeeds          = errors.New("derive: seeds produce an on-curve address")
	ErrNoViableBump          = errors.New("derive: no viable bump seed")
)

// IsOnCurve reports whether the address is the X coordinate of a secp256k1
// point, i.e. whether some private key could control it.
func IsOnCurve(addr Address) bool {
	compressed := make([]byte, 0, 1+AddressLength)
	compressed = append(compressed, 0x02)
	compressed = append(compressed, addr[:]...)
	_, err := ethcrypto.DecompressPubkey(compressed)
	return err == nil
}

// CreateDerivedAddress hashes the seeds, the bump and the program identity. The
// result is rejected when it lands on the curve.
func CreateDerivedAddress(program Address, seeds [][]byte, bump uint8) (Address, error) {
	if len(seeds) > MaxSeeds {
		return ZeroAddress, ErrTooManySeeds
	}
	parts := make([][]byte, 0, len(seeds)+3)
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return ZeroAddress, ErrMaxSeedLengthExceeded
		}
		parts = append(parts, seed)
	}
	parts = append(parts, []byte{bump}, program[:], derivedAddressMarker)
	addr := Address(ethcrypto.Keccak256Hash(parts...))
	if IsOnCurve(addr) {
		return ZeroAddress, ErrInvalidSeeds
	}
	return addr, nil
}

// DeriveAddress searches bumps from 255 downward and returns the first
// off-curve address together with its bump.
func DeriveAddress(program Address, seeds ...[]byte) (Address, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		addr, err := CreateDerivedAddress(program, seeds, uint8(bump))
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrInvalidSeeds) {
			return ZeroAddress, 0, err
		}
	}
	return ZeroAddress, 0, ErrNoViableBump
}

// MustDeriveAddress panics when derivation fails. Only for fixed seeds.
func MustDeriveAddress(program Address, seeds ...[]byte) Address {
	addr, _, err := DeriveAddress(program, seeds...)
	if err != nil {
		panic(fmt.Sprintf("derive address: %v", err))
	}
	return addr
}
