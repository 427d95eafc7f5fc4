package types

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the human-readable part of the bech32 form of an address.
const AddressPrefix = "esc"

// AddressLength is the byte length of identities, asset ids and storage slots.
const AddressLength = 32

// Address is a 32-byte ledger identifier. User identities are the X coordinate
// of their secp256k1 public key, so a user address is always a curve point;
// program-derived addresses are never on the curve.
type Address [AddressLength]byte

// ZeroAddress is the unset address.
var ZeroAddress Address

// IdentityFromPubkey returns the ledger identity controlled by the key.
func IdentityFromPubkey(pub *ecdsa.PublicKey) Address {
	var addr Address
	if pub == nil || pub.X == nil {
		return addr
	}
	pub.X.FillBytes(addr[:])
	return addr
}

// ProgramAddress returns the identity of a built-in program.
func ProgramAddress(name string) Address {
	return Address(ethcrypto.Keccak256Hash([]byte("program:" + name)))
}

// BytesToAddress copies b into an address. It fails unless b is exactly 32 bytes.
func BytesToAddress(b []byte) (Address, error) {
	var addr Address
	if len(b) != AddressLength {
		return addr, fmt.Errorf("address must be %d bytes, got %d", AddressLength, len(b))
	}
	copy(addr[:], b)
	return addr, nil
}

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool { return a == ZeroAddress }

// Hex returns the 0x-prefixed hexadecimal form.
func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

// String returns the bech32 form.
func (a Address) String() string {
	conv, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		return a.Hex()
	}
	encoded, err := bech32.Encode(AddressPrefix, conv)
	if err != nil {
		return a.Hex()
	}
	return encoded
}

// ParseAddress accepts either the bech32 or the 0x-prefixed hex form.
func ParseAddress(s string) (Address, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return ZeroAddress, fmt.Errorf("address required")
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		raw, err := hex.DecodeString(trimmed[2:])
		if err != nil {
			return ZeroAddress, fmt.Errorf("invalid hex address: %w", err)
		}
		return BytesToAddress(raw)
	}
	prefix, decoded, err := bech32.Decode(trimmed)
	if err != nil {
		return ZeroAddress, fmt.Errorf("invalid bech32 string: %w", err)
	}
	if prefix != AddressPrefix {
		return ZeroAddress, fmt.Errorf("unexpected address prefix %q", prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return ZeroAddress, fmt.Errorf("error converting bits: %w", err)
	}
	return BytesToAddress(conv)
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// MarshalText encodes the address in bech32 form for JSON and TOML.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText accepts bech32 or hex.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
