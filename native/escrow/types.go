package escrow

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"swapescrow/core/types"
)

// Record layout offsets. The encoding is little-endian and fixed width.
const (
	discriminatorOffset = 0
	seedOffset          = 8
	makerOffset         = 16
	assetAOffset        = 48
	assetBOffset        = 80
	depositOffset       = 112
	receiveOffset       = 120
	bumpOffset          = 128

	// Size is the encoded length of an escrow record.
	Size = 129
)

// Discriminator tags every encoded escrow record.
var Discriminator = func() [8]byte {
	sum := sha256.Sum256([]byte("account:Escrow"))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}()

// Escrow is the persisted record of one pending swap. Fields are set once by
// Initialize and never updated.
type Escrow struct {
	Seed    uint64
	Maker   types.Address
	AssetA  types.Address
	AssetB  types.Address
	Deposit uint64
	Receive uint64
	Bump    uint8
}

// Clone returns a copy of the record.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}

// MarshalBinary encodes the record in its fixed on-ledger layout.
func (e *Escrow) MarshalBinary() ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("escrow: nil record")
	}
	buf := make([]byte, Size)
	copy(buf[discriminatorOffset:], Discriminator[:])
	binary.LittleEndian.PutUint64(buf[seedOffset:], e.Seed)
	copy(buf[makerOffset:], e.Maker[:])
	copy(buf[assetAOffset:], e.AssetA[:])
	copy(buf[assetBOffset:], e.AssetB[:])
	binary.LittleEndian.PutUint64(buf[depositOffset:], e.Deposit)
	binary.LittleEndian.PutUint64(buf[receiveOffset:], e.Receive)
	buf[bumpOffset] = e.Bump
	return buf, nil
}

// UnmarshalBinary decodes a record, rejecting a wrong length or tag.
func (e *Escrow) UnmarshalBinary(data []byte) error {
	if len(data) != Size {
		return fmt.Errorf("%w: length %d, want %d", ErrInvalidRecord, len(data), Size)
	}
	if !bytes.Equal(data[discriminatorOffset:seedOffset], Discriminator[:]) {
		return fmt.Errorf("%w: discriminator mismatch", ErrInvalidRecord)
	}
	e.Seed = binary.LittleEndian.Uint64(data[seedOffset:])
	copy(e.Maker[:], data[makerOffset:assetAOffset])
	copy(e.AssetA[:], data[assetAOffset:assetBOffset])
	copy(e.AssetB[:], data[assetBOffset:depositOffset])
	e.Deposit = binary.LittleEndian.Uint64(data[depositOffset:])
	e.Receive = binary.LittleEndian.Uint64(data[receiveOffset:])
	e.Bump = data[bumpOffset]
	return nil
}

// SeedBytes returns the little-endian seed used in the address derivation.
func SeedBytes(seed uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], seed)
	return buf[:]
}

// PairFilter returns the raw bytes at assetAOffset that identify an
// (assetA, assetB) pair in an encoded record.
func PairFilter(assetA, assetB types.Address) []byte {
	out := make([]byte, 0, 64)
	out = append(out, assetA[:]...)
	return append(out, assetB[:]...)
}
