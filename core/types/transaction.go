package types

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// TxType defines the purpose of a transaction.
type TxType byte

const (
	TxTypeCreateAsset      TxType = 0x01 // Register a new asset with the signer as mint authority
	TxTypeMintTo           TxType = 0x02 // Mint units of an asset into an owner's holding
	TxTypeTransfer         TxType = 0x03 // Move units between associated holdings
	TxTypeEscrowInitialize TxType = 0x10 // Maker locks asset A and states the asset B amount expected
	TxTypeEscrowExchange   TxType = 0x11 // Taker pays asset B and receives the vaulted asset A
	TxTypeEscrowRefund     TxType = 0x12 // Maker cancels and reclaims asset A
)

// String returns a human readable label.
func (t TxType) String() string {
	switch t {
	case TxTypeCreateAsset:
		return "CreateAsset"
	case TxTypeMintTo:
		return "MintTo"
	case TxTypeTransfer:
		return "Transfer"
	case TxTypeEscrowInitialize:
		return "EscrowInitialize"
	case TxTypeEscrowExchange:
		return "EscrowExchange"
	case TxTypeEscrowRefund:
		return "EscrowRefund"
	default:
		return fmt.Sprintf("TxType(0x%02x)", byte(t))
	}
}

var (
	ErrMissingSignature = errors.New("transaction: missing signature")
	ErrInvalidSignature = errors.New("transaction: invalid signature")
)

// SignatureLength is the size of a recoverable secp256k1 signature.
const SignatureLength = 65

// Transaction is a signed instruction. The signer's identity is recovered from
// Sig and is never carried in the payload.
type Transaction struct {
	ChainID uint64        `json:"chainId"`
	Type    TxType        `json:"type"`
	Nonce   uint64        `json:"nonce"`
	Data    hexutil.Bytes `json:"data"`
	Sig     hexutil.Bytes `json:"sig"`

	from *Address
}

type signingPayload struct {
	ChainID uint64
	Type    TxType
	Nonce   uint64
	Data    []byte
}

// NewTransaction RLP-encodes payload into an unsigned transaction.
func NewTransaction(chainID uint64, txType TxType, nonce uint64, payload interface{}) (*Transaction, error) {
	data, err := rlp.EncodeToBytes(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", txType, err)
	}
	return &Transaction{ChainID: chainID, Type: txType, Nonce: nonce, Data: data}, nil
}

// Hash returns keccak256 over the RLP of everything except the signature.
func (tx *Transaction) Hash() ([]byte, error) {
	encoded, err := rlp.EncodeToBytes(signingPayload{ChainID: tx.ChainID, Type: tx.Type, Nonce: tx.Nonce, Data: tx.Data})
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(encoded), nil
}

// Sign attaches a signature by privKey and caches the signer identity.
func (tx *Transaction) Sign(privKey *ecdsa.PrivateKey) error {
	hash, err := tx.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash, privKey)
	if err != nil {
		return err
	}
	tx.Sig = sig
	from := IdentityFromPubkey(&privKey.PublicKey)
	tx.from = &from
	return nil
}

// From recovers the signer identity from the signature.
func (tx *Transaction) From() (Address, error) {
	if tx.from != nil {
		return *tx.from, nil
	}
	if len(tx.Sig) == 0 {
		return ZeroAddress, ErrMissingSignature
	}
	if len(tx.Sig) != SignatureLength {
		return ZeroAddress, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(tx.Sig))
	}
	hash, err := tx.Hash()
	if err != nil {
		return ZeroAddress, err
	}
	pubKey, err := crypto.SigToPub(hash, tx.Sig)
	if err != nil {
		return ZeroAddress, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	from := IdentityFromPubkey(pubKey)
	tx.from = &from
	return from, nil
}

// DecodePayload decodes Data into out.
func (tx *Transaction) DecodePayload(out interface{}) error {
	if err := rlp.DecodeBytes(tx.Data, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", tx.Type, err)
	}
	return nil
}

// CreateAssetPayload registers an asset. The signer becomes mint authority.
type CreateAssetPayload struct {
	Symbol   string
	Decimals uint8
}

// MintToPayload mints Amount units of Asset to Owner's associated holding.
type MintToPayload struct {
	Asset  Address
	Owner  Address
	Amount uint64
}

// TransferPayload moves Amount units of Asset from the signer to To.
type TransferPayload struct {
	Asset  Address
	To     Address
	Amount uint64
}

// EscrowInitializePayload opens an escrow for the signer as maker.
type EscrowInitializePayload struct {
	Seed    uint64
	Deposit uint64
	Receive uint64
	AssetA  Address
	AssetB  Address
}

// EscrowExchangePayload fulfils the escrow at Escrow with the signer as taker.
type EscrowExchangePayload struct {
	Escrow Address
}

// EscrowRefundPayload cancels the escrow at Escrow. Only the maker may sign.
type EscrowRefundPayload struct {
	Escrow Address
}
