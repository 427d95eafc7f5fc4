package modules

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"swapescrow/core"
	"swapescrow/indexer"
	"swapescrow/native/escrow"
)

const defaultHistoryLimit = 100

// HistoryReader is the read side of the escrow event indexer.
type HistoryReader interface {
	ByEscrow(ctx context.Context, escrow string) ([]indexer.Record, error)
	ByMaker(ctx context.Context, maker string, limit int) ([]indexer.Record, error)
}

// EscrowModule exposes live escrow lookups, address derivation and the
// indexed event history.
type EscrowModule struct {
	ledger  *core.Ledger
	history HistoryReader
}

// NewEscrowModule constructs the escrow RPC module. history may be nil when
// the indexer is disabled.
func NewEscrowModule(ledger *core.Ledger, history HistoryReader) *EscrowModule {
	return &EscrowModule{ledger: ledger, history: history}
}

type escrowAddrParams struct {
	Escrow string `json:"escrow"`
}

type findParams struct {
	AssetA string `json:"assetA"`
	AssetB string `json:"assetB"`
}

type deriveParams struct {
	Maker string `json:"maker"`
	Seed  uint64 `json:"seed"`
}

type historyParams struct {
	Escrow string `json:"escrow,omitempty"`
	Maker  string `json:"maker,omitempty"`
	Limit  *int   `json:"limit,omitempty"`
}

// EscrowResult is a live escrow and the balance its vault holds.
type EscrowResult struct {
	Address      string `json:"address"`
	Seed         uint64 `json:"seed"`
	Maker        string `json:"maker"`
	AssetA       string `json:"assetA"`
	AssetB       string `json:"assetB"`
	Deposit      string `json:"deposit"`
	Receive      string `json:"receive"`
	Bump         uint8  `json:"bump"`
	Vault        string `json:"vault"`
	VaultBalance string `json:"vaultBalance"`
}

// DeriveResult holds the addresses an initialize with the given seed would use.
type DeriveResult struct {
	Escrow string `json:"escrow"`
	Vault  string `json:"vault"`
	Bump   uint8  `json:"bump"`
}

func escrowResult(entry *escrow.Entry) *EscrowResult {
	rec := entry.Escrow
	return &EscrowResult{
		Address:      entry.Address.String(),
		Seed:         rec.Seed,
		Maker:        rec.Maker.String(),
		AssetA:       rec.AssetA.String(),
		AssetB:       rec.AssetB.String(),
		Deposit:      strconv.FormatUint(rec.Deposit, 10),
		Receive:      strconv.FormatUint(rec.Receive, 10),
		Bump:         rec.Bump,
		Vault:        entry.Vault.String(),
		VaultBalance: strconv.FormatUint(entry.VaultBalance, 10),
	}
}

func (m *EscrowModule) Get(params []json.RawMessage) (*EscrowResult, *ModuleError) {
	var p escrowAddrParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	addr, modErr := parseAddress("escrow", p.Escrow)
	if modErr != nil {
		return nil, modErr
	}
	entry, err := m.ledger.Escrow(addr)
	if err != nil {
		return nil, FromError(err)
	}
	return escrowResult(entry), nil
}

func (m *EscrowModule) Find(params []json.RawMessage) ([]*EscrowResult, *ModuleError) {
	var p findParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	assetA, modErr := parseAddress("assetA", p.AssetA)
	if modErr != nil {
		return nil, modErr
	}
	assetB, modErr := parseAddress("assetB", p.AssetB)
	if modErr != nil {
		return nil, modErr
	}
	entries, err := m.ledger.FindEscrows(assetA, assetB)
	if err != nil {
		return nil, FromError(err)
	}
	out := make([]*EscrowResult, 0, len(entries))
	for _, entry := range entries {
		out = append(out, escrowResult(entry))
	}
	return out, nil
}

func (m *EscrowModule) Derive(params []json.RawMessage) (*DeriveResult, *ModuleError) {
	var p deriveParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	maker, modErr := parseAddress("maker", p.Maker)
	if modErr != nil {
		return nil, modErr
	}
	addr, bump, err := escrow.EscrowAddress(maker, p.Seed)
	if err != nil {
		return nil, FromError(err)
	}
	vault, err := escrow.VaultAddress(addr)
	if err != nil {
		return nil, FromError(err)
	}
	return &DeriveResult{Escrow: addr.String(), Vault: vault.String(), Bump: bump}, nil
}

func (m *EscrowModule) History(ctx context.Context, params []json.RawMessage) ([]indexer.Record, *ModuleError) {
	if m.history == nil {
		return nil, &ModuleError{HTTPStatus: http.StatusNotImplemented, Code: codeServerError, Message: "escrow history indexer disabled"}
	}
	var p historyParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	p.Escrow = strings.TrimSpace(p.Escrow)
	p.Maker = strings.TrimSpace(p.Maker)
	if (p.Escrow == "") == (p.Maker == "") {
		return nil, invalidParams("exactly one of escrow or maker required", nil)
	}
	var (
		records []indexer.Record
		err     error
	)
	if p.Escrow != "" {
		addr, modErr := parseAddress("escrow", p.Escrow)
		if modErr != nil {
			return nil, modErr
		}
		records, err = m.history.ByEscrow(ctx, addr.String())
	} else {
		maker, modErr := parseAddress("maker", p.Maker)
		if modErr != nil {
			return nil, modErr
		}
		limit := defaultHistoryLimit
		if p.Limit != nil {
			if *p.Limit <= 0 || *p.Limit > 1000 {
				return nil, invalidParams("limit must be between 1 and 1000", *p.Limit)
			}
			limit = *p.Limit
		}
		records, err = m.history.ByMaker(ctx, maker.String(), limit)
	}
	if err != nil {
		return nil, FromError(err)
	}
	if records == nil {
		records = []indexer.Record{}
	}
	return records, nil
}
