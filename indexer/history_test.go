package indexer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"swapescrow/core/types"
	"swapescrow/native/escrow"
	"swapescrow/native/token"
)

type wrapped struct{ evt *types.Event }

func (w wrapped) EventType() string   { return w.evt.Type }
func (w wrapped) Event() *types.Event { return w.evt }

type bare string

func (b bare) EventType() string { return string(b) }

func addr(b byte) types.Address {
	var a types.Address
	a[0] = b
	return a
}

func sample() *escrow.Escrow {
	return &escrow.Escrow{Seed: 7, Maker: addr(1), AssetA: addr(2), AssetB: addr(3), Deposit: 1_000, Receive: 500}
}

func TestHistoryRecordsLifecycle(t *testing.T) {
	h, err := Open(":memory:")
	require.NoError(t, err)
	defer h.Close()

	esc := addr(9)
	h.Emit(wrapped{escrow.NewInitializedEvent(esc, sample())})
	h.Emit(wrapped{token.NewMintedEvent(addr(2), addr(1), 5)})
	h.Emit(bare("escrow.untyped"))
	h.Emit(wrapped{escrow.NewExchangedEvent(esc, sample(), addr(4), 0)})

	got, err := h.ByEscrow(context.Background(), esc.String())
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, escrow.EventTypeEscrowInitialized, got[0].Type)
	require.Equal(t, escrow.EventTypeEscrowExchanged, got[1].Type)
	require.Empty(t, got[0].Taker)
	require.Equal(t, addr(4).String(), got[1].Taker)
	require.Equal(t, "1000", got[1].Attributes["deposit"])
	require.Equal(t, addr(1).String(), got[1].Maker)

	byMaker, err := h.ByMaker(context.Background(), addr(1).String(), 1)
	require.NoError(t, err)
	require.Len(t, byMaker, 1)
	require.Equal(t, escrow.EventTypeEscrowExchanged, byMaker[0].Type)
}

func TestHistoryPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	h, err := Open(path)
	require.NoError(t, err)
	h.Emit(wrapped{escrow.NewRefundedEvent(addr(5), sample(), 1_000)})
	require.NoError(t, h.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.ByEscrow(context.Background(), addr(5).String())
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "1000", got[0].Attributes["refunded"])
}
