package core

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"swapescrow/core/events"
	"swapescrow/core/types"
	"swapescrow/native/common"
	"swapescrow/native/escrow"
	"swapescrow/native/token"
	"swapescrow/observability"
	"swapescrow/storage"
)

const testChainID = 7331

type recordingEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingEmitter) Emit(evt events.Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

func (r *recordingEmitter) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, evt := range r.events {
		out[i] = evt.EventType()
	}
	return out
}

type party struct {
	key   *ecdsa.PrivateKey
	id    types.Address
	nonce uint64
}

func newParty(t *testing.T) *party {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &party{key: key, id: types.IdentityFromPubkey(&key.PublicKey)}
}

func (p *party) tx(t *testing.T, txType types.TxType, payload interface{}) *types.Transaction {
	t.Helper()
	tx, err := types.NewTransaction(testChainID, txType, p.nonce, payload)
	if err != nil {
		t.Fatalf("new tx: %v", err)
	}
	if err := tx.Sign(p.key); err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tx
}

type harness struct {
	ledger  *Ledger
	emitter *recordingEmitter
	minter  *party
	maker   *party
	taker   *party
	assetA  types.Address
	assetB  types.Address
}

func (h *harness) exec(t *testing.T, p *party, txType types.TxType, payload interface{}) (*Receipt, error) {
	t.Helper()
	receipt, err := h.ledger.Execute(context.Background(), p.tx(t, txType, payload))
	if err == nil {
		p.nonce++
	}
	return receipt, err
}

func (h *harness) mustExec(t *testing.T, p *party, txType types.TxType, payload interface{}) *Receipt {
	t.Helper()
	receipt, err := h.exec(t, p, txType, payload)
	if err != nil {
		t.Fatalf("%s: %v", txType, err)
	}
	return receipt
}

func (h *harness) balance(t *testing.T, owner, asset types.Address) uint64 {
	t.Helper()
	bal, err := h.ledger.Balance(owner, asset)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	h := &harness{
		ledger:  NewLedger(db, testChainID),
		emitter: &recordingEmitter{},
		minter:  newParty(t),
		maker:   newParty(t),
		taker:   newParty(t),
	}
	h.ledger.SetEmitter(h.emitter)

	a := h.mustExec(t, h.minter, types.TxTypeCreateAsset, &types.CreateAssetPayload{Symbol: "AAA", Decimals: 6})
	b := h.mustExec(t, h.minter, types.TxTypeCreateAsset, &types.CreateAssetPayload{Symbol: "BBB", Decimals: 6})
	h.assetA, h.assetB = *a.Asset, *b.Asset
	h.mustExec(t, h.minter, types.TxTypeMintTo, &types.MintToPayload{Asset: h.assetA, Owner: h.maker.id, Amount: 5_000})
	h.mustExec(t, h.minter, types.TxTypeMintTo, &types.MintToPayload{Asset: h.assetB, Owner: h.taker.id, Amount: 2_000})
	return h
}

func (h *harness) initialize(t *testing.T, seed, deposit, receive uint64) types.Address {
	t.Helper()
	receipt := h.mustExec(t, h.maker, types.TxTypeEscrowInitialize, &types.EscrowInitializePayload{
		Seed: seed, Deposit: deposit, Receive: receive, AssetA: h.assetA, AssetB: h.assetB,
	})
	if receipt.Escrow == nil {
		t.Fatalf("receipt missing escrow address")
	}
	return *receipt.Escrow
}

func TestLedgerSwapRoundTrip(t *testing.T) {
	h := newHarness(t)
	addr := h.initialize(t, 7, 1_000, 500)

	entry, err := h.ledger.Escrow(addr)
	if err != nil {
		t.Fatalf("escrow lookup: %v", err)
	}
	if entry.VaultBalance != 1_000 || entry.Escrow.Maker != h.maker.id {
		t.Fatalf("unexpected entry %+v", entry)
	}

	receipt := h.mustExec(t, h.taker, types.TxTypeEscrowExchange, &types.EscrowExchangePayload{Escrow: addr})
	if len(receipt.Events) != 1 || receipt.Events[0].Type != escrow.EventTypeEscrowExchanged {
		t.Fatalf("unexpected receipt events %+v", receipt.Events)
	}
	if got := h.balance(t, h.taker.id, h.assetA); got != 1_000 {
		t.Fatalf("taker A: %d", got)
	}
	if got := h.balance(t, h.maker.id, h.assetB); got != 500 {
		t.Fatalf("maker B: %d", got)
	}
	if _, err := h.ledger.Escrow(addr); !errors.Is(err, escrow.ErrNotFound) {
		t.Fatalf("record should be gone, got %v", err)
	}
	found, err := h.ledger.FindEscrows(h.assetA, h.assetB)
	if err != nil || len(found) != 0 {
		t.Fatalf("no open escrows expected: %d %v", len(found), err)
	}
}

func TestLedgerRejectedTransactionLeavesNoTrace(t *testing.T) {
	h := newHarness(t)
	published := len(h.emitter.kinds())
	nonce, _ := h.ledger.Nonce(h.maker.id)

	_, err := h.exec(t, h.maker, types.TxTypeEscrowInitialize, &types.EscrowInitializePayload{
		Seed: 1, Deposit: 9_999, Receive: 1, AssetA: h.assetA, AssetB: h.assetB,
	})
	if !errors.Is(err, token.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if got, _ := h.ledger.Nonce(h.maker.id); got != nonce {
		t.Fatalf("rejected transaction must not consume the nonce")
	}
	if len(h.emitter.kinds()) != published {
		t.Fatalf("rejected transaction published events")
	}
	derived, _, _ := escrow.EscrowAddress(h.maker.id, 1)
	if _, err := h.ledger.Escrow(derived); !errors.Is(err, escrow.ErrNotFound) {
		t.Fatalf("no record may persist, got %v", err)
	}
	if got := h.balance(t, h.maker.id, h.assetA); got != 5_000 {
		t.Fatalf("maker balance changed: %d", got)
	}
}

func TestLedgerTransactionValidation(t *testing.T) {
	h := newHarness(t)

	wrongChain := h.maker.tx(t, types.TxTypeEscrowRefund, &types.EscrowRefundPayload{})
	wrongChain.ChainID = 1
	if _, err := h.ledger.Execute(context.Background(), wrongChain); !errors.Is(err, ErrWrongChain) {
		t.Fatalf("expected ErrWrongChain, got %v", err)
	}

	h.maker.nonce = 5
	if _, err := h.exec(t, h.maker, types.TxTypeTransfer, &types.TransferPayload{Asset: h.assetA, To: h.taker.id, Amount: 1}); !errors.Is(err, ErrBadNonce) {
		t.Fatalf("expected ErrBadNonce, got %v", err)
	}
	h.maker.nonce = 0

	unsigned, _ := types.NewTransaction(testChainID, types.TxTypeTransfer, 0, &types.TransferPayload{})
	if _, err := h.ledger.Execute(context.Background(), unsigned); !errors.Is(err, types.ErrMissingSignature) {
		t.Fatalf("expected missing signature, got %v", err)
	}
	garbled, _ := types.NewTransaction(testChainID, types.TxTypeTransfer, 0, &types.TransferPayload{})
	garbled.Sig = make([]byte, 10)
	if _, err := h.ledger.Execute(context.Background(), garbled); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}

	if _, err := h.exec(t, h.maker, types.TxType(0x7f), &types.TransferPayload{}); !errors.Is(err, ErrUnknownTxType) {
		t.Fatalf("expected ErrUnknownTxType, got %v", err)
	}
	if _, err := h.ledger.Execute(context.Background(), nil); err == nil {
		t.Fatalf("nil transaction must fail")
	}
}

func TestLedgerRefundOnlyByMaker(t *testing.T) {
	h := newHarness(t)
	addr := h.initialize(t, 3, 100, 50)
	if _, err := h.exec(t, h.taker, types.TxTypeEscrowRefund, &types.EscrowRefundPayload{Escrow: addr}); !errors.Is(err, escrow.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	h.mustExec(t, h.maker, types.TxTypeEscrowRefund, &types.EscrowRefundPayload{Escrow: addr})
	if _, err := h.exec(t, h.maker, types.TxTypeEscrowRefund, &types.EscrowRefundPayload{Escrow: addr}); !errors.Is(err, escrow.ErrNotFound) {
		t.Fatalf("second refund: %v", err)
	}
	if got := h.balance(t, h.maker.id, h.assetA); got != 5_000 {
		t.Fatalf("maker should be made whole: %d", got)
	}
}

func TestLedgerConcurrentRefundAndExchangeConflict(t *testing.T) {
	h := newHarness(t)
	addr := h.initialize(t, 9, 1_000, 500)

	var refundErr error
	fired := false
	h.ledger.beforeCommit = func() {
		if fired {
			return
		}
		fired = true
		_, refundErr = h.exec(t, h.maker, types.TxTypeEscrowRefund, &types.EscrowRefundPayload{Escrow: addr})
	}
	before := len(h.emitter.kinds())
	_, err := h.exec(t, h.taker, types.TxTypeEscrowExchange, &types.EscrowExchangePayload{Escrow: addr})
	h.ledger.beforeCommit = nil

	if refundErr != nil {
		t.Fatalf("interleaved refund: %v", refundErr)
	}
	if !errors.Is(err, ErrTxConflict) {
		t.Fatalf("exchange must lose with ErrTxConflict, got %v", err)
	}
	published := h.emitter.kinds()[before:]
	if len(published) != 1 || published[0] != escrow.EventTypeEscrowRefunded {
		t.Fatalf("only the refund may publish, got %v", published)
	}
	if got := h.balance(t, h.taker.id, h.assetA); got != 0 {
		t.Fatalf("losing exchange paid out: %d", got)
	}
	if got := h.balance(t, h.maker.id, h.assetA); got != 5_000 {
		t.Fatalf("refund not applied: %d", got)
	}

	// Resubmission now sees the retired record.
	if _, err := h.exec(t, h.taker, types.TxTypeEscrowExchange, &types.EscrowExchangePayload{Escrow: addr}); !errors.Is(err, escrow.ErrNotFound) {
		t.Fatalf("resubmitted exchange: %v", err)
	}
}

func TestLedgerPausedModules(t *testing.T) {
	h := newHarness(t)
	h.ledger.SetPauses(common.NewPauseSet("escrow"))
	if _, err := h.exec(t, h.maker, types.TxTypeEscrowInitialize, &types.EscrowInitializePayload{
		Seed: 1, Deposit: 1, Receive: 1, AssetA: h.assetA, AssetB: h.assetB,
	}); !errors.Is(err, common.ErrModulePaused) {
		t.Fatalf("expected paused escrow, got %v", err)
	}
	h.mustExec(t, h.maker, types.TxTypeTransfer, &types.TransferPayload{Asset: h.assetA, To: h.taker.id, Amount: 1})

	h.ledger.SetPauses(common.NewPauseSet("token"))
	if _, err := h.exec(t, h.maker, types.TxTypeTransfer, &types.TransferPayload{Asset: h.assetA, To: h.taker.id, Amount: 1}); !errors.Is(err, common.ErrModulePaused) {
		t.Fatalf("expected paused token, got %v", err)
	}
}

func TestLedgerCancelledContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tx := h.maker.tx(t, types.TxTypeTransfer, &types.TransferPayload{Asset: h.assetA, To: h.taker.id, Amount: 1})
	if _, err := h.ledger.Execute(ctx, tx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := h.balance(t, h.taker.id, h.assetA); got != 0 {
		t.Fatalf("cancelled transaction applied")
	}
}

// gatedEmitter holds the first published event until gate is closed.
type gatedEmitter struct {
	recordingEmitter
	once    sync.Once
	entered chan struct{}
	gate    chan struct{}
}

func (g *gatedEmitter) Emit(evt events.Event) {
	g.once.Do(func() {
		close(g.entered)
		<-g.gate
	})
	g.recordingEmitter.Emit(evt)
}

func TestLedgerPublishesInCommitOrder(t *testing.T) {
	h := newHarness(t)
	older := h.initialize(t, 1, 100, 10)

	gated := &gatedEmitter{entered: make(chan struct{}), gate: make(chan struct{})}
	h.ledger.SetEmitter(gated)

	first := h.maker.tx(t, types.TxTypeEscrowInitialize, &types.EscrowInitializePayload{
		Seed: 2, Deposit: 100, Receive: 10, AssetA: h.assetA, AssetB: h.assetB,
	})
	h.maker.nonce++
	second := h.maker.tx(t, types.TxTypeEscrowRefund, &types.EscrowRefundPayload{Escrow: older})
	h.maker.nonce++

	errs := make(chan error, 2)
	go func() {
		_, err := h.ledger.Execute(context.Background(), first)
		errs <- err
	}()
	<-gated.entered

	secondDone := make(chan error, 1)
	go func() {
		_, err := h.ledger.Execute(context.Background(), second)
		secondDone <- err
	}()
	select {
	case err := <-secondDone:
		t.Fatalf("later commit finished while an earlier one was still publishing: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(gated.gate)
	if err := <-errs; err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := <-secondDone; err != nil {
		t.Fatalf("refund: %v", err)
	}
	got := gated.kinds()
	if len(got) != 2 || got[0] != escrow.EventTypeEscrowInitialized || got[1] != escrow.EventTypeEscrowRefunded {
		t.Fatalf("events out of commit order: %v", got)
	}
}

func TestLedgerSeedsOpenEscrowGauge(t *testing.T) {
	h := newHarness(t)
	first := h.initialize(t, 1, 100, 10)
	h.initialize(t, 2, 100, 10)

	if err := h.ledger.SetMetrics(observability.Ledger()); err != nil {
		t.Fatalf("set metrics: %v", err)
	}
	expect := func(n string) {
		t.Helper()
		want := "# HELP swapescrow_escrow_open Live escrows: initialized and not yet exchanged or refunded.\n" +
			"# TYPE swapescrow_escrow_open gauge\n" +
			"swapescrow_escrow_open " + n + "\n"
		if err := testutil.GatherAndCompare(prometheus.DefaultGatherer, strings.NewReader(want), "swapescrow_escrow_open"); err != nil {
			t.Fatalf("open gauge: %v", err)
		}
	}
	expect("2")

	h.mustExec(t, h.maker, types.TxTypeEscrowRefund, &types.EscrowRefundPayload{Escrow: first})
	expect("1")
}
