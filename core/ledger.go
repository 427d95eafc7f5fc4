package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"swapescrow/core/events"
	"swapescrow/core/state"
	"swapescrow/core/types"
	"swapescrow/native/common"
	"swapescrow/native/escrow"
	"swapescrow/observability"
	telemetry "swapescrow/observability/otel"
	"swapescrow/storage"
)

var (
	// ErrTxConflict is the host's retry signal: another transaction committed
	// a key this one touched. The caller should re-sign and resubmit.
	ErrTxConflict       = errors.New("ledger: transaction conflict, resubmit")
	ErrBadNonce         = errors.New("ledger: bad nonce")
	ErrWrongChain       = errors.New("ledger: wrong chain id")
	ErrInvalidSignature = types.ErrInvalidSignature
	ErrUnknownTxType    = errors.New("ledger: unknown transaction type")
	errNilTransaction   = errors.New("ledger: nil transaction")
)

var noncePrefix = []byte("ledger/nonce/")

func nonceKey(addr types.Address) []byte {
	return append(append([]byte(nil), noncePrefix...), addr[:]...)
}

// Receipt summarises a committed transaction.
type Receipt struct {
	TxHash hexutil.Bytes  `json:"txHash"`
	Type   string         `json:"type"`
	Signer types.Address  `json:"signer"`
	Nonce  uint64         `json:"nonce"`
	Escrow *types.Address `json:"escrow,omitempty"`
	Asset  *types.Address `json:"asset,omitempty"`
	Events []types.Event  `json:"events"`
}

// Ledger executes signed transactions one at a time per call, each against
// its own staged state. Calls may run concurrently; commits are serialised
// and conflicting ones fail with ErrTxConflict.
type Ledger struct {
	store   *state.Store
	chainID uint64
	emitter events.Emitter
	pauses  common.PauseView
	logger  *slog.Logger
	metrics *observability.LedgerMetrics
	tracer  trace.Tracer

	// publishMu spans commit and publication so subscribers observe events
	// in commit order.
	publishMu sync.Mutex

	// beforeCommit runs between execution and commit; tests use it to
	// interleave a competing transaction.
	beforeCommit func()
}

// NewLedger opens a ledger over db for chainID.
func NewLedger(db storage.Database, chainID uint64) *Ledger {
	return &Ledger{
		store:   state.NewStore(db),
		chainID: chainID,
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		tracer:  telemetry.Tracer("swapescrow/core"),
	}
}

// ChainID returns the chain id transactions must carry.
func (l *Ledger) ChainID() uint64 { return l.chainID }

// SetEmitter configures where committed events are published. Passing nil
// discards them.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetPauses installs the module pause view.
func (l *Ledger) SetPauses(p common.PauseView) { l.pauses = p }

// SetLogger replaces the logger.
func (l *Ledger) SetLogger(logger *slog.Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// SetMetrics enables prometheus instrumentation and seeds the open escrow
// gauge from the committed records.
func (l *Ledger) SetMetrics(m *observability.LedgerMetrics) error {
	l.metrics = m
	if m == nil {
		return nil
	}
	return l.View(func(view *state.Manager) error {
		open, err := escrow.Count(view)
		if err != nil {
			return err
		}
		m.SetOpen(open)
		return nil
	})
}

// Execute validates tx, applies it to a fresh staged state and commits. On any
// error nothing is written and no event is published.
func (l *Ledger) Execute(ctx context.Context, tx *types.Transaction) (*Receipt, error) {
	if tx == nil {
		return nil, errNilTransaction
	}
	start := time.Now()
	ctx, span := l.tracer.Start(ctx, "ledger.Execute", trace.WithAttributes(
		attribute.String("tx.type", tx.Type.String()),
		attribute.Int64("tx.nonce", int64(tx.Nonce)),
	))
	defer span.End()

	receipt, err := l.execute(ctx, tx)
	outcome := "committed"
	switch {
	case errors.Is(err, ErrTxConflict):
		outcome = "conflict"
	case err != nil:
		outcome = "rejected"
	}
	l.metrics.ObserveTx(tx.Type.String(), outcome, time.Since(start))
	if err != nil {
		if errors.Is(err, escrow.ErrVaultAndEscrowInvalidAmount) {
			l.metrics.RecordCustodyViolation()
			l.logger.Error("escrow custody violation", slog.String("type", tx.Type.String()), slog.Any("error", err))
		} else {
			l.logger.Debug("transaction rejected", slog.String("type", tx.Type.String()), slog.String("outcome", outcome), slog.Any("error", err))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}
	span.SetAttributes(attribute.String("tx.signer", receipt.Signer.String()))
	l.logger.Info("transaction committed",
		slog.String("type", receipt.Type),
		slog.String("signer", receipt.Signer.String()),
		slog.Uint64("nonce", receipt.Nonce),
		slog.Int("events", len(receipt.Events)))
	return receipt, nil
}

func (l *Ledger) execute(ctx context.Context, tx *types.Transaction) (*Receipt, error) {
	if tx.ChainID != l.chainID {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrWrongChain, tx.ChainID, l.chainID)
	}
	signer, err := tx.From()
	if err != nil {
		return nil, err
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}

	m, err := l.store.Begin()
	if err != nil {
		return nil, err
	}
	defer m.Release()

	var expected uint64
	if _, err := state.GetRLP(m, nonceKey(signer), &expected); err != nil {
		return nil, err
	}
	if tx.Nonce != expected {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBadNonce, tx.Nonce, expected)
	}

	buf := &events.Buffer{}
	receipt := &Receipt{TxHash: hash, Type: tx.Type.String(), Signer: signer, Nonce: tx.Nonce}
	if err := l.applyTransaction(m, buf, signer, tx, receipt); err != nil {
		return nil, err
	}
	if err := state.PutRLP(m, nonceKey(signer), expected+1); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.beforeCommit != nil {
		l.beforeCommit()
	}
	l.publishMu.Lock()
	defer l.publishMu.Unlock()
	if err := l.store.Commit(m); err != nil {
		if errors.Is(err, state.ErrConflict) {
			return nil, fmt.Errorf("%w: %w", ErrTxConflict, err)
		}
		return nil, err
	}

	for _, evt := range buf.Events() {
		if typed, ok := evt.(events.TypedEvent); ok && typed.Event() != nil {
			receipt.Events = append(receipt.Events, *typed.Event().Clone())
		}
		l.recordTransition(evt.EventType())
	}
	buf.Flush(l.emitter)
	return receipt, nil
}

func (l *Ledger) recordTransition(eventType string) {
	switch eventType {
	case escrow.EventTypeEscrowInitialized:
		l.metrics.RecordTransition("initialized")
	case escrow.EventTypeEscrowExchanged:
		l.metrics.RecordTransition("exchanged")
	case escrow.EventTypeEscrowRefunded:
		l.metrics.RecordTransition("refunded")
	}
}
