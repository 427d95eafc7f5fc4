package indexer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"swapescrow/core/events"
)

// Record is one committed escrow lifecycle event.
type Record struct {
	ID         int64             `json:"id"`
	Type       string            `json:"type"`
	Escrow     string            `json:"escrow"`
	Maker      string            `json:"maker"`
	Taker      string            `json:"taker,omitempty"`
	AssetA     string            `json:"assetA"`
	AssetB     string            `json:"assetB"`
	Attributes map[string]string `json:"attributes"`
	RecordedAt time.Time         `json:"recordedAt"`
}

// History persists escrow events to SQLite. It implements events.Emitter so
// it can subscribe to the ledger's committed event stream.
type History struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (or creates) the history database at path. Use ":memory:" for an
// ephemeral store.
func Open(path string) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases shared and serialises
	// writers.
	db.SetMaxOpenConns(1)
	h := &History{db: db, logger: slog.Default(), now: func() time.Time { return time.Now().UTC() }}
	if err := h.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return h, nil
}

func (h *History) init() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS escrow_events (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            type TEXT NOT NULL,
            escrow TEXT NOT NULL,
            maker TEXT NOT NULL,
            taker TEXT,
            asset_a TEXT NOT NULL,
            asset_b TEXT NOT NULL,
            payload TEXT NOT NULL,
            recorded_at TIMESTAMP NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS escrow_events_escrow ON escrow_events(escrow, id);`,
		`CREATE INDEX IF NOT EXISTS escrow_events_maker ON escrow_events(maker, id);`,
	}
	for _, stmt := range schema {
		if _, err := h.db.Exec(stmt); err != nil {
			return fmt.Errorf("history: init schema: %w", err)
		}
	}
	return nil
}

// SetLogger replaces the logger used to report write failures.
func (h *History) SetLogger(logger *slog.Logger) {
	if logger != nil {
		h.logger = logger
	}
}

// Emit implements events.Emitter. Non-escrow events are ignored; write errors
// are logged since emitters cannot fail the committed transaction.
func (h *History) Emit(evt events.Event) {
	typed, ok := evt.(events.TypedEvent)
	if !ok || typed.Event() == nil || !strings.HasPrefix(typed.EventType(), "escrow.") {
		return
	}
	if err := h.insert(context.Background(), typed.EventType(), typed.Event().Attributes); err != nil {
		h.logger.Error("history: record event", slog.String("type", typed.EventType()), slog.Any("error", err))
	}
}

func (h *History) insert(ctx context.Context, eventType string, attrs map[string]string) error {
	payload, err := json.Marshal(attrs)
	if err != nil {
		return err
	}
	_, err = h.db.ExecContext(ctx,
		`INSERT INTO escrow_events (type, escrow, maker, taker, asset_a, asset_b, payload, recorded_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		eventType, attrs["escrow"], attrs["maker"], nullable(attrs["taker"]),
		attrs["assetA"], attrs["assetB"], string(payload), h.now())
	return err
}

// ByEscrow returns the events of one escrow, oldest first.
func (h *History) ByEscrow(ctx context.Context, escrow string) ([]Record, error) {
	return h.query(ctx, `WHERE escrow = ? ORDER BY id ASC`, escrow)
}

// ByMaker returns the most recent events of escrows opened by maker.
func (h *History) ByMaker(ctx context.Context, maker string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	return h.query(ctx, `WHERE maker = ? ORDER BY id DESC LIMIT ?`, maker, limit)
}

func (h *History) query(ctx context.Context, clause string, args ...any) ([]Record, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, type, escrow, maker, taker, asset_a, asset_b, payload, recorded_at FROM escrow_events `+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec     Record
			taker   sql.NullString
			payload string
		)
		if err := rows.Scan(&rec.ID, &rec.Type, &rec.Escrow, &rec.Maker, &taker, &rec.AssetA, &rec.AssetB, &payload, &rec.RecordedAt); err != nil {
			return nil, err
		}
		rec.Taker = taker.String
		if err := json.Unmarshal([]byte(payload), &rec.Attributes); err != nil {
			return nil, fmt.Errorf("history: decode payload %d: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the database.
func (h *History) Close() error {
	return h.db.Close()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
