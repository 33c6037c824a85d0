package monitor

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rmap-protocol/rmap-go/pkg/log"
	"github.com/rmap-protocol/rmap-go/pkg/wire"
)

// DefaultHistoryLimit is used when Recent is called without a limit.
const DefaultHistoryLimit = 100

// Record is one completed transaction.
type Record struct {
	ID                   int64         `json:"id"`
	CompletedAt          time.Time     `json:"completedAt"`
	ConnectionID         string        `json:"connectionId,omitempty"`
	TransactionID        uint16        `json:"transactionId"`
	TargetLogicalAddress uint8         `json:"targetLogicalAddress"`
	Operation            string        `json:"operation"`
	ExtendedAddress      uint8         `json:"extendedAddress"`
	Address              uint32        `json:"address"`
	Length               uint32        `json:"length"`
	State                string        `json:"state"`
	Status               *wire.Status  `json:"status,omitempty"`
	Latency              time.Duration `json:"latencyNs"`
}

// History stores completed transactions in SQLite.
// It correlates command, reply and transaction events by transaction ID.
type History struct {
	db *sql.DB
	mu sync.Mutex

	inflight map[inflightKey]*Record
	logger   *slog.Logger
}

// SetLogger sets the logger that reports failed inserts. Nil disables it.
func (h *History) SetLogger(logger *slog.Logger) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logger = logger
}

type inflightKey struct {
	conn string
	tid  uint16
}

// NewHistory opens the history database at dbPath.
// Use ":memory:" for an in-memory database.
func NewHistory(dbPath string) (*History, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// An in-memory database exists once per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	h := &History{db: db, inflight: make(map[inflightKey]*Record)}
	if err := h.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return h, nil
}

func (h *History) migrate() error {
	_, err := h.db.Exec(`
	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		completed_at DATETIME NOT NULL,
		connection_id TEXT,
		tid INTEGER NOT NULL,
		target_la INTEGER NOT NULL,
		operation TEXT NOT NULL,
		ext INTEGER NOT NULL,
		address INTEGER NOT NULL,
		length INTEGER NOT NULL,
		state TEXT NOT NULL,
		status INTEGER,
		latency_ns INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_completed_at ON transactions(completed_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_state ON transactions(state);
	`)
	return err
}

// Close closes the database.
func (h *History) Close() error {
	return h.db.Close()
}

// Log implements log.Logger.
func (h *History) Log(ev log.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case ev.Packet != nil && ev.Packet.Type == log.PacketTypeCommand && ev.Direction == log.DirectionOut:
		p := ev.Packet
		rec := &Record{
			ConnectionID:         ev.ConnectionID,
			TransactionID:        p.TransactionID,
			TargetLogicalAddress: p.TargetLogicalAddress,
			Operation:            wire.Instruction(p.Instruction).Operation(),
			Length:               p.DataLength,
		}
		if p.ExtendedAddress != nil {
			rec.ExtendedAddress = *p.ExtendedAddress
		}
		if p.Address != nil {
			rec.Address = *p.Address
		}
		h.inflight[inflightKey{ev.ConnectionID, p.TransactionID}] = rec

	case ev.Packet != nil && ev.Packet.Type == log.PacketTypeReply && ev.Direction == log.DirectionIn:
		if rec, ok := h.inflight[inflightKey{ev.ConnectionID, ev.Packet.TransactionID}]; ok && ev.Packet.Status != nil {
			status := *ev.Packet.Status
			rec.Status = &status
		}

	case ev.Transaction != nil && ev.Transaction.State != "PENDING":
		key := inflightKey{ev.ConnectionID, ev.Transaction.TransactionID}
		rec, ok := h.inflight[key]
		if !ok {
			rec = &Record{ConnectionID: ev.ConnectionID, TransactionID: ev.Transaction.TransactionID}
		}
		delete(h.inflight, key)
		rec.CompletedAt = ev.Timestamp
		rec.State = ev.Transaction.State
		if ev.Transaction.Latency != nil {
			rec.Latency = *ev.Transaction.Latency
		}
		if err := h.insert(rec); err != nil && h.logger != nil {
			h.logger.Warn("history insert failed", "tid", rec.TransactionID, "state", rec.State, "error", err)
		}
	}
}

func (h *History) insert(rec *Record) error {
	var status sql.NullInt64
	if rec.Status != nil {
		status = sql.NullInt64{Int64: int64(*rec.Status), Valid: true}
	}
	_, err := h.db.Exec(`
		INSERT INTO transactions (completed_at, connection_id, tid, target_la, operation,
			ext, address, length, state, status, latency_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.CompletedAt, rec.ConnectionID, rec.TransactionID, rec.TargetLogicalAddress, rec.Operation,
		rec.ExtendedAddress, rec.Address, rec.Length, rec.State, status, int64(rec.Latency))
	return err
}

// Recent returns up to limit records, newest first.
func (h *History) Recent(limit int) ([]Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := h.db.Query(`
		SELECT id, completed_at, connection_id, tid, target_la, operation,
		       ext, address, length, state, status, latency_ns
		FROM transactions
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		var connID sql.NullString
		var status sql.NullInt64
		var latency int64
		if err := rows.Scan(
			&rec.ID, &rec.CompletedAt, &connID, &rec.TransactionID, &rec.TargetLogicalAddress, &rec.Operation,
			&rec.ExtendedAddress, &rec.Address, &rec.Length, &rec.State, &status, &latency,
		); err != nil {
			return nil, err
		}
		rec.ConnectionID = connID.String
		if status.Valid {
			s := wire.Status(status.Int64)
			rec.Status = &s
		}
		rec.Latency = time.Duration(latency)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountByState returns the number of records per terminal state.
func (h *History) CountByState() (map[string]int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rows, err := h.db.Query(`SELECT state, COUNT(*) FROM transactions GROUP BY state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[state] = n
	}
	return counts, rows.Err()
}

var _ log.Logger = (*History)(nil)
