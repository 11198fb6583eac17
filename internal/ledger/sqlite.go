package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ismaiel54/futures-fix-trader/internal/msg"
	"github.com/ismaiel54/futures-fix-trader/internal/order"
)

// Store is a SQLite ledger. Every status change also writes an outbox event
// in the same transaction.
type Store struct {
	db          *sql.DB
	statusTopic string
}

// Record is a stored intent with its current status
type Record struct {
	Intent  order.Intent
	Status  Status
	ClOrdID string
	Text    string
}

// OutboxEvent represents an event waiting to be published
type OutboxEvent struct {
	ID                  int64
	OrderID             string
	EventID             string
	Topic               string
	Key                 string
	PayloadJSON         string
	CreatedUnixMillis   int64
	PublishedUnixMillis sql.NullInt64
}

// Open creates or opens the ledger database
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer keeps the conditional updates serialised
	db.SetMaxOpenConns(1)

	store := &Store{db: db, statusTopic: msg.TopicOrdersStatus}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// SetStatusTopic changes the topic of outbox events written from now on
func (s *Store) SetStatusTopic(topic string) {
	if topic != "" {
		s.statusTopic = topic
	}
}

func (s *Store) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS intents (
			new_order_id TEXT PRIMARY KEY,
			transaction_time TEXT NOT NULL,
			symbol TEXT NOT NULL,
			maturity TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			side TEXT NOT NULL,
			ord_type TEXT NOT NULL,
			status TEXT NOT NULL,
			cl_ord_id TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL DEFAULT '',
			created_unix_millis INTEGER NOT NULL,
			updated_unix_millis INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS outbox_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id TEXT NOT NULL,
			event_id TEXT NOT NULL UNIQUE,
			topic TEXT NOT NULL,
			key TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			created_unix_millis INTEGER NOT NULL,
			published_unix_millis INTEGER NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_unpublished
			ON outbox_events(published_unix_millis)
			WHERE published_unix_millis IS NULL`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

// Claim records intent as PENDING
func (s *Store) Claim(ctx context.Context, intent order.Intent) error {
	now := time.Now().UnixMilli()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO intents (new_order_id, transaction_time, symbol, maturity, quantity, side, ord_type,
			status, created_unix_millis, updated_unix_millis)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(new_order_id) DO NOTHING`,
		intent.ID, intent.SubmittedAt, intent.Symbol, intent.Maturity, intent.Quantity,
		intent.Side, intent.OrdType, string(StatusPending), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to claim intent %s: %w", intent.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to claim intent %s: %w", intent.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("intent %s: %w", intent.ID, ErrAlreadyClaimed)
	}
	return nil
}

// UpdateStatus moves a PENDING intent to u.Status and queues a status event
func (s *Store) UpdateStatus(ctx context.Context, u Update) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %w", ErrUpdateFailed, err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	res, err := tx.ExecContext(ctx,
		`UPDATE intents SET status = ?, cl_ord_id = ?, text = ?, updated_unix_millis = ?
		 WHERE new_order_id = ? AND status = ?`,
		string(u.Status), u.ClOrdID, u.Text, now, u.IntentID, string(StatusPending),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to update intent %s: %w", ErrUpdateFailed, u.IntentID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to update intent %s: %w", ErrUpdateFailed, u.IntentID, err)
	}
	if n == 0 {
		var status string
		err := tx.QueryRowContext(ctx, "SELECT status FROM intents WHERE new_order_id = ?", u.IntentID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: intent %s not found", ErrUpdateFailed, u.IntentID)
		}
		if err != nil {
			return fmt.Errorf("%w: failed to read intent %s: %w", ErrUpdateFailed, u.IntentID, err)
		}
		return fmt.Errorf("%w: intent %s is %s: %w", ErrUpdateFailed, u.IntentID, status, ErrNotPending)
	}

	event := msg.StatusMsg{
		EventID:      uuid.New().String(),
		NewOrderID:   u.IntentID,
		Status:       string(u.Status),
		ClOrdID:      u.ClOrdID,
		Text:         u.Text,
		TsUnixMillis: now,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal status event: %w", ErrUpdateFailed, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox_events (order_id, event_id, topic, key, payload_json, created_unix_millis, published_unix_millis)
		 VALUES (?, ?, ?, ?, ?, ?, NULL)`,
		u.IntentID, event.EventID, s.statusTopic, u.IntentID, string(payload), now,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to insert outbox event: %w", ErrUpdateFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %w", ErrUpdateFailed, err)
	}
	return nil
}

// Get returns the stored record for an intent
func (s *Store) Get(ctx context.Context, intentID string) (Record, error) {
	var r Record
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT new_order_id, transaction_time, symbol, maturity, quantity, side, ord_type, status, cl_ord_id, text
		 FROM intents WHERE new_order_id = ?`,
		intentID,
	).Scan(&r.Intent.ID, &r.Intent.SubmittedAt, &r.Intent.Symbol, &r.Intent.Maturity, &r.Intent.Quantity,
		&r.Intent.Side, &r.Intent.OrdType, &status, &r.ClOrdID, &r.Text)
	if err != nil {
		return Record{}, fmt.Errorf("failed to get intent %s: %w", intentID, err)
	}
	r.Status = Status(status)
	return r, nil
}

// ListUnpublished returns unpublished outbox events
func (s *Store) ListUnpublished(ctx context.Context, limit int) ([]OutboxEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_id, event_id, topic, key, payload_json, created_unix_millis, published_unix_millis
		 FROM outbox_events
		 WHERE published_unix_millis IS NULL
		 ORDER BY id ASC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query unpublished events: %w", err)
	}
	defer rows.Close()

	var out []OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(
			&e.ID, &e.OrderID, &e.EventID, &e.Topic, &e.Key,
			&e.PayloadJSON, &e.CreatedUnixMillis, &e.PublishedUnixMillis,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		out = append(out, e)
	}

	return out, rows.Err()
}

// MarkPublished marks an event as published
func (s *Store) MarkPublished(ctx context.Context, eventID string, nowMillis int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE outbox_events SET published_unix_millis = ? WHERE event_id = ?",
		nowMillis, eventID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark event as published: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
