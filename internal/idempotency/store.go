package idempotency

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ismaiel54/ems-order-client/internal/msg"
	"github.com/ismaiel54/ems-order-client/internal/order"
	_ "modernc.org/sqlite"
)

// Command outcomes recorded per order tag
const (
	StatusAccepted = "ACCEPTED"
	StatusRejected = "REJECTED"
)

// Store provides idempotency and outbox functionality
type Store struct {
	db *sql.DB
}

// ProcessResult represents the result of processing an order command
type ProcessResult struct {
	Duplicate    bool
	Status       string
	Reason       string
	OutboxEvents []OutboxEvent
}

// OutboxEvent represents an event waiting to be published
type OutboxEvent struct {
	ID                  int64
	OrderTag            string
	EventID             string
	Batch               int
	Topic               string
	Key                 string
	PayloadJSON         string
	CreatedUnixMillis   int64
	DueUnixMillis       int64
	PublishedUnixMillis sql.NullInt64
}

// Open creates or opens the idempotency store
func Open(path string) (*Store, error) {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; the consumer and the publisher share it
	db.SetMaxOpenConns(1)

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// migrate creates the necessary tables
func (s *Store) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS processed_commands (
			order_tag TEXT PRIMARY KEY,
			command_event_id TEXT NOT NULL,
			first_seen_unix_millis INTEGER NOT NULL,
			status TEXT NOT NULL,
			reason TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS outbox_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_tag TEXT NOT NULL,
			event_id TEXT NOT NULL UNIQUE,
			batch INTEGER NOT NULL,
			topic TEXT NOT NULL,
			key TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			created_unix_millis INTEGER NOT NULL,
			due_unix_millis INTEGER NOT NULL,
			published_unix_millis INTEGER NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_unpublished
			ON outbox_events(published_unix_millis, due_unix_millis)
			WHERE published_unix_millis IS NULL`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

// ProcessOrderCommand records cmd once per order tag and queues its planned
// event batches, batch i becoming due i*gap after now. A redelivered command
// is reported as a duplicate and queues nothing.
func (s *Store) ProcessOrderCommand(ctx context.Context, cmd msg.OrderCmdMsg, batches [][]order.Event, gap time.Duration) (ProcessResult, error) {
	tag := cmd.Order.OrderTag
	if tag == "" {
		return ProcessResult{}, errors.New("order command without order tag")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existingStatus, existingReason string
	err = tx.QueryRowContext(ctx,
		"SELECT status, reason FROM processed_commands WHERE order_tag = ?",
		tag,
	).Scan(&existingStatus, &existingReason)
	if err == nil {
		return ProcessResult{
			Duplicate: true,
			Status:    existingStatus,
			Reason:    existingReason,
		}, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return ProcessResult{}, fmt.Errorf("failed to check existing order: %w", err)
	}

	now := time.Now().UnixMilli()
	status, reason := commandOutcome(batches)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO processed_commands (order_tag, command_event_id, first_seen_unix_millis, status, reason)
		 VALUES (?, ?, ?, ?, ?)`,
		tag, cmd.EventID, now, status, reason,
	)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("failed to insert processed command: %w", err)
	}

	var queued []OutboxEvent
	for i, batch := range batches {
		due := now + int64(i)*gap.Milliseconds()
		for _, ev := range batch {
			payload, err := json.Marshal(msg.FromEvent(ev, now))
			if err != nil {
				return ProcessResult{}, fmt.Errorf("failed to marshal order event: %w", err)
			}

			res, err := tx.ExecContext(ctx,
				`INSERT INTO outbox_events (order_tag, event_id, batch, topic, key, payload_json, created_unix_millis, due_unix_millis, published_unix_millis)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
				tag, ev.EventID, i, msg.TopicOrdersEvents, tag, string(payload), now, due,
			)
			if err != nil {
				return ProcessResult{}, fmt.Errorf("failed to insert outbox event: %w", err)
			}
			id, _ := res.LastInsertId()

			queued = append(queued, OutboxEvent{
				ID:                id,
				OrderTag:          tag,
				EventID:           ev.EventID,
				Batch:             i,
				Topic:             msg.TopicOrdersEvents,
				Key:               tag,
				PayloadJSON:       string(payload),
				CreatedUnixMillis: now,
				DueUnixMillis:     due,
			})
		}
	}

	if err := tx.Commit(); err != nil {
		return ProcessResult{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return ProcessResult{
		Status:       status,
		Reason:       reason,
		OutboxEvents: queued,
	}, nil
}

// commandOutcome is REJECTED when the first batch already closes the order
func commandOutcome(batches [][]order.Event) (string, string) {
	if len(batches) > 0 {
		for _, ev := range batches[0] {
			if ev.Closes() && ev.CurrentStatus == order.StatusDeleted {
				reason := ev.Reason
				if reason == "" {
					reason = "rejected"
				}
				return StatusRejected, reason
			}
		}
	}
	return StatusAccepted, "accepted"
}

// ListUnpublished returns unpublished outbox events due at or before
// nowMillis, in insertion order
func (s *Store) ListUnpublished(ctx context.Context, limit int, nowMillis int64) ([]OutboxEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_tag, event_id, batch, topic, key, payload_json, created_unix_millis, due_unix_millis, published_unix_millis
		 FROM outbox_events
		 WHERE published_unix_millis IS NULL AND due_unix_millis <= ?
		 ORDER BY id ASC
		 LIMIT ?`,
		nowMillis, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query unpublished events: %w", err)
	}
	defer rows.Close()

	var events []OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		err := rows.Scan(
			&e.ID, &e.OrderTag, &e.EventID, &e.Batch, &e.Topic, &e.Key,
			&e.PayloadJSON, &e.CreatedUnixMillis, &e.DueUnixMillis, &e.PublishedUnixMillis,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}

	return events, rows.Err()
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
