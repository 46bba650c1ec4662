// Package ledger provides an append-only audit history of the backend operations
// pflexctl invoked. It is never read to make reconciliation decisions.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/dokzlo13/pflexctl/internal/errs"
	"github.com/dokzlo13/pflexctl/internal/reconcile"
)

// EventType represents the type of event in the ledger
type EventType string

const (
	EventOperationPlanned   EventType = "operation_planned"
	EventOperationCompleted EventType = "operation_completed"
	EventOperationFailed    EventType = "operation_failed"
)

// ParseEventType accepts the full event type name or its short form, e.g. "failed".
func ParseEventType(s string) (EventType, error) {
	for _, t := range []EventType{EventOperationPlanned, EventOperationCompleted, EventOperationFailed} {
		if s == string(t) || "operation_"+s == string(t) {
			return t, nil
		}
	}
	return "", errs.WithHint(
		errs.Newf(errs.ErrInvalidParameter, "unknown ledger event type %q", s),
		"use planned, completed or failed")
}

// Entry represents a single event in the ledger
type Entry struct {
	ID             int64          `json:"id"`
	EventType      EventType      `json:"event_type"`
	Timestamp      time.Time      `json:"timestamp"`
	Payload        map[string]any `json:"payload,omitempty"`
	Source         string         `json:"source,omitempty"`
	IdempotencyKey string         `json:"key,omitempty"`
}

// Ledger provides append-only operation logging
type Ledger struct {
	db *sql.DB
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Append adds a new event to the ledger.
// operation_completed uses INSERT OR IGNORE so a key completes at most once.
func (l *Ledger) Append(ctx context.Context, eventType EventType, key, source string, payload map[string]any) error {
	var payloadJSON []byte
	var err error

	if payload != nil {
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "failed to marshal payload")
		}
	}

	now := time.Now().UTC().Unix()

	insertSQL := `INSERT INTO operation_ledger (event_type, timestamp, payload, source, idempotency_key) VALUES (?, ?, ?, ?, ?)`
	if eventType == EventOperationCompleted && key != "" {
		insertSQL = `INSERT OR IGNORE INTO operation_ledger (event_type, timestamp, payload, source, idempotency_key) VALUES (?, ?, ?, ?, ?)`
	}

	_, err = l.db.ExecContext(ctx, insertSQL, string(eventType), now, string(payloadJSON), source, key)
	return err
}

// Recent returns the newest entries first
func (l *Ledger) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, event_type, timestamp, payload, source, idempotency_key
		FROM operation_ledger
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// GetByType returns entries filtered by event type
func (l *Ledger) GetByType(ctx context.Context, eventType EventType, limit int) ([]*Entry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, event_type, timestamp, payload, source, idempotency_key
		FROM operation_ledger
		WHERE event_type = ?
		ORDER BY id DESC
		LIMIT ?
	`, string(eventType), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()
	result, err := l.db.ExecContext(ctx, `
		DELETE FROM operation_ledger WHERE timestamp < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (l *Ledger) scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var payloadStr, source, key sql.NullString
		var timestamp int64

		if err := rows.Scan(&entry.ID, &entry.EventType, &timestamp, &payloadStr, &source, &key); err != nil {
			return nil, err
		}

		entry.Timestamp = time.Unix(timestamp, 0).UTC()
		entry.Source = source.String
		entry.IdempotencyKey = key.String

		if payloadStr.Valid && payloadStr.String != "" {
			entry.Payload = make(map[string]any)
			if err := json.Unmarshal([]byte(payloadStr.String), &entry.Payload); err != nil {
				return nil, errors.Wrap(err, "failed to unmarshal payload")
			}
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// Recorder writes one invocation's engine events to the ledger.
type Recorder struct {
	ledger     *Ledger
	invocation string
	module     string
}

// Recorder returns a reconcile.Recorder scoped to one invocation.
func (l *Ledger) Recorder(invocation, module string) *Recorder {
	return &Recorder{ledger: l, invocation: invocation, module: module}
}

// Record implements reconcile.Recorder.
func (r *Recorder) Record(ctx context.Context, ev reconcile.Event) error {
	var eventType EventType
	switch ev.Outcome {
	case reconcile.OutcomePlanned:
		eventType = EventOperationPlanned
	case reconcile.OutcomeCompleted:
		eventType = EventOperationCompleted
	default:
		eventType = EventOperationFailed
	}

	payload := map[string]any{
		"module":    r.module,
		"resource":  ev.Resource.String(),
		"operation": ev.Operation,
	}
	if ev.Err != nil {
		payload["error"] = ev.Err.Error()
	}

	key := fmt.Sprintf("%s/%d", r.invocation, ev.Seq)
	return r.ledger.Append(ctx, eventType, key, r.module, payload)
}
