// Package audit persists the append-only record of commands sent to services.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Actor is recorded on every entry written by the dashboard.
const Actor = "dashboard"

// Outcome of an audited command.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Actions recorded by the dashboard.
const (
	ActionList         = "list"
	ActionAdd          = "add"
	ActionRemove       = "remove"
	ActionStart        = "start"
	ActionStop         = "stop"
	ActionConfigUpdate = "config.update"
	ActionHostUpdate   = "host.update"
)

// Entry is one audited command.
type Entry struct {
	ID         int64     `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	TargetKind string    `json:"target_kind"`
	TargetID   string    `json:"target_id,omitempty"`
	Outcome    Outcome   `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
}

// Filter narrows Recent.
type Filter struct {
	TargetKind string
	Outcome    Outcome
	Limit      int
	Offset     int
}

// Store persists audit entries in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates an audit store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Append writes e, filling in ID and any missing timestamp or actor.
func (s *Store) Append(ctx context.Context, e *Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	if e.Actor == "" {
		e.Actor = Actor
	}
	e.Timestamp = e.Timestamp.UTC()

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (timestamp, actor, action, target_kind, target_id, outcome, detail, request_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp, e.Actor, e.Action, e.TargetKind, e.TargetID, string(e.Outcome), e.Detail, e.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}
	e.ID = id
	return nil
}

// Recent returns entries newest first, plus the total matching the filter.
func (s *Store) Recent(ctx context.Context, f Filter) ([]Entry, int, error) {
	where := " WHERE 1=1"
	var args []any
	if f.TargetKind != "" {
		where += " AND target_kind = ?"
		args = append(args, f.TargetKind)
	}
	if f.Outcome != "" {
		where += " AND outcome = ?"
		args = append(args, string(f.Outcome))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_log"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, timestamp, actor, action, target_kind, target_id, outcome, detail, request_id
		FROM audit_log` + where + ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var outcome string
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Actor, &e.Action, &e.TargetKind, &e.TargetID, &outcome, &e.Detail, &e.RequestID); err != nil {
			return nil, 0, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Outcome = Outcome(outcome)
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// Prune removes entries older than the given duration.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan).UTC()
	result, err := s.db.ExecContext(ctx, `DELETE FROM audit_log WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune audit log: %w", err)
	}
	return result.RowsAffected()
}
