// Package timeline persists an audit trail of sessions, loop spans and
// approval tickets to sqlite.
package timeline

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/helmsman-ai/helmsman/internal/permission"
)

// Service wraps the audit database.
type Service struct {
	db *sql.DB
}

// NewService opens (or creates) the audit database at dbPath.
func NewService(dbPath string) (*Service, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open timeline db: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	// Best-effort migration for databases created before the reason
	// column existed (no-op when present).
	_, _ = db.Exec(`ALTER TABLE sessions ADD COLUMN reason TEXT`)

	s := &Service{db: db}
	s.expireStaleTickets()
	return s, nil
}

// Close releases the database handle.
func (s *Service) Close() error {
	return s.db.Close()
}

// expireStaleTickets marks tickets left pending by a previous process.
// They can never be resolved again, so they count as expired denials.
func (s *Service) expireStaleTickets() {
	_, _ = s.db.Exec(
		`UPDATE tickets SET status = ?, resolved_at = ? WHERE status = ?`,
		permission.TicketExpired, time.Now(), permission.TicketPending,
	)
}

// RecordSessionStart inserts the session row at the start checkpoint.
func (s *Service) RecordSessionStart(sessionID, goal string) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions (session_id, goal, state, started_at) VALUES (?, ?, 'idle', ?)`,
		sessionID, goal, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("record session start: %w", err)
	}
	return nil
}

// RecordSessionEnd updates the session row at the terminal checkpoint.
func (s *Service) RecordSessionEnd(sessionID, state, reason string, iterations int) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET state = ?, reason = ?, iterations = ?, ended_at = ? WHERE session_id = ?`,
		state, reason, iterations, time.Now(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("record session end: %w", err)
	}
	return nil
}

// Session returns the stored record for a session id.
func (s *Service) Session(sessionID string) (*SessionRecord, error) {
	row := s.db.QueryRow(
		`SELECT session_id, goal, state, COALESCE(reason, ''), iterations, started_at, ended_at
		 FROM sessions WHERE session_id = ?`, sessionID,
	)
	var rec SessionRecord
	var ended sql.NullTime
	if err := row.Scan(&rec.SessionID, &rec.Goal, &rec.State, &rec.Reason, &rec.Iterations, &rec.StartedAt, &ended); err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if ended.Valid {
		rec.EndedAt = &ended.Time
	}
	return &rec, nil
}

// AddEvent appends one audit event. Metadata may be any
// json-marshalable value; marshaling failures degrade to empty
// metadata rather than losing the event.
func (s *Service) AddEvent(sessionID, kind, content string, metadata any) error {
	meta := ""
	if metadata != nil {
		if b, err := json.Marshal(metadata); err == nil {
			meta = string(b)
		}
	}
	_, err := s.db.Exec(
		`INSERT INTO events (session_id, kind, content, metadata, timestamp) VALUES (?, ?, ?, ?, ?)`,
		sessionID, kind, content, meta, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("add event: %w", err)
	}
	return nil
}

// Events returns the audit events for a session in insertion order.
func (s *Service) Events(sessionID string) ([]Event, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, kind, content, COALESCE(metadata, ''), timestamp
		 FROM events WHERE session_id = ? ORDER BY id ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.Kind, &ev.Content, &ev.Metadata, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// RecordTicket implements permission.AuditSink.
func (s *Service) RecordTicket(t *permission.Ticket) error {
	args := ""
	if len(t.Arguments) > 0 {
		if b, err := json.Marshal(t.Arguments); err == nil {
			args = string(b)
		}
	}
	_, err := s.db.Exec(
		`INSERT INTO tickets (ticket_id, session_id, request_id, action, level, arguments, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.SessionID, t.RequestID, t.Action, t.Level.String(), args, t.Status, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record ticket: %w", err)
	}
	return nil
}

// UpdateTicketStatus implements permission.AuditSink.
func (s *Service) UpdateTicketStatus(id, status string) error {
	_, err := s.db.Exec(
		`UPDATE tickets SET status = ?, resolved_at = ? WHERE ticket_id = ?`,
		status, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("update ticket status: %w", err)
	}
	return nil
}

// PendingTickets returns tickets still awaiting resolution.
func (s *Service) PendingTickets() ([]TicketRecord, error) {
	rows, err := s.db.Query(
		`SELECT ticket_id, session_id, COALESCE(request_id, ''), action, level, COALESCE(arguments, ''), status, created_at
		 FROM tickets WHERE status = ? ORDER BY created_at ASC`, permission.TicketPending,
	)
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", err)
	}
	defer rows.Close()

	var out []TicketRecord
	for rows.Next() {
		var rec TicketRecord
		if err := rows.Scan(&rec.TicketID, &rec.SessionID, &rec.RequestID, &rec.Action, &rec.Level, &rec.Arguments, &rec.Status, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
