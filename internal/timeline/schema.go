package timeline

import "time"

// Schema is applied at startup. Migrations for older databases are
// applied best-effort in NewService.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT UNIQUE NOT NULL,
	goal TEXT NOT NULL,
	state TEXT NOT NULL DEFAULT 'idle',
	reason TEXT,
	iterations INTEGER NOT NULL DEFAULT 0,
	started_at TIMESTAMP NOT NULL,
	ended_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	content TEXT,
	metadata TEXT DEFAULT '',
	timestamp TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);

CREATE TABLE IF NOT EXISTS tickets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ticket_id TEXT UNIQUE NOT NULL,
	session_id TEXT NOT NULL,
	request_id TEXT,
	action TEXT NOT NULL,
	level TEXT NOT NULL,
	arguments TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	created_at TIMESTAMP NOT NULL,
	resolved_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_tickets_session ON tickets(session_id);
`

// Event kinds recorded in the audit trail.
const (
	KindState = "STATE"
	KindLLM   = "LLM"
	KindTool  = "TOOL"
	KindPlan  = "PLAN"
)

// Event is one audit record.
type Event struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	Metadata  string    `json:"metadata,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionRecord is the stored view of a session.
type SessionRecord struct {
	SessionID  string     `json:"session_id"`
	Goal       string     `json:"goal"`
	State      string     `json:"state"`
	Reason     string     `json:"reason,omitempty"`
	Iterations int        `json:"iterations"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// TicketRecord is the stored view of an approval ticket.
type TicketRecord struct {
	TicketID  string    `json:"ticket_id"`
	SessionID string    `json:"session_id"`
	RequestID string    `json:"request_id,omitempty"`
	Action    string    `json:"action"`
	Level     string    `json:"level"`
	Arguments string    `json:"arguments,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
