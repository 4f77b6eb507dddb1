package permission

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Decision is an externally delivered resolution for a ticket.
type Decision int

const (
	// Deny rejects the pending action.
	Deny Decision = iota
	// Approve allows this single action request.
	Approve
	// ApproveForSession allows the request and grants the action for the
	// rest of the session.
	ApproveForSession
)

func (d Decision) String() string {
	switch d {
	case Approve:
		return "approve"
	case ApproveForSession:
		return "approve_for_session"
	default:
		return "deny"
	}
}

// Ticket statuses persisted to the audit trail.
const (
	TicketPending  = "pending"
	TicketApproved = "approved"
	TicketDenied   = "denied"
	TicketExpired  = "expired"
)

// Ticket is a suspended decision point awaiting an external resolution.
type Ticket struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	RequestID string         `json:"request_id"`
	Action    string         `json:"action"`
	Level     Level          `json:"level"`
	Arguments map[string]any `json:"arguments"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditSink persists ticket lifecycle records. May be nil.
type AuditSink interface {
	RecordTicket(t *Ticket) error
	UpdateTicketStatus(id, status string) error
}

// TicketManager handles the approval lifecycle: create, wait, resolve.
// Resolution arrives asynchronously from whatever approval surface the
// embedding application provides.
type TicketManager struct {
	mu      sync.Mutex
	pending map[string]chan Decision
	open    map[string]*Ticket
	audit   AuditSink
}

// NewTicketManager creates a ticket manager. The audit sink may be nil.
func NewTicketManager(audit AuditSink) *TicketManager {
	return &TicketManager{
		pending: make(map[string]chan Decision),
		open:    make(map[string]*Ticket),
		audit:   audit,
	}
}

// Create registers a ticket and returns its id.
func (m *TicketManager) Create(t *Ticket) string {
	t.ID = newTicketID()
	t.Status = TicketPending
	t.CreatedAt = time.Now()

	ch := make(chan Decision, 1)
	m.mu.Lock()
	m.pending[t.ID] = ch
	m.open[t.ID] = t
	m.mu.Unlock()

	if m.audit != nil {
		_ = m.audit.RecordTicket(t)
	}
	return t.ID
}

// Pending returns the open tickets, oldest first.
func (m *TicketManager) Pending() []*Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Ticket, 0, len(m.open))
	for _, t := range m.open {
		out = append(out, t)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].CreatedAt.Before(out[j-1].CreatedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Wait blocks until the ticket is resolved or the context expires.
// Expiry counts as a denial: there is no silent indefinite hang and no
// silent auto-approval. The returned error is non-nil only for unknown
// ticket ids.
func (m *TicketManager) Wait(ctx context.Context, id string) (Decision, error) {
	m.mu.Lock()
	ch, ok := m.pending[id]
	m.mu.Unlock()
	if !ok {
		return Deny, fmt.Errorf("no pending ticket: %s", id)
	}

	select {
	case d := <-ch:
		m.close(id, decisionStatus(d))
		return d, nil
	case <-ctx.Done():
		m.close(id, TicketExpired)
		return Deny, nil
	}
}

// Resolve delivers a decision for a pending ticket.
func (m *TicketManager) Resolve(id string, d Decision) error {
	m.mu.Lock()
	ch, ok := m.pending[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("no pending ticket: %s", id)
	}

	// Non-blocking send, the channel is buffered with size 1.
	select {
	case ch <- d:
	default:
	}
	return nil
}

func (m *TicketManager) close(id, status string) {
	m.mu.Lock()
	delete(m.pending, id)
	if t, ok := m.open[id]; ok {
		t.Status = status
		delete(m.open, id)
	}
	m.mu.Unlock()
	if m.audit != nil {
		_ = m.audit.UpdateTicketStatus(id, status)
	}
}

func decisionStatus(d Decision) string {
	if d == Deny {
		return TicketDenied
	}
	return TicketApproved
}

func newTicketID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err == nil {
		return hex.EncodeToString(b[:])
	}
	return fmt.Sprintf("tick-%d", time.Now().UnixNano())
}
