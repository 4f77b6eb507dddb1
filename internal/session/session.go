// Package session holds the in-memory state of one goal pursuit.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/helmsman-ai/helmsman/internal/registry"
)

// Message roles. The conversation sequence is the model's context, so
// insertion order is semantically meaningful.
const (
	RoleUser         = "user"
	RoleAssistant    = "assistant"
	RoleActionResult = "action_result"
	RoleSystem       = "system"
)

// ActionRequest statuses.
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestDenied   = "denied"
	RequestExecuted = "executed"
	RequestFailed   = "failed"
)

// ActionRequest is one parsed action invocation awaiting permission and
// dispatch. Terminal once executed, failed or denied.
type ActionRequest struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	Arguments map[string]any `json:"arguments"`
	Status    string         `json:"status"`
}

// Message is one immutable entry in the conversation. Assistant
// messages may carry parsed action requests; action_result messages
// carry the corresponding result.
type Message struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	Requests  []*ActionRequest `json:"requests,omitempty"`
	Result    *registry.Result `json:"result,omitempty"`
	Timestamp time.Time        `json:"timestamp,omitempty"`
}

// Session is one active goal pursuit. Created when a user submits a
// goal, mutated exclusively by the agent loop, archived on a terminal
// state.
type Session struct {
	mu        sync.RWMutex
	id        string
	goal      string
	messages  []Message
	iteration int
	startedAt time.Time
	state     string
	reason    string
}

// New creates a session for the given goal.
func New(goal string) *Session {
	return &Session{
		id:        uuid.NewString(),
		goal:      goal,
		startedAt: time.Now(),
		state:     "idle",
	}
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// Goal returns the user goal this session pursues.
func (s *Session) Goal() string { return s.goal }

// StartedAt returns the session creation time.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Append adds a message to the conversation. The sequence is
// append-only: no message is ever removed or reordered.
func (s *Session) Append(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
}

// Len returns the number of conversation messages.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// History returns up to max most recent messages. Windowing for
// context-size purposes is a read-time transform; the underlying
// sequence is never mutated.
func (s *Session) History(max int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if max <= 0 || len(s.messages) <= max {
		out := make([]Message, len(s.messages))
		copy(out, s.messages)
		return out
	}
	out := make([]Message, max)
	copy(out, s.messages[len(s.messages)-max:])
	return out
}

// NextIteration advances the cycle counter. It strictly increases once
// per full think-act-observe cycle and never decreases.
func (s *Session) NextIteration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iteration++
	return s.iteration
}

// Iteration returns the current cycle count.
func (s *Session) Iteration() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.iteration
}

// SetState records the loop's current state name.
func (s *Session) SetState(state string) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// State returns the loop's current state name.
func (s *Session) State() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Terminate records the terminal reason.
func (s *Session) Terminate(state, reason string) {
	s.mu.Lock()
	s.state = state
	s.reason = reason
	s.mu.Unlock()
}

// TerminalReason returns the recorded terminal reason, if any.
func (s *Session) TerminalReason() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reason
}

// Elapsed returns the wall-clock time since session start.
func (s *Session) Elapsed() time.Duration {
	return time.Since(s.startedAt)
}

// NewRequest creates a pending action request owned by this session.
func NewRequest(action string, args map[string]any) *ActionRequest {
	return &ActionRequest{
		ID:        fmt.Sprintf("req-%s", uuid.NewString()[:8]),
		Action:    action,
		Arguments: args,
		Status:    RequestPending,
	}
}
