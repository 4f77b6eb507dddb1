// Package event publishes loop state transitions and results for
// observation. It is a pure side channel: consumers see what happened,
// in order, and have no control influence over the loop.
package event

import (
	"context"
	"sync"
	"time"

	"github.com/helmsman-ai/helmsman/internal/planner"
	"github.com/helmsman-ai/helmsman/internal/registry"
	"github.com/helmsman-ai/helmsman/internal/session"
)

// Kind discriminates the event union.
type Kind string

const (
	KindStateChanged      Kind = "state_changed"
	KindTokenChunk        Kind = "token_chunk"
	KindActionRequested   Kind = "action_requested"
	KindActionResult      Kind = "action_result"
	KindPlanUpdated       Kind = "plan_updated"
	KindApprovalRequested Kind = "approval_requested"
	KindSessionTerminated Kind = "session_terminated"
)

// Event is one observed occurrence. Only the fields relevant to the
// Kind are populated.
type Event struct {
	Kind      Kind      `json:"kind"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`

	// KindStateChanged
	OldState string `json:"old_state,omitempty"`
	NewState string `json:"new_state,omitempty"`

	// KindTokenChunk: pass-through text fragment from inference.
	Text string `json:"text,omitempty"`

	// KindActionRequested
	Request *session.ActionRequest `json:"request,omitempty"`

	// KindActionResult
	Result *registry.Result `json:"result,omitempty"`

	// KindPlanUpdated
	Tasks []planner.Task `json:"tasks,omitempty"`

	// KindApprovalRequested
	TicketID string `json:"ticket_id,omitempty"`

	// KindSessionTerminated
	Reason string `json:"reason,omitempty"`
}

// Emitter delivers events to subscribers in the exact order the
// corresponding transitions occurred. Dispatch must be running for
// emission to make progress.
type Emitter struct {
	events chan Event
	mu     sync.RWMutex
	subs   []func(Event)
}

// NewEmitter creates an emitter with a bounded buffer.
func NewEmitter() *Emitter {
	return &Emitter{events: make(chan Event, 256)}
}

// Subscribe registers a callback. Callbacks run on the dispatcher
// goroutine; slow consumers delay delivery, never reorder it.
func (e *Emitter) Subscribe(fn func(Event)) {
	e.mu.Lock()
	e.subs = append(e.subs, fn)
	e.mu.Unlock()
}

// Emit queues an event for ordered delivery.
func (e *Emitter) Emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	e.events <- ev
}

// Dispatch runs the delivery loop. Run it as a goroutine; it returns
// when the context is cancelled.
func (e *Emitter) Dispatch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-e.events:
			e.mu.RLock()
			subs := e.subs
			e.mu.RUnlock()
			for _, fn := range subs {
				fn(ev)
			}
		}
	}
}

// Pending returns the number of queued, undelivered events.
func (e *Emitter) Pending() int {
	return len(e.events)
}
