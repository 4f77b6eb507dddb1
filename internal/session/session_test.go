package session

import (
	"testing"
)

func TestAppendAndHistory(t *testing.T) {
	s := New("test goal")
	s.Append(Message{Role: RoleUser, Content: "one"})
	s.Append(Message{Role: RoleAssistant, Content: "two"})
	s.Append(Message{Role: RoleUser, Content: "three"})

	all := s.History(0)
	if len(all) != 3 {
		t.Fatalf("got %d messages, want 3", len(all))
	}
	if all[0].Content != "one" || all[2].Content != "three" {
		t.Fatal("messages out of append order")
	}

	// Windowing is a read-time transform.
	windowed := s.History(2)
	if len(windowed) != 2 {
		t.Fatalf("got %d windowed messages, want 2", len(windowed))
	}
	if windowed[0].Content != "two" {
		t.Fatalf("window start: %q", windowed[0].Content)
	}
	if s.Len() != 3 {
		t.Fatal("windowing must not mutate the conversation")
	}
}

func TestIterationStrictlyIncreases(t *testing.T) {
	s := New("goal")
	prev := s.Iteration()
	for i := 0; i < 5; i++ {
		next := s.NextIteration()
		if next <= prev {
			t.Fatalf("iteration did not increase: %d -> %d", prev, next)
		}
		prev = next
	}
}

func TestTerminate(t *testing.T) {
	s := New("goal")
	s.SetState("thinking")
	if s.State() != "thinking" {
		t.Fatalf("state: %q", s.State())
	}
	s.Terminate("failed", "budget_exhausted")
	if s.State() != "failed" || s.TerminalReason() != "budget_exhausted" {
		t.Fatalf("terminal: state=%q reason=%q", s.State(), s.TerminalReason())
	}
}

func TestNewRequestIsPending(t *testing.T) {
	req := NewRequest("file_read", map[string]any{"path": "a.go"})
	if req.Status != RequestPending {
		t.Fatalf("status: %q", req.Status)
	}
	if req.ID == "" {
		t.Fatal("request id missing")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	s := New("round trip goal")
	s.Append(Message{Role: RoleUser, Content: "hello"})
	s.Append(Message{
		Role:    RoleAssistant,
		Content: "calling tool",
		Requests: []*ActionRequest{
			{ID: "req-1", Action: "file_list", Arguments: map[string]any{"path": "."}, Status: RequestExecuted},
		},
	})
	s.NextIteration()
	s.Terminate("completed", "")

	if err := m.Save(s); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := m.Load(s.ID())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ID() != s.ID() || loaded.Goal() != s.Goal() {
		t.Fatal("identity not preserved")
	}
	if loaded.Len() != 2 {
		t.Fatalf("got %d messages, want 2", loaded.Len())
	}
	if loaded.Iteration() != 1 || loaded.State() != "completed" {
		t.Fatalf("metadata: iter=%d state=%q", loaded.Iteration(), loaded.State())
	}
	msgs := loaded.History(0)
	if len(msgs[1].Requests) != 1 || msgs[1].Requests[0].Action != "file_list" {
		t.Fatal("action request not preserved")
	}

	infos := m.List()
	if len(infos) != 1 || infos[0].ID != s.ID() {
		t.Fatalf("list: %+v", infos)
	}
}
