package planner

import (
	"strings"
	"testing"
)

func TestDecomposeSingleClause(t *testing.T) {
	p := New()
	tasks := p.Decompose("list files in current directory")
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(tasks))
	}
	if tasks[0].Status != StatusPending {
		t.Fatalf("new task status: %s", tasks[0].Status)
	}
}

func TestDecomposeNumberedList(t *testing.T) {
	p := New()
	tasks := p.Decompose("1. read the config\n2. fix the bug\n3. run the tests")
	if len(tasks) != 3 {
		t.Fatalf("got %d tasks, want 3", len(tasks))
	}
	if tasks[1].Description != "fix the bug" {
		t.Fatalf("task 2: %q", tasks[1].Description)
	}
	for i, task := range tasks {
		if task.ID != i+1 {
			t.Fatalf("task %d has id %d", i, task.ID)
		}
	}
}

func TestDecomposeIsIdempotent(t *testing.T) {
	p := New()
	goal := "1. step one\n2. step two"
	first := p.Decompose(goal)
	second := p.Decompose(goal)
	if len(second) != len(first) {
		t.Fatalf("re-decompose: got %d tasks, want %d (replace, not append)", len(second), len(first))
	}
}

func TestUpdateStatus(t *testing.T) {
	p := New()
	p.Decompose("1. alpha\n2. beta")

	if err := p.Update(1, StatusDone); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := p.Update(2, StatusInProgress); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := p.Update(99, StatusDone); err == nil {
		t.Fatal("expected error for unknown task id")
	}
	if err := p.Update(1, Status("bogus")); err == nil {
		t.Fatal("expected error for invalid status")
	}

	tasks := p.Tasks()
	if tasks[0].Status != StatusDone || tasks[1].Status != StatusInProgress {
		t.Fatalf("statuses: %+v", tasks)
	}
}

func TestReplaceFromModel(t *testing.T) {
	p := New()
	p.Decompose("do the thing")
	tasks := p.Replace([]string{"inspect repo", "", "  apply patch  "})
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}
	if tasks[1].Description != "apply patch" {
		t.Fatalf("task 2: %q", tasks[1].Description)
	}
}

func TestRender(t *testing.T) {
	p := New()
	if p.Render() != "" {
		t.Fatal("empty planner should render nothing")
	}

	p.Decompose("1. alpha\n2. beta")
	p.Update(1, StatusDone)
	out := p.Render()
	if !strings.Contains(out, "Progress: 1/2") {
		t.Fatalf("progress missing: %q", out)
	}
	if !strings.Contains(out, "[x] 1. alpha") || !strings.Contains(out, "[ ] 2. beta") {
		t.Fatalf("task markers missing: %q", out)
	}
}

func TestProgress(t *testing.T) {
	p := New()
	if p.Progress() != 0 {
		t.Fatal("empty plan progress should be 0")
	}
	p.Decompose("1. a\n2. b\n3. c\n4. d")
	p.Update(1, StatusDone)
	p.Update(2, StatusSkipped)
	if got := p.Progress(); got != 0.5 {
		t.Fatalf("progress: got %v, want 0.5", got)
	}
}
