package progress

import "testing"

func TestThreeIdenticalFailuresStall(t *testing.T) {
	d := NewDetector(6, 3)
	args := map[string]any{"path": "/missing"}
	for i := 0; i < 3; i++ {
		d.Observe("file_read", args, false, "file not found: /missing")
	}
	if got := d.Check(); got != Stalled {
		t.Fatalf("got %s, want stalled", got)
	}
}

func TestFailuresWithDifferentMessagesStillStall(t *testing.T) {
	// Failing is failing; varied error text is not forward motion.
	d := NewDetector(6, 3)
	args := map[string]any{"command": "make"}
	d.Observe("exec", args, false, "exit status 1")
	d.Observe("exec", args, false, "exit status 2")
	d.Observe("exec", args, false, "command timed out after 1m0s")
	if got := d.Check(); got != Stalled {
		t.Fatalf("got %s, want stalled", got)
	}
}

func TestThreeIdenticalSuccessesStall(t *testing.T) {
	// Same call returning the same output three times is repetition
	// without convergence.
	d := NewDetector(6, 3)
	args := map[string]any{"command": "ls"}
	for i := 0; i < 3; i++ {
		d.Observe("exec", args, true, "a.go\nb.go")
	}
	if got := d.Check(); got != Stalled {
		t.Fatalf("got %s, want stalled", got)
	}
}

func TestSuccessesWithFreshOutputProgress(t *testing.T) {
	// A repeated poll whose output keeps changing is gathering new
	// information, not looping.
	d := NewDetector(6, 3)
	args := map[string]any{"path": "build.log"}
	d.Observe("file_read", args, true, "step 1/3")
	d.Observe("file_read", args, true, "step 2/3")
	d.Observe("file_read", args, true, "step 3/3")
	if got := d.Check(); got != Progressing {
		t.Fatalf("got %s, want progressing", got)
	}
}

func TestMixedOutcomesProgress(t *testing.T) {
	// Failure followed by recovery is forward motion, not a stall.
	d := NewDetector(6, 3)
	args := map[string]any{"path": "main.go"}
	d.Observe("file_read", args, false, "file not found")
	d.Observe("file_read", args, false, "file not found")
	d.Observe("file_read", args, true, "package main")
	if got := d.Check(); got != Progressing {
		t.Fatalf("got %s, want progressing", got)
	}
}

func TestDistinctArgumentsProgress(t *testing.T) {
	d := NewDetector(6, 3)
	d.Observe("file_read", map[string]any{"path": "a.go"}, true, "a")
	d.Observe("file_read", map[string]any{"path": "b.go"}, true, "b")
	d.Observe("file_read", map[string]any{"path": "c.go"}, true, "c")
	if got := d.Check(); got != Progressing {
		t.Fatalf("got %s, want progressing", got)
	}
}

func TestWindowEviction(t *testing.T) {
	d := NewDetector(3, 3)
	bad := map[string]any{"path": "/missing"}
	d.Observe("file_read", bad, false, "file not found")
	d.Observe("file_read", bad, false, "file not found")
	// A newer distinct call pushes the oldest failure out of the window.
	d.Observe("file_list", map[string]any{"path": "."}, true, "a.go")
	d.Observe("file_read", bad, false, "file not found")
	if got := d.Check(); got != Progressing {
		t.Fatalf("got %s, want progressing (window should have evicted)", got)
	}
}

func TestResetClearsWindow(t *testing.T) {
	d := NewDetector(6, 3)
	args := map[string]any{"x": 1}
	for i := 0; i < 3; i++ {
		d.Observe("exec", args, false, "exit status 1")
	}
	d.Reset()
	if got := d.Check(); got != Progressing {
		t.Fatalf("got %s, want progressing after reset", got)
	}
}

func TestHashArgsStableAcrossKeyOrder(t *testing.T) {
	a := map[string]any{"x": 1, "y": "two", "z": true}
	b := map[string]any{"z": true, "y": "two", "x": 1}
	if HashArgs(a) != HashArgs(b) {
		t.Fatal("hash should not depend on key order")
	}
	if HashArgs(a) == HashArgs(map[string]any{"x": 2, "y": "two", "z": true}) {
		t.Fatal("hash should differ for different values")
	}
	if HashArgs(nil) != "" {
		t.Fatal("nil args should hash to empty")
	}
}
