package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/helmsman-ai/helmsman/internal/permission"
)

func echoDef(name string) *Definition {
	return &Definition{
		Name:        name,
		Description: "echo back the input",
		Group:       "test",
		Level:       permission.ReadOnly,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
			"required": []string{"text"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return args["text"].(string), nil
		},
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := New()
	if err := r.Register(echoDef("echo")); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := r.Register(echoDef("echo"))
	if !errors.Is(err, ErrDuplicateAction) {
		t.Fatalf("got %v, want ErrDuplicateAction", err)
	}
}

func TestRegisterAfterSeal(t *testing.T) {
	r := New()
	r.Seal()
	if err := r.Register(echoDef("echo")); !errors.Is(err, ErrSealed) {
		t.Fatalf("got %v, want ErrSealed", err)
	}
}

func TestLookupNotFound(t *testing.T) {
	r := New()
	if _, err := r.Lookup("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestDispatchValidatesArguments(t *testing.T) {
	r := New()
	if err := r.Register(echoDef("echo")); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Missing required field.
	_, err := r.Dispatch(context.Background(), "req1", "echo", map[string]any{})
	var iae *InvalidArgumentsError
	if !errors.As(err, &iae) {
		t.Fatalf("got %v, want InvalidArgumentsError", err)
	}

	// Wrong type names the offending field.
	_, err = r.Dispatch(context.Background(), "req2", "echo", map[string]any{"text": 42})
	if !errors.As(err, &iae) {
		t.Fatalf("got %v, want InvalidArgumentsError", err)
	}
	if iae.Field != "text" {
		t.Fatalf("offending field: got %q, want %q", iae.Field, "text")
	}
}

func TestDispatchSuccess(t *testing.T) {
	r := New()
	if err := r.Register(echoDef("echo")); err != nil {
		t.Fatalf("register: %v", err)
	}

	res, err := r.Dispatch(context.Background(), "req1", "echo", map[string]any{"text": "hello"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !res.Success || res.Output != "hello" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.RequestID != "req1" || res.Action != "echo" {
		t.Fatalf("result identity: %+v", res)
	}
}

func TestDispatchHandlerErrorBecomesFailedResult(t *testing.T) {
	r := New()
	err := r.Register(&Definition{
		Name:  "boom",
		Level: permission.ReadOnly,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "", fmt.Errorf("file not found: /nope")
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	res, err := r.Dispatch(context.Background(), "req1", "boom", nil)
	if err != nil {
		t.Fatalf("dispatch returned error, want failed result: %v", err)
	}
	if res.Success {
		t.Fatal("expected failed result")
	}
	if !strings.Contains(res.Output, "file not found") {
		t.Fatalf("failure reason missing from output: %q", res.Output)
	}
}

func TestDispatchContainsPanics(t *testing.T) {
	r := New()
	err := r.Register(&Definition{
		Name:  "panic",
		Level: permission.ReadOnly,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			panic("handler bug")
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	res, err := r.Dispatch(context.Background(), "req1", "panic", nil)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.Success {
		t.Fatal("expected failed result from panicking handler")
	}
	if !strings.Contains(res.Output, "handler panic") {
		t.Fatalf("panic not reported: %q", res.Output)
	}
}

func TestDispatchUnknownAction(t *testing.T) {
	r := New()
	if _, err := r.Dispatch(context.Background(), "req1", "ghost", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestDispatchTruncatesLargeOutput(t *testing.T) {
	r := New()
	err := r.Register(&Definition{
		Name:  "big",
		Level: permission.ReadOnly,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return strings.Repeat("x", MaxOutputBytes+100), nil
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	res, err := r.Dispatch(context.Background(), "req1", "big", nil)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(res.Output) > MaxOutputBytes+len("\n[output truncated]") {
		t.Fatalf("output not truncated: %d bytes", len(res.Output))
	}
	if !strings.HasSuffix(res.Output, "[output truncated]") {
		t.Fatal("truncation marker missing")
	}
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	// "é" is two bytes; a cut at byte 2 lands mid-sequence and must
	// back up to the previous boundary.
	got := Truncate("aé", 2)
	if got != "a\n[output truncated]" {
		t.Fatalf("got %q", got)
	}
	if !utf8.ValidString(Truncate(strings.Repeat("界", 100), 16)) {
		t.Fatal("truncated output is not valid UTF-8")
	}
	if Truncate("short", 10) != "short" {
		t.Fatal("under-limit string must pass through untouched")
	}
}

func TestListFilters(t *testing.T) {
	r := New()
	defs := []*Definition{
		{Name: "file_read", Group: "filesystem", Level: permission.ReadOnly, Handler: nop},
		{Name: "file_write", Group: "filesystem", Level: permission.FileWrite, Handler: nop},
		{Name: "exec", Group: "shell", Level: permission.Execute, Handler: nop},
	}
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			t.Fatalf("register %s: %v", d.Name, err)
		}
	}

	if got := len(r.List()); got != 3 {
		t.Fatalf("List: got %d, want 3", got)
	}
	if got := len(r.ListByLevel(permission.ReadOnly)); got != 1 {
		t.Fatalf("ListByLevel(read_only): got %d, want 1", got)
	}
	if got := len(r.ListByGroup("filesystem")); got != 2 {
		t.Fatalf("ListByGroup(filesystem): got %d, want 2", got)
	}

	// List is sorted by name.
	names := r.List()
	if names[0].Name != "exec" || names[2].Name != "file_write" {
		t.Fatal("List not sorted by name")
	}
}

func nop(ctx context.Context, args map[string]any) (string, error) { return "", nil }
