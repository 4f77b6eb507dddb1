package inference

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// chunkBackend emits its text in fixed-size fragments.
type chunkBackend struct {
	text  string
	size  int
	inUse atomic.Int32
	peak  atomic.Int32
}

func (b *chunkBackend) Complete(ctx context.Context, req *Request, emit func(string)) error {
	cur := b.inUse.Add(1)
	defer b.inUse.Add(-1)
	for {
		if p := b.peak.Load(); cur <= p || b.peak.CompareAndSwap(p, cur) {
			break
		}
	}

	for i := 0; i < len(b.text); i += b.size {
		end := i + b.size
		if end > len(b.text) {
			end = len(b.text)
		}
		emit(b.text[i:end])
	}
	return nil
}

func TestActorStreamsFragments(t *testing.T) {
	backend := &chunkBackend{text: "hello from the backend", size: 5}
	actor := NewActor(backend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go actor.Run(ctx)

	stream, err := actor.Generate(ctx, &Request{Messages: []Turn{{Role: "user", Content: "hi"}}})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	var frags []string
	text, err := Drain(stream, func(f string) { frags = append(frags, f) })
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if text != backend.text {
		t.Fatalf("assembled %q, want %q", text, backend.text)
	}
	if len(frags) < 2 {
		t.Fatalf("expected multiple fragments, got %d", len(frags))
	}
}

func TestActorSerializesBackendAccess(t *testing.T) {
	backend := &chunkBackend{text: strings.Repeat("x", 200), size: 10}
	actor := NewActor(backend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go actor.Run(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stream, err := actor.Generate(ctx, &Request{})
			if err != nil {
				t.Errorf("generate: %v", err)
				return
			}
			if _, err := Drain(stream, nil); err != nil {
				t.Errorf("drain: %v", err)
			}
		}()
	}
	wg.Wait()

	if peak := backend.peak.Load(); peak != 1 {
		t.Fatalf("backend accessed concurrently: peak %d", peak)
	}
}

type failingBackend struct{}

func (failingBackend) Complete(ctx context.Context, req *Request, emit func(string)) error {
	emit("partial ")
	return &BackendError{Reason: "context length exceeded"}
}

func TestActorPropagatesBackendError(t *testing.T) {
	actor := NewActor(failingBackend{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go actor.Run(ctx)

	stream, err := actor.Generate(ctx, &Request{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	_, err = Drain(stream, nil)
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("got %v, want BackendError", err)
	}
}

func TestGenerateFailsWhenActorNotRunning(t *testing.T) {
	actor := NewActor(failingBackend{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := actor.Generate(ctx, &Request{})
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("got %v, want BackendError", err)
	}
	if !be.Retryable {
		t.Fatal("unavailable backend should be retryable")
	}
}
