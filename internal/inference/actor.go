package inference

import (
	"context"
	"log/slog"
)

// Backend is a synchronous text generator. Implementations typically
// wrap a native inference handle that is not safe to share across
// goroutines.
type Backend interface {
	// Complete generates text for req, calling emit once per fragment.
	Complete(ctx context.Context, req *Request, emit func(string)) error
}

type actorRequest struct {
	ctx    context.Context
	req    *Request
	stream *Stream
}

// Actor owns a Backend and serializes all generation through a single
// worker goroutine. Callers reach the backend only via message passing,
// so thread-affinity rules of the underlying handle never leak into the
// orchestration core.
type Actor struct {
	backend  Backend
	requests chan actorRequest
}

// NewActor wraps a backend. Run must be started before Generate is
// called.
func NewActor(backend Backend) *Actor {
	return &Actor{
		backend:  backend,
		requests: make(chan actorRequest),
	}
}

// Run processes generation requests until the context is cancelled.
// Exactly one Run must be active per actor.
func (a *Actor) Run(ctx context.Context) error {
	slog.Info("Inference actor started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-a.requests:
			a.serve(r)
		}
	}
}

func (a *Actor) serve(r actorRequest) {
	err := a.backend.Complete(r.ctx, r.req, r.stream.Push)
	if err != nil {
		if r.ctx.Err() != nil {
			// Caller went away; surface the cancellation, not a
			// backend fault.
			r.stream.Fail(r.ctx.Err())
			return
		}
		slog.Error("Backend completion failed", "error", err)
		r.stream.Fail(err)
		return
	}
	r.stream.Close()
}

// Generate implements Client. The request is queued for the single
// worker; the returned stream fills as the backend produces fragments.
func (a *Actor) Generate(ctx context.Context, req *Request) (*Stream, error) {
	stream := NewStream()
	select {
	case a.requests <- actorRequest{ctx: ctx, req: req, stream: stream}:
		return stream, nil
	case <-ctx.Done():
		return nil, &BackendError{Reason: "backend unavailable: " + ctx.Err().Error(), Retryable: true}
	}
}
