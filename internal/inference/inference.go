// Package inference defines the narrow contract through which the
// agent core consumes a model backend. The core never touches backend
// handles directly; it sees only a generate/stream interface.
package inference

import (
	"context"
	"fmt"
	"io"
)

// Turn is one conversation entry handed to the backend.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Params are the generation parameters for one request.
type Params struct {
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

// Request is one generation request: the assembled conversation context
// plus sampling parameters.
type Request struct {
	System   string `json:"system"`
	Messages []Turn `json:"messages"`
	Params   Params `json:"params"`
}

// BackendError reports an inference backend fault: unavailable backend,
// context length exceeded, generation failure. Retryable faults permit
// one bounded retry; everything else is fatal to the session.
type BackendError struct {
	Reason    string
	Retryable bool
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error: %s", e.Reason)
}

// Client is the inference collaborator contract. Generate returns a
// finite, non-restartable stream of text fragments that completes with
// either the full text or an error.
type Client interface {
	Generate(ctx context.Context, req *Request) (*Stream, error)
}

type fragment struct {
	text string
	err  error
}

// Stream is a lazy sequence of text fragments. Recv returns io.EOF
// after the final fragment. A stream cannot be restarted.
type Stream struct {
	frags chan fragment
}

// NewStream creates a stream for a producer to fill.
func NewStream() *Stream {
	return &Stream{frags: make(chan fragment, 64)}
}

// Recv returns the next text fragment. It returns io.EOF when the
// stream completed normally, or the backend's error.
func (s *Stream) Recv() (string, error) {
	f, ok := <-s.frags
	if !ok {
		return "", io.EOF
	}
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

// Push appends a fragment. Producer side only.
func (s *Stream) Push(text string) {
	s.frags <- fragment{text: text}
}

// Fail terminates the stream with an error. Producer side only.
func (s *Stream) Fail(err error) {
	s.frags <- fragment{err: err}
	close(s.frags)
}

// Close completes the stream normally. Producer side only.
func (s *Stream) Close() {
	close(s.frags)
}

// Drain consumes the remaining fragments and returns the assembled
// text. onFragment, if non-nil, observes each fragment as it arrives.
func Drain(s *Stream, onFragment func(string)) (string, error) {
	var buf []byte
	for {
		text, err := s.Recv()
		if err == io.EOF {
			return string(buf), nil
		}
		if err != nil {
			return string(buf), err
		}
		if onFragment != nil {
			onFragment(text)
		}
		buf = append(buf, text...)
	}
}
