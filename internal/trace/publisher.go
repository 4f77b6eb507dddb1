// Package trace publishes loop spans to a Kafka topic for external
// observability tooling. Publishing is best-effort and asynchronous:
// the agent loop never blocks on, or fails because of, the trace sink.
package trace

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Span types published to the topic.
const (
	SpanLLM      = "LLM"
	SpanTool     = "TOOL"
	SpanTerminal = "TERMINAL"
)

// Span is one published trace record.
type Span struct {
	SessionID  string `json:"session_id"`
	Type       string `json:"type"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	DurationMS int64  `json:"duration_ms"`
	StartedAt  string `json:"started_at"`
	EndedAt    string `json:"ended_at"`
}

// writer is the subset of kafka.Writer the publisher needs; tests
// substitute a capture.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends spans to a Kafka topic.
type Publisher struct {
	w       writer
	enabled bool
}

// NewPublisher creates a publisher. With an empty broker list the
// publisher is inert and every publish is a no-op.
func NewPublisher(brokers []string, topic string) *Publisher {
	if len(brokers) == 0 || topic == "" {
		return &Publisher{}
	}
	return &Publisher{
		enabled: true,
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

// Active reports whether spans are actually published.
func (p *Publisher) Active() bool {
	return p != nil && p.enabled
}

// Publish sends one span. It spawns a bounded-timeout goroutine so the
// caller's cycle latency is unaffected; failures are logged, not
// returned.
func (p *Publisher) Publish(span Span) {
	if !p.Active() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		value, err := json.Marshal(span)
		if err != nil {
			slog.Warn("Trace span marshal failed", "error", err)
			return
		}
		msg := kafka.Message{
			Key:   []byte(span.SessionID),
			Value: value,
			Time:  time.Now(),
		}
		if err := p.w.WriteMessages(ctx, msg); err != nil {
			slog.Warn("Trace span publish failed", "type", span.Type, "error", err)
		}
	}()
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if !p.Active() {
		return nil
	}
	return p.w.Close()
}

// NewSpan builds a span for a completed operation.
func NewSpan(sessionID, spanType, title, content string, start time.Time) Span {
	now := time.Now()
	return Span{
		SessionID:  sessionID,
		Type:       spanType,
		Title:      title,
		Content:    content,
		DurationMS: now.Sub(start).Milliseconds(),
		StartedAt:  start.Format(time.RFC3339),
		EndedAt:    now.Format(time.RFC3339),
	}
}
