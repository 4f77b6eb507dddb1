package trace

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type captureWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (c *captureWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func (c *captureWriter) Close() error { return nil }

func (c *captureWriter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func TestInertWithoutBrokers(t *testing.T) {
	p := NewPublisher(nil, "")
	if p.Active() {
		t.Fatal("publisher should be inert without brokers")
	}
	// Publishing on an inert publisher must not panic.
	p.Publish(Span{SessionID: "s1", Type: SpanLLM})
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestPublishSerializesSpan(t *testing.T) {
	w := &captureWriter{}
	p := &Publisher{w: w, enabled: true}

	start := time.Now().Add(-150 * time.Millisecond)
	p.Publish(NewSpan("s1", SpanTool, "Tool: file_read", "ok", start))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && w.count() == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	if w.count() != 1 {
		t.Fatal("span not published")
	}

	w.mu.Lock()
	msg := w.msgs[0]
	w.mu.Unlock()
	if string(msg.Key) != "s1" {
		t.Fatalf("key: %q", msg.Key)
	}
	var span Span
	if err := json.Unmarshal(msg.Value, &span); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if span.Type != SpanTool || span.DurationMS < 100 {
		t.Fatalf("span: %+v", span)
	}
}
