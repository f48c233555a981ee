// Package messaging abstracts the message bus used to mirror sensor events.
package messaging

import (
	"context"
	"sync"
)

// Publisher publishes raw payloads to subjects. Publishing is fire-and-forget.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close() error
}

// NoopPublisher discards every message.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, []byte) error { return nil }
func (NoopPublisher) Close() error                                  { return nil }

// Message is a published payload captured by MemoryPublisher.
type Message struct {
	Subject string
	Data    []byte
}

// MemoryPublisher records published messages in order. Used by tests and by
// the CLI dry-run path.
type MemoryPublisher struct {
	mu       sync.Mutex
	messages []Message
	closed   bool
}

func (m *MemoryPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, Message{Subject: subject, Data: append([]byte(nil), data...)})
	return nil
}

func (m *MemoryPublisher) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Messages returns a snapshot of everything published so far.
func (m *MemoryPublisher) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.messages...)
}
