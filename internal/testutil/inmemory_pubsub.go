package testutil

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/billforge/billforge/internal/pubsub"
)

var _ pubsub.PubSub = (*InMemoryPubSub)(nil)

// InMemoryPubSub records published messages so tests can assert on the
// webhook events a flow produced
type InMemoryPubSub struct {
	mu       sync.RWMutex
	messages map[string][]*message.Message
	closed   bool
}

// NewInMemoryPubSub creates a new in-memory pubsub
func NewInMemoryPubSub() *InMemoryPubSub {
	return &InMemoryPubSub{
		messages: make(map[string][]*message.Message),
	}
}

// Publish records the message under the topic
func (p *InMemoryPubSub) Publish(ctx context.Context, topic string, msg *message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages[topic] = append(p.messages[topic], msg)
	return nil
}

// Subscribe returns a channel replaying all messages recorded so far
func (p *InMemoryPubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ch := make(chan *message.Message, len(p.messages[topic]))
	for _, msg := range p.messages[topic] {
		ch <- msg
	}
	close(ch)
	return ch, nil
}

// Close marks the pubsub closed
func (p *InMemoryPubSub) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Messages returns the messages recorded under a topic
func (p *InMemoryPubSub) Messages(topic string) []*message.Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*message.Message{}, p.messages[topic]...)
}

// Clear removes all recorded messages
func (p *InMemoryPubSub) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = make(map[string][]*message.Message)
}
