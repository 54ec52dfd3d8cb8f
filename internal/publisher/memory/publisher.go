// Package memory records published notifications in process memory for
// development and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/seapigy/procuro-site-sub000/internal/pricing"
)

// Publisher stores published payloads for inspection. A bounded Publisher
// keeps only the most recent messages.
type Publisher struct {
	mu       sync.RWMutex
	messages []PublishedMessage
	limit    int
	seq      int
}

var _ pricing.Publisher = (*Publisher)(nil)

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	Topic   string
	Payload any
}

// New returns an unbounded memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// NewBounded returns a Publisher that retains at most limit messages,
// evicting the oldest first. A limit <= 0 is unbounded.
func NewBounded(limit int) *Publisher {
	if limit < 0 {
		limit = 0
	}
	return &Publisher{limit: limit}
}

// Publish records the message and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	if strings.TrimSpace(topic) == "" {
		return "", errors.New("topic is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	p.messages = append(p.messages, PublishedMessage{Topic: topic, Payload: payload})
	if p.limit > 0 && len(p.messages) > p.limit {
		n := copy(p.messages, p.messages[len(p.messages)-p.limit:])
		clear(p.messages[n:])
		p.messages = p.messages[:n]
	}
	return fmt.Sprintf("memory-%d", p.seq), nil
}

// Len reports how many messages are retained.
func (p *Publisher) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.messages)
}

// Messages returns the recorded publishes, optionally filtered by topic.
func (p *Publisher) Messages(topic ...string) []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(topic) == 0 {
		out := make([]PublishedMessage, len(p.messages))
		copy(out, p.messages)
		return out
	}
	var out []PublishedMessage
	for _, m := range p.messages {
		if m.Topic == topic[0] {
			out = append(out, m)
		}
	}
	return out
}
