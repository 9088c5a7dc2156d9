// Package mock provides a relay publisher for testing.
package mock

import (
	"context"
	"sync"

	"github.com/bridgit-ai/bridgit/internal/relay"
)

// Publication records a single Publish call.
type Publication struct {
	Channel string
	Message relay.Message
}

// Publisher is a configurable in-memory [relay.Publisher].
type Publisher struct {
	// Err, if set, is returned from every Publish call.
	Err error

	mu        sync.Mutex
	published []Publication
	closed    bool
}

var _ relay.Publisher = (*Publisher)(nil)

func (p *Publisher) Publish(_ context.Context, channel string, msg relay.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.published = append(p.published, Publication{Channel: channel, Message: msg})
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Published returns a copy of everything published so far.
func (p *Publisher) Published() []Publication {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Publication, len(p.published))
	copy(out, p.published)
	return out
}

// Closed reports whether Close has been called.
func (p *Publisher) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
