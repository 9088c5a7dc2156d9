// Package mock provides a scripted translate.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/bridgit-ai/bridgit/pkg/provider/translate"
)

// Provider is a scripted translate.Provider. Set Result or Err before use;
// Translate records every call and returns them.
type Provider struct {
	mu sync.Mutex

	// Result is returned from Translate when Err is nil. If Result.Text is
	// empty, Translate echoes the request text prefixed with the target
	// language, e.g. "[es] hello".
	Result translate.Result

	// Err, when non-nil, is returned from every Translate call.
	Err error

	// Delay, when non-nil, blocks Translate until the channel is closed or
	// the context is cancelled.
	Delay chan struct{}

	// Calls records every request passed to Translate.
	Calls []translate.Request
}

var _ translate.Provider = (*Provider)(nil)

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (translate.Result, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, req)
	delay := p.Delay
	result, err := p.Result, p.Err
	p.mu.Unlock()

	if delay != nil {
		select {
		case <-delay:
		case <-ctx.Done():
			return translate.Result{}, ctx.Err()
		}
	}

	if err != nil {
		return translate.Result{}, err
	}
	if result.Text == "" {
		result.Text = "[" + req.Target + "] " + req.Text
	}
	if result.DetectedSource == "" {
		result.DetectedSource = req.Source
	}
	return result, nil
}

// CallCount returns how many times Translate has been invoked.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
