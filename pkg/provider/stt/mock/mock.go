// Package mock provides an in-memory stt.Provider test double.
package mock

import (
	"context"
	"sync"

	"github.com/bridgit-ai/bridgit/pkg/audio"
	"github.com/bridgit-ai/bridgit/pkg/provider/stt"
)

// TranscribeCall records the arguments of one Transcribe invocation.
type TranscribeCall struct {
	Clip         audio.Clip
	LanguageHint string
}

// Provider is a scripted stt.Provider. Configure Result/Err before use;
// inspect Calls afterwards.
type Provider struct {
	mu sync.Mutex

	// Result is returned by every successful Transcribe call.
	Result stt.Result

	// Err, when non-nil, is returned by every Transcribe call.
	Err error

	// Delay, when non-nil, makes Transcribe wait for the channel to close
	// (or ctx cancellation) before returning. Used for timeout tests.
	Delay chan struct{}

	// Calls holds all recorded invocations.
	Calls []TranscribeCall
}

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, clip audio.Clip, languageHint string) (stt.Result, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, TranscribeCall{Clip: clip, LanguageHint: languageHint})
	delay := p.Delay
	result, err := p.Result, p.Err
	p.mu.Unlock()

	if delay != nil {
		select {
		case <-delay:
		case <-ctx.Done():
			return stt.Result{}, ctx.Err()
		}
	}
	if err != nil {
		return stt.Result{}, err
	}
	return result, nil
}

// CallCount returns the number of Transcribe invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
