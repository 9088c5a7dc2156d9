// Package mock provides a scripted tts.Provider for tests.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/bridgit-ai/bridgit/pkg/audio"
	"github.com/bridgit-ai/bridgit/pkg/provider/tts"
)

// SynthesizeCall records a single Synthesize invocation.
type SynthesizeCall struct {
	Text  string
	Voice tts.Voice
}

// Provider is a scripted tts.Provider. Set Clip or Err before use; Synthesize
// records every call and returns them.
type Provider struct {
	mu sync.Mutex

	// Clip is returned from Synthesize when Err is nil. If Clip.Data is
	// empty, Synthesize fabricates a short PCM clip with a duration
	// estimated from the text.
	Clip audio.Clip

	// Err, when non-nil, is returned from every Synthesize call.
	Err error

	// Voices is returned from ListVoices.
	Voices []tts.Voice

	// Delay, when non-nil, blocks Synthesize until the channel is closed or
	// the context is cancelled.
	Delay chan struct{}

	// Calls records every Synthesize invocation.
	Calls []SynthesizeCall
}

var _ tts.Provider = (*Provider)(nil)

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) (audio.Clip, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, SynthesizeCall{Text: text, Voice: voice})
	delay := p.Delay
	clip, err := p.Clip, p.Err
	p.mu.Unlock()

	if delay != nil {
		select {
		case <-delay:
		case <-ctx.Done():
			return audio.Clip{}, ctx.Err()
		}
	}

	if err != nil {
		return audio.Clip{}, err
	}
	if len(clip.Data) == 0 {
		clip = fabricateClip(text)
	}
	return clip, nil
}

// ListVoices implements tts.Provider.
func (p *Provider) ListVoices(_ context.Context) ([]tts.Voice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Voices, nil
}

// CallCount returns how many times Synthesize has been invoked.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// fabricateClip builds a silent PCM clip whose duration tracks the text length.
func fabricateClip(text string) audio.Clip {
	d := tts.EstimateDuration(text)
	if d == 0 {
		d = 100 * time.Millisecond
	}
	const rate = 16000
	samples := int(d.Seconds() * rate)
	return audio.Clip{
		Data:       make([]byte, samples*2),
		MIME:       audio.MIMEPCM,
		SampleRate: rate,
		Channels:   1,
		Duration:   d,
	}
}
