// Package mock provides in-memory test doubles for the audio package:
// a scripted capture source and a recording player.
package mock

import (
	"context"
	"sync"

	"github.com/bridgit-ai/bridgit/pkg/audio"
)

// Source is a scripted audio.Source for tests. Frames pushed via Push are
// delivered in order; Close (or CloseWithErr) ends the stream.
type Source struct {
	once   sync.Once
	frames chan audio.Frame

	mu  sync.Mutex
	err error
}

// NewSource creates a Source with the given channel buffer depth.
func NewSource(buffer int) *Source {
	return &Source{frames: make(chan audio.Frame, buffer)}
}

// Push enqueues a frame for delivery. Panics if called after Close.
func (s *Source) Push(f audio.Frame) {
	s.frames <- f
}

// PushPCM is a convenience that wraps raw PCM bytes in a frame.
func (s *Source) PushPCM(pcm []byte) {
	s.Push(audio.Frame{Data: pcm, MIME: audio.MIMEPCM, SampleRate: 48000, Channels: 1})
}

// Frames implements audio.Source.
func (s *Source) Frames() <-chan audio.Frame { return s.frames }

// Err implements audio.Source.
func (s *Source) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close implements audio.Source. Safe to call more than once.
func (s *Source) Close() error {
	s.once.Do(func() { close(s.frames) })
	return nil
}

// CloseWithErr ends the stream and records a device error, simulating the
// microphone dropping mid-session.
func (s *Source) CloseWithErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.once.Do(func() { close(s.frames) })
}

// Player records every clip played and optionally fails or blocks.
type Player struct {
	mu sync.Mutex

	// PlayErr, when non-nil, is returned by every Play call.
	PlayErr error

	// Played holds the clips received, in order.
	Played []audio.Clip

	// BlockUntil, when non-nil, makes Play wait for the channel to be closed
	// (or ctx cancellation) before returning. Used to assert that SPEAKING
	// spans the full playback duration.
	BlockUntil chan struct{}
}

// Play implements audio.Player.
func (p *Player) Play(ctx context.Context, clip audio.Clip) error {
	p.mu.Lock()
	p.Played = append(p.Played, clip)
	blockUntil := p.BlockUntil
	err := p.PlayErr
	p.mu.Unlock()

	if err != nil {
		return err
	}
	if blockUntil != nil {
		select {
		case <-blockUntil:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// PlayedCount returns the number of clips played so far.
func (p *Player) PlayedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Played)
}
