package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Player renders a clip through the local output device. Play blocks until
// playback has actually finished (not merely until the clip is queued) — the
// pipeline's SPEAKING state spans the full playback duration.
type Player interface {
	Play(ctx context.Context, clip Clip) error
}

// WriterPlayer plays PCM clips by writing frames to an output sink at
// real-time rate. The sink is typically the OS audio device's PCM interface;
// tests use a bytes.Buffer with pacing disabled.
type WriterPlayer struct {
	w io.Writer

	// pace controls whether writes are throttled to wall-clock playback
	// speed. Disabled in tests.
	pace bool
}

// WriterPlayerOption configures a [WriterPlayer].
type WriterPlayerOption func(*WriterPlayer)

// WithoutPacing disables real-time throttling so clips are written as fast as
// the sink accepts them.
func WithoutPacing() WriterPlayerOption {
	return func(p *WriterPlayer) { p.pace = false }
}

// NewWriterPlayer creates a player that writes PCM to w, paced to real time.
func NewWriterPlayer(w io.Writer, opts ...WriterPlayerOption) *WriterPlayer {
	p := &WriterPlayer{w: w, pace: true}
	for _, o := range opts {
		o(p)
	}
	return p
}

// playChunkMs is the slice duration written per iteration. Small enough that
// cancellation is responsive, large enough to avoid syscall churn.
const playChunkMs = 100

// Play implements [Player]. Only PCM clips are supported; provider adapters
// are configured to request PCM output so no transcoding happens here.
func (p *WriterPlayer) Play(ctx context.Context, clip Clip) error {
	if clip.MIME != MIMEPCM {
		return fmt.Errorf("audio: player supports %s clips only, got %q", MIMEPCM, clip.MIME)
	}
	if len(clip.Data) == 0 {
		return errors.New("audio: empty clip")
	}

	sampleRate := clip.SampleRate
	if sampleRate <= 0 {
		sampleRate = opusSampleRate
	}
	channels := clip.Channels
	if channels <= 0 {
		channels = 1
	}
	chunkBytes := sampleRate * channels * 2 * playChunkMs / 1000

	data := clip.Data
	for len(data) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := chunkBytes
		if n > len(data) {
			n = len(data)
		}
		if _, err := p.w.Write(data[:n]); err != nil {
			return fmt.Errorf("audio: play: %w", err)
		}
		data = data[n:]

		if p.pace {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(playChunkMs * time.Millisecond):
			}
		}
	}
	return nil
}
