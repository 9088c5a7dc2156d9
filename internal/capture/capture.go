// Package capture buffers audio frames between speech boundaries and yields a
// complete clip per utterance.
//
// A Capturer is armed by Begin when the activity monitor reports speech start,
// fed every frame while armed, and drained by End when speech stops. Exactly
// one clip is produced per Begin/End pair; Abort discards the buffer without
// producing one.
package capture

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bridgit-ai/bridgit/pkg/audio"
)

var (
	// ErrCaptureInProgress is returned by Begin when a capture is already
	// armed. Overlapping captures are a caller bug, never merged silently.
	ErrCaptureInProgress = errors.New("capture already in progress")

	// ErrNotCapturing is returned by End when no capture is armed.
	ErrNotCapturing = errors.New("no capture in progress")

	// ErrEmptyCapture is returned by End when no audio arrived between
	// Begin and End, e.g. the device dropped mid-utterance.
	ErrEmptyCapture = errors.New("capture yielded no audio")
)

// Capturer accumulates frames for the utterance currently being spoken.
// All methods are safe for concurrent use.
type Capturer struct {
	mu sync.Mutex

	active  bool
	started time.Time
	buf     bytes.Buffer

	// Format of the buffered frames, taken from the first frame appended.
	mime       string
	sampleRate int
	channels   int

	language string
	logger   *slog.Logger
}

// New creates a Capturer. language tags every produced clip with the expected
// source language. A nil logger falls back to slog.Default.
func New(language string, logger *slog.Logger) *Capturer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Capturer{language: language, logger: logger}
}

// Begin arms the capturer at the given instant. Returns
// [ErrCaptureInProgress] when a capture is already armed.
func (c *Capturer) Begin(at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active {
		return ErrCaptureInProgress
	}
	c.active = true
	c.started = at
	c.buf.Reset()
	c.mime = ""
	c.sampleRate = 0
	c.channels = 0
	return nil
}

// Append buffers one frame. Frames arriving while no capture is armed are
// dropped; the monitor feeds every frame it sees and the capturer keeps only
// the span between Begin and End.
func (c *Capturer) Append(frame audio.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active || len(frame.Data) == 0 {
		return
	}
	if c.buf.Len() == 0 {
		c.mime = frame.MIME
		c.sampleRate = frame.SampleRate
		c.channels = frame.Channels
	}
	c.buf.Write(frame.Data)
}

// End disarms the capturer and returns the clip buffered since Begin.
// Returns [ErrNotCapturing] when no capture is armed and [ErrEmptyCapture]
// when the buffer is empty.
func (c *Capturer) End(at time.Time) (audio.Clip, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return audio.Clip{}, ErrNotCapturing
	}
	c.active = false

	if c.buf.Len() == 0 {
		c.logger.Warn("capture ended with no audio")
		return audio.Clip{}, fmt.Errorf("capture between %s and %s: %w",
			c.started.Format(time.RFC3339), at.Format(time.RFC3339), ErrEmptyCapture)
	}

	data := make([]byte, c.buf.Len())
	copy(data, c.buf.Bytes())
	c.buf.Reset()

	clip := audio.Clip{
		Data:       data,
		MIME:       c.mime,
		Language:   c.language,
		SampleRate: c.sampleRate,
		Channels:   c.channels,
		Duration:   c.clipDuration(len(data), at),
	}
	c.logger.Debug("capture finalised", "bytes", len(data), "duration", clip.Duration)
	return clip, nil
}

// Abort disarms the capturer and discards any buffered audio. A no-op when no
// capture is armed.
func (c *Capturer) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active {
		c.logger.Debug("capture aborted", "bytes", c.buf.Len())
	}
	c.active = false
	c.buf.Reset()
}

// Active reports whether a capture is currently armed.
func (c *Capturer) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// clipDuration derives playback length from the PCM byte count when the format
// allows it, falling back to the wall-clock capture span. Caller holds the lock.
func (c *Capturer) clipDuration(byteLen int, endedAt time.Time) time.Duration {
	if c.mime == audio.MIMEPCM && c.sampleRate > 0 && c.channels > 0 {
		samples := byteLen / 2 / c.channels
		return time.Duration(samples) * time.Second / time.Duration(c.sampleRate)
	}
	if !c.started.IsZero() && endedAt.After(c.started) {
		return endedAt.Sub(c.started)
	}
	return 0
}
