package audio

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// frameMs is the duration of one captured frame. Matches the activity
// monitor's sampling cadence.
const frameMs = 100

// ReaderSource captures raw PCM frames from an io.Reader, typically the
// stdout of an OS recording process piped into the client. It implements
// [Source].
type ReaderSource struct {
	r          io.Reader
	sampleRate int
	channels   int

	frames chan Frame

	mu  sync.Mutex
	err error

	closeOnce sync.Once
	closed    chan struct{}
}

// ReaderSourceOption configures a [ReaderSource].
type ReaderSourceOption func(*ReaderSource)

// WithFormat sets the PCM format of the reader. Default is 48 kHz mono.
func WithFormat(sampleRate, channels int) ReaderSourceOption {
	return func(s *ReaderSource) {
		if sampleRate > 0 {
			s.sampleRate = sampleRate
		}
		if channels > 0 {
			s.channels = channels
		}
	}
}

var _ Source = (*ReaderSource)(nil)

// NewReaderSource starts reading 16-bit little-endian PCM from r and emits
// one [Frame] per 100 ms of audio. The stream ends cleanly on io.EOF; any
// other read error is reported through Err after the Frames channel closes.
func NewReaderSource(r io.Reader, opts ...ReaderSourceOption) *ReaderSource {
	s := &ReaderSource{
		r:          r,
		sampleRate: 48000,
		channels:   1,
		frames:     make(chan Frame, 8),
		closed:     make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	go s.loop()
	return s
}

func (s *ReaderSource) loop() {
	defer close(s.frames)

	frameBytes := s.sampleRate * s.channels * 2 * frameMs / 1000
	for {
		buf := make([]byte, frameBytes)
		n, err := io.ReadFull(s.r, buf)
		if n > 0 {
			frame := Frame{
				Data:       buf[:n],
				MIME:       MIMEPCM,
				SampleRate: s.sampleRate,
				Channels:   s.channels,
				Timestamp:  time.Now(),
			}
			select {
			case s.frames <- frame:
			case <-s.closed:
				return
			}
		}
		if err != nil {
			select {
			case <-s.closed:
				// Read failure caused by Close tearing down the reader.
				return
			default:
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				s.mu.Lock()
				s.err = fmt.Errorf("%w: %v", ErrDevice, err)
				s.mu.Unlock()
			}
			return
		}
		select {
		case <-s.closed:
			return
		default:
		}
	}
}

// Frames implements [Source].
func (s *ReaderSource) Frames() <-chan Frame { return s.frames }

// Err implements [Source].
func (s *ReaderSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close implements [Source]. A blocked read on the underlying reader is not
// interrupted; the goroutine exits after the read returns.
func (s *ReaderSource) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
