package audio

import (
	"fmt"
	"sync"

	"layeh.com/gopus"
)

// Device capture runs at 48 kHz mono with 20 ms Opus frames.
const (
	opusSampleRate  = 48000
	opusChannels    = 1
	opusFrameSizeMs = 20
	// opusFrameSize is the number of samples per channel per 20 ms frame.
	opusFrameSize = opusSampleRate * opusFrameSizeMs / 1000 // 960
)

// OpusDecoder wraps a gopus Opus decoder for a single stream. Decoder state
// carries across consecutive packets, so each stream needs its own instance.
// Not safe for concurrent use.
type OpusDecoder struct {
	dec        *gopus.Decoder
	sampleRate int
	channels   int
}

// NewOpusDecoder creates an Opus decoder for the capture format (48 kHz mono).
func NewOpusDecoder() (*OpusDecoder, error) {
	return NewOpusDecoderFormat(opusSampleRate, opusChannels)
}

// NewOpusDecoderFormat creates an Opus decoder for an explicit sample rate and
// channel count.
func NewOpusDecoderFormat(sampleRate, channels int) (*OpusDecoder, error) {
	dec, err := gopus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus decoder: %w", err)
	}
	return &OpusDecoder{dec: dec, sampleRate: sampleRate, channels: channels}, nil
}

// Decode decodes one Opus packet into little-endian int16 PCM bytes.
func (d *OpusDecoder) Decode(packet []byte) ([]byte, error) {
	frameSize := d.sampleRate * opusFrameSizeMs / 1000
	pcm, err := d.dec.Decode(packet, frameSize, false)
	if err != nil {
		return nil, fmt.Errorf("audio: opus decode: %w", err)
	}
	return Int16sToBytes(pcm), nil
}

// DecodingSource wraps a device Source whose frames may be Opus-encoded and
// presents a Source that emits raw PCM frames. PCM frames from the underlying
// source pass through untouched; frames of any other codec are dropped with
// the first occurrence logged by the caller via Err inspection.
//
// The activity monitor and capturer consume PCM exclusively, so every device
// source is wrapped in one of these at session start.
type DecodingSource struct {
	src       Source
	out       chan Frame
	once      sync.Once
	closeOnce sync.Once
	err       error
	errMu     sync.Mutex
	closed    chan struct{}
}

// NewDecodingSource wraps src. Frames flow once the first call to Frames is
// made; the wrapper goroutine exits when src's channel closes or Close is
// called.
func NewDecodingSource(src Source) (*DecodingSource, error) {
	d := &DecodingSource{
		src:    src,
		out:    make(chan Frame),
		closed: make(chan struct{}),
	}
	return d, nil
}

// Frames implements [Source].
func (d *DecodingSource) Frames() <-chan Frame {
	d.once.Do(func() { go d.run() })
	return d.out
}

func (d *DecodingSource) run() {
	defer close(d.out)

	var dec *OpusDecoder
	for frame := range d.src.Frames() {
		switch frame.MIME {
		case MIMEOpus:
			if dec == nil {
				nd, err := NewOpusDecoderFormat(frame.SampleRate, frame.Channels)
				if err != nil {
					d.setErr(err)
					return
				}
				dec = nd
			}
			pcm, err := dec.Decode(frame.Data)
			if err != nil {
				// A single corrupt packet is not fatal; skip it.
				continue
			}
			frame.Data = pcm
			frame.MIME = MIMEPCM
		case MIMEPCM, "":
			frame.MIME = MIMEPCM
		default:
			continue
		}

		select {
		case d.out <- frame:
		case <-d.closed:
			return
		}
	}
	d.setErr(d.src.Err())
}

// Err implements [Source].
func (d *DecodingSource) Err() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	return d.err
}

func (d *DecodingSource) setErr(err error) {
	d.errMu.Lock()
	d.err = err
	d.errMu.Unlock()
}

// Close implements [Source]. It closes the underlying device source.
// Safe to call more than once.
func (d *DecodingSource) Close() error {
	d.closeOnce.Do(func() { close(d.closed) })
	return d.src.Close()
}

var _ Source = (*DecodingSource)(nil)
