// Package audio defines the frame and clip types flowing through the Bridgit
// voice pipeline, plus the capture-source and playback abstractions that wrap
// the underlying audio device.
package audio

import (
	"errors"
	"time"
)

// ErrDevice indicates the audio device could not be opened or stopped
// responding mid-stream. It is fatal to the current voice session.
var ErrDevice = errors.New("audio: device unavailable")

// Frame represents a single frame of audio data read from the capture device.
// Frames are the atomic unit of audio transport — sampled by the activity
// monitor, buffered by the capturer while an utterance is active, and decoded
// for playback.
type Frame struct {
	// Data holds the frame payload. Encoding is described by MIME; raw frames
	// are 16-bit signed little-endian PCM.
	Data []byte

	// MIME identifies the codec of Data (e.g. "audio/pcm", "audio/ogg;codecs=opus").
	MIME string

	// SampleRate in Hz (e.g. 48000 for device capture, 16000 for STT input).
	SampleRate int

	// Channels: 1 for mono capture, 2 for stereo playback.
	Channels int

	// Timestamp marks when this frame was captured. The zero value means the
	// consumer should substitute its own clock.
	Timestamp time.Time
}

// Clip is one complete captured utterance: an immutable byte blob plus a codec
// tag and language hint. A clip is produced exactly once per utterance by the
// capturer and consumed exactly once by the transcription stage.
type Clip struct {
	// Data is the encoded audio payload. Treated as opaque by all pipeline
	// stages; only provider adapters and the player interpret it.
	Data []byte

	// MIME identifies the codec of Data.
	MIME string

	// Language is the BCP-47 language hint of the speaker (e.g. "en", "fr").
	Language string

	// SampleRate in Hz of the underlying audio.
	SampleRate int

	// Channels is the channel count of the underlying audio.
	Channels int

	// Duration is the wall-clock length of the captured audio.
	Duration time.Duration
}

// MIME type constants used across the pipeline.
const (
	MIMEPCM  = "audio/pcm"
	MIMEOpus = "audio/ogg;codecs=opus"
	MIMEMP3  = "audio/mpeg"
)
