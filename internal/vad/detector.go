// Package vad implements energy-threshold voice activity detection.
//
// The package splits detection into two parts: [Detector] is a pure state
// machine fed one energy level per tick, and [Monitor] drives a Detector from
// a live [audio.Source], surfacing boundary events through callbacks.
//
// Detection is synchronous by design: Observe returns immediately with a
// boundary event, making it suitable for the low-latency loop that gates
// capture.
package vad

import (
	"time"
)

// Default detection parameters.
const (
	// DefaultEnergyThreshold is the normalised RMS level above which a tick
	// counts as voice.
	DefaultEnergyThreshold = 0.01

	// DefaultSilenceDuration is how long silence must persist before an
	// utterance is considered finished.
	DefaultSilenceDuration = 1500 * time.Millisecond

	// DefaultMinSpeechDuration is the shortest voiced run that produces an
	// utterance. Shorter runs are discarded as noise spikes.
	DefaultMinSpeechDuration = 500 * time.Millisecond
)

// Event is the boundary decision for a single tick.
type Event int

const (
	// EventNone means no boundary was crossed this tick.
	EventNone Event = iota

	// EventSpeechStart means voice was detected while idle.
	EventSpeechStart

	// EventSpeechEnd means a completed utterance ended: silence persisted
	// past the configured duration and the voiced run met the minimum
	// length.
	EventSpeechEnd

	// EventSpeechAbort means silence persisted past the configured duration
	// but the voiced run was too short to count as an utterance. The
	// detector returns to idle without producing speech boundaries.
	EventSpeechAbort
)

// String returns the event name for logging.
func (e Event) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventSpeechStart:
		return "speech_start"
	case EventSpeechEnd:
		return "speech_end"
	case EventSpeechAbort:
		return "speech_abort"
	default:
		return "unknown"
	}
}

// Config holds the parameters for a Detector. Zero values fall back to the
// package defaults.
type Config struct {
	// EnergyThreshold is the normalised RMS level above which a tick counts
	// as voice. Range: (0.0, 1.0].
	EnergyThreshold float64

	// SilenceDuration is how long silence must persist before speech is
	// considered ended.
	SilenceDuration time.Duration

	// MinSpeechDuration is the shortest voiced run that produces an
	// utterance.
	MinSpeechDuration time.Duration
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.EnergyThreshold <= 0 {
		c.EnergyThreshold = DefaultEnergyThreshold
	}
	if c.SilenceDuration <= 0 {
		c.SilenceDuration = DefaultSilenceDuration
	}
	if c.MinSpeechDuration <= 0 {
		c.MinSpeechDuration = DefaultMinSpeechDuration
	}
	return c
}

// Detector decides speech boundaries from a stream of energy levels.
//
// A Detector is not safe for concurrent use; it belongs to the single loop
// that feeds it ticks.
type Detector struct {
	cfg Config

	speaking     bool
	speechStart  time.Time
	lastVoiced   time.Time
	silenceStart time.Time
}

// NewDetector creates a Detector. Zero config fields take package defaults.
func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg.withDefaults()}
}

// Observe feeds one energy level sampled at the given instant and returns the
// boundary decision for this tick.
func (d *Detector) Observe(level float64, now time.Time) Event {
	if level > d.cfg.EnergyThreshold {
		d.silenceStart = time.Time{}
		d.lastVoiced = now
		if !d.speaking {
			d.speaking = true
			d.speechStart = now
			return EventSpeechStart
		}
		return EventNone
	}

	if !d.speaking {
		return EventNone
	}

	if d.silenceStart.IsZero() {
		d.silenceStart = now
		return EventNone
	}
	if now.Sub(d.silenceStart) <= d.cfg.SilenceDuration {
		return EventNone
	}

	// Silence has persisted long enough to close the segment. The voiced
	// run is measured up to the last voiced tick so that trailing silence
	// never counts towards the minimum length.
	voiced := d.lastVoiced.Sub(d.speechStart)
	d.reset()
	if voiced < d.cfg.MinSpeechDuration {
		return EventSpeechAbort
	}
	return EventSpeechEnd
}

// Speaking reports whether the detector currently considers speech active.
func (d *Detector) Speaking() bool { return d.speaking }

// SpeechStart returns when the current voiced segment began. Zero when idle.
func (d *Detector) SpeechStart() time.Time {
	if !d.speaking {
		return time.Time{}
	}
	return d.speechStart
}

// Reset clears all accumulated state without emitting an event. Use this when
// the audio stream is interrupted or restarted so stale state from the
// previous segment cannot affect subsequent ticks.
func (d *Detector) Reset() { d.reset() }

func (d *Detector) reset() {
	d.speaking = false
	d.speechStart = time.Time{}
	d.lastVoiced = time.Time{}
	d.silenceStart = time.Time{}
}
