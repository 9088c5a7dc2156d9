package vad

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bridgit-ai/bridgit/pkg/audio"
)

// Callbacks are invoked synchronously from the monitor loop, one frame at a
// time, in the order: OnLevel, boundary event, OnFrame. Handlers must be fast;
// anything slow belongs on the handler's own goroutine.
type Callbacks struct {
	// OnLevel receives the energy level of every frame. Non-authoritative,
	// intended for level meters.
	OnLevel func(level float64)

	// OnSpeechStart fires when voice is detected while idle. at is the
	// frame timestamp.
	OnSpeechStart func(at time.Time)

	// OnSpeechEnd fires when a completed utterance ended. start is when the
	// voiced segment began.
	OnSpeechEnd func(start, end time.Time)

	// OnSpeechAbort fires when a voiced run was too short to count as an
	// utterance.
	OnSpeechAbort func()

	// OnFrame receives every frame after boundary callbacks have run, so a
	// capture sink opened by OnSpeechStart sees the frame that triggered it.
	OnFrame func(frame audio.Frame)

	// OnDeviceError fires once when the audio source fails. The monitor
	// stops after reporting it.
	OnDeviceError func(err error)
}

// Monitor drives a [Detector] from a live audio source. It consumes frames,
// computes the energy level per frame, and surfaces boundary events through
// [Callbacks].
//
// The monitor keeps sampling regardless of what downstream consumers do with
// the events; suppressing a speech-start is the orchestrator's decision, not
// the monitor's.
type Monitor struct {
	src    audio.Source
	det    *Detector
	cb     Callbacks
	logger *slog.Logger

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewMonitor creates a Monitor over src. A nil logger falls back to
// slog.Default.
func NewMonitor(src audio.Source, det *Detector, cb Callbacks, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		src:     src,
		det:     det,
		cb:      cb,
		logger:  logger,
		stopped: make(chan struct{}),
	}
}

// Run consumes the audio source until it is exhausted or Stop is called.
// It returns a device error when the source failed, nil otherwise.
func (m *Monitor) Run() error {
	frames := m.src.Frames()
	for {
		select {
		case <-m.stopped:
			m.det.Reset()
			return nil
		case frame, ok := <-frames:
			if !ok {
				m.det.Reset()
				if err := m.src.Err(); err != nil {
					m.logger.Error("audio source failed", "error", err)
					if m.cb.OnDeviceError != nil {
						m.cb.OnDeviceError(err)
					}
					return fmt.Errorf("activity monitor: %w", err)
				}
				return nil
			}
			m.observe(frame)
		}
	}
}

// Stop halts the monitor loop. Safe to call multiple times and from any
// goroutine.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopped) })
}

func (m *Monitor) observe(frame audio.Frame) {
	at := frame.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	level := audio.Energy(frame.Data)
	if m.cb.OnLevel != nil {
		m.cb.OnLevel(level)
	}

	start := m.det.SpeechStart()
	switch ev := m.det.Observe(level, at); ev {
	case EventSpeechStart:
		m.logger.Debug("speech started", "level", level)
		if m.cb.OnSpeechStart != nil {
			m.cb.OnSpeechStart(at)
		}
	case EventSpeechEnd:
		m.logger.Debug("speech ended", "duration", at.Sub(start))
		if m.cb.OnSpeechEnd != nil {
			m.cb.OnSpeechEnd(start, at)
		}
	case EventSpeechAbort:
		m.logger.Debug("speech segment too short, discarded")
		if m.cb.OnSpeechAbort != nil {
			m.cb.OnSpeechAbort()
		}
	}

	if m.cb.OnFrame != nil {
		m.cb.OnFrame(frame)
	}
}
