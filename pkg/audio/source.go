package audio

// Source is an open capture stream from the audio input device. Exactly one
// component (the activity monitor) reads from a Source at a time; there is no
// fan-out. The stream is exclusively owned by the active voice session.
//
// Implementations deliver frames at a fixed cadence (the monitor tick, 100 ms
// by default). When the device fails mid-stream the Frames channel is closed
// and Err reports the cause.
type Source interface {
	// Frames returns the channel of captured frames. The channel is closed
	// when the source is closed or the device fails.
	Frames() <-chan Frame

	// Err returns the error that caused the Frames channel to close, or nil
	// after a clean Close. Only valid once Frames is closed.
	Err() error

	// Close releases the device. Safe to call more than once.
	Close() error
}
