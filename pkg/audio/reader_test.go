package audio

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"
)

// frameBytes100ms returns the byte size of one 100 ms frame at the given format.
func frameBytes100ms(sampleRate, channels int) int {
	return sampleRate * channels * 2 * frameMs / 1000
}

func collectFrames(t *testing.T, s *ReaderSource) []Frame {
	t.Helper()
	var frames []Frame
	timeout := time.After(2 * time.Second)
	for {
		select {
		case f, ok := <-s.Frames():
			if !ok {
				return frames
			}
			frames = append(frames, f)
		case <-timeout:
			t.Fatal("timed out draining source")
		}
	}
}

func TestReaderSourceEmitsFrames(t *testing.T) {
	size := frameBytes100ms(16000, 1)
	data := make([]byte, size*2+size/2) // two full frames plus a partial tail

	s := NewReaderSource(bytes.NewReader(data), WithFormat(16000, 1))
	frames := collectFrames(t, s)

	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	if len(frames[0].Data) != size {
		t.Errorf("frame size = %d, want %d", len(frames[0].Data), size)
	}
	if len(frames[2].Data) != size/2 {
		t.Errorf("tail frame size = %d, want %d", len(frames[2].Data), size/2)
	}
	if frames[0].MIME != MIMEPCM || frames[0].SampleRate != 16000 || frames[0].Channels != 1 {
		t.Errorf("frame format = %q/%d/%d", frames[0].MIME, frames[0].SampleRate, frames[0].Channels)
	}
	if frames[0].Timestamp.IsZero() {
		t.Error("frame timestamp is zero")
	}
	if err := s.Err(); err != nil {
		t.Errorf("Err() = %v after clean EOF", err)
	}
}

// failingReader returns some data and then a non-EOF error.
type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestReaderSourceReportsDeviceError(t *testing.T) {
	r := &failingReader{
		data: make([]byte, frameBytes100ms(16000, 1)),
		err:  errors.New("input device detached"),
	}

	s := NewReaderSource(r, WithFormat(16000, 1))
	frames := collectFrames(t, s)

	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if err := s.Err(); !errors.Is(err, ErrDevice) {
		t.Errorf("Err() = %v, want ErrDevice", err)
	}
}

func TestReaderSourceCloseStopsStream(t *testing.T) {
	// An endless reader; Close must still let the consumer finish.
	pr, pw := io.Pipe()
	defer pw.Close()

	s := NewReaderSource(pr, WithFormat(16000, 1))
	if err := s.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}

	select {
	case _, ok := <-s.Frames():
		if ok {
			t.Error("received a frame after Close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Frames channel not closed after Close")
	}
}
