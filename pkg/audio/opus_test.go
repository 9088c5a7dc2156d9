package audio_test

import (
	"errors"
	"testing"
	"time"

	"github.com/bridgit-ai/bridgit/pkg/audio"
	"github.com/bridgit-ai/bridgit/pkg/audio/mock"
)

func TestDecodingSourcePassesPCMThrough(t *testing.T) {
	src := mock.NewSource(4)
	dec, err := audio.NewDecodingSource(src)
	if err != nil {
		t.Fatalf("NewDecodingSource: %v", err)
	}
	defer dec.Close()

	ts := time.Now()
	src.Push(audio.Frame{Data: []byte{1, 2}, MIME: audio.MIMEPCM, SampleRate: 48000, Channels: 1, Timestamp: ts})
	src.Push(audio.Frame{Data: []byte{3, 4}, SampleRate: 48000, Channels: 1})
	src.Close()

	var got []audio.Frame
	for f := range dec.Frames() {
		got = append(got, f)
	}
	if len(got) != 2 {
		t.Fatalf("got %d frames, want 2", len(got))
	}
	if got[0].MIME != audio.MIMEPCM || !got[0].Timestamp.Equal(ts) {
		t.Errorf("first frame = %+v", got[0])
	}
	if got[1].MIME != audio.MIMEPCM {
		t.Errorf("untyped frame not normalised to PCM: %q", got[1].MIME)
	}
	if err := dec.Err(); err != nil {
		t.Errorf("Err() = %v", err)
	}
}

func TestDecodingSourceDropsUnknownCodecs(t *testing.T) {
	src := mock.NewSource(4)
	dec, err := audio.NewDecodingSource(src)
	if err != nil {
		t.Fatalf("NewDecodingSource: %v", err)
	}
	defer dec.Close()

	src.Push(audio.Frame{Data: []byte{9}, MIME: "audio/flac", SampleRate: 48000, Channels: 1})
	src.Push(audio.Frame{Data: []byte{1, 2}, MIME: audio.MIMEPCM, SampleRate: 48000, Channels: 1})
	src.Close()

	var got []audio.Frame
	for f := range dec.Frames() {
		got = append(got, f)
	}
	if len(got) != 1 {
		t.Fatalf("got %d frames, want only the PCM one", len(got))
	}
}

func TestDecodingSourcePropagatesDeviceError(t *testing.T) {
	src := mock.NewSource(1)
	dec, err := audio.NewDecodingSource(src)
	if err != nil {
		t.Fatalf("NewDecodingSource: %v", err)
	}
	defer dec.Close()

	deviceErr := errors.New("device unplugged")
	src.CloseWithErr(deviceErr)

	for range dec.Frames() {
	}
	if got := dec.Err(); !errors.Is(got, deviceErr) {
		t.Errorf("Err() = %v, want the device error", got)
	}
}
