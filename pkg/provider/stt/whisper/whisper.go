// Package whisper provides an STT provider backed by the whisper.cpp CGO
// bindings, eliminating network dependence entirely. The model is loaded once
// at startup and shared across all transcriptions. The whisper.cpp static
// library (libwhisper.a) and headers (whisper.h) must be available at link
// time via LIBRARY_PATH and C_INCLUDE_PATH environment variables.
//
// Inference runs at the 16 kHz mono float32 format whisper.cpp expects;
// higher-rate capture clips are downmixed and decimated before processing.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/bridgit-ai/bridgit/pkg/audio"
	"github.com/bridgit-ai/bridgit/pkg/provider/stt"
)

// whisperSampleRate is the only sample rate whisper.cpp accepts.
const whisperSampleRate = 16000

// Provider implements stt.Provider using whisper.cpp Go bindings (CGO).
type Provider struct {
	model    whisperlib.Model
	language string
}

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the default transcription language used when Transcribe
// receives no language hint. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// New creates a Provider that loads the whisper.cpp model from the given file
// path. The caller must call Close when the provider is no longer needed.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &Provider{model: model, language: "en"}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe implements stt.Provider. Each call creates a fresh whisper.cpp
// context — contexts are not thread-safe but the model is shared, so
// concurrent transcriptions are fine.
func (p *Provider) Transcribe(ctx context.Context, clip audio.Clip, languageHint string) (stt.Result, error) {
	if err := ctx.Err(); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: context already cancelled: %w", err)
	}
	if clip.MIME != audio.MIMEPCM {
		return stt.Result{}, fmt.Errorf("whisper: PCM clips only, got %q", clip.MIME)
	}
	if len(clip.Data) == 0 {
		return stt.Result{}, errors.New("whisper: empty clip")
	}

	lang := languageHint
	if lang == "" {
		lang = p.language
	}

	samples := toWhisperSamples(clip)

	wctx, err := p.model.NewContext()
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "err", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stt.Result{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	return stt.Result{Text: strings.Join(parts, " "), Language: lang}, nil
}

// toWhisperSamples converts a PCM clip to 16 kHz mono float32. Multi-channel
// audio is averaged; higher sample rates are decimated by an integer factor
// (48 kHz → every 3rd sample), which is adequate for speech input.
func toWhisperSamples(clip audio.Clip) []float32 {
	channels := clip.Channels
	if channels <= 0 {
		channels = 1
	}
	rate := clip.SampleRate
	if rate <= 0 {
		rate = whisperSampleRate
	}

	ints := audio.BytesToInt16s(clip.Data)
	frames := len(ints) / channels

	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += float32(ints[i*channels+c]) / 32768.0
		}
		mono[i] = sum / float32(channels)
	}

	step := rate / whisperSampleRate
	if step <= 1 {
		return mono
	}
	out := make([]float32, 0, len(mono)/step+1)
	for i := 0; i < len(mono); i += step {
		out = append(out, mono[i])
	}
	return out
}
