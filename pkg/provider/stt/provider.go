// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription service (e.g. the OpenAI Whisper API
// or a local whisper.cpp model) behind a single batch operation: one captured
// utterance clip in, one final transcript out. Bridgit's pipeline works on
// complete utterances — speech boundaries are decided by the activity monitor
// before transcription starts — so no streaming-partials contract is needed.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"

	"github.com/bridgit-ai/bridgit/pkg/audio"
)

// Result is the outcome of transcribing one utterance clip.
type Result struct {
	// Text is the final transcript. Empty when no speech was recognised.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). Zero when the
	// provider does not report confidence.
	Confidence float64

	// Language is the language the provider detected or was told to use.
	Language string
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe converts a single captured utterance into its final
	// transcript. languageHint is a BCP-47 code guiding recognition; an empty
	// hint lets the provider auto-detect when supported.
	//
	// The clip is consumed exactly once. Returns an error if the provider is
	// unreachable, rejects the audio, or ctx expires first.
	Transcribe(ctx context.Context, clip audio.Clip, languageHint string) (Result, error)
}
