package resilience

import (
	"context"

	"github.com/bridgit-ai/bridgit/pkg/audio"
	"github.com/bridgit-ai/bridgit/pkg/provider/stt"
)

// STTFallback wraps the transcription stage with automatic failover across
// multiple STT backends. Each backend has its own circuit breaker.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional STT provider as a fallback.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe sends the clip to the first healthy provider and reports which
// backend produced the transcript.
func (f *STTFallback) Transcribe(ctx context.Context, clip audio.Clip, languageHint string) (stt.Result, Outcome, error) {
	return ExecuteWithOutcome(f.group, func(p stt.Provider) (stt.Result, error) {
		return p.Transcribe(ctx, clip, languageHint)
	})
}
