// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs or the
// OpenAI speech API) and renders one utterance per call. Synthesis is batch:
// the pipeline hands over a complete translated utterance and receives a
// playable clip back.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"strings"
	"time"

	"github.com/bridgit-ai/bridgit/pkg/audio"
)

// Voice describes a synthesis voice configuration.
type Voice struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS backend this voice belongs to.
	Provider string

	// Speed adjusts speaking rate (0.5 to 2.0, 1.0 = default). Zero means
	// provider default.
	Speed float64

	// Metadata holds provider-specific voice attributes (gender, accent, etc.).
	Metadata map[string]string
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders the given text with the requested voice and returns
	// a playable clip. The clip's Duration field is the playback length,
	// estimated from the text when the provider does not report one.
	//
	// voice specifies the voice to use. Providers should return an error if
	// the requested voice is not available.
	Synthesize(ctx context.Context, text string, voice Voice) (audio.Clip, error)

	// ListVoices returns all voices available from this provider. The list
	// reflects the provider's current catalogue and may change between calls.
	ListVoices(ctx context.Context) ([]Voice, error)
}

// speechWordsPerMinute is the average conversational speaking rate used to
// estimate playback duration from text when the provider reports none.
const speechWordsPerMinute = 150

// EstimateDuration returns the approximate spoken length of text at an
// average conversational rate.
func EstimateDuration(text string) time.Duration {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	seconds := float64(words) / speechWordsPerMinute * 60
	return time.Duration(seconds * float64(time.Second))
}
