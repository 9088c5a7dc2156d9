package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/bridgit-ai/bridgit/pkg/audio"
	"github.com/bridgit-ai/bridgit/pkg/provider/stt"
	sttmock "github.com/bridgit-ai/bridgit/pkg/provider/stt/mock"
	"github.com/bridgit-ai/bridgit/pkg/provider/translate"
	translatemock "github.com/bridgit-ai/bridgit/pkg/provider/translate/mock"
	"github.com/bridgit-ai/bridgit/pkg/provider/tts"
	ttsmock "github.com/bridgit-ai/bridgit/pkg/provider/tts/mock"
)

func testClip() audio.Clip {
	return audio.Clip{Data: make([]byte, 9600), MIME: audio.MIMEPCM, SampleRate: 48000, Channels: 1, Language: "en"}
}

func TestSTTFallback_PrimaryWins(t *testing.T) {
	primary := &sttmock.Provider{Result: stt.Result{Text: "hello"}}
	secondary := &sttmock.Provider{Result: stt.Result{Text: "unused"}}

	f := NewSTTFallback(primary, "openai", FallbackConfig{})
	f.AddFallback("whisper", secondary)

	result, outcome, err := f.Transcribe(context.Background(), testClip(), "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "hello" {
		t.Fatalf("text = %q, want hello", result.Text)
	}
	if outcome.Provider != "openai" || outcome.FallbackUsed {
		t.Fatalf("outcome = %+v, want primary with no fallback", outcome)
	}
	if secondary.CallCount() != 0 {
		t.Fatal("fallback must not be called when primary succeeds")
	}
}

func TestSTTFallback_FailoverReportsFallback(t *testing.T) {
	primary := &sttmock.Provider{Err: errProviderDown}
	secondary := &sttmock.Provider{Result: stt.Result{Text: "hello"}}

	f := NewSTTFallback(primary, "openai", FallbackConfig{})
	f.AddFallback("whisper", secondary)

	clip := testClip()
	result, outcome, err := f.Transcribe(context.Background(), clip, "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "hello" {
		t.Fatalf("text = %q, want hello", result.Text)
	}
	if outcome.Provider != "whisper" || !outcome.FallbackUsed {
		t.Fatalf("outcome = %+v, want whisper with fallback", outcome)
	}

	// The fallback must receive the same semantic input as the primary.
	if primary.CallCount() != 1 || secondary.CallCount() != 1 {
		t.Fatalf("calls = %d/%d, want 1/1", primary.CallCount(), secondary.CallCount())
	}
	if got := secondary.Calls[0]; len(got.Clip.Data) != len(clip.Data) || got.LanguageHint != "en" {
		t.Fatalf("fallback input = %+v, want the primary's input", got)
	}
}

func TestSTTFallback_BothFail(t *testing.T) {
	primary := &sttmock.Provider{Err: errProviderDown}
	secondary := &sttmock.Provider{Err: errProviderDown}

	f := NewSTTFallback(primary, "openai", FallbackConfig{})
	f.AddFallback("whisper", secondary)

	_, outcome, err := f.Transcribe(context.Background(), testClip(), "en")
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	if outcome.Provider != "whisper" {
		t.Fatalf("outcome provider = %q, want the last entry tried", outcome.Provider)
	}
}

func TestTranslateFallback_Failover(t *testing.T) {
	primary := &translatemock.Provider{Err: errProviderDown}
	secondary := &translatemock.Provider{Result: translate.Result{Text: "bonjour"}}

	f := NewTranslateFallback(primary, "deepl", FallbackConfig{})
	f.AddFallback("llm", secondary)

	result, outcome, err := f.Translate(context.Background(), translate.Request{Text: "hello", Source: "en", Target: "fr"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "bonjour" {
		t.Fatalf("text = %q, want bonjour", result.Text)
	}
	if outcome.Provider != "llm" || !outcome.FallbackUsed {
		t.Fatalf("outcome = %+v, want llm with fallback", outcome)
	}
}

func TestTTSFallback_Failover(t *testing.T) {
	primary := &ttsmock.Provider{Err: errProviderDown}
	secondary := &ttsmock.Provider{}

	f := NewTTSFallback(primary, "elevenlabs", FallbackConfig{})
	f.AddFallback("openai", secondary)

	clip, outcome, err := f.Synthesize(context.Background(), "bonjour", tts.Voice{ID: "v1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(clip.Data) == 0 {
		t.Fatal("expected synthesized audio")
	}
	if outcome.Provider != "openai" || !outcome.FallbackUsed {
		t.Fatalf("outcome = %+v, want openai with fallback", outcome)
	}
}
