package pipeline

import (
	"time"

	"github.com/bridgit-ai/bridgit/internal/resilience"
	"github.com/bridgit-ai/bridgit/internal/transcript"
	"github.com/bridgit-ai/bridgit/pkg/audio"
	"github.com/bridgit-ai/bridgit/pkg/history"
)

// StageSpan holds the observed boundaries of one stage within a cycle. A zero
// time means the boundary was not reached.
type StageSpan struct {
	Start time.Time
	End   time.Time
}

// Utterance is the working context of one in-flight translation cycle. It is
// created when recording starts, owned by exactly one pipeline run, and
// discarded when the run returns to idle. Its usage is folded into the
// session's history record when the cycle settles.
type Utterance struct {
	// ID is the cycle identifier, used in logs and ledger entries.
	ID string

	SourceLanguage string
	TargetLanguage string

	// Clip is the captured audio, consumed exactly once by transcription.
	Clip audio.Clip

	// Transcript is the final (glossary-corrected) transcription.
	Transcript string

	// Corrections lists the glossary substitutions applied to Transcript.
	Corrections []transcript.Correction

	// Translation is the target-language text.
	Translation string

	// Spans holds the observed stage boundaries.
	Spans map[history.Stage]StageSpan

	// Provider outcomes per stage, recorded win-or-lose.
	STT       resilience.Outcome
	Translate resilience.Outcome
	TTS       resilience.Outcome

	// Credits accumulated across the stages that succeeded.
	Credits float64
}

// usage builds the history usage entry for the settled cycle.
func (u *Utterance) usage(voiceID string) history.Usage {
	return history.Usage{
		Transcript:  u.Transcript,
		Translation: u.Translation,

		STTProvider:         u.STT.Provider,
		TranslationProvider: u.Translate.Provider,
		TTSProvider:         u.TTS.Provider,
		TTSVoice:            voiceID,

		STTSeconds:    u.Clip.Duration.Seconds(),
		TTSCharacters: len(u.Translation),
		Credits:       u.Credits,

		STTFallbackUsed:       u.STT.FallbackUsed,
		TranslateFallbackUsed: u.Translate.FallbackUsed,
		TTSFallbackUsed:       u.TTS.FallbackUsed,
	}
}
