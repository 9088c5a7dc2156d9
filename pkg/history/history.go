// Package history defines the session history layer: a persistent record of
// every voice session the client runs.
//
// One [Record] covers a whole session, from mic-on to mic-off. The session
// manager opens and closes the record; the pipeline only reports into it
// while the session runs, appending stage transitions as utterances move
// through the stages and folding each finished utterance's usage into the
// session totals via [Recorder.AddUsage]. Records double as the billing audit
// trail: the usage columns show what the session consumed and whether it was
// charged.
//
// All interfaces are public so that external packages can supply alternative
// storage backends (Postgres, in-memory, …). Every implementation must be safe
// for concurrent use.
package history

import (
	"context"
	"time"
)

// Stage identifies one pipeline stage within a session.
type Stage string

const (
	StageRecording     Stage = "recording"
	StageTranscription Stage = "transcription"
	StageTranslation   Stage = "translation"
	StageSpeaking      Stage = "speaking"
)

// Status is the lifecycle state of a session record.
type Status string

const (
	// StatusActive marks a session that is still running.
	StatusActive Status = "active"

	// StatusEnded marks a session closed cleanly: the mic was switched off
	// with no utterance mid-stage.
	StatusEnded Status = "ended"

	// StatusError marks a session that ended on a device failure or was
	// aborted while an utterance was mid-stage.
	StatusError Status = "error"
)

// Transition is one reported stage boundary. A session runs many utterances,
// so the same stage appears in the log once per cycle.
type Transition struct {
	Stage Stage
	At    time.Time

	// Entered is true for a stage entry, false for a stage exit.
	Entered bool
}

// Record is one voice session from mic-on to mic-off.
type Record struct {
	// ID is the unique session identifier (a UUID).
	ID string

	// UserID identifies the account the session is billed to.
	UserID string

	// SourceLanguage and TargetLanguage are ISO 639-1 codes.
	SourceLanguage string
	TargetLanguage string

	// Mode is the delivery mode, local or remote.
	Mode string

	// Code is the relay session code. Empty for local sessions.
	Code string

	// CreatedAt is when the session started; EndedAt is when it closed.
	// EndedAt is zero while the session is active.
	CreatedAt time.Time
	EndedAt   time.Time

	// Transitions is the ordered stage log reported by the pipeline.
	// List reads leave it nil; [Recorder.Get] loads it.
	Transitions []Transition

	// Utterances counts the translation cycles that finished.
	Utterances int

	// LastTranscript and LastTranslation hold the most recent cycle's text.
	LastTranscript  string
	LastTranslation string

	// Providers that served the most recent cycle, and which voice spoke it.
	STTProvider         string
	TranslationProvider string
	TTSProvider         string
	TTSVoice            string

	// Usage consumed across the whole session.
	STTSeconds    float64
	TTSCharacters int
	CreditsBilled float64
	UsageBilled   bool

	// Fallback flags: true when any cycle in the session was served by the
	// stage's fallback provider.
	STTFallbackUsed       bool
	TranslateFallbackUsed bool
	TTSFallbackUsed       bool

	Status       Status
	ErrorMessage string
}

// Usage carries one finished utterance's consumption, folded into the session
// record by [Recorder.AddUsage]. Counters add onto the session totals; text
// and provider fields replace the previous cycle's values when non-empty.
type Usage struct {
	Transcript  string
	Translation string

	STTProvider         string
	TranslationProvider string
	TTSProvider         string
	TTSVoice            string

	STTSeconds    float64
	TTSCharacters int
	Credits       float64

	STTFallbackUsed       bool
	TranslateFallbackUsed bool
	TTSFallbackUsed       bool
}

// Stats aggregates session history for one user over a time window.
type Stats struct {
	TotalSessions  int
	EndedSessions  int
	FailedSessions int

	Utterances    int
	STTSeconds    float64
	TTSCharacters int
	CreditsBilled float64

	// AvgSessionDuration is the mean wall-clock time from mic-on to close
	// across sessions that are no longer active.
	AvgSessionDuration time.Duration
}

// Recorder persists voice session records.
//
// Implementations must be safe for concurrent use.
type Recorder interface {
	// Begin opens a new session record. rec.ID and rec.UserID must be
	// non-empty; the record starts in [StatusActive].
	Begin(ctx context.Context, rec Record) error

	// StageStarted appends a stage-entry transition at the given instant.
	StageStarted(ctx context.Context, id string, stage Stage, at time.Time) error

	// StageEnded appends a stage-exit transition at the given instant.
	StageEnded(ctx context.Context, id string, stage Stage, at time.Time) error

	// AddUsage folds one finished utterance into the session totals.
	AddUsage(ctx context.Context, id string, u Usage) error

	// End closes the record as [StatusEnded]: the mic was switched off with
	// nothing mid-stage.
	End(ctx context.Context, id string) error

	// Fail closes the record as [StatusError] with the given message. Used
	// for device failures and for sessions aborted mid-utterance.
	Fail(ctx context.Context, id string, msg string) error

	// Get retrieves a record by session ID, including its transition log.
	// Returns (nil, nil) when the record does not exist.
	Get(ctx context.Context, id string) (*Record, error)

	// Recent returns up to limit records for userID, newest first,
	// skipping offset records. Returns an empty (non-nil) slice when no
	// records match. Transition logs are not loaded.
	Recent(ctx context.Context, userID string, limit, offset int) ([]Record, error)

	// Stats aggregates records for userID created within the given window.
	Stats(ctx context.Context, userID string, window time.Duration) (Stats, error)
}
