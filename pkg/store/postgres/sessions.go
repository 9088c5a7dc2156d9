package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bridgit-ai/bridgit/pkg/history"
)

// SessionsImpl is the session history layer backed by the bridgit_sessions
// table, with the per-utterance stage log in bridgit_session_stages.
//
// Obtain one via [Store.Sessions] rather than constructing directly.
// All methods are safe for concurrent use.
type SessionsImpl struct {
	pool *pgxpool.Pool
}

// Begin implements [history.Recorder].
func (s *SessionsImpl) Begin(ctx context.Context, rec history.Record) error {
	if rec.ID == "" {
		return errors.New("session history: record ID must not be empty")
	}
	if rec.UserID == "" {
		return errors.New("session history: user ID must not be empty")
	}

	const q = `
		INSERT INTO bridgit_sessions
		    (session_id, user_id, source_language, target_language, mode, session_code, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'active')`

	_, err := s.pool.Exec(ctx, q,
		rec.ID, rec.UserID, rec.SourceLanguage, rec.TargetLanguage, rec.Mode, rec.Code)
	if err != nil {
		return fmt.Errorf("session history: begin: %w", err)
	}
	return nil
}

// StageStarted implements [history.Recorder].
func (s *SessionsImpl) StageStarted(ctx context.Context, id string, stage history.Stage, at time.Time) error {
	return s.appendTransition(ctx, id, stage, true, at)
}

// StageEnded implements [history.Recorder].
func (s *SessionsImpl) StageEnded(ctx context.Context, id string, stage history.Stage, at time.Time) error {
	return s.appendTransition(ctx, id, stage, false, at)
}

func (s *SessionsImpl) appendTransition(ctx context.Context, id string, stage history.Stage, entered bool, at time.Time) error {
	const q = `
		INSERT INTO bridgit_session_stages (session_id, stage, entered, at)
		VALUES ($1, $2, $3, $4)`

	_, err := s.pool.Exec(ctx, q, id, string(stage), entered, at)
	if err != nil {
		return fmt.Errorf("session history: stage %s: %w", stage, err)
	}
	return nil
}

// AddUsage implements [history.Recorder]. Counters add onto the session
// totals; text and provider columns keep the most recent cycle's values.
func (s *SessionsImpl) AddUsage(ctx context.Context, id string, u history.Usage) error {
	const q = `
		UPDATE bridgit_sessions SET
		    utterances           = utterances + 1,
		    last_transcript      = $2,
		    last_translation     = $3,
		    stt_provider         = CASE WHEN $4 <> '' THEN $4 ELSE stt_provider END,
		    translation_provider = CASE WHEN $5 <> '' THEN $5 ELSE translation_provider END,
		    tts_provider         = CASE WHEN $6 <> '' THEN $6 ELSE tts_provider END,
		    tts_voice            = CASE WHEN $7 <> '' THEN $7 ELSE tts_voice END,
		    stt_seconds          = stt_seconds + $8,
		    tts_characters_used  = tts_characters_used + $9,
		    credits_billed       = credits_billed + $10,
		    usage_billed         = (credits_billed + $10) > 0,
		    stt_fallback_used       = stt_fallback_used OR $11,
		    translate_fallback_used = translate_fallback_used OR $12,
		    tts_fallback_used       = tts_fallback_used OR $13,
		    updated_at           = now()
		WHERE session_id = $1`

	tag, err := s.pool.Exec(ctx, q, id,
		u.Transcript,
		u.Translation,
		u.STTProvider,
		u.TranslationProvider,
		u.TTSProvider,
		u.TTSVoice,
		u.STTSeconds,
		u.TTSCharacters,
		u.Credits,
		u.STTFallbackUsed,
		u.TranslateFallbackUsed,
		u.TTSFallbackUsed,
	)
	if err != nil {
		return fmt.Errorf("session history: add usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session history: unknown session %q", id)
	}
	return nil
}

// End implements [history.Recorder].
func (s *SessionsImpl) End(ctx context.Context, id string) error {
	return s.closeOut(ctx, id, history.StatusEnded, "")
}

// Fail implements [history.Recorder].
func (s *SessionsImpl) Fail(ctx context.Context, id string, msg string) error {
	return s.closeOut(ctx, id, history.StatusError, msg)
}

func (s *SessionsImpl) closeOut(ctx context.Context, id string, status history.Status, msg string) error {
	const q = `
		UPDATE bridgit_sessions
		SET    status = $2, error_message = $3, ended_at = now(), updated_at = now()
		WHERE  session_id = $1`

	tag, err := s.pool.Exec(ctx, q, id, string(status), msg)
	if err != nil {
		return fmt.Errorf("session history: close as %s: %w", status, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session history: unknown session %q", id)
	}
	return nil
}

const selectColumns = `
	session_id, user_id, source_language, target_language, mode, session_code,
	created_at, ended_at,
	utterances, last_transcript, last_translation,
	stt_provider, translation_provider, tts_provider, tts_voice,
	stt_seconds, tts_characters_used, credits_billed, usage_billed,
	stt_fallback_used, translate_fallback_used, tts_fallback_used,
	status, error_message`

// Get implements [history.Recorder]. Returns (nil, nil) when the record does
// not exist. The transition log is loaded in stage order.
func (s *SessionsImpl) Get(ctx context.Context, id string) (*history.Record, error) {
	q := "SELECT" + selectColumns + "\nFROM bridgit_sessions WHERE session_id = $1"

	rows, err := s.pool.Query(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("session history: get: %w", err)
	}
	records, err := collectRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	rec := records[0]
	if rec.Transitions, err = s.transitions(ctx, id); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *SessionsImpl) transitions(ctx context.Context, id string) ([]history.Transition, error) {
	const q = `
		SELECT stage, entered, at
		FROM   bridgit_session_stages
		WHERE  session_id = $1
		ORDER  BY at, id`

	rows, err := s.pool.Query(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("session history: transitions: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (history.Transition, error) {
		var (
			t     history.Transition
			stage string
		)
		if err := row.Scan(&stage, &t.Entered, &t.At); err != nil {
			return history.Transition{}, err
		}
		t.Stage = history.Stage(stage)
		return t, nil
	})
	if err != nil {
		return nil, fmt.Errorf("session history: scan transitions: %w", err)
	}
	return out, nil
}

// Recent implements [history.Recorder]. Transition logs are not loaded.
func (s *SessionsImpl) Recent(ctx context.Context, userID string, limit, offset int) ([]history.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	q := "SELECT" + selectColumns + `
		FROM   bridgit_sessions
		WHERE  user_id = $1
		ORDER  BY created_at DESC
		LIMIT  $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("session history: recent: %w", err)
	}
	return collectRecords(rows)
}

// Stats implements [history.Recorder].
func (s *SessionsImpl) Stats(ctx context.Context, userID string, window time.Duration) (history.Stats, error) {
	const q = `
		SELECT
		    COUNT(*),
		    COUNT(*) FILTER (WHERE status = 'ended'),
		    COUNT(*) FILTER (WHERE status = 'error'),
		    COALESCE(SUM(utterances), 0),
		    COALESCE(SUM(stt_seconds), 0),
		    COALESCE(SUM(tts_characters_used), 0),
		    COALESCE(SUM(credits_billed), 0),
		    COALESCE(AVG(EXTRACT(EPOCH FROM (ended_at - created_at))) FILTER (WHERE ended_at IS NOT NULL), 0)
		FROM bridgit_sessions
		WHERE user_id = $1
		  AND created_at >= now() - ($2::bigint * interval '1 microsecond')`

	var (
		st         history.Stats
		avgSeconds float64
	)
	err := s.pool.QueryRow(ctx, q, userID, window.Microseconds()).Scan(
		&st.TotalSessions,
		&st.EndedSessions,
		&st.FailedSessions,
		&st.Utterances,
		&st.STTSeconds,
		&st.TTSCharacters,
		&st.CreditsBilled,
		&avgSeconds,
	)
	if err != nil {
		return history.Stats{}, fmt.Errorf("session history: stats: %w", err)
	}
	st.AvgSessionDuration = time.Duration(avgSeconds * float64(time.Second))
	return st, nil
}

// collectRecords scans pgx rows into a slice of Record values.
func collectRecords(rows pgx.Rows) ([]history.Record, error) {
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (history.Record, error) {
		var (
			r       history.Record
			endedAt *time.Time
			status  string
		)
		if err := row.Scan(
			&r.ID, &r.UserID, &r.SourceLanguage, &r.TargetLanguage, &r.Mode, &r.Code,
			&r.CreatedAt, &endedAt,
			&r.Utterances, &r.LastTranscript, &r.LastTranslation,
			&r.STTProvider, &r.TranslationProvider, &r.TTSProvider, &r.TTSVoice,
			&r.STTSeconds, &r.TTSCharacters, &r.CreditsBilled, &r.UsageBilled,
			&r.STTFallbackUsed, &r.TranslateFallbackUsed, &r.TTSFallbackUsed,
			&status, &r.ErrorMessage,
		); err != nil {
			return history.Record{}, err
		}
		if endedAt != nil {
			r.EndedAt = *endedAt
		}
		r.Status = history.Status(status)
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("session history: scan rows: %w", err)
	}
	if records == nil {
		records = []history.Record{}
	}
	return records, nil
}
