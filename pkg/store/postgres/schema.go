// Package postgres provides a PostgreSQL-backed implementation of the session
// history ([history.Recorder]) and credit ledger ([ledger.Ledger]) layers.
//
// Both layers share a single [pgxpool.Pool] connection pool. [Migrate] creates
// the required tables on startup and is safe to call on every run.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	// history
//	_ = store.Sessions().Begin(ctx, rec)
//
//	// ledger
//	_, _ = store.Credits().Debit(ctx, userID, 2.5, "cycle usage", cycleID)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ─────────────────────────────────────────────────────────────────────────────
// Session history DDL
// ─────────────────────────────────────────────────────────────────────────────

const ddlSessions = `
CREATE TABLE IF NOT EXISTS bridgit_sessions (
    session_id            UUID          PRIMARY KEY,
    user_id               TEXT          NOT NULL,
    source_language       VARCHAR(10)   NOT NULL,
    target_language       VARCHAR(10)   NOT NULL,
    mode                  VARCHAR(10)   NOT NULL DEFAULT '',
    session_code          VARCHAR(10)   NOT NULL DEFAULT '',
    created_at            TIMESTAMPTZ   NOT NULL DEFAULT now(),
    ended_at              TIMESTAMPTZ,
    updated_at            TIMESTAMPTZ   NOT NULL DEFAULT now(),

    utterances            INTEGER       NOT NULL DEFAULT 0,
    last_transcript       TEXT          NOT NULL DEFAULT '',
    last_translation      TEXT          NOT NULL DEFAULT '',

    stt_provider          VARCHAR(50)   NOT NULL DEFAULT '',
    translation_provider  VARCHAR(50)   NOT NULL DEFAULT '',
    tts_provider          VARCHAR(50)   NOT NULL DEFAULT '',
    tts_voice             VARCHAR(100)  NOT NULL DEFAULT '',

    stt_seconds           DECIMAL(10,3) NOT NULL DEFAULT 0,
    tts_characters_used   INTEGER       NOT NULL DEFAULT 0,
    credits_billed        DECIMAL(10,2) NOT NULL DEFAULT 0,
    usage_billed          BOOLEAN       NOT NULL DEFAULT FALSE,

    stt_fallback_used       BOOLEAN     NOT NULL DEFAULT FALSE,
    translate_fallback_used BOOLEAN     NOT NULL DEFAULT FALSE,
    tts_fallback_used       BOOLEAN     NOT NULL DEFAULT FALSE,

    status                VARCHAR(20)   NOT NULL DEFAULT 'active'
        CHECK (status IN ('active', 'ended', 'error')),
    error_message         TEXT          NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_bridgit_sessions_user_id
    ON bridgit_sessions (user_id);

CREATE INDEX IF NOT EXISTS idx_bridgit_sessions_created_at
    ON bridgit_sessions (created_at);

CREATE INDEX IF NOT EXISTS idx_bridgit_sessions_status
    ON bridgit_sessions (status);

CREATE TABLE IF NOT EXISTS bridgit_session_stages (
    id         BIGSERIAL   PRIMARY KEY,
    session_id UUID        NOT NULL REFERENCES bridgit_sessions (session_id) ON DELETE CASCADE,
    stage      VARCHAR(20) NOT NULL,
    entered    BOOLEAN     NOT NULL,
    at         TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bridgit_session_stages_session
    ON bridgit_session_stages (session_id, at);
`

// ─────────────────────────────────────────────────────────────────────────────
// Credit ledger DDL
// ─────────────────────────────────────────────────────────────────────────────

const ddlCredits = `
CREATE TABLE IF NOT EXISTS credit_balances (
    user_id   TEXT           PRIMARY KEY,
    balance   DECIMAL(12,2)  NOT NULL DEFAULT 0 CHECK (balance >= 0),
    updated_at TIMESTAMPTZ   NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS credit_entries (
    id        BIGSERIAL      PRIMARY KEY,
    user_id   TEXT           NOT NULL,
    delta     DECIMAL(12,2)  NOT NULL,
    reason    TEXT           NOT NULL DEFAULT '',
    cycle_id  TEXT           NOT NULL DEFAULT '',
    at        TIMESTAMPTZ    NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_credit_entries_user_id
    ON credit_entries (user_id, at DESC);
`

// Migrate creates or ensures all required database tables exist. It is
// idempotent and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		ddlSessions,
		ddlCredits,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
