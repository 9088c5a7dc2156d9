package history

import (
	"context"
	"log/slog"
	"time"
)

// BestEffort wraps a Recorder so that write failures are logged instead of
// propagated. History is reported as a side effect of the live session and
// must never abort a running translation because the history store is down.
//
// Read methods (Get, Recent, Stats) still return their errors.
type BestEffort struct {
	inner  Recorder
	logger *slog.Logger
}

var _ Recorder = (*BestEffort)(nil)

// NewBestEffort wraps inner. A nil logger falls back to slog.Default.
func NewBestEffort(inner Recorder, logger *slog.Logger) *BestEffort {
	if logger == nil {
		logger = slog.Default()
	}
	return &BestEffort{inner: inner, logger: logger}
}

func (b *BestEffort) Begin(ctx context.Context, rec Record) error {
	if err := b.inner.Begin(ctx, rec); err != nil {
		b.logger.Warn("history write failed", "op", "begin", "session_id", rec.ID, "error", err)
	}
	return nil
}

func (b *BestEffort) StageStarted(ctx context.Context, id string, stage Stage, at time.Time) error {
	if err := b.inner.StageStarted(ctx, id, stage, at); err != nil {
		b.logger.Warn("history write failed", "op", "stage_started", "session_id", id, "stage", stage, "error", err)
	}
	return nil
}

func (b *BestEffort) StageEnded(ctx context.Context, id string, stage Stage, at time.Time) error {
	if err := b.inner.StageEnded(ctx, id, stage, at); err != nil {
		b.logger.Warn("history write failed", "op", "stage_ended", "session_id", id, "stage", stage, "error", err)
	}
	return nil
}

func (b *BestEffort) AddUsage(ctx context.Context, id string, u Usage) error {
	if err := b.inner.AddUsage(ctx, id, u); err != nil {
		b.logger.Warn("history write failed", "op", "add_usage", "session_id", id, "error", err)
	}
	return nil
}

func (b *BestEffort) End(ctx context.Context, id string) error {
	if err := b.inner.End(ctx, id); err != nil {
		b.logger.Warn("history write failed", "op", "end", "session_id", id, "error", err)
	}
	return nil
}

func (b *BestEffort) Fail(ctx context.Context, id string, msg string) error {
	if err := b.inner.Fail(ctx, id, msg); err != nil {
		b.logger.Warn("history write failed", "op", "fail", "session_id", id, "error", err)
	}
	return nil
}

func (b *BestEffort) Get(ctx context.Context, id string) (*Record, error) {
	return b.inner.Get(ctx, id)
}

func (b *BestEffort) Recent(ctx context.Context, userID string, limit, offset int) ([]Record, error) {
	return b.inner.Recent(ctx, userID, limit, offset)
}

func (b *BestEffort) Stats(ctx context.Context, userID string, window time.Duration) (Stats, error) {
	return b.inner.Stats(ctx, userID, window)
}
