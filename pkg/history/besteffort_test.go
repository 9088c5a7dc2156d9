package history_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/bridgit-ai/bridgit/pkg/history"
)

// failingRecorder errors on every call, simulating a store outage.
type failingRecorder struct{}

var errStoreDown = errors.New("store down")

func (failingRecorder) Begin(context.Context, history.Record) error { return errStoreDown }
func (failingRecorder) StageStarted(context.Context, string, history.Stage, time.Time) error {
	return errStoreDown
}
func (failingRecorder) StageEnded(context.Context, string, history.Stage, time.Time) error {
	return errStoreDown
}
func (failingRecorder) AddUsage(context.Context, string, history.Usage) error {
	return errStoreDown
}
func (failingRecorder) End(context.Context, string) error          { return errStoreDown }
func (failingRecorder) Fail(context.Context, string, string) error { return errStoreDown }
func (failingRecorder) Get(context.Context, string) (*history.Record, error) {
	return nil, errStoreDown
}
func (failingRecorder) Recent(context.Context, string, int, int) ([]history.Record, error) {
	return nil, errStoreDown
}
func (failingRecorder) Stats(context.Context, string, time.Duration) (history.Stats, error) {
	return history.Stats{}, errStoreDown
}

func TestBestEffortSwallowsWriteErrors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := history.NewBestEffort(failingRecorder{}, logger)
	ctx := context.Background()

	if err := b.Begin(ctx, history.Record{ID: "s1"}); err != nil {
		t.Errorf("Begin returned %v, want nil", err)
	}
	if err := b.StageStarted(ctx, "s1", history.StageTranscription, time.Now()); err != nil {
		t.Errorf("StageStarted returned %v, want nil", err)
	}
	if err := b.AddUsage(ctx, "s1", history.Usage{}); err != nil {
		t.Errorf("AddUsage returned %v, want nil", err)
	}
	if err := b.End(ctx, "s1"); err != nil {
		t.Errorf("End returned %v, want nil", err)
	}
	if err := b.Fail(ctx, "s1", "boom"); err != nil {
		t.Errorf("Fail returned %v, want nil", err)
	}
}

func TestBestEffortPropagatesReadErrors(t *testing.T) {
	b := history.NewBestEffort(failingRecorder{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	if _, err := b.Get(ctx, "s1"); !errors.Is(err, errStoreDown) {
		t.Errorf("Get error = %v, want the store error", err)
	}
	if _, err := b.Recent(ctx, "user-1", 10, 0); !errors.Is(err, errStoreDown) {
		t.Errorf("Recent error = %v, want the store error", err)
	}
	if _, err := b.Stats(ctx, "user-1", time.Hour); !errors.Is(err, errStoreDown) {
		t.Errorf("Stats error = %v, want the store error", err)
	}
}

func TestBestEffortDelegatesToWorkingRecorder(t *testing.T) {
	inner := history.NewInMemory()
	b := history.NewBestEffort(inner, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	if err := b.Begin(ctx, history.Record{ID: "s1", UserID: "user-1"}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	rec, err := b.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec == nil || rec.UserID != "user-1" {
		t.Errorf("record = %+v", rec)
	}
}
