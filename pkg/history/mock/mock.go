// Package mock provides an in-memory history.Recorder for tests.
package mock

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bridgit-ai/bridgit/pkg/history"
)

// Recorder is an in-memory history.Recorder. Set Err to force every write to
// fail, e.g. to exercise best-effort wrapping.
type Recorder struct {
	mu      sync.Mutex
	records map[string]*history.Record

	// Err, when non-nil, is returned from every method.
	Err error
}

var _ history.Recorder = (*Recorder)(nil)

// NewRecorder returns an empty in-memory Recorder.
func NewRecorder() *Recorder {
	return &Recorder{records: map[string]*history.Record{}}
}

// Begin implements history.Recorder.
func (r *Recorder) Begin(_ context.Context, rec history.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	rec.Status = history.StatusActive
	r.records[rec.ID] = &rec
	return nil
}

// StageStarted implements history.Recorder.
func (r *Recorder) StageStarted(_ context.Context, id string, stage history.Stage, at time.Time) error {
	return r.appendTransition(id, history.Transition{Stage: stage, At: at, Entered: true})
}

// StageEnded implements history.Recorder.
func (r *Recorder) StageEnded(_ context.Context, id string, stage history.Stage, at time.Time) error {
	return r.appendTransition(id, history.Transition{Stage: stage, At: at})
}

func (r *Recorder) appendTransition(id string, t history.Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	rec, ok := r.records[id]
	if !ok {
		return fmt.Errorf("mock recorder: unknown session %q", id)
	}
	rec.Transitions = append(rec.Transitions, t)
	return nil
}

// AddUsage implements history.Recorder.
func (r *Recorder) AddUsage(_ context.Context, id string, u history.Usage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	rec, ok := r.records[id]
	if !ok {
		return fmt.Errorf("mock recorder: unknown session %q", id)
	}
	rec.Utterances++
	rec.LastTranscript = u.Transcript
	rec.LastTranslation = u.Translation
	if u.STTProvider != "" {
		rec.STTProvider = u.STTProvider
	}
	if u.TranslationProvider != "" {
		rec.TranslationProvider = u.TranslationProvider
	}
	if u.TTSProvider != "" {
		rec.TTSProvider = u.TTSProvider
	}
	if u.TTSVoice != "" {
		rec.TTSVoice = u.TTSVoice
	}
	rec.STTSeconds += u.STTSeconds
	rec.TTSCharacters += u.TTSCharacters
	rec.CreditsBilled += u.Credits
	rec.UsageBilled = rec.CreditsBilled > 0
	rec.STTFallbackUsed = rec.STTFallbackUsed || u.STTFallbackUsed
	rec.TranslateFallbackUsed = rec.TranslateFallbackUsed || u.TranslateFallbackUsed
	rec.TTSFallbackUsed = rec.TTSFallbackUsed || u.TTSFallbackUsed
	return nil
}

// End implements history.Recorder.
func (r *Recorder) End(_ context.Context, id string) error {
	return r.close(id, history.StatusEnded, "")
}

// Fail implements history.Recorder.
func (r *Recorder) Fail(_ context.Context, id string, msg string) error {
	return r.close(id, history.StatusError, msg)
}

func (r *Recorder) close(id string, status history.Status, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	rec, ok := r.records[id]
	if !ok {
		return fmt.Errorf("mock recorder: unknown session %q", id)
	}
	rec.Status = status
	rec.ErrorMessage = msg
	rec.EndedAt = time.Now()
	return nil
}

// Get implements history.Recorder.
func (r *Recorder) Get(_ context.Context, id string) (*history.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	rec, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	cp.Transitions = slices.Clone(rec.Transitions)
	return &cp, nil
}

// Recent implements history.Recorder. Ordering follows insertion, newest first.
func (r *Recorder) Recent(_ context.Context, userID string, limit, offset int) ([]history.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var out []history.Record
	for _, rec := range r.records {
		if rec.UserID == userID {
			cp := *rec
			cp.Transitions = nil
			out = append(out, cp)
		}
	}
	if offset >= len(out) {
		return []history.Record{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Stats implements history.Recorder.
func (r *Recorder) Stats(_ context.Context, userID string, window time.Duration) (history.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return history.Stats{}, r.Err
	}
	cutoff := time.Now().Add(-window)
	var st history.Stats
	for _, rec := range r.records {
		if rec.UserID != userID || rec.CreatedAt.Before(cutoff) {
			continue
		}
		st.TotalSessions++
		switch rec.Status {
		case history.StatusEnded:
			st.EndedSessions++
		case history.StatusError:
			st.FailedSessions++
		}
		st.Utterances += rec.Utterances
		st.STTSeconds += rec.STTSeconds
		st.TTSCharacters += rec.TTSCharacters
		st.CreditsBilled += rec.CreditsBilled
	}
	return st, nil
}

// Record returns the stored record for id, or nil. Test helper.
func (r *Recorder) Record(id string) *history.Record {
	rec, _ := r.Get(context.Background(), id)
	return rec
}
