package history

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"
)

// InMemory is a Recorder backed by process memory. It is used when no
// postgres DSN is configured; records are lost on restart.
type InMemory struct {
	mu      sync.Mutex
	records map[string]*Record
}

var _ Recorder = (*InMemory)(nil)

// NewInMemory returns an empty in-memory Recorder.
func NewInMemory() *InMemory {
	return &InMemory{records: map[string]*Record{}}
}

// Begin implements Recorder.
func (r *InMemory) Begin(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.Status = StatusActive
	r.records[rec.ID] = &rec
	return nil
}

// StageStarted implements Recorder.
func (r *InMemory) StageStarted(_ context.Context, id string, stage Stage, at time.Time) error {
	return r.appendTransition(id, Transition{Stage: stage, At: at, Entered: true})
}

// StageEnded implements Recorder.
func (r *InMemory) StageEnded(_ context.Context, id string, stage Stage, at time.Time) error {
	return r.appendTransition(id, Transition{Stage: stage, At: at})
}

func (r *InMemory) appendTransition(id string, t Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return fmt.Errorf("history: unknown session %q", id)
	}
	rec.Transitions = append(rec.Transitions, t)
	return nil
}

// AddUsage implements Recorder.
func (r *InMemory) AddUsage(_ context.Context, id string, u Usage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return fmt.Errorf("history: unknown session %q", id)
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

// End implements Recorder.
func (r *InMemory) End(_ context.Context, id string) error {
	return r.close(id, StatusEnded, "")
}

// Fail implements Recorder.
func (r *InMemory) Fail(_ context.Context, id string, msg string) error {
	return r.close(id, StatusError, msg)
}

func (r *InMemory) close(id string, status Status, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return fmt.Errorf("history: unknown session %q", id)
	}
	rec.Status = status
	rec.ErrorMessage = msg
	rec.EndedAt = time.Now()
	return nil
}

// Get implements Recorder. Returns nil when id is unknown.
func (r *InMemory) Get(_ context.Context, id string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	cp.Transitions = slices.Clone(rec.Transitions)
	return &cp, nil
}

// Recent implements Recorder. Records are returned newest first, without
// their transition logs.
func (r *InMemory) Recent(_ context.Context, userID string, limit, offset int) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Record
	for _, rec := range r.records {
		if rec.UserID == userID {
			cp := *rec
			cp.Transitions = nil
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []Record{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Stats implements Recorder.
func (r *InMemory) Stats(_ context.Context, userID string, window time.Duration) (Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-window)
	var (
		st     Stats
		total  time.Duration
		closed int
	)
	for _, rec := range r.records {
		if rec.UserID != userID || rec.CreatedAt.Before(cutoff) {
			continue
		}
		st.TotalSessions++
		switch rec.Status {
		case StatusEnded:
			st.EndedSessions++
		case StatusError:
			st.FailedSessions++
		}
		st.Utterances += rec.Utterances
		st.STTSeconds += rec.STTSeconds
		st.TTSCharacters += rec.TTSCharacters
		st.CreditsBilled += rec.CreditsBilled
		if !rec.EndedAt.IsZero() {
			total += rec.EndedAt.Sub(rec.CreatedAt)
			closed++
		}
	}
	if closed > 0 {
		st.AvgSessionDuration = total / time.Duration(closed)
	}
	return st, nil
}
