package resilience

import (
	"context"

	"github.com/bridgit-ai/bridgit/pkg/provider/translate"
)

// TranslateFallback wraps the translation stage with automatic failover across
// multiple translation backends. Each backend has its own circuit breaker.
type TranslateFallback struct {
	group *FallbackGroup[translate.Provider]
}

// NewTranslateFallback creates a [TranslateFallback] with primary as the
// preferred backend.
func NewTranslateFallback(primary translate.Provider, primaryName string, cfg FallbackConfig) *TranslateFallback {
	return &TranslateFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional translation provider as a fallback.
func (f *TranslateFallback) AddFallback(name string, provider translate.Provider) {
	f.group.AddFallback(name, provider)
}

// Translate sends the request to the first healthy provider and reports which
// backend produced the translation.
func (f *TranslateFallback) Translate(ctx context.Context, req translate.Request) (translate.Result, Outcome, error) {
	return ExecuteWithOutcome(f.group, func(p translate.Provider) (translate.Result, error) {
		return p.Translate(ctx, req)
	})
}
