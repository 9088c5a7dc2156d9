// Package translate defines the Provider interface for text translation
// backends (e.g. DeepL, or an LLM prompted to translate).
//
// Implementations must be safe for concurrent use.
package translate

import "context"

// Request describes one translation call. Text is the source-language input;
// Source may be empty to let the provider auto-detect.
type Request struct {
	Text   string
	Source string // BCP-47 / ISO 639-1 source language, optional
	Target string // target language, required
}

// Result is the outcome of one translation call.
type Result struct {
	// Text is the translated output.
	Text string

	// DetectedSource is the source language the provider detected, when the
	// request did not specify one. Empty if unreported.
	DetectedSource string
}

// Provider is the abstraction over any translation backend.
//
// Identity translation (source == target) is short-circuited by the pipeline
// before a provider is ever invoked; implementations may assume the languages
// differ.
type Provider interface {
	Translate(ctx context.Context, req Request) (Result, error)
}
