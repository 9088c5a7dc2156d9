// Package relay publishes translated utterances to a shared realtime channel
// so a remote participant can receive them.
//
// Sessions are joined by a six-digit code; each code maps to one channel. The
// relay is best-effort from the pipeline's perspective: a publish failure is
// reported to the caller for logging but never blocks cycle completion.
package relay

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// MessageTypeTranslation is the envelope type for translated utterances.
const MessageTypeTranslation = "translation"

// channelPrefix namespaces session channels on the shared relay.
const channelPrefix = "bridgit_"

// Message is the translation envelope published to a session channel.
type Message struct {
	Type           string `json:"type"`
	OriginalText   string `json:"originalText"`
	TranslatedText string `json:"translatedText"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	ParticipantID  string `json:"participantId"`
	TimestampMs    int64  `json:"timestampMs"`
}

// NewTranslationMessage builds a translation envelope stamped with the
// current time.
func NewTranslationMessage(original, translated, source, target, participantID string) Message {
	return Message{
		Type:           MessageTypeTranslation,
		OriginalText:   original,
		TranslatedText: translated,
		SourceLanguage: source,
		TargetLanguage: target,
		ParticipantID:  participantID,
		TimestampMs:    time.Now().UnixMilli(),
	}
}

// Publisher is the transport abstraction for the realtime relay.
//
// Implementations must be safe for concurrent use.
type Publisher interface {
	// Publish sends msg to the named channel. It does not wait for remote
	// acknowledgement beyond transport delivery.
	Publish(ctx context.Context, channel string, msg Message) error

	// Close releases the transport connection.
	Close() error
}

// NewSessionCode generates a random six-digit session code.
func NewSessionCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("relay: generate session code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// ChannelName returns the relay channel for a session code.
func ChannelName(code string) string {
	return channelPrefix + code
}
