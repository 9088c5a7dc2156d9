package relay

import (
	"regexp"
	"testing"
	"time"
)

func TestNewSessionCodeFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^[1-9]\d{5}$`)
	for i := 0; i < 50; i++ {
		code, err := NewSessionCode()
		if err != nil {
			t.Fatalf("NewSessionCode() error = %v", err)
		}
		if !pattern.MatchString(code) {
			t.Fatalf("NewSessionCode() = %q, want six digits without a leading zero", code)
		}
	}
}

func TestChannelName(t *testing.T) {
	if got := ChannelName("483920"); got != "bridgit_483920" {
		t.Errorf("ChannelName(483920) = %q, want bridgit_483920", got)
	}
}

func TestNewTranslationMessage(t *testing.T) {
	before := time.Now().UnixMilli()
	msg := NewTranslationMessage("hola", "hello", "es", "en", "speaker-1")
	after := time.Now().UnixMilli()

	if msg.Type != MessageTypeTranslation {
		t.Errorf("Type = %q, want %q", msg.Type, MessageTypeTranslation)
	}
	if msg.OriginalText != "hola" || msg.TranslatedText != "hello" {
		t.Errorf("texts = %q/%q, want hola/hello", msg.OriginalText, msg.TranslatedText)
	}
	if msg.SourceLanguage != "es" || msg.TargetLanguage != "en" {
		t.Errorf("languages = %q/%q, want es/en", msg.SourceLanguage, msg.TargetLanguage)
	}
	if msg.ParticipantID != "speaker-1" {
		t.Errorf("ParticipantID = %q, want speaker-1", msg.ParticipantID)
	}
	if msg.TimestampMs < before || msg.TimestampMs > after {
		t.Errorf("TimestampMs = %d, want within [%d, %d]", msg.TimestampMs, before, after)
	}
}
