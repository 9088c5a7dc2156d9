package delivery

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/bridgit-ai/bridgit/internal/relay"
	relaymock "github.com/bridgit-ai/bridgit/internal/relay/mock"
	"github.com/bridgit-ai/bridgit/pkg/audio"
	audiomock "github.com/bridgit-ai/bridgit/pkg/audio/mock"
)

func testClip() audio.Clip {
	return audio.Clip{
		Data:       make([]byte, 3200),
		MIME:       audio.MIMEPCM,
		SampleRate: 16000,
		Channels:   1,
		Duration:   100 * time.Millisecond,
	}
}

func TestLocalDeliveryPlaysClip(t *testing.T) {
	player := &audiomock.Player{}
	router, err := NewLocal(player, slog.Default())
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}

	clip := testClip()
	if err := router.Deliver(context.Background(), Utterance{Clip: clip}); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if player.PlayedCount() != 1 {
		t.Fatalf("played %d clips, want 1", player.PlayedCount())
	}
	if got := player.Played[0]; len(got.Data) != len(clip.Data) {
		t.Errorf("played clip has %d bytes, want %d", len(got.Data), len(clip.Data))
	}
}

func TestLocalDeliveryPropagatesPlaybackError(t *testing.T) {
	player := &audiomock.Player{PlayErr: audio.ErrDevice}
	router, err := NewLocal(player, nil)
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}

	err = router.Deliver(context.Background(), Utterance{Clip: testClip()})
	if !errors.Is(err, audio.ErrDevice) {
		t.Fatalf("Deliver() error = %v, want audio.ErrDevice", err)
	}
}

func TestRemoteDeliveryPublishes(t *testing.T) {
	pub := &relaymock.Publisher{}
	router, err := NewRemote(pub, "123456", "speaker-1", nil)
	if err != nil {
		t.Fatalf("NewRemote() error = %v", err)
	}

	u := Utterance{
		OriginalText:   "hola",
		TranslatedText: "hello",
		SourceLanguage: "es",
		TargetLanguage: "en",
	}
	if err := router.Deliver(context.Background(), u); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	published := pub.Published()
	if len(published) != 1 {
		t.Fatalf("published %d messages, want 1", len(published))
	}
	got := published[0]
	if got.Channel != "bridgit_123456" {
		t.Errorf("channel = %q, want bridgit_123456", got.Channel)
	}
	if got.Message.Type != relay.MessageTypeTranslation {
		t.Errorf("message type = %q, want %q", got.Message.Type, relay.MessageTypeTranslation)
	}
	if got.Message.TranslatedText != "hello" || got.Message.ParticipantID != "speaker-1" {
		t.Errorf("message = %+v, want translated hello from speaker-1", got.Message)
	}
}

func TestRemoteDeliveryPublishFailureIsWarning(t *testing.T) {
	pub := &relaymock.Publisher{Err: errors.New("connection reset")}
	router, err := NewRemote(pub, "123456", "speaker-1", nil)
	if err != nil {
		t.Fatalf("NewRemote() error = %v", err)
	}

	err = router.Deliver(context.Background(), Utterance{TranslatedText: "hello"})
	if !errors.Is(err, ErrPublishFailed) {
		t.Fatalf("Deliver() error = %v, want ErrPublishFailed", err)
	}
}
