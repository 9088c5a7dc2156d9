// Package delivery routes a finished translation to its audience.
//
// A session runs in exactly one of two modes. In local mode the synthesized
// clip is played back on the machine's own output device and Deliver blocks
// until playback finishes. In remote mode the text pair is published to the
// session's relay channel for listeners to render on their end; no local
// audio is produced.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bridgit-ai/bridgit/internal/relay"
	"github.com/bridgit-ai/bridgit/pkg/audio"
)

// Mode selects how a session's translations reach their audience.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

// ErrPublishFailed wraps relay publish errors. A failed publish loses one
// message, not the session, so callers treat it as a warning.
var ErrPublishFailed = errors.New("relay publish failed")

// Utterance is one fully processed speech segment ready for delivery.
type Utterance struct {
	OriginalText   string
	TranslatedText string
	SourceLanguage string
	TargetLanguage string

	// Clip is the synthesized speech. Only used in local mode.
	Clip audio.Clip
}

// Router delivers utterances according to the session's fixed mode.
type Router struct {
	mode   Mode
	player audio.Player

	publisher     relay.Publisher
	channel       string
	participantID string

	logger *slog.Logger
}

// NewLocal returns a Router that plays clips on the given output device.
func NewLocal(player audio.Player, logger *slog.Logger) (*Router, error) {
	if player == nil {
		return nil, errors.New("delivery: player must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{mode: ModeLocal, player: player, logger: logger}, nil
}

// NewRemote returns a Router that publishes to the session channel derived
// from code. The participantID identifies this speaker to listeners.
func NewRemote(publisher relay.Publisher, code, participantID string, logger *slog.Logger) (*Router, error) {
	if publisher == nil {
		return nil, errors.New("delivery: publisher must not be nil")
	}
	if code == "" {
		return nil, errors.New("delivery: session code must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		mode:          ModeRemote,
		publisher:     publisher,
		channel:       relay.ChannelName(code),
		participantID: participantID,
		logger:        logger,
	}, nil
}

// Mode reports the router's delivery mode.
func (r *Router) Mode() Mode { return r.mode }

// Deliver hands the utterance to its audience.
//
// In local mode it blocks until the clip has finished playing and returns
// any playback error. In remote mode a publish failure is logged and
// returned wrapped in [ErrPublishFailed]; the caller should continue the
// cycle.
func (r *Router) Deliver(ctx context.Context, u Utterance) error {
	switch r.mode {
	case ModeLocal:
		if err := r.player.Play(ctx, u.Clip); err != nil {
			return fmt.Errorf("delivery: play clip: %w", err)
		}
		return nil

	case ModeRemote:
		msg := relay.NewTranslationMessage(
			u.OriginalText, u.TranslatedText,
			u.SourceLanguage, u.TargetLanguage,
			r.participantID,
		)
		if err := r.publisher.Publish(ctx, r.channel, msg); err != nil {
			r.logger.Warn("translation not relayed",
				"channel", r.channel,
				"error", err)
			return fmt.Errorf("%w: %w", ErrPublishFailed, err)
		}
		return nil

	default:
		return fmt.Errorf("delivery: unknown mode %q", r.mode)
	}
}
