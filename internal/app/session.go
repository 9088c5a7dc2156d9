package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bridgit-ai/bridgit/internal/billing"
	"github.com/bridgit-ai/bridgit/internal/capture"
	"github.com/bridgit-ai/bridgit/internal/config"
	"github.com/bridgit-ai/bridgit/internal/delivery"
	"github.com/bridgit-ai/bridgit/internal/observe"
	"github.com/bridgit-ai/bridgit/internal/pipeline"
	"github.com/bridgit-ai/bridgit/internal/relay"
	"github.com/bridgit-ai/bridgit/internal/transcript"
	"github.com/bridgit-ai/bridgit/internal/transcript/phonetic"
	"github.com/bridgit-ai/bridgit/internal/vad"
	"github.com/bridgit-ai/bridgit/pkg/audio"
	"github.com/bridgit-ai/bridgit/pkg/history"
	"github.com/bridgit-ai/bridgit/pkg/provider/tts"
)

// SessionInfo holds metadata about the active voice session.
type SessionInfo struct {
	// Mode is local or remote delivery.
	Mode config.Mode

	// Code is the 6-digit session code. Empty for local sessions.
	Code string

	// SourceLanguage and TargetLanguage are the session's language pair.
	SourceLanguage string
	TargetLanguage string

	// StartedAt is when the session was started.
	StartedAt time.Time
}

// SessionManager owns the lifecycle of the voice session: the audio source,
// the activity monitor, the pipeline orchestrator, and the session's history
// record. Only one session runs at a time. All exported methods are safe for
// concurrent use.
type SessionManager struct {
	mu      sync.Mutex
	active  bool
	info    SessionInfo
	source  audio.Source
	monitor *vad.Monitor
	orch    *pipeline.Orchestrator

	// recordID names the session's history record; recordClosed guards
	// against closing it twice.
	recordID     string
	recordClosed bool

	// done closes when the monitor loop exits; monitorErr holds its error.
	done       chan struct{}
	monitorErr error

	// closers are called in reverse order during Stop.
	closers []func() error

	// Dependencies injected at construction.
	deps sessionDeps
}

// sessionDeps carries everything a session needs from the App.
type sessionDeps struct {
	cfg        *config.Config
	providers  *Providers
	accountant *billing.Accountant
	recorder   history.Recorder
	metrics    *observe.Metrics
	logger     *slog.Logger

	// sourceFn opens the capture stream. Injected in tests.
	sourceFn func() (audio.Source, error)

	// player renders local-mode clips.
	player audio.Player

	// dialFn connects to the relay for remote sessions. Injected in tests.
	dialFn func(ctx context.Context) (relay.Publisher, error)

	// onError receives classified pipeline errors.
	onError func(error)
}

// Start opens the audio source, builds the pipeline, and begins monitoring
// for speech. Returns an error if a session is already active, or if the
// user's balance is below the minimum before anything is opened.
func (sm *SessionManager) Start(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.active {
		return fmt.Errorf("session: a session is already active")
	}

	cfg := sm.deps.cfg

	if err := sm.deps.accountant.CheckBalance(ctx, cfg.Session.UserID); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	var closers []func() error
	fail := func(err error) error {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		return err
	}

	// Delivery router: local playback or relay publishing.
	router, code, err := sm.buildRouter(ctx, &closers)
	if err != nil {
		return fail(err)
	}

	// Capture source. Device sources may emit Opus; the monitor and capturer
	// consume PCM only, so every source is wrapped in a decoding stage.
	device, err := sm.deps.sourceFn()
	if err != nil {
		return fail(fmt.Errorf("session: open audio source: %w", err))
	}
	source, err := audio.NewDecodingSource(device)
	if err != nil {
		_ = device.Close()
		return fail(fmt.Errorf("session: wrap audio source: %w", err))
	}
	closers = append(closers, source.Close)

	capturer := capture.New(cfg.Session.SourceLanguage, sm.deps.logger)

	// One history record covers the whole session; the orchestrator reports
	// into it but never opens or closes it.
	recordID := uuid.NewString()

	// Orchestrator.
	opts := []pipeline.Option{
		pipeline.WithLogger(sm.deps.logger),
		pipeline.WithVoice(sessionVoice(cfg.Session.Voice)),
	}
	if len(cfg.Session.Glossary) > 0 {
		corrector := transcript.NewGlossaryCorrector(phonetic.New())
		opts = append(opts, pipeline.WithGlossary(corrector, cfg.Session.Glossary))
	}
	if sm.deps.onError != nil {
		opts = append(opts, pipeline.WithOnError(sm.deps.onError))
	}

	orch, err := pipeline.New(pipeline.Config{
		Capturer:       capturer,
		STT:            sm.deps.providers.STT,
		Translator:     sm.deps.providers.Translator,
		TTS:            sm.deps.providers.TTS,
		Router:         router,
		Accountant:     sm.deps.accountant,
		Recorder:       sm.deps.recorder,
		SessionID:      recordID,
		Metrics:        sm.deps.metrics,
		UserID:         cfg.Session.UserID,
		SourceLanguage: cfg.Session.SourceLanguage,
		TargetLanguage: cfg.Session.TargetLanguage,
	}, opts...)
	if err != nil {
		return fail(err)
	}

	// Activity monitor.
	detector := vad.NewDetector(vad.Config{
		EnergyThreshold:   cfg.VAD.EnergyThreshold,
		SilenceDuration:   time.Duration(cfg.VAD.SilenceMs) * time.Millisecond,
		MinSpeechDuration: time.Duration(cfg.VAD.MinSpeechMs) * time.Millisecond,
	})
	monitor := vad.NewMonitor(source, detector, orch.Callbacks(), sm.deps.logger)

	startedAt := time.Now()
	if err := sm.deps.recorder.Begin(ctx, history.Record{
		ID:             recordID,
		UserID:         cfg.Session.UserID,
		SourceLanguage: cfg.Session.SourceLanguage,
		TargetLanguage: cfg.Session.TargetLanguage,
		Mode:           string(cfg.Session.Mode),
		Code:           code,
		CreatedAt:      startedAt,
		Status:         history.StatusActive,
	}); err != nil {
		sm.deps.logger.Warn("history session begin failed", "session", recordID, "error", err)
	}

	done := make(chan struct{})
	go func() {
		err := monitor.Run()
		sm.mu.Lock()
		sm.monitorErr = err
		if err != nil {
			// Device failure: the session dies here, not in Stop.
			sm.closeRecord(history.StatusError, err.Error())
		}
		sm.mu.Unlock()
		close(done)
	}()

	sm.active = true
	sm.source = source
	sm.monitor = monitor
	sm.orch = orch
	sm.recordID = recordID
	sm.recordClosed = false
	sm.done = done
	sm.closers = closers
	sm.info = SessionInfo{
		Mode:           cfg.Session.Mode,
		Code:           code,
		SourceLanguage: cfg.Session.SourceLanguage,
		TargetLanguage: cfg.Session.TargetLanguage,
		StartedAt:      startedAt,
	}

	sm.deps.logger.Info("session started",
		"mode", string(cfg.Session.Mode),
		"source", cfg.Session.SourceLanguage,
		"target", cfg.Session.TargetLanguage,
		"code", code,
	)
	return nil
}

// buildRouter constructs the delivery router for the configured mode. For
// remote sessions it dials the relay and resolves the session code, minting
// a fresh one when the config does not name a session to join.
func (sm *SessionManager) buildRouter(ctx context.Context, closers *[]func() error) (*delivery.Router, string, error) {
	cfg := sm.deps.cfg

	if cfg.Session.Mode == config.ModeLocal {
		router, err := delivery.NewLocal(sm.deps.player, sm.deps.logger)
		return router, "", err
	}

	publisher, err := sm.deps.dialFn(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("session: connect relay: %w", err)
	}
	*closers = append(*closers, publisher.Close)

	code := cfg.Session.Code
	if code == "" {
		code, err = relay.NewSessionCode()
		if err != nil {
			return nil, "", fmt.Errorf("session: mint session code: %w", err)
		}
		sm.deps.logger.Info("hosting new session, share this code with listeners", "code", code)
	}

	router, err := delivery.NewRemote(publisher, code, cfg.Session.ParticipantID, sm.deps.logger)
	if err != nil {
		return nil, "", err
	}
	return router, code, nil
}

// Stop tears the session down: the monitor loop, the in-flight utterance,
// and finally the source and relay connection. The session record closes as
// ended when nothing was mid-flight, or as an aborted session when a provider
// stage was still running. Returns an error if no session is active.
func (sm *SessionManager) Stop() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.active {
		return fmt.Errorf("session: no active session to stop")
	}

	// Snapshot the pipeline state before cancelling anything: an utterance
	// past recording means this stop aborts work in flight.
	state := sm.orch.State()
	midFlight := state == pipeline.StateTranscribing ||
		state == pipeline.StateTranslating ||
		state == pipeline.StateSpeaking

	sm.monitor.Stop()
	sm.orch.Stop()

	if midFlight {
		sm.closeRecord(history.StatusError, "aborted")
	} else {
		sm.closeRecord(history.StatusEnded, "")
	}

	for i := len(sm.closers) - 1; i >= 0; i-- {
		if err := sm.closers[i](); err != nil {
			sm.deps.logger.Warn("session closer error", "index", i, "error", err)
		}
	}

	sm.active = false
	sm.source = nil
	sm.monitor = nil
	sm.orch = nil
	sm.done = nil
	sm.closers = nil
	sm.info = SessionInfo{}

	sm.deps.logger.Info("session stopped")
	return nil
}

// closeRecord closes the session's history record at most once. Runs on its
// own context so the write still lands during shutdown. Callers hold sm.mu.
func (sm *SessionManager) closeRecord(status history.Status, msg string) {
	if sm.recordID == "" || sm.recordClosed {
		return
	}
	sm.recordClosed = true

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	if status == history.StatusError {
		err = sm.deps.recorder.Fail(ctx, sm.recordID, msg)
	} else {
		err = sm.deps.recorder.End(ctx, sm.recordID)
	}
	if err != nil {
		sm.deps.logger.Warn("history session close failed",
			"session", sm.recordID, "status", string(status), "error", err)
	}
}

// IsActive reports whether a session is currently running.
func (sm *SessionManager) IsActive() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.active
}

// Info returns metadata about the active session, or the zero value when no
// session is active.
func (sm *SessionManager) Info() SessionInfo {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.info
}

// State returns the pipeline state, or idle when no session is active.
func (sm *SessionManager) State() pipeline.State {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.orch == nil {
		return pipeline.StateIdle
	}
	return sm.orch.State()
}

// Done returns a channel that closes when the monitor loop exits, e.g. on a
// fatal device error. Returns nil when no session is active.
func (sm *SessionManager) Done() <-chan struct{} {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.done
}

// Err returns the monitor's exit error after Done has closed.
func (sm *SessionManager) Err() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.monitorErr
}

// ApplyConfig applies a hot-reloaded config diff to the running session.
// Glossary and voice changes take effect on the next utterance; detection
// threshold changes need a session restart and are only logged.
func (sm *SessionManager) ApplyConfig(current *config.Config, d config.ConfigDiff) {
	sm.mu.Lock()
	orch := sm.orch
	sm.mu.Unlock()

	if orch == nil {
		return
	}
	if d.GlossaryChanged {
		orch.SetGlossary(d.NewGlossary)
		sm.deps.logger.Info("glossary reloaded", "terms", len(d.NewGlossary))
	}
	if d.VoiceChanged {
		orch.SetVoice(sessionVoice(d.NewVoice))
		sm.deps.logger.Info("voice reloaded", "voice_id", d.NewVoice.VoiceID)
	}
	if d.VADChanged {
		sm.deps.logger.Info("detection thresholds changed, restart the session to apply")
	}
}

// sessionVoice converts a config.VoiceConfig to a tts.Voice.
func sessionVoice(vc config.VoiceConfig) tts.Voice {
	return tts.Voice{
		ID:       vc.VoiceID,
		Provider: vc.Provider,
		Speed:    vc.Speed,
	}
}
