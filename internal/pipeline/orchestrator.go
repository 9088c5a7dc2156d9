// Package pipeline contains the voice pipeline orchestrator: the state
// machine that drives each utterance from capture through transcription,
// translation, and synthesis to delivery.
//
// The orchestrator owns the authoritative [State] for its session. Monitor
// events feed it; while a run is in flight every new speech-start is dropped,
// so at most one [Utterance] exists at a time. Stage failures force the
// machine back to idle with the utterance discarded; the next utterance
// starts from a clean slate.
//
// The session's history record is owned by the session manager. The
// orchestrator only reports into it: stage transitions as they happen, and
// each settled cycle's usage. It never opens or closes the record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/bridgit-ai/bridgit/internal/billing"
	"github.com/bridgit-ai/bridgit/internal/capture"
	"github.com/bridgit-ai/bridgit/internal/delivery"
	"github.com/bridgit-ai/bridgit/internal/observe"
	"github.com/bridgit-ai/bridgit/internal/resilience"
	"github.com/bridgit-ai/bridgit/internal/transcript"
	"github.com/bridgit-ai/bridgit/internal/vad"
	"github.com/bridgit-ai/bridgit/pkg/audio"
	"github.com/bridgit-ai/bridgit/pkg/history"
	"github.com/bridgit-ai/bridgit/pkg/provider/translate"
	"github.com/bridgit-ai/bridgit/pkg/provider/tts"
)

// defaultStageTimeout bounds each provider call. Exceeding it counts as a
// provider error, so the fallback (or the stage failure path) takes over.
const defaultStageTimeout = 30 * time.Second

// Config carries the orchestrator's required collaborators.
type Config struct {
	Capturer   *capture.Capturer
	STT        *resilience.STTFallback
	Translator *resilience.TranslateFallback
	TTS        *resilience.TTSFallback
	Router     *delivery.Router
	Accountant *billing.Accountant
	Recorder   history.Recorder

	// SessionID names the open history record the orchestrator reports
	// into. The session manager owns that record's lifecycle.
	SessionID string

	UserID         string
	SourceLanguage string
	TargetLanguage string

	// Metrics receives stage and provider instrumentation. Defaults to
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

func (c Config) validate() error {
	var errs []error
	if c.Capturer == nil {
		errs = append(errs, errors.New("capturer is required"))
	}
	if c.STT == nil {
		errs = append(errs, errors.New("stt fallback group is required"))
	}
	if c.Translator == nil {
		errs = append(errs, errors.New("translator fallback group is required"))
	}
	if c.Router == nil {
		errs = append(errs, errors.New("delivery router is required"))
	}
	if c.Router != nil && c.Router.Mode() == delivery.ModeLocal && c.TTS == nil {
		errs = append(errs, errors.New("tts fallback group is required for local delivery"))
	}
	if c.Accountant == nil {
		errs = append(errs, errors.New("accountant is required"))
	}
	if c.Recorder == nil {
		errs = append(errs, errors.New("history recorder is required"))
	}
	if c.SessionID == "" {
		errs = append(errs, errors.New("session id is required"))
	}
	if c.UserID == "" {
		errs = append(errs, errors.New("user id is required"))
	}
	if c.SourceLanguage == "" || c.TargetLanguage == "" {
		errs = append(errs, errors.New("source and target languages are required"))
	}
	return errors.Join(errs...)
}

// Option is a functional option for configuring an [Orchestrator].
type Option func(*Orchestrator)

// WithStageTimeout bounds each provider call. Default is 30 seconds.
func WithStageTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.stageTimeout = d }
}

// WithGlossary enables glossary correction of transcripts before translation.
func WithGlossary(c transcript.Corrector, terms []string) Option {
	return func(o *Orchestrator) {
		o.corrector = c
		o.glossary = terms
	}
}

// WithVoice selects the synthesis voice for local delivery.
func WithVoice(v tts.Voice) Option {
	return func(o *Orchestrator) { o.voice = v }
}

// WithOnError registers a callback invoked once per classified pipeline
// error. The callback runs on the pipeline goroutine and must not block.
func WithOnError(fn func(error)) Option {
	return func(o *Orchestrator) { o.onError = fn }
}

// WithLogger sets the logger. Default is slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// Orchestrator sequences one utterance at a time through the pipeline.
// Feed it monitor events via [Orchestrator.Callbacks].
type Orchestrator struct {
	machine    *Machine
	capturer   *capture.Capturer
	stt        *resilience.STTFallback
	translator *resilience.TranslateFallback
	tts        *resilience.TTSFallback
	router     *delivery.Router
	accountant *billing.Accountant
	recorder   history.Recorder
	metrics    *observe.Metrics

	corrector transcript.Corrector
	glossary  []string
	voice     tts.Voice

	sessionID string
	userID    string
	source    string
	target    string

	stageTimeout time.Duration
	onError      func(error)
	logger       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	current *Utterance

	// wg tracks in-flight pipeline runs so Stop (and tests) can wait for
	// the active utterance to settle.
	wg sync.WaitGroup
}

// New constructs an Orchestrator in [StateIdle].
func New(cfg Config, opts ...Option) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		machine:      NewMachine(),
		capturer:     cfg.Capturer,
		stt:          cfg.STT,
		translator:   cfg.Translator,
		tts:          cfg.TTS,
		router:       cfg.Router,
		accountant:   cfg.Accountant,
		recorder:     cfg.Recorder,
		metrics:      metrics,
		sessionID:    cfg.SessionID,
		userID:       cfg.UserID,
		source:       cfg.SourceLanguage,
		target:       cfg.TargetLanguage,
		stageTimeout: defaultStageTimeout,
		logger:       slog.Default(),
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// State returns the pipeline state at this instant.
func (o *Orchestrator) State() State { return o.machine.Current() }

// Subscribe registers a listener for state transitions.
func (o *Orchestrator) Subscribe(buffer int) (<-chan Transition, func()) {
	return o.machine.Subscribe(buffer)
}

// Callbacks wires the orchestrator to an activity monitor.
func (o *Orchestrator) Callbacks() vad.Callbacks {
	return vad.Callbacks{
		OnSpeechStart: o.handleSpeechStart,
		OnSpeechEnd:   o.handleSpeechEnd,
		OnSpeechAbort: o.handleSpeechAbort,
		OnFrame:       o.handleFrame,
		OnDeviceError: o.handleDeviceError,
	}
}

// Wait blocks until the in-flight pipeline run (if any) has settled.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// SetGlossary replaces the glossary terms. Takes effect from the next
// utterance; the in-flight one keeps the terms it started with.
func (o *Orchestrator) SetGlossary(terms []string) {
	o.mu.Lock()
	o.glossary = slices.Clone(terms)
	o.mu.Unlock()
}

// SetVoice replaces the synthesis voice for future utterances.
func (o *Orchestrator) SetVoice(v tts.Voice) {
	o.mu.Lock()
	o.voice = v
	o.mu.Unlock()
}

// Stop cancels any in-flight stage, forces the machine to idle, and waits
// for the run to settle. The session record stays open; the session manager
// closes it once teardown is done.
func (o *Orchestrator) Stop() {
	o.cancel()

	o.mu.Lock()
	if o.current != nil && o.machine.Current() == StateRecording {
		o.current = nil
		o.capturer.Abort()
		o.machine.to(StateIdle, time.Now())
	}
	o.mu.Unlock()

	o.wg.Wait()
}

// ─── Monitor event handlers ───────────────────────────────────────────────────

func (o *Orchestrator) handleSpeechStart(at time.Time) {
	o.mu.Lock()

	// Only one utterance may be in flight. New speech during an active run
	// is dropped, never queued.
	if o.machine.Current() != StateIdle {
		o.logger.Debug("speech start ignored, pipeline busy",
			"state", o.machine.Current().String())
		o.mu.Unlock()
		return
	}

	if err := o.accountant.CheckBalance(o.ctx, o.userID); err != nil {
		o.mu.Unlock()
		o.logger.Warn("utterance refused", "error", err)
		o.report(err)
		return
	}

	u := &Utterance{
		ID:             uuid.NewString(),
		SourceLanguage: o.source,
		TargetLanguage: o.target,
		Spans:          make(map[history.Stage]StageSpan),
	}

	if err := o.capturer.Begin(at); err != nil {
		o.mu.Unlock()
		o.logger.Error("capture begin failed", "error", err)
		o.report(err)
		return
	}

	o.current = u
	u.Spans[history.StageRecording] = StageSpan{Start: at}
	o.machine.to(StateRecording, at)
	o.mu.Unlock()

	o.reportStage(history.StageRecording, at, true)
}

func (o *Orchestrator) handleFrame(frame audio.Frame) {
	o.capturer.Append(frame)
}

func (o *Orchestrator) handleSpeechAbort() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.machine.Current() != StateRecording || o.current == nil {
		return
	}
	u := o.current
	o.current = nil

	o.logger.Debug("utterance below minimum duration, discarded", "cycle", u.ID)
	o.capturer.Abort()
	o.machine.to(StateIdle, time.Now())
}

func (o *Orchestrator) handleSpeechEnd(start, end time.Time) {
	o.mu.Lock()

	if o.machine.Current() != StateRecording || o.current == nil {
		o.mu.Unlock()
		return
	}
	u := o.current

	clip, err := o.capturer.End(end)
	if err != nil {
		o.current = nil
		o.mu.Unlock()
		o.fail(u, history.StageRecording, err, false)
		return
	}

	span := u.Spans[history.StageRecording]
	span.End = end
	u.Spans[history.StageRecording] = span
	u.Clip = clip
	o.mu.Unlock()

	o.reportStage(history.StageRecording, end, false)

	// Run the provider stages off the monitor goroutine so sampling
	// continues while the pipeline is busy.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(u)
	}()
}

func (o *Orchestrator) handleDeviceError(err error) {
	o.logger.Error("audio device failed", "error", err)

	o.mu.Lock()
	if o.current != nil && o.machine.Current() == StateRecording {
		o.current = nil
		o.capturer.Abort()
		o.machine.to(StateIdle, time.Now())
	}
	o.mu.Unlock()

	o.report(err)
}

// ─── Pipeline run ─────────────────────────────────────────────────────────────

// run drives one utterance through transcription, translation, synthesis,
// and delivery. It owns u exclusively; on every exit path the machine is back
// at idle and the utterance is discarded.
func (o *Orchestrator) run(u *Utterance) {
	ctx, span := observe.StartSpan(o.ctx, "pipeline.utterance")
	defer span.End()
	logger := observe.Logger(ctx, o.logger).With("cycle", u.ID)

	// Transcription.
	if err := o.enterStage(u, StateTranscribing, history.StageTranscription); err != nil {
		o.fail(u, history.StageTranscription, err, false)
		return
	}

	sttCtx, sttSpan := observe.StartSpan(ctx, "stage.transcription")
	stageCtx, cancel := context.WithTimeout(sttCtx, o.stageTimeout)
	result, outcome, err := o.stt.Transcribe(stageCtx, u.Clip, u.SourceLanguage)
	cancel()
	sttSpan.End()
	u.STT = outcome
	o.observeProvider(outcome, history.StageTranscription, err)
	if err != nil {
		o.fail(u, history.StageTranscription, err, errors.Is(err, resilience.ErrAllFailed))
		return
	}
	u.Transcript = result.Text
	o.endStage(u, history.StageTranscription)
	o.charge(u, o.accountant.EstimateSTT(u.Clip.Duration))

	o.mu.Lock()
	corrector, terms := o.corrector, o.glossary
	o.mu.Unlock()
	if corrector != nil && len(terms) > 0 {
		u.Transcript, u.Corrections = corrector.Correct(u.Transcript, terms)
		if len(u.Corrections) > 0 {
			logger.Debug("glossary corrections applied", "count", len(u.Corrections))
		}
	}

	// Translation.
	if err := o.enterStage(u, StateTranslating, history.StageTranslation); err != nil {
		o.fail(u, history.StageTranslation, err, false)
		return
	}

	if languagesEqual(u.SourceLanguage, u.TargetLanguage) {
		// Identity translation: no provider call, no charge.
		u.Translation = u.Transcript
	} else {
		trCtx, trSpan := observe.StartSpan(ctx, "stage.translation")
		stageCtx, cancel = context.WithTimeout(trCtx, o.stageTimeout)
		tr, outcome, err := o.translator.Translate(stageCtx, translate.Request{
			Text:   u.Transcript,
			Source: u.SourceLanguage,
			Target: u.TargetLanguage,
		})
		cancel()
		trSpan.End()
		u.Translate = outcome
		o.observeProvider(outcome, history.StageTranslation, err)
		if err != nil {
			o.fail(u, history.StageTranslation, err, errors.Is(err, resilience.ErrAllFailed))
			return
		}
		u.Translation = tr.Text
		o.charge(u, o.accountant.EstimateTranslation(len([]rune(u.Transcript))))
	}
	o.endStage(u, history.StageTranslation)

	// Speaking: synthesis plus delivery. The state covers the whole span,
	// so in local mode it stays active until playback finishes.
	if err := o.enterStage(u, StateSpeaking, history.StageSpeaking); err != nil {
		o.fail(u, history.StageSpeaking, err, false)
		return
	}

	out := delivery.Utterance{
		OriginalText:   u.Transcript,
		TranslatedText: u.Translation,
		SourceLanguage: u.SourceLanguage,
		TargetLanguage: u.TargetLanguage,
	}

	if o.router.Mode() == delivery.ModeLocal {
		o.mu.Lock()
		voice := o.voice
		o.mu.Unlock()
		ttsCtx, ttsSpan := observe.StartSpan(ctx, "stage.synthesis")
		stageCtx, cancel = context.WithTimeout(ttsCtx, o.stageTimeout)
		clip, outcome, err := o.tts.Synthesize(stageCtx, u.Translation, voice)
		cancel()
		ttsSpan.End()
		u.TTS = outcome
		o.observeProvider(outcome, history.StageSpeaking, err)
		if err != nil {
			o.fail(u, history.StageSpeaking, err, errors.Is(err, resilience.ErrAllFailed))
			return
		}
		o.charge(u, o.accountant.EstimateTTS(len([]rune(u.Translation))))
		out.Clip = clip
	}

	if err := o.router.Deliver(ctx, out); err != nil {
		if errors.Is(err, delivery.ErrPublishFailed) {
			// Best-effort: one message lost, the cycle still completes.
			o.report(err)
		} else {
			o.fail(u, history.StageSpeaking, err, false)
			return
		}
	}
	o.endStage(u, history.StageSpeaking)

	o.complete(u, logger)
}

// ─── Stage bookkeeping ────────────────────────────────────────────────────────

func (o *Orchestrator) enterStage(u *Utterance, s State, stage history.Stage) error {
	now := time.Now()

	o.mu.Lock()
	if err := o.ctx.Err(); err != nil {
		o.mu.Unlock()
		return err
	}
	if err := o.machine.to(s, now); err != nil {
		o.mu.Unlock()
		return err
	}
	u.Spans[stage] = StageSpan{Start: now}
	o.mu.Unlock()

	o.reportStage(stage, now, true)
	return nil
}

func (o *Orchestrator) endStage(u *Utterance, stage history.Stage) {
	now := time.Now()

	o.mu.Lock()
	span := u.Spans[stage]
	span.End = now
	u.Spans[stage] = span
	o.mu.Unlock()

	if hist := o.stageHistogram(stage); hist != nil && !span.Start.IsZero() {
		hist.Record(o.ctx, now.Sub(span.Start).Seconds())
	}
	o.reportStage(stage, now, false)
}

// stageHistogram maps a provider stage to its latency histogram. Recording
// has no provider latency to measure.
func (o *Orchestrator) stageHistogram(stage history.Stage) metric.Float64Histogram {
	switch stage {
	case history.StageTranscription:
		return o.metrics.STTDuration
	case history.StageTranslation:
		return o.metrics.TranslateDuration
	case history.StageSpeaking:
		return o.metrics.TTSDuration
	}
	return nil
}

// reportStage forwards a stage boundary to the session's history record.
// Failures are logged, never propagated.
func (o *Orchestrator) reportStage(stage history.Stage, at time.Time, entered bool) {
	var err error
	if entered {
		err = o.recorder.StageStarted(o.ctx, o.sessionID, stage, at)
	} else {
		err = o.recorder.StageEnded(o.ctx, o.sessionID, stage, at)
	}
	if err != nil {
		o.logger.Warn("history stage report failed",
			"session", o.sessionID, "stage", string(stage), "error", err)
	}
}

// observeProvider records the provider request, error, and fallback counters
// for one stage attempt.
func (o *Orchestrator) observeProvider(outcome resilience.Outcome, stage history.Stage, err error) {
	name := outcome.Provider
	if name == "" {
		name = "none"
	}
	status := "ok"
	if err != nil {
		status = "error"
		o.metrics.RecordProviderError(o.ctx, name, string(stage))
	}
	o.metrics.RecordProviderRequest(o.ctx, name, string(stage), status)
	if outcome.FallbackUsed {
		o.metrics.RecordFallback(o.ctx, string(stage))
	}
}

// charge debits the ledger for a completed stage. A failed debit never stops
// the utterance already in flight; the pre-flight balance check blocks the
// next one instead.
func (o *Orchestrator) charge(u *Utterance, credits float64) {
	if credits <= 0 {
		return
	}
	remaining, err := o.accountant.Charge(o.ctx, o.userID, credits, u.ID)
	if err != nil {
		o.logger.Warn("stage charge failed",
			"cycle", u.ID, "credits", credits, "error", err)
		return
	}
	u.Credits += credits
	o.logger.Debug("stage charged",
		"cycle", u.ID, "credits", credits, "remaining", remaining)
}

func (o *Orchestrator) complete(u *Utterance, logger *slog.Logger) {
	o.mu.Lock()
	o.current = nil
	voiceID := o.voice.ID
	o.machine.to(StateIdle, time.Now())
	o.mu.Unlock()

	o.closeOut(func(ctx context.Context) error {
		return o.recorder.AddUsage(ctx, o.sessionID, u.usage(voiceID))
	})

	o.metrics.RecordUtterance(o.ctx, "complete", u.Credits)
	if rec := u.Spans[history.StageRecording]; !rec.End.IsZero() {
		o.metrics.UtteranceDuration.Record(o.ctx, time.Since(rec.End).Seconds())
	}

	logger.Info("utterance delivered",
		"stt", u.STT.Provider,
		"translate", u.Translate.Provider,
		"tts", u.TTS.Provider,
		"credits", u.Credits)
}

// fail classifies a stage error, folds whatever the cycle consumed into the
// session record, forces the machine back to idle, and discards the
// utterance. Cancellation is not a failure: no error is reported and the
// session manager decides how the record closes.
func (o *Orchestrator) fail(u *Utterance, stage history.Stage, err error, allProviders bool) {
	o.mu.Lock()
	o.current = nil
	voiceID := o.voice.ID
	o.machine.to(StateIdle, time.Now())
	o.mu.Unlock()

	if errors.Is(err, context.Canceled) || o.ctx.Err() != nil {
		if u.Credits > 0 {
			o.closeOut(func(ctx context.Context) error {
				return o.recorder.AddUsage(ctx, o.sessionID, u.usage(voiceID))
			})
		}
		return
	}

	sf := &StageFailure{Stage: stage, BothProvidersFailed: allProviders, Err: err}
	o.logger.Error("utterance failed",
		"cycle", u.ID, "stage", string(stage), "error", err)
	o.closeOut(func(ctx context.Context) error {
		return o.recorder.AddUsage(ctx, o.sessionID, u.usage(voiceID))
	})
	o.metrics.RecordUtterance(o.ctx, "error", u.Credits)
	o.report(sf)
}

// closeOut runs a final history write on its own context so reports still
// land after Stop has cancelled the session context.
func (o *Orchestrator) closeOut(fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		o.logger.Warn("history write failed", "error", err)
	}
}

func (o *Orchestrator) report(err error) {
	if o.onError != nil {
		o.onError(err)
	}
}

func languagesEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
