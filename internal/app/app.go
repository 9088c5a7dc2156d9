// Package app wires all Bridgit subsystems into a running client.
//
// The App struct owns the full lifecycle: New creates and connects the
// persistence layer, billing, health endpoints, and the session manager;
// Run starts the voice session and the HTTP server and blocks until the
// context is cancelled; Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithRecorder,
// WithSource, WithPublisher, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/bridgit-ai/bridgit/internal/billing"
	"github.com/bridgit-ai/bridgit/internal/config"
	"github.com/bridgit-ai/bridgit/internal/health"
	"github.com/bridgit-ai/bridgit/internal/observe"
	"github.com/bridgit-ai/bridgit/internal/relay"
	"github.com/bridgit-ai/bridgit/internal/resilience"
	"github.com/bridgit-ai/bridgit/pkg/audio"
	"github.com/bridgit-ai/bridgit/pkg/history"
	"github.com/bridgit-ai/bridgit/pkg/ledger"
	"github.com/bridgit-ai/bridgit/pkg/store/postgres"
)

// memoryStartingCredits is granted to the session user when running without
// a postgres DSN, so a fresh in-memory ledger can afford utterances.
const memoryStartingCredits = 100

// Providers holds the per-stage fallback groups. Populated by main.go via
// the config registry. TTS may be nil for remote sessions.
type Providers struct {
	STT        *resilience.STTFallback
	Translator *resilience.TranslateFallback
	TTS        *resilience.TTSFallback
}

// App owns all subsystem lifetimes for the Bridgit client.
type App struct {
	cfg       *config.Config
	providers *Providers
	logger    *slog.Logger

	// Subsystems — initialised in New, torn down in Shutdown.
	store      *postgres.Store
	recorder   history.Recorder
	credits    ledger.Ledger
	accountant *billing.Accountant
	metrics    *observe.Metrics
	sessions   *SessionManager
	httpSrv    *http.Server

	// Injected session collaborators (defaults created in New).
	sourceFn func() (audio.Source, error)
	player   audio.Player
	dialFn   func(ctx context.Context) (relay.Publisher, error)
	onError  func(error)

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithRecorder injects a history recorder instead of creating one from config.
func WithRecorder(r history.Recorder) Option {
	return func(a *App) { a.recorder = r }
}

// WithLedger injects a credit ledger instead of creating one from config.
func WithLedger(l ledger.Ledger) Option {
	return func(a *App) { a.credits = l }
}

// WithSource injects an audio source factory instead of reading PCM from stdin.
func WithSource(fn func() (audio.Source, error)) Option {
	return func(a *App) { a.sourceFn = fn }
}

// WithPlayer injects a playback sink instead of writing PCM to stdout.
func WithPlayer(p audio.Player) Option {
	return func(a *App) { a.player = p }
}

// WithPublisher injects a relay publisher instead of dialing relay.url.
func WithPublisher(p relay.Publisher) Option {
	return func(a *App) {
		a.dialFn = func(context.Context) (relay.Publisher, error) { return p, nil }
	}
}

// WithMetrics injects a metrics instance instead of the global default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithOnError registers a callback for classified pipeline errors, e.g. to
// surface them on a UI. Must not block.
func WithOnError(fn func(error)) Option {
	return func(a *App) { a.onError = fn }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option
// functions to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.STT == nil || providers.Translator == nil {
		return nil, errors.New("app: stt and translate fallback groups are required")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Persistence ───────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. Billing ───────────────────────────────────────────────────────
	a.accountant = billing.New(billing.Rates{
		MinimumBalance: cfg.Billing.MinimumBalance,
	}, a.credits, a.logger)

	// ── 3. Metrics ───────────────────────────────────────────────────────
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 4. Session collaborators ─────────────────────────────────────────
	if a.sourceFn == nil {
		a.sourceFn = func() (audio.Source, error) {
			return audio.NewReaderSource(os.Stdin), nil
		}
	}
	if a.player == nil {
		a.player = audio.NewWriterPlayer(os.Stdout)
	}
	if a.dialFn == nil {
		a.dialFn = func(ctx context.Context) (relay.Publisher, error) {
			return relay.Dial(ctx, cfg.Relay.URL, a.logger)
		}
	}

	// ── 5. Session manager ───────────────────────────────────────────────
	a.sessions = &SessionManager{deps: sessionDeps{
		cfg:        cfg,
		providers:  providers,
		accountant: a.accountant,
		recorder:   a.recorder,
		metrics:    a.metrics,
		logger:     a.logger,
		sourceFn:   a.sourceFn,
		player:     a.player,
		dialFn:     a.dialFn,
		onError:    a.onError,
	}}

	// ── 6. HTTP: health, readiness, metrics ──────────────────────────────
	a.initHTTP()

	return a, nil
}

// initStore sets up the postgres store, or in-memory fallbacks when no DSN
// is configured or the stores were injected.
func (a *App) initStore(ctx context.Context) error {
	if a.recorder != nil && a.credits != nil {
		return nil // both injected
	}

	dsn := a.cfg.Store.PostgresDSN
	if dsn == "" {
		if a.recorder == nil {
			a.recorder = history.NewInMemory()
		}
		if a.credits == nil {
			mem := ledger.NewInMemory()
			if _, err := mem.Credit(ctx, a.cfg.Session.UserID, memoryStartingCredits, "starting grant"); err != nil {
				return err
			}
			a.credits = mem
		}
		a.logger.Warn("no postgres_dsn configured, history and credits are in-memory only")
		return nil
	}

	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})

	if a.recorder == nil {
		a.recorder = history.NewBestEffort(store.Sessions(), a.logger)
	}
	if a.credits == nil {
		a.credits = store.Credits()
	}
	return nil
}

// initHTTP assembles the health/metrics mux. The server itself starts in Run
// and only when server.listen_addr is set.
func (a *App) initHTTP() {
	if a.cfg.Server.ListenAddr == "" {
		return
	}

	checkers := []health.Checker{
		health.BalanceCheck(a.accountant, a.cfg.Session.UserID),
	}
	if a.store != nil {
		checkers = append(checkers, health.StoreCheck(a.store))
	}

	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	a.httpSrv = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the voice session and the HTTP endpoints, then blocks until ctx
// is cancelled or the audio device fails. The session is stopped before Run
// returns; Shutdown still has to run for the remaining subsystems.
func (a *App) Run(ctx context.Context) error {
	if err := a.sessions.Start(ctx); err != nil {
		return fmt.Errorf("app: start session: %w", err)
	}
	a.metrics.ActiveSessions.Add(ctx, 1)
	defer a.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)

	g, ctx := errgroup.WithContext(ctx)

	if a.httpSrv != nil {
		g.Go(func() error {
			a.logger.Info("http endpoints listening", "addr", a.httpSrv.Addr)
			err := a.listenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.httpSrv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.sessions.Done():
			// Monitor exited on its own: device failure or source EOF.
			if err := a.sessions.Err(); err != nil {
				return err
			}
			return errors.New("app: audio source ended")
		}
	})

	err := g.Wait()
	if stopErr := a.sessions.Stop(); stopErr != nil {
		a.logger.Warn("session stop error", "error", stopErr)
	}
	return err
}

// listenAndServe starts the HTTP server with TLS when configured.
func (a *App) listenAndServe() error {
	if tls := a.cfg.Server.TLS; tls != nil {
		return a.httpSrv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
	}
	return a.httpSrv.ListenAndServe()
}

// Sessions exposes the session manager, e.g. for the config watcher's
// hot-reload callback.
func (a *App) Sessions() *SessionManager { return a.sessions }

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.logger.Info("shutting down", "closers", len(a.closers))

		if a.sessions.IsActive() {
			if err := a.sessions.Stop(); err != nil {
				a.logger.Warn("session stop error", "error", err)
			}
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.logger.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.logger.Warn("closer error", "index", i, "error", err)
			}
		}

		a.logger.Info("shutdown complete")
	})
	return shutdownErr
}
