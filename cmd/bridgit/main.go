// Command bridgit is the main entry point for the Bridgit voice translation
// client.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/bridgit-ai/bridgit/internal/app"
	"github.com/bridgit-ai/bridgit/internal/config"
	"github.com/bridgit-ai/bridgit/internal/observe"
	"github.com/bridgit-ai/bridgit/internal/resilience"
	"github.com/bridgit-ai/bridgit/pkg/provider/stt"
	sttopenai "github.com/bridgit-ai/bridgit/pkg/provider/stt/openai"
	"github.com/bridgit-ai/bridgit/pkg/provider/stt/whisper"
	"github.com/bridgit-ai/bridgit/pkg/provider/translate"
	"github.com/bridgit-ai/bridgit/pkg/provider/translate/deepl"
	llmtranslate "github.com/bridgit-ai/bridgit/pkg/provider/translate/llm"
	"github.com/bridgit-ai/bridgit/pkg/provider/tts"
	"github.com/bridgit-ai/bridgit/pkg/provider/tts/elevenlabs"
	ttsopenai "github.com/bridgit-ai/bridgit/pkg/provider/tts/openai"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "bridgit: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "bridgit: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, logLevel := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("bridgit starting",
		"version", version,
		"config", *configPath,
		"mode", cfg.Session.Mode,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "bridgit",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(current *config.Config, d config.ConfigDiff) {
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		application.Sessions().ApplyConfig(current, d)
	})
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("ready — press Ctrl+C to stop")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// builtinProviders maps pipeline stage names to the implementations that ship
// with Bridgit. Used for startup logging.
var builtinProviders = map[string][]string{
	"stt":       {"openai", "whisper-native"},
	"translate": {"deepl", "llm"},
	"tts":       {"elevenlabs", "openai"},
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []sttopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, sttopenai.WithModel(entry.Model))
		}
		return sttopenai.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(modelPath, opts...)
	})

	// ── Translate ─────────────────────────────────────────────────────────────

	reg.RegisterTranslate("deepl", func(entry config.ProviderEntry) (translate.Provider, error) {
		var opts []deepl.Option
		if entry.BaseURL != "" {
			opts = append(opts, deepl.WithBaseURL(entry.BaseURL))
		}
		return deepl.New(entry.APIKey, opts...)
	})

	// llm routes translation through a chat model. The backing provider
	// (openai, anthropic, groq, ollama, …) is chosen via options.provider.
	reg.RegisterTranslate("llm", func(entry config.ProviderEntry) (translate.Provider, error) {
		backend := optString(entry.Options, "provider")
		if backend == "" {
			backend = "openai"
		}
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return llmtranslate.New(backend, entry.Model, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []ttsopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, ttsopenai.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, ttsopenai.WithModel(entry.Model))
		}
		return ttsopenai.New(entry.APIKey, opts...)
	})

	// Debug log of all registered providers.
	for stage, names := range builtinProviders {
		for _, name := range names {
			slog.Debug("registered provider", "stage", stage, "name", name)
		}
	}
}

// buildProviders instantiates the providers named in cfg and assembles each
// pipeline stage into its fallback group. The primary provider of a stage is
// required; a fallback is attached when the config names one.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	sttPrimary, err := reg.CreateSTT(cfg.Providers.STT.Primary)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Primary.Name, err)
	}
	ps.STT = resilience.NewSTTFallback(sttPrimary, cfg.Providers.STT.Primary.Name, stageFallbackConfig("stt"))
	slog.Info("provider created", "stage", "stt", "name", cfg.Providers.STT.Primary.Name)
	if fb := cfg.Providers.STT.Fallback; fb != nil {
		p, err := reg.CreateSTT(*fb)
		if err != nil {
			return nil, fmt.Errorf("create stt fallback %q: %w", fb.Name, err)
		}
		ps.STT.AddFallback(fb.Name, p)
		slog.Info("fallback registered", "stage", "stt", "name", fb.Name)
	}

	trPrimary, err := reg.CreateTranslate(cfg.Providers.Translate.Primary)
	if err != nil {
		return nil, fmt.Errorf("create translate provider %q: %w", cfg.Providers.Translate.Primary.Name, err)
	}
	ps.Translator = resilience.NewTranslateFallback(trPrimary, cfg.Providers.Translate.Primary.Name, stageFallbackConfig("translate"))
	slog.Info("provider created", "stage", "translate", "name", cfg.Providers.Translate.Primary.Name)
	if fb := cfg.Providers.Translate.Fallback; fb != nil {
		p, err := reg.CreateTranslate(*fb)
		if err != nil {
			return nil, fmt.Errorf("create translate fallback %q: %w", fb.Name, err)
		}
		ps.Translator.AddFallback(fb.Name, p)
		slog.Info("fallback registered", "stage", "translate", "name", fb.Name)
	}

	// Synthesis is optional: a remote-only speaker never synthesises locally.
	if name := cfg.Providers.TTS.Primary.Name; name != "" {
		ttsPrimary, err := reg.CreateTTS(cfg.Providers.TTS.Primary)
		if err != nil {
			return nil, fmt.Errorf("create tts provider %q: %w", name, err)
		}
		ps.TTS = resilience.NewTTSFallback(ttsPrimary, name, stageFallbackConfig("tts"))
		slog.Info("provider created", "stage", "tts", "name", name)
		if fb := cfg.Providers.TTS.Fallback; fb != nil {
			p, err := reg.CreateTTS(*fb)
			if err != nil {
				return nil, fmt.Errorf("create tts fallback %q: %w", fb.Name, err)
			}
			ps.TTS.AddFallback(fb.Name, p)
			slog.Info("fallback registered", "stage", "tts", "name", fb.Name)
		}
	}

	return ps, nil
}

func stageFallbackConfig(stage string) resilience.FallbackConfig {
	return resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{Name: stage},
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          Bridgit — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	fmt.Printf("║  Mode            : %-19s ║\n", cfg.Session.Mode)
	fmt.Printf("║  Languages       : %-19s ║\n", cfg.Session.SourceLanguage+" → "+cfg.Session.TargetLanguage)
	printStage("STT", cfg.Providers.STT)
	printStage("Translate", cfg.Providers.Translate)
	printStage("TTS", cfg.Providers.TTS)
	fmt.Printf("║  Glossary terms  : %-19d ║\n", len(cfg.Session.Glossary))
	if cfg.Store.PostgresDSN != "" {
		fmt.Printf("║  Store           : %-19s ║\n", "postgres")
	} else {
		fmt.Printf("║  Store           : %-19s ║\n", "in-memory")
	}
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printStage(stage string, pair config.StagePair) {
	value := pair.Primary.Name
	if value == "" {
		value = "(not configured)"
	} else if pair.Fallback != nil {
		value += " → " + pair.Fallback.Name
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", stage, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

// newLogger builds the default text logger. The returned LevelVar lets the
// config watcher adjust verbosity without restarting.
func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lvl := new(slog.LevelVar)
	lvl.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), lvl
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
