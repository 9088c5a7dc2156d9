package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per pipeline stage.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":       {"openai", "whisper-native"},
	"translate": {"deepl", "llm"},
	"tts":       {"elevenlabs", "openai"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// $VAR and ${VAR} references are expanded from the environment before
// decoding, so API keys can stay out of the config file.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(raw))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation — warn for unknown provider names.
	validateStage("stt", cfg.Providers.STT)
	validateStage("translate", cfg.Providers.Translate)
	validateStage("tts", cfg.Providers.TTS)

	if cfg.Providers.STT.Primary.Name == "" {
		errs = append(errs, errors.New("providers.stt.primary.name is required"))
	}
	if cfg.Providers.Translate.Primary.Name == "" {
		errs = append(errs, errors.New("providers.translate.primary.name is required"))
	}

	// Session
	s := cfg.Session
	if !s.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("session.mode %q is invalid; valid values: local, remote", s.Mode))
	}
	if s.UserID == "" {
		errs = append(errs, errors.New("session.user_id is required"))
	}
	if s.SourceLanguage == "" || s.TargetLanguage == "" {
		errs = append(errs, errors.New("session.source_language and session.target_language are required"))
	}
	if s.Voice.Speed != 0 && (s.Voice.Speed < 0.5 || s.Voice.Speed > 2.0) {
		errs = append(errs, fmt.Errorf("session.voice.speed %.2f is out of range [0.5, 2.0]", s.Voice.Speed))
	}

	switch s.Mode {
	case ModeLocal:
		if cfg.Providers.TTS.Primary.Name == "" {
			errs = append(errs, errors.New("providers.tts.primary.name is required for local sessions"))
		}
	case ModeRemote:
		if cfg.Relay.URL == "" {
			errs = append(errs, errors.New("relay.url is required for remote sessions"))
		}
		if s.Code != "" && len(s.Code) != 6 {
			errs = append(errs, fmt.Errorf("session.code %q must be 6 digits", s.Code))
		}
		if s.ParticipantID == "" {
			slog.Warn("session.participant_id is empty; remote listeners cannot attribute translations")
		}
	}

	// Voice provider ↔ TTS provider cross-validation
	if s.Voice.Provider != "" && cfg.Providers.TTS.Primary.Name != "" && s.Voice.Provider != cfg.Providers.TTS.Primary.Name {
		slog.Warn("session voice provider does not match the primary TTS provider",
			"voice_provider", s.Voice.Provider,
			"tts_provider", cfg.Providers.TTS.Primary.Name,
		)
	}

	// VAD
	if cfg.VAD.EnergyThreshold < 0 || cfg.VAD.EnergyThreshold > 1 {
		errs = append(errs, fmt.Errorf("vad.energy_threshold %.3f is out of range [0, 1]", cfg.VAD.EnergyThreshold))
	}
	if cfg.VAD.SilenceMs < 0 {
		errs = append(errs, fmt.Errorf("vad.silence_ms %d must not be negative", cfg.VAD.SilenceMs))
	}
	if cfg.VAD.MinSpeechMs < 0 {
		errs = append(errs, fmt.Errorf("vad.min_speech_ms %d must not be negative", cfg.VAD.MinSpeechMs))
	}

	// Billing
	if cfg.Billing.MinimumBalance < 0 {
		errs = append(errs, fmt.Errorf("billing.minimum_balance %.2f must not be negative", cfg.Billing.MinimumBalance))
	}

	// Persistence availability
	if cfg.Store.PostgresDSN == "" {
		slog.Warn("store.postgres_dsn is empty; session history and the credit ledger are kept in memory only")
	}

	return errors.Join(errs...)
}

// validateStage warns about unknown primary/fallback provider names and
// about a fallback that duplicates the primary.
func validateStage(kind string, pair StagePair) {
	validateProviderName(kind, pair.Primary.Name)
	if pair.Fallback == nil {
		return
	}
	validateProviderName(kind, pair.Fallback.Name)
	if pair.Fallback.Name != "" && pair.Fallback.Name == pair.Primary.Name {
		slog.Warn("fallback provider equals the primary; failover will retry the same backend",
			"kind", kind,
			"name", pair.Primary.Name,
		)
	}
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
