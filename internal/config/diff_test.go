package config_test

import (
	"testing"

	"github.com/bridgit-ai/bridgit/internal/config"
)

func TestDiffEmptyWhenIdentical(t *testing.T) {
	old := validConfig()
	new := validConfig()

	d := config.Diff(old, new)
	if !d.Empty() {
		t.Errorf("Diff() of identical configs = %+v, want empty", d)
	}
}

func TestDiffTracksHotReloadableFields(t *testing.T) {
	old := validConfig()
	new := validConfig()
	new.Server.LogLevel = config.LogDebug
	new.Session.Glossary = []string{"Bridgit"}
	new.VAD.SilenceMs = 2000
	new.Session.Voice.Speed = 1.5

	d := config.Diff(old, new)
	if d.Empty() {
		t.Fatal("Diff() reported empty for changed configs")
	}
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("log level diff = %v/%q", d.LogLevelChanged, d.NewLogLevel)
	}
	if !d.GlossaryChanged || len(d.NewGlossary) != 1 {
		t.Errorf("glossary diff = %v/%v", d.GlossaryChanged, d.NewGlossary)
	}
	if !d.VADChanged || d.NewVAD.SilenceMs != 2000 {
		t.Errorf("vad diff = %v/%+v", d.VADChanged, d.NewVAD)
	}
	if !d.VoiceChanged || d.NewVoice.Speed != 1.5 {
		t.Errorf("voice diff = %v/%+v", d.VoiceChanged, d.NewVoice)
	}
}

func TestDiffIgnoresRestartOnlyFields(t *testing.T) {
	old := validConfig()
	new := validConfig()
	new.Providers.STT.Primary.Name = "whisper-native"
	new.Store.PostgresDSN = "postgres://other"
	new.Relay.URL = "wss://other.example.com/ws"

	if d := config.Diff(old, new); !d.Empty() {
		t.Errorf("Diff() = %+v, want empty for restart-only changes", d)
	}
}
