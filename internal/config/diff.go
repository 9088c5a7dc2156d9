package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider, store,
// and relay changes require a restart and are deliberately ignored here.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// GlossaryChanged is true when the session glossary terms differ.
	GlossaryChanged bool
	NewGlossary     []string

	// VADChanged is true when any detection threshold differs.
	VADChanged bool
	NewVAD     VADConfig

	// VoiceChanged is true when the synthesis voice differs.
	VoiceChanged bool
	NewVoice     VoiceConfig
}

// Empty reports whether nothing hot-reloadable changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.GlossaryChanged && !d.VADChanged && !d.VoiceChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !slices.Equal(old.Session.Glossary, new.Session.Glossary) {
		d.GlossaryChanged = true
		d.NewGlossary = new.Session.Glossary
	}

	if old.VAD != new.VAD {
		d.VADChanged = true
		d.NewVAD = new.VAD
	}

	if old.Session.Voice != new.Session.Voice {
		d.VoiceChanged = true
		d.NewVoice = new.Session.Voice
	}

	return d
}
