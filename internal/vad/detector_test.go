package vad

import (
	"testing"
	"time"
)

// tick advances the detector with one level per 100ms step and returns the
// events observed, keyed by step index.
func runSequence(d *Detector, levels []float64) map[int]Event {
	events := map[int]Event{}
	base := time.Unix(0, 0)
	for i, level := range levels {
		at := base.Add(time.Duration(i+1) * 100 * time.Millisecond)
		if ev := d.Observe(level, at); ev != EventNone {
			events[i] = ev
		}
	}
	return events
}

func TestDetector_SpeechStartOnFirstVoicedTick(t *testing.T) {
	d := NewDetector(Config{})

	events := runSequence(d, []float64{0, 0, 0.5})
	if ev, ok := events[2]; !ok || ev != EventSpeechStart {
		t.Fatalf("events = %v, want speech_start at tick 2", events)
	}
	if !d.Speaking() {
		t.Fatal("detector should report speaking after start")
	}
}

func TestDetector_SpeechEndAfterSustainedSilence(t *testing.T) {
	d := NewDetector(Config{})

	// 2 quiet ticks, 7 voiced ticks (600ms of speech), then 17 ticks of
	// silence (1600ms, past the 1500ms threshold).
	levels := []float64{0, 0, 0.5, 0.6, 0.55, 0.5, 0.4, 0.5, 0.45}
	for i := 0; i < 17; i++ {
		levels = append(levels, 0.005)
	}

	events := runSequence(d, levels)
	if ev := events[2]; ev != EventSpeechStart {
		t.Fatalf("events = %v, want speech_start at tick 2", events)
	}

	var endTick = -1
	for tick, ev := range events {
		if ev == EventSpeechEnd {
			endTick = tick
		}
	}
	if endTick == -1 {
		t.Fatalf("events = %v, want a speech_end", events)
	}
	// Silence run starts at tick 9 (t=1000ms); the first tick strictly past
	// 1500ms of silence is tick 25 (t=2600ms).
	if endTick != 25 {
		t.Fatalf("speech_end at tick %d, want 25", endTick)
	}
	if d.Speaking() {
		t.Fatal("detector should be idle after speech_end")
	}
}

func TestDetector_ShortSpikeAborts(t *testing.T) {
	d := NewDetector(Config{})

	// A 200ms voiced run is below the 500ms minimum; sustained silence must
	// discard it rather than produce an utterance.
	levels := []float64{0.5, 0.5}
	for i := 0; i < 17; i++ {
		levels = append(levels, 0)
	}

	events := runSequence(d, levels)
	for _, ev := range events {
		if ev == EventSpeechEnd {
			t.Fatalf("events = %v, short spike must never produce speech_end", events)
		}
	}
	found := false
	for _, ev := range events {
		if ev == EventSpeechAbort {
			found = true
		}
	}
	if !found {
		t.Fatalf("events = %v, want speech_abort", events)
	}
	if d.Speaking() {
		t.Fatal("detector should be idle after abort")
	}
}

func TestDetector_VoiceResetsSilenceRun(t *testing.T) {
	d := NewDetector(Config{})

	// 14 ticks of silence (1400ms, just under the threshold), one voiced
	// tick, then silence again. The run must restart; no end fires until
	// the second run passes 1500ms.
	levels := []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5}
	for i := 0; i < 14; i++ {
		levels = append(levels, 0)
	}
	levels = append(levels, 0.5)
	for i := 0; i < 14; i++ {
		levels = append(levels, 0)
	}

	events := runSequence(d, levels)
	for tick, ev := range events {
		if ev == EventSpeechEnd || ev == EventSpeechAbort {
			t.Fatalf("unexpected %v at tick %d: silence run was interrupted", ev, tick)
		}
	}
	if !d.Speaking() {
		t.Fatal("detector should still be speaking")
	}
}

func TestDetector_ThresholdIsExclusive(t *testing.T) {
	d := NewDetector(Config{EnergyThreshold: 0.01})

	if ev := d.Observe(0.01, time.Unix(1, 0)); ev != EventNone {
		t.Fatalf("level equal to threshold fired %v, want none", ev)
	}
	if ev := d.Observe(0.011, time.Unix(2, 0)); ev != EventSpeechStart {
		t.Fatalf("level above threshold fired %v, want speech_start", ev)
	}
}

func TestDetector_Reset(t *testing.T) {
	d := NewDetector(Config{})
	d.Observe(0.5, time.Unix(1, 0))
	if !d.Speaking() {
		t.Fatal("expected speaking state")
	}

	d.Reset()
	if d.Speaking() {
		t.Fatal("Reset should clear speaking state")
	}
	if ev := d.Observe(0.5, time.Unix(2, 0)); ev != EventSpeechStart {
		t.Fatalf("after Reset, voice fired %v, want speech_start", ev)
	}
}

func TestDetector_Defaults(t *testing.T) {
	d := NewDetector(Config{})
	if d.cfg.EnergyThreshold != DefaultEnergyThreshold {
		t.Fatalf("threshold = %v, want %v", d.cfg.EnergyThreshold, DefaultEnergyThreshold)
	}
	if d.cfg.SilenceDuration != DefaultSilenceDuration {
		t.Fatalf("silence = %v, want %v", d.cfg.SilenceDuration, DefaultSilenceDuration)
	}
	if d.cfg.MinSpeechDuration != DefaultMinSpeechDuration {
		t.Fatalf("min speech = %v, want %v", d.cfg.MinSpeechDuration, DefaultMinSpeechDuration)
	}
}
