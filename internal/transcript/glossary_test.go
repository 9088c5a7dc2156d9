package transcript

import (
	"strings"
	"testing"
)

// stubMatcher matches by a fixed lookup table so corrector behavior can be
// tested independently of phonetic scoring.
type stubMatcher struct {
	table map[string]string
}

func (s *stubMatcher) Match(word string, terms []string) (string, float64, bool) {
	if term, ok := s.table[strings.ToLower(word)]; ok {
		return term, 0.8, true
	}
	return word, 0, false
}

func TestGlossaryCorrectorSubstitutesTerms(t *testing.T) {
	t.Parallel()

	c := NewGlossaryCorrector(&stubMatcher{table: map[string]string{
		"bridge it": "Bridgit",
	}})

	text, corrections := c.Correct("I heard bridge it works well", []string{"Bridgit", "New York"})
	if text != "I heard Bridgit works well" {
		t.Errorf("Correct() = %q, want substituted text", text)
	}
	if len(corrections) != 1 {
		t.Fatalf("got %d corrections, want 1", len(corrections))
	}
	if corrections[0].Original != "bridge it" || corrections[0].Corrected != "Bridgit" {
		t.Errorf("correction = %+v, want bridge it -> Bridgit", corrections[0])
	}
}

func TestGlossaryCorrectorPrefersLongestWindow(t *testing.T) {
	t.Parallel()

	// Both the two-word window and its first word alone match something;
	// the longer window must win.
	c := NewGlossaryCorrector(&stubMatcher{table: map[string]string{
		"new yark":      "New York",
		"new":           "New York",
		"san fransisco": "San Francisco",
	}})

	text, corrections := c.Correct("from new yark to san fransisco", []string{"New York", "San Francisco"})
	if text != "from New York to San Francisco" {
		t.Errorf("Correct() = %q, want both terms substituted", text)
	}
	if len(corrections) != 2 {
		t.Fatalf("got %d corrections, want 2", len(corrections))
	}
	if corrections[0].Original != "new yark" {
		t.Errorf("first correction original = %q, want the full two-word window", corrections[0].Original)
	}
}

func TestGlossaryCorrectorLeavesCanonicalSpellingAlone(t *testing.T) {
	t.Parallel()

	// The matcher recognizes the word, but it is already spelled correctly.
	c := NewGlossaryCorrector(&stubMatcher{table: map[string]string{
		"bridgit": "Bridgit",
	}})

	text, corrections := c.Correct("Bridgit is ready", []string{"Bridgit"})
	if text != "Bridgit is ready" {
		t.Errorf("Correct() = %q, want text unchanged", text)
	}
	if len(corrections) != 0 {
		t.Errorf("got %d corrections, want 0 for already-canonical text", len(corrections))
	}
}

func TestGlossaryCorrectorNoTerms(t *testing.T) {
	t.Parallel()

	c := NewGlossaryCorrector(&stubMatcher{})

	text, corrections := c.Correct("nothing to do here", nil)
	if text != "nothing to do here" {
		t.Errorf("Correct() = %q, want input unchanged", text)
	}
	if corrections != nil {
		t.Errorf("corrections = %v, want nil", corrections)
	}
}

func TestGlossaryCorrectorEmptyText(t *testing.T) {
	t.Parallel()

	c := NewGlossaryCorrector(&stubMatcher{})

	text, corrections := c.Correct("", []string{"Bridgit"})
	if text != "" {
		t.Errorf("Correct() = %q, want empty", text)
	}
	if corrections != nil {
		t.Errorf("corrections = %v, want nil", corrections)
	}
}
