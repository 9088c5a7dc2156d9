// Package transcript corrects speech-to-text output against a session
// glossary before the text reaches translation.
//
// Proper nouns are the words STT providers mishear most, and they are also
// the words machine translation must carry through verbatim. A session
// glossary lists the names, places, and product terms the speakers care
// about; the [Corrector] phonetically aligns transcribed words against that
// list and substitutes the canonical spelling wherever the pronunciation
// matches (e.g. "bridge it" becomes "Bridgit").
//
// Each [Correction] records the substitution and its confidence so callers
// can audit or display what changed.
//
// Implementations must be safe for concurrent use.
package transcript

// Correction captures a single substitution made against the glossary.
type Correction struct {
	// Original is the text as produced by the STT provider.
	Original string

	// Corrected is the glossary term that replaced it.
	Corrected string

	// Confidence is the similarity score behind the substitution (0.0 to 1.0).
	Confidence float64
}

// Corrector rewrites a transcript using a session glossary.
//
// Implementations must be safe for concurrent use.
type Corrector interface {
	// Correct returns text with glossary terms substituted for their
	// misheard forms, plus an itemised record of every substitution.
	// When nothing matches, the returned text equals the input and the
	// slice is empty.
	//
	// terms is the session glossary. Multi-word terms are supported.
	Correct(text string, terms []string) (string, []Correction)
}

// Matcher resolves a word or short phrase to a glossary term based on
// pronunciation similarity. It is designed for real-time use: no network
// calls, no model round-trips.
//
// Implementations must be safe for concurrent use.
type Matcher interface {
	// Match attempts to find the term from terms most phonetically similar
	// to word.
	//
	// Return values:
	//   corrected  — the best-matching term.
	//   confidence — similarity score in [0.0, 1.0].
	//   matched    — true when a sufficiently similar term was found.
	//
	// When matched is false, corrected must equal word unchanged and
	// confidence must be 0.
	Match(word string, terms []string) (corrected string, confidence float64, matched bool)
}
