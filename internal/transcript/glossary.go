package transcript

import (
	"strings"
)

// GlossaryCorrector is the phonetic [Corrector] implementation. It scans the
// transcript with sliding n-gram windows so that multi-word glossary terms
// ("New York", "Dr. Moreau") match spoken runs of tokens, preferring the
// longest window that matches.
//
// GlossaryCorrector is safe for concurrent use.
type GlossaryCorrector struct {
	matcher Matcher
}

var _ Corrector = (*GlossaryCorrector)(nil)

// NewGlossaryCorrector returns a corrector backed by the given matcher.
func NewGlossaryCorrector(m Matcher) *GlossaryCorrector {
	return &GlossaryCorrector{matcher: m}
}

// Correct implements [Corrector].
//
// The algorithm:
//  1. Tokenise the text into whitespace-separated words.
//  2. Determine the maximum number of words in any glossary term.
//  3. At each position, try windows from that maximum down to 1 token.
//     The longest matching window wins so multi-word terms take precedence
//     over partial single-word matches.
//  4. Emit matched terms (or unmatched tokens) and advance the cursor by
//     the number of tokens consumed.
func (g *GlossaryCorrector) Correct(text string, terms []string) (string, []Correction) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 || len(terms) == 0 {
		return text, nil
	}

	maxTermWords := maxWordCount(terms)

	var output []string
	var corrections []Correction

	i := 0
	for i < len(tokens) {
		maxN := maxTermWords
		if i+maxN > len(tokens) {
			maxN = len(tokens) - i
		}

		matched := false
		for n := maxN; n >= 1; n-- {
			window := strings.Join(tokens[i:i+n], " ")
			term, conf, ok := g.matcher.Match(window, terms)
			if !ok {
				continue
			}

			// The window may already be the canonical spelling.
			if strings.EqualFold(window, term) {
				break
			}

			output = append(output, strings.Fields(term)...)
			corrections = append(corrections, Correction{
				Original:   window,
				Corrected:  term,
				Confidence: conf,
			})
			i += n
			matched = true
			break
		}

		if !matched {
			output = append(output, tokens[i])
			i++
		}
	}

	return strings.Join(output, " "), corrections
}

// maxWordCount returns the maximum number of whitespace-separated words in
// any term. Returns 1 when terms is empty.
func maxWordCount(terms []string) int {
	max := 1
	for _, t := range terms {
		if n := len(strings.Fields(t)); n > max {
			max = n
		}
	}
	return max
}
