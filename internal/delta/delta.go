// Package delta extracts the newly appeared trailing words of a translation.
//
// The computation assumes translations grow monotonically: a translation of a
// longer source starts with the words of the translation of its prefix. It is a
// word-count heuristic, not an alignment. Backends that reorder or rewrite earlier
// words (common for language pairs with different word order) will produce
// deltas that repeat or skip words; the final transcript reconciliation bounds
// the damage to the current utterance.
package delta

import "strings"

// StripQuotes removes one pair of double quotes wrapping the whole text.
func StripQuotes(text string) string {
	text = strings.TrimSpace(text)
	if len(text) >= 2 && strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) {
		return strings.TrimSpace(text[1 : len(text)-1])
	}
	return text
}

// Compute returns the words of full beyond the word count of previous.
func Compute(previous, full string) []string {
	prev := strings.Fields(StripQuotes(previous))
	words := strings.Fields(StripQuotes(full))
	if len(words) <= len(prev) {
		return nil
	}
	return words[len(prev):]
}
