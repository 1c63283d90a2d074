package stability

import "strings"

// StablePrefix returns the longest run of leading words of the most recent
// observation that has stayed unchanged across the trailing threshold observations.
//
// history holds every interim observation of the current utterance, oldest first,
// with the current observation last. carriedContext is the translated prefix
// already committed for this utterance: when it is non-empty and fewer than
// threshold observations exist, the window is relaxed to a single observation and
// the current observation counts as stable in full.
func StablePrefix(history []string, threshold int, carriedContext string) []string {
	if len(history) == 0 {
		return nil
	}
	if threshold < 1 {
		threshold = 1
	}

	words := strings.Fields(history[len(history)-1])
	if len(words) == 0 {
		return nil
	}

	if len(history) < threshold {
		if carriedContext != "" {
			return words
		}
		return nil
	}

	window := make([][]string, 0, threshold)
	for _, obs := range history[len(history)-threshold:] {
		window = append(window, strings.Fields(obs))
	}

	stable := 0
	for i, word := range words {
		if !agreesAt(window, i, word) {
			break
		}
		stable = i + 1
	}

	return words[:stable]
}

// agreesAt reports whether every observation in the window has word at index i.
func agreesAt(window [][]string, i int, word string) bool {
	for _, obs := range window {
		if len(obs) <= i || obs[i] != word {
			return false
		}
	}
	return true
}

// Text is StablePrefix joined back into a single space separated string.
func Text(history []string, threshold int, carriedContext string) string {
	return strings.Join(StablePrefix(history, threshold, carriedContext), " ")
}
