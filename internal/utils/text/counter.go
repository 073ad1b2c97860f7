// Package text provides utilities for text processing and analysis.
// This package includes reusable functions for character counting and
// truncation that behave correctly for CJK content, where a character is a
// rune rather than a byte.
package text

// CountRunes counts the number of Unicode characters (runes) in the given
// text. This correctly handles multi-byte characters including Chinese,
// Japanese and emoji by counting runes instead of bytes.
func CountRunes(text string) int {
	return len([]rune(text))
}

// TruncateRunes cuts text to at most limit runes.
func TruncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

// Sentence separators recognized by TruncateAtSentence; all rank equally.
var sentenceSeparators = []rune{'。', '！', '？', '；', '.', '!', '?', ';'}

// TruncateAtSentence cuts text to at most limit runes, preferring to end at
// the last sentence separator inside the window when one lands in the second
// half of it. The separator is kept.
func TruncateAtSentence(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	window := runes[:limit]
	best := -1
	for i, r := range window {
		for _, sep := range sentenceSeparators {
			if r == sep {
				best = i
				break
			}
		}
	}
	if best >= limit/2 {
		return string(window[:best+1])
	}
	return string(window)
}
