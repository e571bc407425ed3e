package classify

import (
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultTokenBudget is the body budget sent to the model.
	DefaultTokenBudget = 6000
	charsPerToken      = 4
)

// TruncateAtSentence caps text at maxBytes, preferring the end of the last whole
// sentence. When no sentence ends in the back half of the window it cuts at the
// last whitespace, and only cuts mid-word when the window has no whitespace at all.
func TruncateAtSentence(text string, maxBytes int) string {
	if maxBytes <= 0 || len(text) <= maxBytes {
		return text
	}

	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	window := text[:cut]

	for i := len(window) - 1; i >= len(window)/2; i-- {
		switch window[i] {
		case '.', '!', '?':
			if i+1 == len(text) || isSpaceByte(text[i+1]) {
				return window[:i+1]
			}
		}
	}

	lastSpace := -1
	for i, r := range window {
		if unicode.IsSpace(r) {
			lastSpace = i
		}
	}
	if lastSpace > 0 {
		return trimRightSpace(window[:lastSpace])
	}
	return window
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

func trimRightSpace(s string) string {
	for len(s) > 0 && isSpaceByte(s[len(s)-1]) {
		s = s[:len(s)-1]
	}
	return s
}
