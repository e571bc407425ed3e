package classify

import (
	"strings"
	"testing"
)

func TestTruncateAtSentence(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want string
	}{
		{"short text untouched", "Hello there.", 100, "Hello there."},
		{"cuts after last sentence", "First sentence here. Second one! Third is cut", 36, "First sentence here. Second one!"},
		{"ignores abbreviation dot without space", "Visit acme.com today for more info please", 30, "Visit acme.com today for more"},
		{"falls back to whitespace", "one two three four five six seven", 16, "one two three"},
		{"hard cut without whitespace", "abcdefghijklmnopqrstuvwxyz", 10, "abcdefghij"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateAtSentence(tt.text, tt.max); got != tt.want {
				t.Errorf("TruncateAtSentence() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	text := strings.Repeat("é", 20)
	got := TruncateAtSentence(text, 11)
	if !strings.HasPrefix(text, got) || len(got) != 10 {
		t.Errorf("cut inside a rune: %q (%d bytes)", got, len(got))
	}
}

func TestTruncateNeverExceedsBudget(t *testing.T) {
	text := strings.Repeat("Sentence number one is here. ", 2000)
	got := TruncateAtSentence(text, DefaultTokenBudget*charsPerToken)
	if len(got) > DefaultTokenBudget*charsPerToken {
		t.Fatalf("len = %d", len(got))
	}
	if !strings.HasSuffix(got, ".") {
		t.Errorf("expected sentence boundary, got suffix %q", got[len(got)-10:])
	}
}
