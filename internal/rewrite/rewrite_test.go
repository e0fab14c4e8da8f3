package rewrite

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestBoundTextShortInputUnchanged(t *testing.T) {
	in := "A short article body."
	if got := boundText(in); got != in {
		t.Errorf("boundText changed short input: %q", got)
	}
}

func TestBoundTextCutsOnSentenceBoundary(t *testing.T) {
	sentence := "Markets moved sideways during the session as traders waited for the filing. "
	long := strings.Repeat(sentence, 100)

	got := boundText(long)
	if utf8.RuneCountInString(got) > maxPromptChars {
		t.Errorf("bounded text is %d runes, want <= %d", utf8.RuneCountInString(got), maxPromptChars)
	}
	if !strings.HasSuffix(got, ".") {
		t.Errorf("bounded text does not end on a sentence: %q", got[len(got)-40:])
	}
}

func TestBoundTextStripsCarriageReturns(t *testing.T) {
	if got := boundText("line one\r\nline two"); strings.Contains(got, "\r") {
		t.Errorf("carriage returns survived: %q", got)
	}
}
