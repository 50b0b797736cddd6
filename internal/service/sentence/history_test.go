package sentence

import (
	"fmt"
	"testing"
)

func TestHistory_EvictsOldestFirst(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 4; i++ {
		h.Add(fmt.Sprintf("Sentence %d.", i))
	}

	if h.Len() != 3 {
		t.Errorf("expected 3 entries, got %d", h.Len())
	}
	if h.Contains("Sentence 0.") {
		t.Error("expected oldest entry evicted")
	}
	for i := 1; i < 4; i++ {
		if !h.Contains(fmt.Sprintf("Sentence %d.", i)) {
			t.Errorf("expected Sentence %d. retained", i)
		}
	}
}

func TestHistory_KeyIsNormalized(t *testing.T) {
	h := NewHistory(5)
	h.Add("The  Cat sat.")

	if !h.Contains("the cat   sat.") {
		t.Error("expected case and whitespace to be ignored")
	}
	h.Add("THE CAT SAT.")
	if h.Len() != 1 {
		t.Errorf("expected duplicate key to be ignored, got %d entries", h.Len())
	}
}

func TestHistory_DefaultLimit(t *testing.T) {
	if NewHistory(0).Limit() != DefaultHistoryLimit {
		t.Errorf("expected default limit %d", DefaultHistoryLimit)
	}
}

func TestHasTerminalPunctuation(t *testing.T) {
	tests := map[string]bool{
		"Hello there.":        true,
		"Really?":             true,
		"Stop!":               true,
		`He said "go."`:       true,
		"She asked (why?)":    true,
		"It’s ‘fine.’":        true,
		"No punctuation":      false,
		"Ends with comma,":    false,
		"":                    false,
		`"`:                   false,
		"Trailing space.   ":  true,
		"Ellipsis is fine...": true,
		"Semicolon is not;":   false,
	}
	for in, want := range tests {
		if got := HasTerminalPunctuation(in); got != want {
			t.Errorf("HasTerminalPunctuation(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseLines(t *testing.T) {
	text := "1. First one.\n\n2) Second one!\n- Third one?\n  Fourth one.  \n"
	got := ParseLines(text)
	want := []string{"First one.", "Second one!", "Third one?", "Fourth one."}

	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
