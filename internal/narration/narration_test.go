package narration

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trims whitespace", "  Hello there.  ", "Hello there."},
		{"appends period", "No punctuation", "No punctuation."},
		{"collapses ellipsis", "Wait... what", "Wait. what."},
		{"collapses long ellipsis", "Hmm.....", "Hmm."},
		{"collapses bangs", "Wow!!", "Wow!"},
		{"collapses triple bangs", "Wow!!!", "Wow!"},
		{"collapses questions", "Really??", "Really?"},
		{"keeps question", "Is it?", "Is it?"},
		{"keeps exclamation", "Go!", "Go!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_AlwaysTerminated(t *testing.T) {
	inputs := []string{"a", "a,", "a;", "trailing space ", "quote\"", "ends with ...", "x!?"}
	for _, in := range inputs {
		if got := Normalize(in); !HasTerminal(got) {
			t.Errorf("Normalize(%q) = %q, not sentence-terminated", in, got)
		}
	}
}

func TestSplitPhases_ShortTextIsOnePhase(t *testing.T) {
	got := SplitPhases("Hello there. How are you?", 100)
	if len(got) != 1 || got[0] != "Hello there. How are you?" {
		t.Fatalf("got %q", got)
	}
}

func TestSplitPhases_PacksSentencesGreedily(t *testing.T) {
	text := "One two three. Four five six. Seven eight nine."
	got := SplitPhases(text, 30)
	want := []string{"One two three. Four five six.", "Seven eight nine."}
	if len(got) != len(want) {
		t.Fatalf("got %d phases %q, want %q", len(got), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("phase %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitPhases_SkipsEmptySentences(t *testing.T) {
	got := SplitPhases("First. . ! Second.", 100)
	if len(got) != 1 || got[0] != "First. Second." {
		t.Fatalf("got %q", got)
	}
}

func TestSplitPhases_TerminatesEverySentence(t *testing.T) {
	got := SplitPhases("no ending here", 100)
	if len(got) != 1 || got[0] != "no ending here." {
		t.Fatalf("got %q", got)
	}
}

func TestSplitPhases_WordSplitsOversizedSentence(t *testing.T) {
	long := strings.Repeat("word ", 40) + "end."
	got := SplitPhases(long, 50)
	if len(got) < 2 {
		t.Fatalf("expected word split, got %d phases", len(got))
	}
	for i, p := range got {
		if n := utf8.RuneCountInString(p); n > 50 {
			t.Errorf("phase %d has %d chars, want <= 50", i, n)
		}
	}
	if strings.Join(got, " ") != strings.TrimSpace(long) {
		t.Error("word split lost content")
	}
}

func TestSplitPhases_SentenceBetweenLimitsIsKept(t *testing.T) {
	// 60 chars: over the 50 char budget but under 1.5x, so it stays whole.
	s := strings.Repeat("a", 59) + "."
	got := SplitPhases(s, 50)
	if len(got) != 1 || got[0] != s {
		t.Fatalf("got %q", got)
	}
}

func TestSplitPhases_BoundsAndContent(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog. " +
		"Pack my box with five dozen liquor jugs! " +
		"How vexingly quick daft zebras jump? " +
		"Sphinx of black quartz, judge my vow. " +
		strings.Repeat("really ", 30) + "long sentence."
	const max = 80

	phases := SplitPhases(text, max)
	for i, p := range phases {
		if n := utf8.RuneCountInString(p); n > max {
			t.Errorf("phase %d has %d chars, want <= %d: %q", i, n, max, p)
		}
	}

	gotWords := strings.Fields(strings.Join(phases, " "))
	wantWords := strings.Fields(text)
	if len(gotWords) != len(wantWords) {
		t.Fatalf("word count = %d, want %d", len(gotWords), len(wantWords))
	}
	for i := range wantWords {
		if gotWords[i] != wantWords[i] {
			t.Fatalf("word %d = %q, want %q", i, gotWords[i], wantWords[i])
		}
	}
}

func TestSplitPhases_Empty(t *testing.T) {
	if got := SplitPhases("   ", 100); len(got) != 0 {
		t.Fatalf("got %q, want nothing", got)
	}
}
