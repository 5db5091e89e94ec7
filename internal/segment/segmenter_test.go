package segment

import (
	"strings"
	"testing"
)

func TestSplit_EmptyAndWhitespaceInput(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		offset int
	}{
		{"empty", "", 0},
		{"whitespace only", "   \n\t  ", 0},
		{"offset past end", "hello", 10},
		{"offset into trailing whitespace", "hello   ", 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if segs := Split(tc.text, tc.offset, Micro); len(segs) != 0 {
				t.Errorf("expected no segments, got %d", len(segs))
			}
		})
	}
}

func TestSplit_ShortTextIsOneSegment(t *testing.T) {
	text := "Hello world. This is a test sentence that continues for a while to exceed the micro-chunk size."
	segs := Split(text, 0, Micro)

	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].CharStart != 0 || segs[0].CharEnd != len(text) {
		t.Errorf("expected range [0,%d), got [%d,%d)", len(text), segs[0].CharStart, segs[0].CharEnd)
	}
	if segs[0].Text != text {
		t.Errorf("expected text unchanged, got %q", segs[0].Text)
	}
}

func TestSplit_RoundTrip(t *testing.T) {
	sentence := "The quick brown fox jumps over the lazy dog and keeps on running. "
	texts := []string{
		strings.Repeat(sentence, 40),
		"  leading whitespace. " + strings.Repeat(sentence, 30) + "   \n",
		strings.Repeat("nospacesatallinthisverylongrunofcharacters", 60),
		strings.Repeat("word, another, more, ", 200),
	}
	offsets := []int{0, 7, 133}

	for _, text := range texts {
		for _, off := range offsets {
			if off >= len(text) {
				continue
			}
			for _, g := range []Granularity{Micro, Batch} {
				segs := Split(text, off, g)
				var sb strings.Builder
				prev := off
				for i, s := range segs {
					if s.CharStart != prev {
						t.Fatalf("segment %d: range starts at %d, want %d", i, s.CharStart, prev)
					}
					if s.CharEnd <= s.CharStart {
						t.Fatalf("segment %d: empty or inverted range [%d,%d)", i, s.CharStart, s.CharEnd)
					}
					sb.WriteString(text[s.CharStart:s.CharEnd])
					prev = s.CharEnd
				}
				if sb.String() != text[off:] {
					t.Fatalf("round trip failed for offset %d: got %d bytes, want %d", off, sb.Len(), len(text)-off)
				}
			}
		}
	}
}

func TestSplit_RespectsHardCap(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 100)
	for _, g := range []Granularity{Micro, Batch} {
		for i, s := range Split(text, 0, g) {
			if len(s.Text) > g.MaxChars {
				t.Errorf("segment %d: trimmed length %d exceeds cap %d", i, len(s.Text), g.MaxChars)
			}
		}
	}
}

func TestSplit_PrefersSentenceBoundaries(t *testing.T) {
	text := strings.Repeat("This sentence has exactly enough words to matter here today. ", 30)
	segs := Split(text, 0, Micro)
	if len(segs) < 2 {
		t.Fatalf("expected multiple segments, got %d", len(segs))
	}
	// All but the final segment should end at a sentence boundary.
	for i, s := range segs[:len(segs)-1] {
		if !strings.HasSuffix(s.Text, ".") {
			t.Errorf("segment %d ends mid-sentence: %q", i, s.Text[len(s.Text)-20:])
		}
	}
}

func TestSplit_FallsBackToClauseAndWhitespace(t *testing.T) {
	// No sentence enders at all, only commas.
	clausey := strings.Repeat("one two three four five six seven eight nine ten, ", 40)
	segs := Split(clausey, 0, Micro)
	if len(segs) < 2 {
		t.Fatalf("expected multiple segments, got %d", len(segs))
	}
	for i, s := range segs[:len(segs)-1] {
		if !strings.HasSuffix(s.Text, ",") {
			t.Errorf("segment %d: expected clause cut, got suffix %q", i, s.Text[len(s.Text)-10:])
		}
	}

	// No punctuation at all: cuts must land on whitespace.
	wordy := strings.Repeat("alpha beta gamma delta epsilon zeta eta theta ", 50)
	segs = Split(wordy, 0, Micro)
	if len(segs) < 2 {
		t.Fatalf("expected multiple segments, got %d", len(segs))
	}
	for i, s := range segs {
		if strings.Contains(s.Text, "alph ") || strings.HasSuffix(s.Text, "alph") {
			t.Errorf("segment %d cut mid-word: %q", i, s.Text)
		}
	}
}

func TestSplit_ForceCutWithoutAnyBoundary(t *testing.T) {
	text := strings.Repeat("x", 3000)
	segs := Split(text, 0, Micro)
	if len(segs) < 2 {
		t.Fatalf("expected forced cuts, got %d segments", len(segs))
	}
	for i, s := range segs {
		if len(s.Text) > Micro.MaxChars {
			t.Errorf("segment %d exceeds cap: %d", i, len(s.Text))
		}
	}
}

func TestSplit_MultiScriptSentenceEnders(t *testing.T) {
	text := strings.Repeat("これは日本語の文です。とても長い文章が続きます。", 40)
	segs := Split(text, 0, Micro)
	if len(segs) < 2 {
		t.Fatalf("expected multiple segments, got %d", len(segs))
	}
	for i, s := range segs[:len(segs)-1] {
		if !strings.HasSuffix(s.Text, "。") {
			t.Errorf("segment %d: expected CJK sentence cut, got %q", i, s.Text[len(s.Text)-9:])
		}
	}
	// Ranges must never split a rune.
	for i, s := range segs {
		if !strings.HasPrefix(text[s.CharStart:], string([]rune(text[s.CharStart:])[0:1])) {
			t.Errorf("segment %d starts mid-rune", i)
		}
	}
}

func TestSplit_WordCount(t *testing.T) {
	segs := Split("one two three. four five", 0, Micro)
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].WordCount != 5 {
		t.Errorf("expected word count 5, got %d", segs[0].WordCount)
	}
}

func TestSplit_StartOffsetMidPage(t *testing.T) {
	text := "First sentence here. Second sentence follows after it."
	off := strings.Index(text, "Second")
	segs := Split(text, off, Micro)
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].CharStart != off || segs[0].CharEnd != len(text) {
		t.Errorf("expected range [%d,%d), got [%d,%d)", off, len(text), segs[0].CharStart, segs[0].CharEnd)
	}
	if segs[0].Text != "Second sentence follows after it." {
		t.Errorf("unexpected text: %q", segs[0].Text)
	}
}
