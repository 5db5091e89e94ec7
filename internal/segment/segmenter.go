package segment

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Segment is a bounded slice of page text to be spoken as one unit.
// CharStart/CharEnd are byte offsets into the source page text. The range
// spans the untrimmed slice; Text has surrounding whitespace removed.
type Segment struct {
	Text      string
	CharStart int
	CharEnd   int
	WordCount int
}

// Granularity controls target segment size.
type Granularity struct {
	TargetWords int // Soft word target; 0 disables word counting.
	TargetChars int // Start looking for a sentence end at/after this many bytes.
	MaxChars    int // Hard cap on the raw slice length.
	MinChars    int // Split points below this floor fall through to a weaker rule.
}

// Micro is sized for low-latency streaming: roughly a hundred words per
// segment so the first audio arrives quickly.
var Micro = Granularity{
	TargetWords: 100,
	TargetChars: 480,
	MaxChars:    700,
	MinChars:    200,
}

// Batch is sized for full-document synthesis where fewer, larger
// synthesis calls matter more than time-to-first-audio.
var Batch = Granularity{
	TargetChars: 2400,
	MaxChars:    2600,
	MinChars:    500,
}

// Sentence-ending punctuation across Latin, CJK, Arabic and Devanagari scripts.
const sentenceEnders = ".!?。！？؟।…"

// Clause punctuation used when no sentence end is available.
const clauseMarks = ",;:、，；،"

// Split divides pageText[startOffset:] into ordered segments. Offsets are
// contiguous and strictly increasing: concatenating the underlying slices
// reconstructs pageText[startOffset:] exactly. Whitespace-only input yields
// no segments.
func Split(pageText string, startOffset int, g Granularity) []Segment {
	if startOffset < 0 {
		startOffset = 0
	}
	if startOffset >= len(pageText) {
		return nil
	}
	rest := pageText[startOffset:]
	if strings.TrimSpace(rest) == "" {
		return nil
	}

	var segs []Segment
	pos := 0
	for pos < len(rest) {
		if strings.TrimSpace(rest[pos:]) == "" {
			// Trailing whitespace belongs to the last segment's range.
			segs[len(segs)-1].CharEnd = startOffset + len(rest)
			return segs
		}

		end := cutPoint(rest, pos, g)
		// Absorb whitespace after the cut so the next segment starts on text.
		for end < len(rest) {
			r, size := utf8.DecodeRuneInString(rest[end:])
			if !unicode.IsSpace(r) {
				break
			}
			end += size
		}

		text := strings.TrimSpace(rest[pos:end])
		segs = append(segs, Segment{
			Text:      text,
			CharStart: startOffset + pos,
			CharEnd:   startOffset + end,
			WordCount: len(strings.Fields(text)),
		})
		pos = end
	}
	return segs
}

// cutPoint returns the exclusive end of the raw slice starting at pos,
// trying split rules from strongest to weakest: sentence end, clause mark,
// whitespace, hard cut.
func cutPoint(rest string, pos int, g Granularity) int {
	limit := runeLimit(rest, pos, g.MaxChars)
	if limit >= len(rest) {
		return len(rest)
	}
	floor := pos + g.MinChars
	target := scanTarget(rest, pos, g)

	// Rule 1: first sentence end at/after the target, else the last one in
	// the window if it clears the floor.
	if i := firstRune(rest, target, limit, isSentenceEnd); i >= floor {
		return i
	}
	if i := lastRune(rest, pos, limit, isSentenceEnd); i >= floor {
		return i
	}

	// Rule 2: last clause mark in the window.
	if i := lastRune(rest, pos, limit, isClauseMark); i >= floor {
		return i
	}

	// Rule 3: last whitespace in the window.
	if i := lastRuneAt(rest, pos, limit, unicode.IsSpace); i >= floor {
		return i
	}

	// Rule 4: hard cut at the cap.
	return limit
}

// scanTarget finds the position where either the word target or the byte
// target is reached, whichever comes first.
func scanTarget(rest string, pos int, g Granularity) int {
	byteTarget := pos + g.TargetChars
	if g.TargetWords <= 0 {
		return byteTarget
	}
	words := 0
	inWord := false
	for i, r := range rest[pos:] {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			inWord = true
			words++
			if words > g.TargetWords {
				return pos + i
			}
		}
		if pos+i >= byteTarget {
			break
		}
	}
	return byteTarget
}

// runeLimit advances from pos by at most maxBytes without splitting a rune.
func runeLimit(s string, pos, maxBytes int) int {
	limit := pos + maxBytes
	if limit >= len(s) {
		return len(s)
	}
	// Back up to the start of the rune straddling the limit.
	for limit > pos && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return limit
}

// firstRune returns the end offset (exclusive) of the first rune in
// s[from:to] matching pred, or -1.
func firstRune(s string, from, to int, pred func(rune) bool) int {
	if from < 0 {
		from = 0
	}
	if from >= to {
		return -1
	}
	for i, r := range s[from:to] {
		if pred(r) {
			return from + i + utf8.RuneLen(r)
		}
	}
	return -1
}

// lastRune returns the end offset (exclusive) of the last rune in
// s[from:to] matching pred, or -1.
func lastRune(s string, from, to int, pred func(rune) bool) int {
	best := -1
	for i, r := range s[from:to] {
		if pred(r) {
			best = from + i + utf8.RuneLen(r)
		}
	}
	return best
}

// lastRuneAt returns the start offset of the last rune in s[from:to]
// matching pred, or -1. Used for whitespace cuts, where the split lands
// before the matched rune rather than after it.
func lastRuneAt(s string, from, to int, pred func(rune) bool) int {
	best := -1
	for i, r := range s[from:to] {
		if pred(r) {
			best = from + i
		}
	}
	return best
}

func isSentenceEnd(r rune) bool { return strings.ContainsRune(sentenceEnders, r) }

func isClauseMark(r rune) bool { return strings.ContainsRune(clauseMarks, r) }
