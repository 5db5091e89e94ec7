package parser

import (
	"strings"
	"unicode"

	"github.com/jfowler/readaloud/internal/segment"
)

// CleanText normalizes extracted text before pagination: it rejoins words
// hyphenated across line breaks, strips control characters, and collapses
// runs of whitespace. Paragraph breaks (blank lines) are preserved so
// Paginate can cut at paragraph boundaries.
func CleanText(text string) string {
	// Rejoin "exam-\nple" into "example". Only a lowercase continuation
	// counts; "end-\nOf-list" style constructs keep their hyphen.
	var b strings.Builder
	b.Grow(len(text))
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '-' && i+1 < len(runes) && (runes[i+1] == '\n' || runes[i+1] == '\r') {
			j := i + 1
			for j < len(runes) && (runes[j] == '\n' || runes[j] == '\r' || runes[j] == ' ' || runes[j] == '\t') {
				j++
			}
			if j < len(runes) && unicode.IsLower(runes[j]) {
				i = j - 1
				continue
			}
		}
		if r != '\n' && r != '\t' && unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}

	paragraphs := splitParagraphs(b.String())
	for i, p := range paragraphs {
		paragraphs[i] = strings.Join(strings.Fields(p), " ")
	}
	return strings.Join(paragraphs, "\n\n")
}

// Paginate cuts text into pages of roughly targetChars each, preferring
// paragraph boundaries. A single paragraph longer than the page budget is
// split at sentence boundaries instead. Used when a parser yields no pages
// of its own.
func Paginate(text string, targetChars int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if targetChars <= 0 {
		return []string{text}
	}

	var pages []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			pages = append(pages, cur.String())
			cur.Reset()
		}
	}

	for _, para := range splitParagraphs(text) {
		if para == "" {
			continue
		}
		if len(para) > targetChars+targetChars/2 {
			flush()
			for _, seg := range segment.Split(para, 0, paginateGranularity(targetChars)) {
				pages = append(pages, strings.TrimSpace(seg.Text))
			}
			continue
		}
		if cur.Len() > 0 && cur.Len()+2+len(para) > targetChars {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(para)
	}
	flush()
	return pages
}

func paginateGranularity(targetChars int) segment.Granularity {
	return segment.Granularity{
		TargetChars: targetChars,
		MaxChars:    targetChars + targetChars/2,
		MinChars:    targetChars / 4,
	}
}

// splitParagraphs groups lines into paragraphs separated by blank lines.
func splitParagraphs(text string) []string {
	var out []string
	var cur []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			if len(cur) > 0 {
				out = append(out, strings.Join(cur, "\n"))
				cur = nil
			}
			continue
		}
		cur = append(cur, line)
	}
	if len(cur) > 0 {
		out = append(out, strings.Join(cur, "\n"))
	}
	return out
}
