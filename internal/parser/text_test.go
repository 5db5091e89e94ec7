package parser

import (
	"strings"
	"testing"
)

func TestTextParser_Paragraphs(t *testing.T) {
	input := "First paragraph line one.\nLine two.\n\n\nSecond paragraph.\n"
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(input), "notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "notes" {
		t.Errorf("expected title %q, got %q", "notes", doc.Title)
	}
	want := "First paragraph line one.\nLine two.\n\nSecond paragraph."
	if doc.Text != want {
		t.Errorf("expected text %q, got %q", want, doc.Text)
	}
	if len(doc.Pages) != 0 {
		t.Errorf("plain text has no native pages, got %d", len(doc.Pages))
	}
}

func TestTextParser_Empty(t *testing.T) {
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(""), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Text != "" {
		t.Errorf("expected empty text, got %q", doc.Text)
	}
}

func TestForFile(t *testing.T) {
	tests := []struct {
		filename string
		wantErr  bool
	}{
		{"doc.txt", false},
		{"doc.md", false},
		{"doc.markdown", false},
		{"doc.html", false},
		{"doc.htm", false},
		{"doc.pdf", false},
		{"doc.docx", false},
		{"DOC.TXT", false},
		{"doc.csv", true},
		{"doc.exe", true},
		{"doc", true},
	}
	for _, tc := range tests {
		_, err := ForFile(tc.filename)
		if (err != nil) != tc.wantErr {
			t.Errorf("ForFile(%q) error = %v, wantErr %v", tc.filename, err, tc.wantErr)
		}
	}
}

func TestIsSupportedExtension(t *testing.T) {
	if !IsSupportedExtension("book.pdf") {
		t.Error("expected .pdf to be supported")
	}
	if IsSupportedExtension("data.csv") {
		t.Error("expected .csv to be unsupported")
	}
}
