package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. Headings and body
// blocks are flattened into linear reading order.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	reader := text.NewReader(src)
	doc := md.Parser().Parse(reader)

	title := titleFromFilename(filename)
	var blocks []string

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			heading := strings.TrimSpace(string(node.Text(src)))
			if heading == "" {
				continue
			}
			// The first top-level heading doubles as the document title.
			if node.Level == 1 && title == titleFromFilename(filename) {
				title = heading
			}
			// A period makes the synthesizer pause after the heading.
			if !strings.ContainsAny(heading[len(heading)-1:], ".!?:") {
				heading += "."
			}
			blocks = append(blocks, heading)
		default:
			if t := extractText(n, src); t != "" {
				blocks = append(blocks, t)
			}
		}
	}

	return &Document{
		Title: title,
		Text:  strings.Join(blocks, "\n\n"),
	}, nil
}

// extractText gets the text content of a goldmark AST node.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	// Also handle inline children.
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		} else {
			buf.WriteString(extractText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
