// ABOUTME: Flattens Markdown replies into plain text for the watch display
// ABOUTME: Parses with goldmark and keeps only the readable text of each node

package render

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var (
	parser     = goldmark.New().Parser()
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// PlainText strips Markdown syntax from md. Paragraphs and headings are
// separated by a blank line, list items get a "- " prefix, and code blocks
// keep their contents.
func PlainText(md string) string {
	src := []byte(md)
	doc := parser.Parse(text.NewReader(src))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				b.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					b.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				b.Write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				b.Write(node.Label(src))
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					b.Write(seg.Value(src))
				}
				endBlock(&b)
				return ast.WalkSkipChildren, nil
			}
		case *ast.ListItem:
			if entering {
				b.WriteString("- ")
			} else {
				endLine(&b)
			}
		case *ast.Paragraph, *ast.Heading, *ast.Blockquote:
			if !entering {
				// Tight list items hold their text in a TextBlock, but a loose
				// list's paragraphs should not add blank lines between items.
				if _, inList := n.Parent().(*ast.ListItem); inList {
					endLine(&b)
				} else {
					endBlock(&b)
				}
			}
		case *ast.TextBlock:
			if !entering {
				endLine(&b)
			}
		case *ast.ThematicBreak, *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	out := blankLines.ReplaceAllString(b.String(), "\n\n")
	return strings.TrimSpace(out)
}

func endLine(b *strings.Builder) {
	if s := b.String(); s != "" && !strings.HasSuffix(s, "\n") {
		b.WriteByte('\n')
	}
}

func endBlock(b *strings.Builder) {
	endLine(b)
	if s := b.String(); s != "" && !strings.HasSuffix(s, "\n\n") {
		b.WriteByte('\n')
	}
}
