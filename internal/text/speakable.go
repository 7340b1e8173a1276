// Package text turns Markdown into plain text worth reading aloud.
package text

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

// Speakable strips Markdown syntax from src. Code and HTML blocks are
// dropped, link targets are dropped but their text kept, and headings,
// paragraphs and list items end with a sentence break so the engine pauses.
func Speakable(src string) string {
	source := []byte(src)
	doc := goldmark.New().Parser().Parse(gmtext.NewReader(source))

	var b bytes.Buffer
	walk(doc, source, &b)
	return strings.Join(strings.Fields(b.String()), " ")
}

// IsMarkdownFile reports whether a file name has a Markdown extension.
func IsMarkdownFile(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range []string{".md", ".markdown", ".mdown", ".mkd", ".mkdn"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func walk(node ast.Node, source []byte, b *bytes.Buffer) {
	switch n := node.(type) {
	case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock, *ast.RawHTML:
		return

	case *ast.Text:
		b.Write(n.Segment.Value(source))
		if n.SoftLineBreak() || n.HardLineBreak() {
			b.WriteByte(' ')
		}
		return

	case *ast.String:
		b.Write(n.Value)
		return

	case *ast.Image:
		// Alt text only; the URL is noise when spoken.
		walkChildren(n, source, b)
		return

	case *ast.Heading, *ast.Paragraph, *ast.ListItem:
		walkChildren(n, source, b)
		endSentence(b)
		return

	case *ast.ThematicBreak:
		endSentence(b)
		return
	}

	walkChildren(node, source, b)
}

func walkChildren(node ast.Node, source []byte, b *bytes.Buffer) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		walk(c, source, b)
	}
}

// endSentence adds a period unless the text already ends a sentence.
func endSentence(b *bytes.Buffer) {
	s := bytes.TrimRight(b.Bytes(), " \t\n")
	if len(s) == 0 {
		return
	}
	b.Truncate(len(s))
	switch s[len(s)-1] {
	case '.', '!', '?', ':', ';':
		b.WriteByte(' ')
	default:
		b.WriteString(". ")
	}
}
