// Package html extracts readable text from HTML documents. Headings become
// markdown ATX headings so chunks carry their section titles.
package html

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.DocumentParser = (*Normaliser)(nil)

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// ExtractText parses the document and renders its visible text.
func (n *Normaliser) ExtractText(ctx context.Context, raw []byte, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !normalisers.Accepts(n, mimeType) {
		return "", fmt.Errorf("%w: html cannot handle %q", domain.ErrUnsupportedFormat, mimeType)
	}

	text, err := normalisers.DecodeText(raw)
	if err != nil {
		return "", err
	}

	root, err := html.Parse(strings.NewReader(text))
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrParse, err)
	}

	var r renderer
	r.walk(root)
	return normalisers.CollapseBlankLines(r.buf.String()), nil
}

// skipped elements never contribute text.
var skipped = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Svg:      true,
	atom.Template: true,
	atom.Iframe:   true,
}

// block elements start and end on their own line.
var block = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.Header: true, atom.Footer: true, atom.Nav: true, atom.Main: true,
	atom.Aside: true, atom.Blockquote: true, atom.Table: true, atom.Tr: true,
	atom.Ul: true, atom.Ol: true, atom.Dl: true, atom.Dt: true, atom.Dd: true,
	atom.Figure: true, atom.Figcaption: true, atom.Form: true, atom.Hr: true,
}

var headingLevel = map[atom.Atom]int{
	atom.H1: 1, atom.H2: 2, atom.H3: 3, atom.H4: 4, atom.H5: 5, atom.H6: 6,
}

type renderer struct {
	buf bytes.Buffer
	pre int
}

func (r *renderer) newline() {
	if r.buf.Len() > 0 && !bytes.HasSuffix(r.buf.Bytes(), []byte("\n")) {
		r.buf.WriteByte('\n')
	}
}

func (r *renderer) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		r.text(n.Data)
		return
	case html.ElementNode:
		if skipped[n.DataAtom] {
			return
		}
	case html.CommentNode, html.DoctypeNode:
		return
	}

	if level, ok := headingLevel[n.DataAtom]; ok {
		title := strings.Join(strings.Fields(textContent(n)), " ")
		if title != "" {
			r.newline()
			r.buf.WriteString("\n" + strings.Repeat("#", level) + " " + title + "\n\n")
		}
		return
	}

	switch n.DataAtom {
	case atom.Br:
		r.buf.WriteByte('\n')
		return
	case atom.Li:
		r.newline()
		r.buf.WriteString("- ")
	case atom.Pre:
		r.newline()
		r.buf.WriteString("```\n")
		r.pre++
	case atom.Td, atom.Th:
		if hasPrevElement(n) {
			r.buf.WriteString(" | ")
		}
	default:
		if block[n.DataAtom] {
			r.newline()
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		r.walk(c)
	}

	switch {
	case n.DataAtom == atom.Pre:
		r.pre--
		r.newline()
		r.buf.WriteString("```\n")
	case n.DataAtom == atom.Li, block[n.DataAtom]:
		r.newline()
		if n.DataAtom == atom.P {
			r.buf.WriteByte('\n')
		}
	}
}

func (r *renderer) text(s string) {
	if r.pre > 0 {
		r.buf.WriteString(s)
		return
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		if s != "" && r.buf.Len() > 0 && !endsWithSpace(r.buf.Bytes()) {
			r.buf.WriteByte(' ')
		}
		return
	}
	if startsWithSpace(s) && r.buf.Len() > 0 && !endsWithSpace(r.buf.Bytes()) {
		r.buf.WriteByte(' ')
	}
	r.buf.WriteString(strings.Join(fields, " "))
	if endsWithSpace([]byte(s)) {
		r.buf.WriteByte(' ')
	}
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && skipped[c.DataAtom] {
			continue
		}
		sb.WriteString(textContent(c))
	}
	return sb.String()
}

func hasPrevElement(n *html.Node) bool {
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return true
		}
	}
	return false
}

func startsWithSpace(s string) bool {
	return s != "" && strings.ContainsRune(" \t\n\r\f", rune(s[0]))
}

func endsWithSpace(b []byte) bool {
	return len(b) > 0 && bytes.ContainsRune([]byte(" \t\n\r\f"), rune(b[len(b)-1]))
}
