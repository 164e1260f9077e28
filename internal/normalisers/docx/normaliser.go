// Package docx extracts text from Office Open XML word processing documents.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.DocumentParser = (*Normaliser)(nil)

// MIMEType is the DOCX media type.
const MIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// maxDocumentXML bounds the decompressed size of word/document.xml.
const maxDocumentXML = 64 << 20

// Normaliser handles DOCX documents.
type Normaliser struct{}

// New creates a new DOCX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{MIMEType}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// ExtractText reads word/document.xml. Paragraphs styled Title or
// Heading1..Heading6 become markdown headings.
func (n *Normaliser) ExtractText(ctx context.Context, raw []byte, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !normalisers.Accepts(n, mimeType) {
		return "", fmt.Errorf("%w: docx cannot handle %q", domain.ErrUnsupportedFormat, mimeType)
	}

	reader, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("%w: not a zip archive: %w", domain.ErrParse, err)
	}

	content, err := readDocumentXML(reader)
	if err != nil {
		return "", err
	}

	text, err := parseDocumentXML(content)
	if err != nil {
		return "", fmt.Errorf("%w: word/document.xml: %w", domain.ErrParse, err)
	}
	return normalisers.CollapseBlankLines(text), nil
}

func readDocumentXML(reader *zip.Reader) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open word/document.xml: %w", domain.ErrParse, err)
		}
		defer rc.Close()

		content, err := io.ReadAll(io.LimitReader(rc, maxDocumentXML+1))
		if err != nil {
			return nil, fmt.Errorf("%w: read word/document.xml: %w", domain.ErrParse, err)
		}
		if len(content) > maxDocumentXML {
			return nil, fmt.Errorf("%w: word/document.xml exceeds %d bytes", domain.ErrContentTooLarge, maxDocumentXML)
		}
		return content, nil
	}
	return nil, fmt.Errorf("%w: word/document.xml missing", domain.ErrParse)
}

// paragraph accumulates one w:p element.
type paragraph struct {
	style string
	text  strings.Builder
}

func (p *paragraph) render() string {
	text := strings.TrimSpace(p.text.String())
	if text == "" {
		return ""
	}
	if level := headingLevel(p.style); level > 0 {
		return strings.Repeat("#", level) + " " + strings.Join(strings.Fields(text), " ")
	}
	return text
}

// headingLevel maps a paragraph style id to a heading level, 0 for body text.
func headingLevel(style string) int {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	if s == "title" {
		return 1
	}
	if rest, ok := strings.CutPrefix(s, "heading"); ok {
		if n, err := strconv.Atoi(rest); err == nil && n >= 1 && n <= 6 {
			return n
		}
	}
	return 0
}

// parseDocumentXML streams the document so paragraphs nested in tables
// and text boxes are picked up too.
func parseDocumentXML(content []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))

	var (
		out    []string
		stack  []*paragraph
		inText bool
		inTabs bool // tab stop definitions, not tab characters
	)
	current := func() *paragraph {
		if len(stack) == 0 {
			return nil
		}
		return stack[len(stack)-1]
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				stack = append(stack, &paragraph{})
			case "pStyle":
				if p := current(); p != nil {
					for _, a := range t.Attr {
						if a.Name.Local == "val" {
							p.style = a.Value
						}
					}
				}
			case "t":
				inText = true
			case "tabs":
				inTabs = true
			case "tab":
				if p := current(); p != nil && !inTabs {
					p.text.WriteByte('\t')
				}
			case "br", "cr":
				if p := current(); p != nil {
					p.text.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "tabs":
				inTabs = false
			case "p":
				if p := current(); p != nil {
					stack = stack[:len(stack)-1]
					if line := p.render(); line != "" {
						out = append(out, line)
					}
				}
			}
		case xml.CharData:
			if inText {
				if p := current(); p != nil {
					p.text.Write(t)
				}
			}
		}
	}

	return strings.Join(out, "\n\n"), nil
}
