// Package markdown extracts text from Markdown documents, keeping heading
// lines and fenced code while dropping inline formatting.
package markdown

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.DocumentParser = (*Normaliser)(nil)

// Normaliser handles Markdown documents.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

var (
	frontMatter   = regexp.MustCompile(`(?s)\A---\n.*?\n---\n`)
	htmlComments  = regexp.MustCompile(`(?s)<!--.*?-->`)
	images        = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	links         = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	refLinkDefs   = regexp.MustCompile(`(?m)^\s{0,3}\[[^\]]+\]:\s+\S+.*$`)
	strong        = regexp.MustCompile(`(\*\*|__)(\S(?:.*?\S)?)(\*\*|__)`)
	emphasis      = regexp.MustCompile(`(^|[\s(])[*_](\S(?:[^*_]*?\S)?)[*_]`)
	inlineCode    = regexp.MustCompile("`([^`\n]+)`")
	blockquote    = regexp.MustCompile(`^\s{0,3}>\s?`)
	horizontalHR  = regexp.MustCompile(`^\s{0,3}([-*_])(\s*[-*_]){2,}\s*$`)
	setextHeading = regexp.MustCompile(`^\s{0,3}(=+|-+)\s*$`)
)

// ExtractText strips inline markup. ATX headings are kept verbatim and
// setext headings are rewritten as ATX so the chunker sees both.
func (n *Normaliser) ExtractText(ctx context.Context, raw []byte, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !normalisers.Accepts(n, mimeType) {
		return "", fmt.Errorf("%w: markdown cannot handle %q", domain.ErrUnsupportedFormat, mimeType)
	}

	text, err := normalisers.DecodeText(raw)
	if err != nil {
		return "", err
	}
	return stripMarkdown(text), nil
}

// stripMarkdown works line by line so fenced code is passed through untouched.
func stripMarkdown(text string) string {
	text = frontMatter.ReplaceAllString(text, "")
	text = htmlComments.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	inFence := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			out = append(out, line)
			continue
		}
		if inFence {
			out = append(out, line)
			continue
		}

		if m := setextHeading.FindStringSubmatch(line); m != nil && len(out) > 0 && strings.TrimSpace(out[len(out)-1]) != "" {
			prev := out[len(out)-1]
			if !strings.HasPrefix(strings.TrimSpace(prev), "#") {
				level := "#"
				if strings.HasPrefix(m[1], "-") {
					level = "##"
				}
				out[len(out)-1] = level + " " + strings.TrimSpace(prev)
				continue
			}
		}
		if horizontalHR.MatchString(line) || refLinkDefs.MatchString(line) {
			out = append(out, "")
			continue
		}

		line = blockquote.ReplaceAllString(line, "")
		line = images.ReplaceAllString(line, "$1")
		line = links.ReplaceAllString(line, "$1")
		line = inlineCode.ReplaceAllString(line, "$1")
		line = strong.ReplaceAllString(line, "$2")
		line = emphasis.ReplaceAllString(line, "$1$2")
		out = append(out, line)
	}

	return normalisers.CollapseBlankLines(strings.Join(out, "\n"))
}
