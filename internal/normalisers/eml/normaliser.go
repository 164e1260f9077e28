// Package eml extracts text from RFC 822 email messages.
package eml

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/normalisers"
	htmlparser "github.com/custodia-labs/docsync/internal/normalisers/html"
)

// Ensure Normaliser implements the interface.
var _ driven.DocumentParser = (*Normaliser)(nil)

// maxDepth bounds multipart nesting.
const maxDepth = 8

// Normaliser handles EML (email) documents.
type Normaliser struct {
	html *htmlparser.Normaliser
}

// New creates a new EML normaliser.
func New() *Normaliser {
	return &Normaliser{html: htmlparser.New()}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"message/rfc822"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// ExtractText renders the subject as a heading, then From/To/Date lines,
// then the body. text/plain parts are preferred over text/html.
func (n *Normaliser) ExtractText(ctx context.Context, raw []byte, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !normalisers.Accepts(n, mimeType) {
		return "", fmt.Errorf("%w: eml cannot handle %q", domain.ErrUnsupportedFormat, mimeType)
	}

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrParse, err)
	}

	body, err := n.extractPart(ctx, textproto.MIMEHeader(msg.Header), msg.Body, 0)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if subject := decodeHeader(msg.Header.Get("Subject")); subject != "" {
		sb.WriteString("# " + subject + "\n\n")
	}
	for _, h := range []string{"From", "To", "Cc", "Date"} {
		if v := decodeHeader(msg.Header.Get(h)); v != "" {
			sb.WriteString(h + ": " + v + "\n")
		}
	}
	sb.WriteString("\n")
	sb.WriteString(body)

	return normalisers.CollapseBlankLines(strings.ToValidUTF8(sb.String(), "�")), nil
}

// decodeHeader decodes RFC 2047 encoded words, returning the input on failure.
func decodeHeader(header string) string {
	if header == "" {
		return ""
	}
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}

// extractPart returns the text of one MIME entity.
func (n *Normaliser) extractPart(ctx context.Context, header textproto.MIMEHeader, body io.Reader, depth int) (string, error) {
	contentType := header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		if depth >= maxDepth {
			return "", nil
		}
		return n.extractMultipart(ctx, body, params["boundary"], mediaType, depth+1)
	}

	if header.Get("Content-Disposition") != "" {
		if disp, _, err := mime.ParseMediaType(header.Get("Content-Disposition")); err == nil && disp == "attachment" {
			return "", nil
		}
	}

	content, err := io.ReadAll(transferDecoder(header.Get("Content-Transfer-Encoding"), body))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %w", domain.ErrParse, err)
	}

	switch mediaType {
	case "text/plain":
		return strings.ReplaceAll(string(content), "\r\n", "\n"), nil
	case "text/html":
		text, err := n.html.ExtractText(ctx, []byte(strings.ToValidUTF8(string(content), "�")), "text/html")
		if err != nil {
			return "", err
		}
		return text, nil
	default:
		return "", nil
	}
}

// extractMultipart keeps the best alternative for multipart/alternative and
// concatenates parts otherwise.
func (n *Normaliser) extractMultipart(ctx context.Context, r io.Reader, boundary, mediaType string, depth int) (string, error) {
	if boundary == "" {
		return "", fmt.Errorf("%w: %s without boundary", domain.ErrParse, mediaType)
	}

	mr := multipart.NewReader(r, boundary)
	var plain, html, other []string

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: multipart: %w", domain.ErrParse, err)
		}

		text, err := n.extractPart(ctx, part.Header, part, depth)
		part.Close()
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		partType, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		switch partType {
		case "text/plain", "":
			plain = append(plain, text)
		case "text/html":
			html = append(html, text)
		default:
			other = append(other, text)
		}
	}

	if mediaType == "multipart/alternative" {
		switch {
		case len(plain) > 0:
			return plain[0], nil
		case len(html) > 0:
			return html[0], nil
		case len(other) > 0:
			return other[0], nil
		}
		return "", nil
	}

	all := append(append(plain, html...), other...)
	return strings.Join(all, "\n\n"), nil
}

func transferDecoder(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, &newlineStripper{r: r})
	default:
		return r
	}
}

// newlineStripper drops CR and LF so base64 bodies wrapped at 76 columns decode.
type newlineStripper struct {
	r io.Reader
}

func (s *newlineStripper) Read(p []byte) (int, error) {
	for {
		n, err := s.r.Read(p)
		j := 0
		for _, b := range p[:n] {
			if b != '\r' && b != '\n' {
				p[j] = b
				j++
			}
		}
		if j > 0 || err != nil {
			return j, err
		}
	}
}
