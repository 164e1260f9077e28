// Package chunker provides a heading-aware, fixed-size text chunker.
package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = domain.DefaultChunkSize

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = domain.DefaultChunkOverlap

// Ensure Processor implements the interface.
var _ driven.Chunker = (*Processor)(nil)

var headingRe = regexp.MustCompile(`^(#{1,6})[ \t]+(.+?)[ \t#]*$`)

// Processor splits document text into fixed-size chunks inside markdown
// heading sections. It implements the Chunker interface.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

type section struct {
	titles []string
	text   string
}

type heading struct {
	level int
	title string
}

// Split returns the ordered chunks of text. The same text always yields
// the same chunks with the same point IDs and content hashes.
func (p *Processor) Split(documentID, collectionID, text string) ([]domain.Chunk, error) {
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: text is not valid UTF-8", domain.ErrChunking)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty content", domain.ErrChunking)
	}

	var chunks []domain.Chunk
	for _, sec := range splitSections(strings.ReplaceAll(text, "\r\n", "\n")) {
		for _, window := range p.windows(sec.text) {
			idx := len(chunks)
			chunks = append(chunks, domain.Chunk{
				PointID:      domain.PointID(documentID, idx),
				DocumentID:   documentID,
				CollectionID: collectionID,
				Index:        idx,
				Content:      window,
				ContentHash:  domain.ContentHash(window),
				TitleChain:   sec.titles,
				Status:       domain.ChunkNew,
			})
		}
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no content outside headings", domain.ErrChunking)
	}
	return chunks, nil
}

// splitSections cuts text at ATX headings. Each section starts with its
// heading line and carries the chain of enclosing headings. Headings inside
// fenced code blocks are ignored.
func splitSections(text string) []section {
	var (
		sections []section
		stack    []heading
		body     strings.Builder
		inFence  bool
	)

	flush := func() {
		if strings.TrimSpace(body.String()) != "" {
			sections = append(sections, section{titles: titlesOf(stack), text: body.String()})
		}
		body.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
		}

		if !inFence {
			if m := headingRe.FindStringSubmatch(line); m != nil {
				flush()
				level := len(m[1])
				for len(stack) > 0 && stack[len(stack)-1].level >= level {
					stack = stack[:len(stack)-1]
				}
				stack = append(stack, heading{level: level, title: strings.TrimSpace(m[2])})
			}
		}

		body.WriteString(line)
		body.WriteByte('\n')
	}
	flush()

	return sections
}

func titlesOf(stack []heading) []string {
	if len(stack) == 0 {
		return nil
	}
	titles := make([]string, len(stack))
	for i, h := range stack {
		titles[i] = h.title
	}
	return titles
}

// windows splits one section into overlapping windows of at most chunkSize
// runes, preferring to break after whitespace.
func (p *Processor) windows(text string) []string {
	runes := []rune(text)
	n := len(runes)
	if n <= p.chunkSize {
		if s := strings.TrimSpace(text); s != "" {
			return []string{s}
		}
		return nil
	}

	var out []string
	start := 0
	for start < n {
		end := start + p.chunkSize
		if end >= n {
			end = n
		} else {
			// Break at the last whitespace in the second half of the window.
			for j := end; j > start+p.chunkSize/2; j-- {
				if unicode.IsSpace(runes[j-1]) {
					end = j
					break
				}
			}
		}

		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			out = append(out, s)
		}
		if end == n {
			break
		}

		next := end - p.overlap
		if next <= start {
			next = end
		}
		// Start the overlap on a word boundary when one is close.
		for k := next; k < end; k++ {
			if unicode.IsSpace(runes[k-1]) {
				next = k
				break
			}
		}
		start = next
	}
	return out
}
