// Package hash provides a deterministic, dependency-free embedding provider
// based on signed feature hashing of word unigrams and bigrams.
//
// Vectors carry no semantics beyond lexical overlap, but they are stable
// across runs and machines, which makes the provider useful offline and in
// tests.
package hash

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.EmbeddingProvider = (*Provider)(nil)

// DefaultDimensions matches the small local sentence models.
const DefaultDimensions = 384

// Provider generates feature hashed embeddings.
type Provider struct {
	dimensions int
}

// New creates a hash provider. dimensions <= 0 selects DefaultDimensions.
func New(dimensions int) *Provider {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Provider{dimensions: dimensions}
}

// Embed returns an L2-normalised vector. Text without any word characters
// returns domain.ErrInvalidInput.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("hash: no tokens in input: %w", domain.ErrInvalidInput)
	}

	acc := make([]float64, p.dimensions)
	for i, tok := range tokens {
		p.add(acc, tok, 1)
		if i > 0 {
			p.add(acc, tokens[i-1]+" "+tok, 0.5)
		}
	}

	return normalize(acc), nil
}

// add hashes feature into a bucket with a sign taken from a second hash bit.
func (p *Provider) add(acc []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	bucket := int(sum % uint64(p.dimensions))
	if sum>>63 == 1 {
		weight = -weight
	}
	acc[bucket] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(acc []float64) []float32 {
	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, len(acc))
	if norm == 0 {
		return out
	}
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out
}

// Dimensions returns the embedding vector size.
func (p *Provider) Dimensions() int {
	return p.dimensions
}

// ModelName identifies the hashing scheme and its width.
func (p *Provider) ModelName() string {
	return "feature-hash-" + strconv.Itoa(p.dimensions)
}

// Ping always succeeds.
func (p *Provider) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op.
func (p *Provider) Close() error {
	return nil
}
