// Package localEmbedding is an offline embedder based on feature hashing.
// Every token and adjacent token pair is hashed into one of Dimension buckets
// with a signed weight, then the vector is L2-normalized. No corpus is needed
// up front, so ingestion and queries can run without network access.
package localEmbedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

const modelName = "local-hashing-v1"

type Embedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

func NewLocalEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = 768
	}
	return &Embedder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*`),
		stopwords:    defaultStopwords(),
	}
}

func (e *Embedder) Dimension() int { return e.dimension }

func (e *Embedder) Model() string { return modelName }

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.embed(text), nil
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e *Embedder) embed(text string) []float32 {
	acc := make([]float64, e.dimension)
	tokens := e.tokenize(text)
	for i, tok := range tokens {
		e.add(acc, tok, 1.0)
		if i > 0 {
			e.add(acc, tokens[i-1]+" "+tok, 0.5)
		}
	}

	norm := 0.0
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	vec := make([]float32, e.dimension)
	if norm == 0 {
		return vec
	}
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}

func (e *Embedder) add(acc []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	bucket := int(sum % uint64(e.dimension))
	// the top bit picks the sign so collisions tend to cancel
	if sum>>63 == 1 {
		weight = -weight
	}
	acc[bucket] += weight
}

func (e *Embedder) tokenize(text string) []string {
	raw := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "o", "as", "os", "um", "uma", "de", "da", "do", "das", "dos", "e", "é", "em", "no", "na", "nos", "nas",
		"por", "para", "com", "que", "se", "ao", "aos", "à", "às", "ou", "seu", "sua", "pelo", "pela",
		"the", "and", "of", "to", "in", "is",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
