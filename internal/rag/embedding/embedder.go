package embedding

import (
	"context"
	"fmt"

	"github.com/akolanti/uniassist/internal/domain/ragErrors"
)

// Embedder maps text to fixed-length vectors. Documents and queries go
// through the same model so their vectors are comparable.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	Model() string
}

// InBatches calls embed on consecutive slices of at most size texts and
// concatenates the results in input order.
func InBatches(ctx context.Context, texts []string, size int, embed func(ctx context.Context, batch []string) ([][]float32, error)) ([][]float32, error) {
	if size <= 0 {
		size = len(texts)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+size, len(texts))
		vectors, err := embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

// CheckCount turns a short or long upstream answer into an EmbeddingServiceError.
func CheckCount(provider, op string, want, got int) error {
	if want == got {
		return nil
	}
	return &ragErrors.EmbeddingServiceError{
		Provider: provider,
		Op:       op,
		Err:      fmt.Errorf("expected %d embeddings, got %d", want, got),
	}
}
