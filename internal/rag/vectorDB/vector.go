package vectorDB

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/akolanti/uniassist/internal/domain/commonModels"
	"github.com/akolanti/uniassist/internal/domain/ragErrors"
)

// Store is a set of named collections of (id, vector, text, metadata)
// records. The ingestion pipeline is the only writer.
type Store interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	// CreateCollection is create-if-absent; created reports whether this call made it.
	CreateCollection(ctx context.Context, name string) (created bool, err error)
	Upsert(ctx context.Context, collection string, ids []string, vectors [][]float32, texts []string, metadatas []commonModels.ChunkMetadata) error
	// Query returns at most k hits ordered by descending cosine similarity.
	Query(ctx context.Context, collection string, vector []float32, k int) ([]commonModels.Hit, error)
	ListCollections(ctx context.Context) ([]string, error)
	DeleteCollection(ctx context.Context, name string) error
	Count(ctx context.Context, name string) (int, error)
	Close() error
}

// ValidateUpsert checks the parallel arrays of an upsert. dimension is the
// collection's vector size, 0 when not fixed yet.
func ValidateUpsert(collection string, ids []string, vectors [][]float32, texts []string, metadatas []commonModels.ChunkMetadata, dimension int) error {
	if len(ids) != len(vectors) || len(ids) != len(texts) || len(ids) != len(metadatas) {
		return ragErrors.NewLengthMismatch(collection, len(ids), len(vectors), len(texts), len(metadatas))
	}
	seen := make(map[string]struct{}, len(ids))
	for i, id := range ids {
		if id == "" {
			return &ragErrors.ShapeMismatchError{Collection: collection, Reason: fmt.Sprintf("empty id at position %d", i)}
		}
		if _, dup := seen[id]; dup {
			return &ragErrors.ShapeMismatchError{Collection: collection, Reason: fmt.Sprintf("duplicate id %q", id)}
		}
		seen[id] = struct{}{}
	}
	if len(vectors) == 0 {
		return nil
	}
	if dimension == 0 {
		dimension = len(vectors[0])
	}
	for i, vec := range vectors {
		if len(vec) == 0 || len(vec) != dimension {
			return &ragErrors.ShapeMismatchError{
				Collection: collection,
				Reason:     fmt.Sprintf("vector %d has dimension %d, collection expects %d", i, len(vec), dimension),
			}
		}
	}
	return nil
}

// Cosine returns the cosine similarity of a and b, 0 when either is the zero vector.
func Cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// SortHits orders by descending score, ties broken by chunk id so results are stable.
func SortHits(hits []commonModels.Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Metadata.ChunkId < hits[j].Metadata.ChunkId
	})
}
