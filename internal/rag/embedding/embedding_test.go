package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/akolanti/uniassist/internal/domain/ragErrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInBatches(t *testing.T) {
	texts := make([]string, 250)
	for i := range texts {
		texts[i] = string(rune('a' + i%26))
	}

	var sizes []int
	out, err := InBatches(context.Background(), texts, 100, func(ctx context.Context, batch []string) ([][]float32, error) {
		sizes = append(sizes, len(batch))
		vectors := make([][]float32, len(batch))
		for i, text := range batch {
			vectors[i] = []float32{float32(text[0])}
		}
		return vectors, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{100, 100, 50}, sizes)
	require.Len(t, out, 250)
	for i := range texts {
		assert.Equal(t, float32(texts[i][0]), out[i][0], "vector %d out of order", i)
	}
}

func TestInBatches_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	_, err := InBatches(context.Background(), []string{"a", "b", "c"}, 1, func(ctx context.Context, batch []string) ([][]float32, error) {
		calls++
		if calls == 2 {
			return nil, boom
		}
		return [][]float32{{1}}, nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestInBatches_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := InBatches(ctx, []string{"a"}, 1, func(ctx context.Context, batch []string) ([][]float32, error) {
		t.Fatal("embed called on a cancelled context")
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckCount(t *testing.T) {
	assert.NoError(t, CheckCount("google", "embed_documents", 3, 3))

	err := CheckCount("google", "embed_documents", 3, 2)
	var svc *ragErrors.EmbeddingServiceError
	require.ErrorAs(t, err, &svc)
	assert.Equal(t, "google", svc.Provider)
	assert.False(t, svc.RateLimited)
}
