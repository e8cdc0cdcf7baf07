package retrieve

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/akolanti/uniassist/internal/domain/commonModels"
	"github.com/akolanti/uniassist/internal/domain/ragErrors"
	"github.com/akolanti/uniassist/internal/rag/embedding/localEmbedding"
	"github.com/akolanti/uniassist/internal/rag/extract"
	"github.com/akolanti/uniassist/internal/rag/ingest"
	"github.com/akolanti/uniassist/internal/rag/vectorDB/boltDB"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pagesExtractor struct {
	pages []commonModels.PageRecord
}

func (p pagesExtractor) Extract(context.Context, string) (*extract.Extraction, error) {
	return &extract.Extraction{Pages: p.pages}, nil
}

var regulation = []commonModels.PageRecord{
	{Index: 0, Text: "Capítulo I. Da matrícula.\n\nA matrícula deve ser renovada a cada semestre letivo dentro do prazo do calendário acadêmico."},
	{Index: 1, Text: "Capítulo II. Do trancamento.\n\nO trancamento total do curso pode ser solicitado no máximo quatro vezes."},
	{Index: 2, Text: "Capítulo III. Da frequência.\n\nÉ obrigatória a frequência mínima de setenta e cinco por cento das aulas."},
	{Index: 3, Text: "Capítulo IV. Das notas.\n\nA média para aprovação é sete, e a prova final exige média cinco."},
}

type setup struct {
	service  *Service
	pipeline *ingest.Pipeline
	store    *boltDB.Store
}

func newSetup(t *testing.T) setup {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "regulamento.pdf"), []byte("%PDF"), 0o644))
	store, err := boltDB.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	embedder := localEmbedding.NewLocalEmbedder(256)
	pipeline := ingest.NewPipeline(ingest.Config{DocumentsRoot: root, ChunkSize: 120, ChunkOverlap: 10},
		pagesExtractor{pages: regulation}, embedder, store, nil)
	return setup{service: NewService(pipeline, embedder, store, Options{}), pipeline: pipeline, store: store}
}

func TestRetrieve_IngestsOnFirstUse(t *testing.T) {
	ctx := context.Background()
	s := newSetup(t)

	exists, err := s.store.CollectionExists(ctx, "regulamento")
	require.NoError(t, err)
	require.False(t, exists)

	got, err := s.service.Retrieve(ctx, "Quantas vezes posso trancar o curso?", "regulamento.pdf", 2)
	require.NoError(t, err)
	assert.Equal(t, "regulamento", got.Document)
	require.NotEmpty(t, got.Snippets)

	exists, err = s.store.CollectionExists(ctx, "regulamento")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRetrieve_NeverMoreThanK(t *testing.T) {
	ctx := context.Background()
	s := newSetup(t)
	result, err := s.pipeline.Ingest(ctx, "regulamento", ingest.Options{})
	require.NoError(t, err)

	for _, k := range []int{1, 2, 3, result.ChunkCount, result.ChunkCount + 5} {
		got, err := s.service.Retrieve(ctx, "frequência mínima", "regulamento", k)
		require.NoError(t, err)
		assert.Len(t, got.Snippets, min(k, result.ChunkCount))
		for i := 1; i < len(got.Snippets); i++ {
			assert.GreaterOrEqual(t, got.Snippets[i-1].Score, got.Snippets[i].Score)
		}
	}

	got, err := s.service.Retrieve(ctx, "frequência mínima", "regulamento", 0)
	require.NoError(t, err)
	assert.Len(t, got.Snippets, min(5, result.ChunkCount))
}

func TestRetrieve_SelfRetrieval(t *testing.T) {
	ctx := context.Background()
	s := newSetup(t)
	result, err := s.pipeline.Ingest(ctx, "regulamento", ingest.Options{})
	require.NoError(t, err)

	stored, err := s.store.Query(ctx, "regulamento", make([]float32, 256), result.ChunkCount)
	require.NoError(t, err)
	require.Len(t, stored, result.ChunkCount)

	for _, chunk := range stored {
		got, err := s.service.Retrieve(ctx, chunk.Text, "regulamento", 1)
		require.NoError(t, err)
		require.Len(t, got.Snippets, 1)
		assert.Equal(t, chunk.Metadata.ChunkId, got.Snippets[0].ChunkId)
		assert.Equal(t, chunk.Metadata.Page+1, got.Snippets[0].Page, "pages are shown 1-based")
		assert.Equal(t, "regulamento.pdf", got.Snippets[0].Source)
		assert.InDelta(t, 1.0, got.Snippets[0].Score, 1e-4)
	}
}

func TestRetrieve_NoRelevantInformation(t *testing.T) {
	ctx := context.Background()
	s := newSetup(t)
	_, err := s.store.CreateCollection(ctx, "vazio")
	require.NoError(t, err)

	_, err = s.service.Retrieve(ctx, "qualquer coisa", "vazio", 3)
	assert.True(t, errors.Is(err, ragErrors.ErrNoRelevantInformation))
}

func TestRetrieve_IngestionErrorsSurface(t *testing.T) {
	s := newSetup(t)
	_, err := s.service.Retrieve(context.Background(), "prazo", "calendario", 3)

	var notFound *ragErrors.SourceNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, []string{"regulamento.pdf"}, notFound.Available)
}

func TestRetrieve_EmptyQuestion(t *testing.T) {
	s := newSetup(t)
	_, err := s.service.Retrieve(context.Background(), "  ", "regulamento", 3)
	var invalid *ragErrors.InvalidParamsError
	assert.ErrorAs(t, err, &invalid)
}

func TestContext_Format(t *testing.T) {
	c := &Context{Document: "regulamento", Snippets: []Snippet{
		{Text: " primeiro ", Page: 1, ChunkId: "regulamento_chunk_0", Score: 0.9},
		{Text: "segundo", Page: 4, ChunkId: "regulamento_chunk_7", Score: 0.5},
	}}
	out := c.Format()
	assert.True(t, strings.HasPrefix(out, `Trechos relevantes de "regulamento":`))
	assert.Contains(t, out, "[1] página 1 (regulamento_chunk_0, similaridade 0.900)\nprimeiro\n")
	assert.Contains(t, out, "[2] página 4 (regulamento_chunk_7, similaridade 0.500)\nsegundo\n")
}
