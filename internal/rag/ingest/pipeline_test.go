package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akolanti/uniassist/internal/domain/commonModels"
	"github.com/akolanti/uniassist/internal/domain/ragErrors"
	"github.com/akolanti/uniassist/internal/rag/embedding/localEmbedding"
	"github.com/akolanti/uniassist/internal/rag/extract"
	"github.com/akolanti/uniassist/internal/rag/vectorDB"
	"github.com/akolanti/uniassist/internal/rag/vectorDB/boltDB"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockExtractor struct {
	calls     atomic.Int32
	OnExtract func(ctx context.Context, path string) (*extract.Extraction, error)
}

func (m *mockExtractor) Extract(ctx context.Context, path string) (*extract.Extraction, error) {
	m.calls.Add(1)
	return m.OnExtract(ctx, path)
}

type mockEmbedder struct {
	*localEmbedding.Embedder
	OnEmbedDocuments func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *mockEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if m.OnEmbedDocuments != nil {
		return m.OnEmbedDocuments(ctx, texts)
	}
	return m.Embedder.EmbedDocuments(ctx, texts)
}

// failingUpsertStore lets every call through except Upsert.
type failingUpsertStore struct {
	vectorDB.Store
	err error
}

func (f *failingUpsertStore) Upsert(context.Context, string, []string, [][]float32, []string, []commonModels.ChunkMetadata) error {
	return f.err
}

func regulationPages() []commonModels.PageRecord {
	pages := make([]commonModels.PageRecord, 3)
	for i := range pages {
		var b strings.Builder
		for b.Len() < 1300 {
			fmt.Fprintf(&b, "Capítulo %d. O aluno deverá observar os prazos de matrícula e trancamento. ", i+1)
		}
		pages[i] = commonModels.PageRecord{Index: i, Text: b.String()}
	}
	return pages
}

type fixture struct {
	root      string
	store     *boltDB.Store
	extractor *mockExtractor
	embedder  *mockEmbedder
	pipeline  *Pipeline
}

func newFixture(t *testing.T, sources ...string) *fixture {
	t.Helper()
	root := t.TempDir()
	for _, name := range sources {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("%PDF-1.4"), 0o644))
	}
	store, err := boltDB.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{
		root:  root,
		store: store,
		extractor: &mockExtractor{OnExtract: func(ctx context.Context, path string) (*extract.Extraction, error) {
			return &extract.Extraction{Pages: regulationPages()}, nil
		}},
		embedder: &mockEmbedder{Embedder: localEmbedding.NewLocalEmbedder(64)},
	}
	f.pipeline = NewPipeline(Config{DocumentsRoot: root, ChunkSize: 1000, ChunkOverlap: 100}, f.extractor, f.embedder, store, NewLocalLocker())
	return f
}

func (f *fixture) useStore(store vectorDB.Store) {
	f.pipeline = NewPipeline(f.pipeline.cfg, f.extractor, f.embedder, store, NewLocalLocker())
}

func TestIngest_ThreePageRegulation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "regulamento.pdf")

	result, err := f.pipeline.Ingest(ctx, "regulamento", Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusIngested, result.Status)
	assert.Equal(t, "regulamento", result.Document)
	require.GreaterOrEqual(t, result.ChunkCount, 3)

	count, err := f.store.Count(ctx, "regulamento")
	require.NoError(t, err)
	assert.Equal(t, result.ChunkCount, count)

	hits, err := f.store.Query(ctx, "regulamento", make([]float32, 64), count)
	require.NoError(t, err)
	pages := map[int]bool{}
	for _, hit := range hits {
		assert.Equal(t, "regulamento.pdf", hit.Metadata.Source)
		assert.Equal(t, ChunkID("regulamento", hit.Metadata.Ordinal), hit.Metadata.ChunkId)
		assert.LessOrEqual(t, len([]rune(hit.Text)), 1000)
		pages[hit.Metadata.Page] = true
	}
	assert.Equal(t, map[int]bool{0: true, 1: true, 2: true}, pages)
}

func TestIngest_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "regulamento.pdf")

	first, err := f.pipeline.Ingest(ctx, "regulamento.pdf", Options{})
	require.NoError(t, err)
	before, err := f.store.Query(ctx, "regulamento", make([]float32, 64), first.ChunkCount)
	require.NoError(t, err)

	second, err := f.pipeline.Ingest(ctx, "  regulamento ", Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyProcessed, second.Status)
	assert.Equal(t, first.ChunkCount, second.ChunkCount)
	assert.Equal(t, int32(1), f.extractor.calls.Load(), "second ingest must not extract")

	after, err := f.store.Query(ctx, "regulamento", make([]float32, 64), first.ChunkCount)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestIngest_SourceNotFound(t *testing.T) {
	ctx := context.Background()

	t.Run("lists the alternatives", func(t *testing.T) {
		f := newFixture(t, "calendario.pdf", "estatuto.docx", "notas.png")
		_, err := f.pipeline.Ingest(ctx, "regulamento", Options{})

		var notFound *ragErrors.SourceNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "regulamento", notFound.Document)
		assert.Equal(t, []string{"calendario.pdf", "estatuto.docx"}, notFound.Available)

		exists, err := f.store.CollectionExists(ctx, "regulamento")
		require.NoError(t, err)
		assert.False(t, exists)
		assert.Zero(t, f.extractor.calls.Load())
	})

	t.Run("empty documents root", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.pipeline.Ingest(ctx, "regulamento", Options{})
		var notFound *ragErrors.SourceNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Empty(t, notFound.Available)
	})
}

func TestIngest_ConcurrentCallsIngestOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "regulamento.pdf")
	f.extractor.OnExtract = func(ctx context.Context, path string) (*extract.Extraction, error) {
		time.Sleep(50 * time.Millisecond)
		return &extract.Extraction{Pages: regulationPages()}, nil
	}

	const callers = 10
	var wg sync.WaitGroup
	results := make([]*Result, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.pipeline.Ingest(ctx, "regulamento", Options{})
		}(i)
	}
	wg.Wait()

	for i := range errs {
		require.NoError(t, errs[i])
	}
	assert.Equal(t, int32(1), f.extractor.calls.Load())

	collections, err := f.store.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"regulamento"}, collections)

	count, err := f.store.Count(ctx, "regulamento")
	require.NoError(t, err)
	for _, result := range results {
		assert.Equal(t, count, result.ChunkCount)
	}
}

func TestIngest_FailuresLeaveNoCollection(t *testing.T) {
	ctx := context.Background()

	t.Run("embedding failure", func(t *testing.T) {
		f := newFixture(t, "regulamento.pdf")
		f.embedder.OnEmbedDocuments = func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, &ragErrors.EmbeddingServiceError{Provider: "test", Op: "embed_documents", RateLimited: true}
		}
		_, err := f.pipeline.Ingest(ctx, "regulamento", Options{})
		var svc *ragErrors.EmbeddingServiceError
		require.ErrorAs(t, err, &svc)

		exists, _ := f.store.CollectionExists(ctx, "regulamento")
		assert.False(t, exists)
	})

	t.Run("upsert failure removes the new collection", func(t *testing.T) {
		f := newFixture(t, "regulamento.pdf")
		boom := errors.New("disk full")
		f.useStore(&failingUpsertStore{Store: f.store, err: boom})

		_, err := f.pipeline.Ingest(ctx, "regulamento", Options{})
		require.ErrorIs(t, err, boom)

		exists, _ := f.store.CollectionExists(ctx, "regulamento")
		assert.False(t, exists)
	})

	t.Run("extraction failure", func(t *testing.T) {
		f := newFixture(t, "regulamento.pdf")
		f.extractor.OnExtract = func(ctx context.Context, path string) (*extract.Extraction, error) {
			return nil, &ragErrors.NotFoundError{Path: path}
		}
		_, err := f.pipeline.Ingest(ctx, "regulamento", Options{})
		var notFound *ragErrors.NotFoundError
		require.ErrorAs(t, err, &notFound)
		collections, _ := f.store.ListCollections(ctx)
		assert.Empty(t, collections)
	})

	t.Run("document without text", func(t *testing.T) {
		f := newFixture(t, "regulamento.pdf")
		f.extractor.OnExtract = func(ctx context.Context, path string) (*extract.Extraction, error) {
			return &extract.Extraction{Pages: []commonModels.PageRecord{{Index: 0, Text: "  "}}}, nil
		}
		_, err := f.pipeline.Ingest(ctx, "regulamento", Options{})
		require.Error(t, err)
		collections, _ := f.store.ListCollections(ctx)
		assert.Empty(t, collections)
	})
}

func TestIngest_ForceReplacesCollection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "regulamento.pdf")

	_, err := f.pipeline.Ingest(ctx, "regulamento", Options{})
	require.NoError(t, err)

	f.extractor.OnExtract = func(ctx context.Context, path string) (*extract.Extraction, error) {
		return &extract.Extraction{
			Pages:    []commonModels.PageRecord{{Index: 0, Text: "Versão revisada do regulamento."}},
			Warnings: []string{"page 2 skipped: timeout"},
		}, nil
	}
	result, err := f.pipeline.Ingest(ctx, "regulamento", Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, StatusIngested, result.Status)
	assert.Equal(t, 1, result.ChunkCount)
	assert.Equal(t, []string{"page 2 skipped: timeout"}, result.Warnings)

	count, err := f.store.Count(ctx, "regulamento")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIngest_InvalidName(t *testing.T) {
	f := newFixture(t)
	_, err := f.pipeline.Ingest(context.Background(), "   ", Options{})
	var invalid *ragErrors.InvalidParamsError
	assert.ErrorAs(t, err, &invalid)
}

func TestDocuments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "regulamento.pdf", "regulamento.json", "calendario.docx", "so_sidecar.json")
	_, err := f.store.CreateCollection(ctx, "regulamento")
	require.NoError(t, err)
	_, err = f.store.CreateCollection(ctx, "antigo")
	require.NoError(t, err)

	docs, err := f.pipeline.Documents(ctx)
	require.NoError(t, err)

	got := map[string]commonModels.Document{}
	var names []string
	for _, doc := range docs {
		got[doc.Name] = doc
		names = append(names, doc.Name)
	}
	assert.Equal(t, []string{"antigo", "calendario", "regulamento", "so_sidecar"}, names)
	assert.Equal(t, commonModels.Processed, got["regulamento"].Status)
	assert.Equal(t, filepath.Join(f.root, "regulamento.pdf"), got["regulamento"].SourcePath)
	assert.Equal(t, commonModels.Processed, got["antigo"].Status)
	assert.Empty(t, got["antigo"].SourcePath)
	assert.Equal(t, commonModels.Unprocessed, got["calendario"].Status)
	assert.Equal(t, commonModels.JSON, got["so_sidecar"].ContentType)
}

func TestLibrary_Resolve(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"regulamento.pdf", "regulamento.txt", "calendario.txt", "ementas.json"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644))
	}
	library := NewLibrary(root)

	tests := []struct {
		name string
		want string
	}{
		{"regulamento", "regulamento.pdf"},
		{"regulamento.txt", "regulamento.txt"},
		{"calendario", "calendario.txt"},
		{"ementas", "ementas.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := library.Resolve(tt.name)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(root, tt.want), path)
		})
	}

	available, err := library.Available()
	require.NoError(t, err)
	assert.Equal(t, []string{"calendario.txt", "ementas.json", "regulamento.pdf"}, available)
}

type forgettingExtractor struct {
	*mockExtractor
	forgotten []string
}

func (f *forgettingExtractor) Forget(document string) error {
	f.forgotten = append(f.forgotten, document)
	return nil
}

func TestIngest_ForceForgetsCachedExtraction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "regulamento.pdf")
	cached := &forgettingExtractor{mockExtractor: f.extractor}
	f.pipeline = NewPipeline(f.pipeline.cfg, cached, f.embedder, f.store, NewLocalLocker())

	_, err := f.pipeline.Ingest(ctx, "regulamento", Options{})
	require.NoError(t, err)
	assert.Empty(t, cached.forgotten)

	_, err = f.pipeline.Ingest(ctx, "regulamento", Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"regulamento"}, cached.forgotten)
}

func TestIngest_CallerCancellationDoesNotFailOthers(t *testing.T) {
	f := newFixture(t, "regulamento.pdf")
	started := make(chan struct{})
	release := make(chan struct{})
	f.extractor.OnExtract = func(ctx context.Context, path string) (*extract.Extraction, error) {
		close(started)
		select {
		case <-release:
			return &extract.Extraction{Pages: regulationPages()}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	first, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.pipeline.Ingest(first, "regulamento", Options{})
		firstErr <- err
	}()
	<-started

	type outcome struct {
		result *Result
		err    error
	}
	second := make(chan outcome, 1)
	go func() {
		result, err := f.pipeline.Ingest(context.Background(), "regulamento", Options{})
		second <- outcome{result, err}
	}()

	cancelFirst()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	got := <-second
	require.NoError(t, got.err)
	assert.Greater(t, got.result.ChunkCount, 0)
	assert.Equal(t, int32(1), f.extractor.calls.Load())

	count, err := f.store.Count(context.Background(), "regulamento")
	require.NoError(t, err)
	assert.Equal(t, got.result.ChunkCount, count)
}

func TestIngest_CancelledBeforeStart(t *testing.T) {
	f := newFixture(t, "regulamento.pdf")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline.Ingest(ctx, "regulamento", Options{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.extractor.calls.Load())
}

func TestIngest_FailedForceKeepsPreviousCollection(t *testing.T) {
	ctx := context.Background()

	t.Run("extraction failure", func(t *testing.T) {
		f := newFixture(t, "regulamento.pdf")
		before, err := f.pipeline.Ingest(ctx, "regulamento", Options{})
		require.NoError(t, err)

		f.extractor.OnExtract = func(ctx context.Context, path string) (*extract.Extraction, error) {
			return nil, errors.New("corrupt pdf")
		}
		_, err = f.pipeline.Ingest(ctx, "regulamento", Options{Force: true})
		require.Error(t, err)

		count, err := f.store.Count(ctx, "regulamento")
		require.NoError(t, err)
		assert.Equal(t, before.ChunkCount, count)
	})

	t.Run("embedding failure", func(t *testing.T) {
		f := newFixture(t, "regulamento.pdf")
		before, err := f.pipeline.Ingest(ctx, "regulamento", Options{})
		require.NoError(t, err)

		f.embedder.OnEmbedDocuments = func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, &ragErrors.EmbeddingServiceError{Provider: "test", Op: "embed_documents"}
		}
		_, err = f.pipeline.Ingest(ctx, "regulamento", Options{Force: true})
		var svc *ragErrors.EmbeddingServiceError
		require.ErrorAs(t, err, &svc)

		count, err := f.store.Count(ctx, "regulamento")
		require.NoError(t, err)
		assert.Equal(t, before.ChunkCount, count)
	})
}
