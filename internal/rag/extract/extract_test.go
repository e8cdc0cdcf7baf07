package extract

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/akolanti/uniassist/internal/domain/commonModels"
	"github.com/akolanti/uniassist/internal/domain/ragErrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockExtractor struct {
	calls     int
	OnExtract func(ctx context.Context, path string) (*Extraction, error)
}

func (m *mockExtractor) Extract(ctx context.Context, path string) (*Extraction, error) {
	m.calls++
	return m.OnExtract(ctx, path)
}

func threePages() []commonModels.PageRecord {
	return []commonModels.PageRecord{
		{Index: 0, Text: "Art. 1 Disposições gerais."},
		{Index: 1, Text: "Art. 2 Matrícula."},
		{Index: 2, Text: "Art. 3 Avaliação."},
	}
}

func TestStem(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"regulamento", "regulamento"},
		{"regulamento.pdf", "regulamento"},
		{"  documentos/regulamento.PDF ", "regulamento"},
		{"normas.v2", "normas.v2"},
		{"regulamento.json", "regulamento"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Stem(tt.in))
		})
	}
}

func TestTypeOf(t *testing.T) {
	tests := []struct {
		path     string
		expected commonModels.DocType
	}{
		{"test.pdf", commonModels.PDF},
		{"DOC.DOCX", commonModels.DOCX},
		{"notes.odt", commonModels.DOCX},
		{"notes.txt", commonModels.TXT},
		{"regulamento.json", commonModels.JSON},
		{"image.png", commonModels.ERR},
	}

	for _, tt := range tests {
		if got := TypeOf(tt.path); got != tt.expected {
			t.Errorf("TypeOf(%s) = %v; want %v", tt.path, got, tt.expected)
		}
	}
}

func TestExtractors_NotFound(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.pdf")
	dir := t.TempDir()

	for name, ex := range map[string]Extractor{
		"pdf":       NewPDFExtractor(time.Second),
		"office":    NewOfficeExtractor(),
		"directory": NewPDFExtractor(time.Second),
	} {
		t.Run(name, func(t *testing.T) {
			path := missing
			if name == "directory" {
				path = dir
			}
			_, err := ex.Extract(context.Background(), path)
			var notFound *ragErrors.NotFoundError
			require.ErrorAs(t, err, &notFound)
			assert.Equal(t, path, notFound.Path)
		})
	}
}

func TestOfficeExtractor_PlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendario.txt")
	require.NoError(t, os.WriteFile(path, []byte("Prazo de trancamento: 30 dias."), 0o644))

	result, err := NewRouter().Extract(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, result.Pages, 1)
	assert.Equal(t, 0, result.Pages[0].Index)
	assert.Contains(t, result.Pages[0].Text, "30 dias")
}

func TestRouter_Unsupported(t *testing.T) {
	_, err := NewRouter().Extract(context.Background(), "foto.png")
	require.Error(t, err)
}

func TestRouter_SidecarAsSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "regulamento.json")
	require.NoError(t, writeSidecar(path, SidecarRecord{Document: "regulamento", Pages: threePages()}))

	result, err := NewRouter().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, result.FromCache)
	assert.Equal(t, threePages(), result.Pages)
}

func TestSidecarCache(t *testing.T) {
	ctx := context.Background()

	t.Run("miss runs the extractor and writes the export", func(t *testing.T) {
		dir := t.TempDir()
		inner := &mockExtractor{OnExtract: func(ctx context.Context, path string) (*Extraction, error) {
			return &Extraction{Pages: threePages()}, nil
		}}
		cache := NewSidecarCache(inner, dir)

		result, err := cache.Extract(ctx, filepath.Join(dir, "regulamento.pdf"))
		require.NoError(t, err)
		assert.Empty(t, result.Warnings)
		assert.False(t, result.FromCache)

		data, err := os.ReadFile(filepath.Join(dir, "regulamento.json"))
		require.NoError(t, err)
		var record SidecarRecord
		require.NoError(t, json.Unmarshal(data, &record))
		assert.Equal(t, "regulamento", record.Document)
		assert.Equal(t, "regulamento.pdf", record.Source)
		assert.Equal(t, threePages(), record.Pages)

		t.Run("hit is trusted without calling the extractor", func(t *testing.T) {
			again, err := cache.Extract(ctx, filepath.Join(dir, "regulamento.pdf"))
			require.NoError(t, err)
			assert.True(t, again.FromCache)
			assert.Equal(t, threePages(), again.Pages)
			assert.Equal(t, 1, inner.calls)
		})
	})

	t.Run("failed export is reported as a warning", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "missing-dir")
		inner := &mockExtractor{OnExtract: func(ctx context.Context, path string) (*Extraction, error) {
			return &Extraction{Pages: threePages()}, nil
		}}
		result, err := NewSidecarCache(inner, dir).Extract(ctx, "regulamento.pdf")
		require.NoError(t, err)
		assert.Equal(t, threePages(), result.Pages)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], "not written")
	})

	t.Run("corrupt sidecar is replaced", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "regulamento.json"), []byte("{broken"), 0o644))
		inner := &mockExtractor{OnExtract: func(ctx context.Context, path string) (*Extraction, error) {
			return &Extraction{Pages: threePages()}, nil
		}}
		result, err := NewSidecarCache(inner, dir).Extract(ctx, filepath.Join(dir, "regulamento.pdf"))
		require.NoError(t, err)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], "ignored")

		record, err := readSidecar(filepath.Join(dir, "regulamento.json"))
		require.NoError(t, err)
		assert.Len(t, record.Pages, 3)
	})

	t.Run("forget drops the export", func(t *testing.T) {
		dir := t.TempDir()
		inner := &mockExtractor{OnExtract: func(ctx context.Context, path string) (*Extraction, error) {
			return &Extraction{Pages: threePages()}, nil
		}}
		cache := NewSidecarCache(inner, dir)
		_, err := cache.Extract(ctx, filepath.Join(dir, "regulamento.pdf"))
		require.NoError(t, err)

		require.NoError(t, cache.Forget("regulamento"))
		_, err = os.Stat(filepath.Join(dir, "regulamento.json"))
		assert.True(t, os.IsNotExist(err))
		assert.NoError(t, cache.Forget("regulamento"), "missing export")

		result, err := cache.Extract(ctx, filepath.Join(dir, "regulamento.pdf"))
		require.NoError(t, err)
		assert.False(t, result.FromCache)
		assert.Equal(t, 2, inner.calls)
	})

	t.Run("extractor errors pass through", func(t *testing.T) {
		boom := errors.New("boom")
		inner := &mockExtractor{OnExtract: func(ctx context.Context, path string) (*Extraction, error) {
			return nil, boom
		}}
		_, err := NewSidecarCache(inner, t.TempDir()).Extract(ctx, "regulamento.pdf")
		assert.ErrorIs(t, err, boom)
	})
}
