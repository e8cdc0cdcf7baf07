package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/akolanti/uniassist/internal/domain/commonModels"
	"github.com/akolanti/uniassist/internal/domain/ragErrors"
	"github.com/akolanti/uniassist/internal/domain/sessionModel"
	"github.com/akolanti/uniassist/internal/rag/ingest"
	"github.com/akolanti/uniassist/internal/rag/retrieve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockIngester struct {
	OnIngest    func(ctx context.Context, name string, opts ingest.Options) (*ingest.Result, error)
	OnDocuments func(ctx context.Context) ([]commonModels.Document, error)
}

func (m *mockIngester) Ingest(ctx context.Context, name string, opts ingest.Options) (*ingest.Result, error) {
	return m.OnIngest(ctx, name, opts)
}

func (m *mockIngester) Documents(ctx context.Context) ([]commonModels.Document, error) {
	return m.OnDocuments(ctx)
}

type mockRetriever struct {
	OnRetrieve func(ctx context.Context, question, doc string, k int) (*retrieve.Context, error)
}

func (m *mockRetriever) Retrieve(ctx context.Context, question, doc string, k int) (*retrieve.Context, error) {
	return m.OnRetrieve(ctx, question, doc, k)
}

func TestParseInvocation(t *testing.T) {
	tests := []struct {
		name    string
		call    *sessionModel.ToolCall
		want    Invocation
		wantErr bool
	}{
		{
			name: "ingest",
			call: &sessionModel.ToolCall{Id: "1", Name: ToolNameIngest, Args: map[string]any{"document_name": "regulamento", "force": true}},
			want: Invocation{Kind: ToolIngest, Id: "1", Ingest: IngestArgs{DocumentName: "regulamento", Force: true}},
		},
		{
			name: "retrieve with json number",
			call: &sessionModel.ToolCall{Name: ToolNameRetrieve, Args: map[string]any{"question": "prazo", "document_name": "calendario", "k": float64(3)}},
			want: Invocation{Kind: ToolRetrieve, Retrieve: RetrieveArgs{Question: "prazo", DocumentName: "calendario", K: 3}},
		},
		{
			name: "retrieve with string k",
			call: &sessionModel.ToolCall{Name: ToolNameRetrieve, Args: map[string]any{"question": "prazo", "document_name": "calendario", "k": "2"}},
			want: Invocation{Kind: ToolRetrieve, Retrieve: RetrieveArgs{Question: "prazo", DocumentName: "calendario", K: 2}},
		},
		{
			name: "list documents",
			call: &sessionModel.ToolCall{Name: ToolNameListDocuments},
			want: Invocation{Kind: ToolListDocuments},
		},
		{name: "unknown tool", call: &sessionModel.ToolCall{Name: "delete_everything"}, wantErr: true},
		{name: "missing document", call: &sessionModel.ToolCall{Name: ToolNameIngest, Args: map[string]any{}}, wantErr: true},
		{name: "blank question", call: &sessionModel.ToolCall{Name: ToolNameRetrieve, Args: map[string]any{"question": " ", "document_name": "x"}}, wantErr: true},
		{name: "fractional k", call: &sessionModel.ToolCall{Name: ToolNameRetrieve, Args: map[string]any{"question": "q", "document_name": "x", "k": 2.5}}, wantErr: true},
		{name: "non string name", call: &sessionModel.ToolCall{Name: ToolNameIngest, Args: map[string]any{"document_name": 7}}, wantErr: true},
		{name: "nil call", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInvocation(tt.call)
			if tt.wantErr {
				var invalid *ragErrors.InvalidParamsError
				assert.ErrorAs(t, err, &invalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToolbox_Call(t *testing.T) {
	ingester := &mockIngester{
		OnIngest: func(ctx context.Context, name string, opts ingest.Options) (*ingest.Result, error) {
			switch name {
			case "regulamento":
				return &ingest.Result{Document: "regulamento", Status: ingest.StatusIngested, ChunkCount: 12, Warnings: []string{"page 3 skipped"}}, nil
			case "calendario":
				return &ingest.Result{Document: "calendario", Status: ingest.StatusAlreadyProcessed, ChunkCount: 4}, nil
			case "vazio":
				return nil, &ragErrors.SourceNotFoundError{Document: "vazio"}
			default:
				return nil, &ragErrors.SourceNotFoundError{Document: name, Available: []string{"calendario.pdf", "regulamento.pdf"}}
			}
		},
		OnDocuments: func(ctx context.Context) ([]commonModels.Document, error) {
			return []commonModels.Document{
				{Name: "calendario", Status: commonModels.Unprocessed},
				{Name: "regulamento", Status: commonModels.Processed},
			}, nil
		},
	}
	retriever := &mockRetriever{OnRetrieve: func(ctx context.Context, question, doc string, k int) (*retrieve.Context, error) {
		switch doc {
		case "regulamento":
			return &retrieve.Context{Document: doc, Snippets: []retrieve.Snippet{{Text: "trecho", Page: 2, ChunkId: "regulamento_chunk_1", Score: 0.8}}}, nil
		case "quebrado":
			return nil, &ragErrors.ShapeMismatchError{Collection: doc, Reason: "dimension 3, expected 768"}
		default:
			return nil, fmt.Errorf("%s: %w", doc, ragErrors.ErrNoRelevantInformation)
		}
	}}
	toolbox := NewToolbox(ingester, retriever)

	tests := []struct {
		name     string
		call     *sessionModel.ToolCall
		contains string
		fatal    bool
	}{
		{"ingested", &sessionModel.ToolCall{Name: ToolNameIngest, Args: map[string]any{"document_name": "regulamento"}}, "12 trechos indexados. Avisos: page 3 skipped", false},
		{"already processed", &sessionModel.ToolCall{Name: ToolNameIngest, Args: map[string]any{"document_name": "calendario"}}, "já estava processado (4 trechos)", false},
		{"not found lists alternatives", &sessionModel.ToolCall{Name: ToolNameIngest, Args: map[string]any{"document_name": "estatuto"}}, "Arquivos disponíveis: calendario.pdf, regulamento.pdf", false},
		{"not found with nothing available", &sessionModel.ToolCall{Name: ToolNameIngest, Args: map[string]any{"document_name": "vazio"}}, "Arquivos disponíveis: Nenhum", false},
		{"retrieve", &sessionModel.ToolCall{Name: ToolNameRetrieve, Args: map[string]any{"question": "q", "document_name": "regulamento"}}, "[1] página 2", false},
		{"no relevant information", &sessionModel.ToolCall{Name: ToolNameRetrieve, Args: map[string]any{"question": "q", "document_name": "outro"}}, "Nenhuma informação relevante", false},
		{"list", &sessionModel.ToolCall{Name: ToolNameListDocuments}, "- regulamento (processado)", false},
		{"unknown tool", &sessionModel.ToolCall{Name: "rm"}, "Parâmetros inválidos", false},
		{"shape mismatch is fatal", &sessionModel.ToolCall{Name: ToolNameRetrieve, Args: map[string]any{"question": "q", "document_name": "quebrado"}}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := toolbox.Call(context.Background(), tt.call)
			if tt.fatal {
				var shape *ragErrors.ShapeMismatchError
				require.ErrorAs(t, err, &shape)
				assert.Empty(t, out)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out, tt.contains)
		})
	}
}

func TestRender(t *testing.T) {
	assert.Equal(t, "O serviço de embeddings está sobrecarregado no momento. Tente novamente mais tarde.",
		Render(&ragErrors.EmbeddingServiceError{Provider: "google", Op: "embed_query", RateLimited: true}))
	assert.Equal(t, "A ferramenta excedeu o tempo limite.", Render(fmt.Errorf("embedding: %w", context.DeadlineExceeded)))
	assert.Equal(t, "Erro ao executar a ferramenta: boom", Render(errors.New("boom")))
	assert.Equal(t, "Documentos disponíveis: Nenhum", formatDocuments(nil))
}
