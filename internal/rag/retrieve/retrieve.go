// Package retrieve answers "which passages of document X are closest to this
// question", ingesting the document first when it has no collection yet.
package retrieve

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/akolanti/uniassist/internal/config"
	"github.com/akolanti/uniassist/internal/domain/ragErrors"
	"github.com/akolanti/uniassist/internal/rag/embedding"
	"github.com/akolanti/uniassist/internal/rag/vectorDB"
	"github.com/akolanti/uniassist/pkg/logger_i"
)

var logger = logger_i.NewLogger("Retrieval Service")

// Ingestor returns the collection name for a document once it is readable.
type Ingestor interface {
	EnsureIngested(ctx context.Context, documentName string) (string, error)
}

type Snippet struct {
	Text    string  `json:"text"`
	Page    int     `json:"page"`
	ChunkId string  `json:"chunk_id"`
	Source  string  `json:"source"`
	Score   float32 `json:"score"`
}

// Context is what retrieval hands back to the caller. Snippets keep the
// store's order; Page is 1-based.
type Context struct {
	Document string    `json:"document"`
	Question string    `json:"question"`
	Snippets []Snippet `json:"snippets"`
}

// Format renders the snippets as the text handed to the model.
func (c *Context) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Trechos relevantes de %q:\n", c.Document)
	for i, s := range c.Snippets {
		fmt.Fprintf(&b, "\n[%d] página %d (%s, similaridade %.3f)\n%s\n", i+1, s.Page, s.ChunkId, s.Score, strings.TrimSpace(s.Text))
	}
	return b.String()
}

type Options struct {
	// DefaultK is used when a caller passes k <= 0.
	DefaultK     int
	EmbedTimeout time.Duration
}

type Service struct {
	ingestor Ingestor
	embedder embedding.Embedder
	store    vectorDB.Store
	opts     Options
}

func NewService(ingestor Ingestor, embedder embedding.Embedder, store vectorDB.Store, opts Options) *Service {
	if opts.DefaultK <= 0 {
		opts.DefaultK = config.DefaultTopK
	}
	if opts.EmbedTimeout <= 0 {
		opts.EmbedTimeout = config.EmbedTimeout
	}
	return &Service{ingestor: ingestor, embedder: embedder, store: store, opts: opts}
}

// Retrieve returns at most k snippets; k <= 0 means the default. Zero hits is
// reported as ragErrors.ErrNoRelevantInformation.
func (s *Service) Retrieve(ctx context.Context, question, documentName string, k int) (*Context, error) {
	if strings.TrimSpace(question) == "" {
		return nil, &ragErrors.InvalidParamsError{Reason: "question is empty"}
	}
	if k <= 0 {
		k = s.opts.DefaultK
	}

	collection, err := s.ingestor.EnsureIngested(ctx, documentName)
	if err != nil {
		return nil, err
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.opts.EmbedTimeout)
	vector, err := s.embedder.EmbedQuery(embedCtx, question)
	cancel()
	if err != nil {
		return nil, err
	}

	hits, err := s.store.Query(ctx, collection, vector, k)
	if err != nil {
		return nil, err
	}
	logger.WithTrace(ctx).Debug("retrieved", "document", collection, "k", k, "hits", len(hits))
	if len(hits) == 0 {
		return nil, fmt.Errorf("%s: %w", collection, ragErrors.ErrNoRelevantInformation)
	}

	out := &Context{Document: collection, Question: question, Snippets: make([]Snippet, len(hits))}
	for i, hit := range hits {
		out.Snippets[i] = Snippet{
			Text:    hit.Text,
			Page:    hit.Metadata.Page + 1,
			ChunkId: hit.Metadata.ChunkId,
			Source:  hit.Metadata.Source,
			Score:   hit.Score,
		}
	}
	return out, nil
}
