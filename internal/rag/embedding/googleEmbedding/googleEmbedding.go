package googleEmbedding

import (
	"context"
	"strings"
	"time"

	"github.com/akolanti/uniassist/internal/config"
	"github.com/akolanti/uniassist/internal/domain/ragErrors"
	"github.com/akolanti/uniassist/internal/metrics"
	"github.com/akolanti/uniassist/internal/rag/embedding"
	"github.com/akolanti/uniassist/pkg/logger_i"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const providerName = "google"

const (
	taskDocument = "RETRIEVAL_DOCUMENT"
	taskQuery    = "RETRIEVAL_QUERY"
)

// ContentEmbedder is the slice of *genai.Models this adapter needs.
type ContentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

type Options struct {
	Model     string
	Dimension int
	BatchSize int
}

type Client struct {
	models    ContentEmbedder
	model     string
	dimension int32
	batchSize int
	logger    *logger_i.Logger
}

// NewGoogleEmbedder builds the adapter on top of a shared genai client's Models.
func NewGoogleEmbedder(models ContentEmbedder, opts Options) *Client {
	if opts.Model == "" {
		opts.Model = config.GoogleEmbeddingModel
	}
	if opts.Dimension <= 0 {
		opts.Dimension = int(config.EmbeddingOutputDimensionality)
	}
	if opts.BatchSize <= 0 || opts.BatchSize > config.EmbeddingBatchSize {
		opts.BatchSize = config.EmbeddingBatchSize
	}
	logger := logger_i.NewLogger("google_embedding")
	logger.Debug("Google Embedding client created", "model", opts.Model, "dimension", opts.Dimension)
	return &Client{
		models:    models,
		model:     opts.Model,
		dimension: int32(opts.Dimension),
		batchSize: opts.BatchSize,
		logger:    logger,
	}
}

func (c *Client) Dimension() int { return int(c.dimension) }

func (c *Client) Model() string { return c.model }

func (c *Client) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := c.doCall(ctx, "embed_query", []string{query}, taskQuery)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *Client) EmbedDocuments(ctx context.Context, chunks []string) ([][]float32, error) {
	if len(chunks) == 0 {
		return [][]float32{}, nil
	}
	return embedding.InBatches(ctx, chunks, c.batchSize, func(ctx context.Context, batch []string) ([][]float32, error) {
		return c.doCall(ctx, "embed_documents", batch, taskDocument)
	})
}

func (c *Client) doCall(ctx context.Context, op string, texts []string, task string) ([][]float32, error) {
	log := c.logger.WithTrace(ctx).With("op", op, "inputs", len(texts))
	start := time.Now()
	result, err := c.models.EmbedContent(ctx, c.model, getContent(texts), &genai.EmbedContentConfig{
		OutputDimensionality: &c.dimension,
		TaskType:             task,
	})
	metrics.CaptureExecutionMetrics("embedding", time.Since(start))
	if err != nil {
		limited := isRateLimited(err)
		log.Error("Error getting Embeddings from Google", "error", err, "rateLimited", limited)
		return nil, &ragErrors.EmbeddingServiceError{Provider: providerName, Op: op, RateLimited: limited, Err: err}
	}
	if result == nil {
		return nil, embedding.CheckCount(providerName, op, len(texts), 0)
	}
	if err := embedding.CheckCount(providerName, op, len(texts), len(result.Embeddings)); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(result.Embeddings))
	for i, r := range result.Embeddings {
		if r == nil || len(r.Values) == 0 {
			return nil, embedding.CheckCount(providerName, op, len(texts), i)
		}
		vectors[i] = r.Values
	}
	return vectors, nil
}

func getContent(chunks []string) []*genai.Content {
	contentsToSend := make([]*genai.Content, 0, len(chunks))

	for _, chunk := range chunks {
		contentsToSend = append(contentsToSend, &genai.Content{
			Parts: []*genai.Part{{Text: chunk}},
		})
	}
	return contentsToSend
}

// isRateLimited recognises quota errors from both the gRPC and the REST transports.
func isRateLimited(err error) bool {
	if s, ok := status.FromError(err); ok && s.Code() == codes.ResourceExhausted {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "RESOURCE_EXHAUSTED") || strings.Contains(msg, "Error 429")
}
