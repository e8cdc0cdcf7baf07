package openaiEmbedding

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/akolanti/uniassist/internal/config"
	"github.com/akolanti/uniassist/internal/domain/ragErrors"
	"github.com/akolanti/uniassist/internal/metrics"
	"github.com/akolanti/uniassist/internal/rag/embedding"
	"github.com/akolanti/uniassist/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const providerName = "openai"

type Options struct {
	APIKey     string
	Model      string
	Dimension  int
	BatchSize  int
	HTTPClient *http.Client
	// BaseURL points the client at a compatible server; empty means api.openai.com.
	BaseURL string
}

type Client struct {
	api       openai.Client
	model     string
	dimension int
	batchSize int
	logger    *logger_i.Logger
}

func NewOpenAIEmbedder(opts Options) *Client {
	if opts.Model == "" {
		opts.Model = config.OpenAIEmbeddingModel
	}
	if opts.Dimension <= 0 {
		opts.Dimension = int(config.EmbeddingOutputDimensionality)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = config.EmbeddingBatchSize
	}
	requestOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.HTTPClient != nil {
		requestOpts = append(requestOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	if opts.BaseURL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(opts.BaseURL))
	}
	return &Client{
		api:       openai.NewClient(requestOpts...),
		model:     opts.Model,
		dimension: opts.Dimension,
		batchSize: opts.BatchSize,
		logger:    logger_i.NewLogger("openai_embedding"),
	}
}

func (c *Client) Dimension() int { return c.dimension }

func (c *Client) Model() string { return c.model }

func (c *Client) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := c.embed(ctx, "embed_query", []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	return embedding.InBatches(ctx, texts, c.batchSize, func(ctx context.Context, batch []string) ([][]float32, error) {
		return c.embed(ctx, "embed_documents", batch)
	})
}

func (c *Client) embed(ctx context.Context, op string, texts []string) ([][]float32, error) {
	log := c.logger.WithTrace(ctx).With("op", op, "inputs", len(texts))
	start := time.Now()
	resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:          openai.EmbeddingModel(c.model),
		Dimensions:     openai.Int(int64(c.dimension)),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	metrics.CaptureExecutionMetrics("embedding", time.Since(start))
	if err != nil {
		var apiErr *openai.Error
		limited := errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
		log.Error("Error getting Embeddings from OpenAI", "error", err, "rateLimited", limited)
		return nil, &ragErrors.EmbeddingServiceError{Provider: providerName, Op: op, RateLimited: limited, Err: err}
	}
	if err := embedding.CheckCount(providerName, op, len(texts), len(resp.Data)); err != nil {
		return nil, err
	}

	// the API does not promise response order, Index does
	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		idx := int(item.Index)
		if idx < 0 || idx >= len(vectors) || vectors[idx] != nil {
			return nil, &ragErrors.EmbeddingServiceError{Provider: providerName, Op: op, Err: errors.New("invalid embedding index in response")}
		}
		vec := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float32(v)
		}
		vectors[idx] = vec
	}
	return vectors, nil
}
