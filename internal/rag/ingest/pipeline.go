// Package ingest turns a named document into a populated vector collection:
// extract, chunk, embed, store. Ingestion is idempotent per document and at
// most one ingestion of a given document runs at a time.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/akolanti/uniassist/internal/config"
	"github.com/akolanti/uniassist/internal/domain/commonModels"
	"github.com/akolanti/uniassist/internal/domain/ragErrors"
	"github.com/akolanti/uniassist/internal/metrics"
	"github.com/akolanti/uniassist/internal/rag/chunker"
	"github.com/akolanti/uniassist/internal/rag/embedding"
	"github.com/akolanti/uniassist/internal/rag/extract"
	"github.com/akolanti/uniassist/internal/rag/vectorDB"
	"github.com/akolanti/uniassist/pkg/logger_i"
	"golang.org/x/sync/singleflight"
)

var logger = logger_i.NewLogger("Document Ingestion")

type Status string

const (
	StatusIngested         Status = "ingested"
	StatusAlreadyProcessed Status = "already_processed"
)

type Options struct {
	// Force drops an existing collection and ingests the source again.
	Force bool
}

type Result struct {
	Document   string   `json:"document"`
	Source     string   `json:"source,omitempty"`
	Status     Status   `json:"status"`
	ChunkCount int      `json:"chunk_count"`
	Warnings   []string `json:"warnings,omitempty"`
}

type Config struct {
	DocumentsRoot  string
	ChunkSize      int
	ChunkOverlap   int
	EmbedBatchSize int
	ExtractTimeout time.Duration
	EmbedTimeout   time.Duration
	// RunTimeout bounds a shared ingestion run, which outlives the callers
	// waiting on it.
	RunTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = config.ChunkSize
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = config.ChunkOverlap
	}
	if c.EmbedBatchSize <= 0 {
		c.EmbedBatchSize = config.EmbeddingBatchSize
	}
	if c.ExtractTimeout <= 0 {
		c.ExtractTimeout = config.ExtractTimeout
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = config.EmbedTimeout
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = config.IngestJobTimeout
	}
}

type Pipeline struct {
	cfg       Config
	library   *Library
	extractor extract.Extractor
	embedder  embedding.Embedder
	store     vectorDB.Store
	locker    Locker
	group     singleflight.Group
}

func NewPipeline(cfg Config, extractor extract.Extractor, embedder embedding.Embedder, store vectorDB.Store, locker Locker) *Pipeline {
	cfg.applyDefaults()
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Pipeline{
		cfg:       cfg,
		library:   NewLibrary(cfg.DocumentsRoot),
		extractor: extractor,
		embedder:  embedder,
		store:     store,
		locker:    locker,
	}
}

func (p *Pipeline) Library() *Library { return p.library }

// Ingest makes sure the named document has a collection. Concurrent calls for
// the same document share one run. The run is detached from every caller: a
// caller whose ctx ends gets ctx.Err() while the others keep waiting.
func (p *Pipeline) Ingest(ctx context.Context, documentName string, opts Options) (*Result, error) {
	stem := extract.Stem(documentName)
	if stem == "" || stem == "." {
		return nil, &ragErrors.InvalidParamsError{Reason: fmt.Sprintf("invalid document name %q", documentName)}
	}

	key := stem
	if opts.Force {
		key += "\x00force"
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	runs := p.group.DoChan(key, func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.RunTimeout)
		defer cancel()
		return p.ingestLocked(runCtx, documentName, stem, opts)
	})

	var shared singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case shared = <-runs:
	}
	if shared.Err != nil {
		return nil, shared.Err
	}
	result := *shared.Val.(*Result)
	result.Warnings = append([]string(nil), result.Warnings...)
	return &result, nil
}

// EnsureIngested is the reader's gate: it returns once the collection for the
// document exists and is not being written.
func (p *Pipeline) EnsureIngested(ctx context.Context, documentName string) (string, error) {
	result, err := p.Ingest(ctx, documentName, Options{})
	if err != nil {
		return "", err
	}
	return result.Document, nil
}

func (p *Pipeline) ingestLocked(ctx context.Context, documentName, stem string, opts Options) (*Result, error) {
	log := logger.WithTrace(ctx).With("document", stem)
	release, err := p.locker.Acquire(ctx, stem)
	if err != nil {
		return nil, err
	}
	defer release()

	exists, err := p.store.CollectionExists(ctx, stem)
	if err != nil {
		return nil, err
	}
	if exists && !opts.Force {
		count, err := p.store.Count(ctx, stem)
		if err != nil {
			return nil, err
		}
		metrics.CaptureIngestion(string(StatusAlreadyProcessed), 0)
		return &Result{Document: stem, Status: StatusAlreadyProcessed, ChunkCount: count}, nil
	}

	source, err := p.library.Resolve(documentName)
	if err != nil {
		metrics.CaptureIngestion("error", 0)
		return nil, err
	}

	// a forced run reads the source again unless the export is the only source
	if forgetter, ok := p.extractor.(extract.Forgetter); ok && opts.Force && extract.TypeOf(source) != commonModels.JSON {
		if err := forgetter.Forget(stem); err != nil {
			log.Warn("could not drop cached extraction", "error", err)
		}
	}

	result, err := p.run(ctx, stem, source, exists)
	if err != nil {
		metrics.CaptureIngestion("error", 0)
		log.Error("ingestion failed", "source", source, "error", err)
		return nil, err
	}
	metrics.CaptureIngestion(string(StatusIngested), result.ChunkCount)
	log.Info("document ingested", "source", source, "chunks", result.ChunkCount, "warnings", len(result.Warnings))
	return result, nil
}

// run builds the records for source. With replace set, the old collection is
// dropped only once the new records are embedded, so a failed extraction or
// embedding keeps the previous index.
func (p *Pipeline) run(ctx context.Context, stem, source string, replace bool) (result *Result, err error) {
	log := logger.WithTrace(ctx).With("document", stem)

	extractCtx, cancel := context.WithTimeout(ctx, p.cfg.ExtractTimeout)
	start := time.Now()
	extraction, err := p.extractor.Extract(extractCtx, source)
	cancel()
	metrics.CaptureExecutionMetrics("extraction", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", filepath.Base(source), err)
	}

	chunks, err := chunker.Split(stem, extraction.Pages, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no text could be extracted from %s", filepath.Base(source))
	}
	log.Debug("document chunked", "pages", len(extraction.Pages), "chunks", len(chunks))

	ids, texts, metadatas := prepareChunks(chunks, filepath.Base(source))
	vectors, err := p.embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	if replace {
		log.Info("forced re-ingestion, dropping collection")
		if err := p.store.DeleteCollection(ctx, stem); err != nil {
			return nil, err
		}
	}
	if _, err := p.store.CreateCollection(ctx, stem); err != nil {
		return nil, err
	}
	defer func() {
		if err == nil {
			return
		}
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if cleanupErr := p.store.DeleteCollection(cleanupCtx, stem); cleanupErr != nil {
			err = errors.Join(err, fmt.Errorf("cleaning up collection %s: %w", stem, cleanupErr))
		}
	}()

	if err := p.store.Upsert(ctx, stem, ids, vectors, texts, metadatas); err != nil {
		return nil, err
	}

	return &Result{
		Document:   stem,
		Source:     source,
		Status:     StatusIngested,
		ChunkCount: len(chunks),
		Warnings:   extraction.Warnings,
	}, nil
}

// embed sends the chunk texts in batches, each under its own timeout.
func (p *Pipeline) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := embedding.InBatches(ctx, texts, p.cfg.EmbedBatchSize, func(ctx context.Context, batch []string) ([][]float32, error) {
		batchCtx, cancel := context.WithTimeout(ctx, p.cfg.EmbedTimeout)
		defer cancel()
		return p.embedder.EmbedDocuments(batchCtx, batch)
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, embedding.CheckCount(p.embedder.Model(), "embed_documents", len(texts), len(vectors))
	}
	return vectors, nil
}

func prepareChunks(chunks []commonModels.DocChunk, source string) ([]string, []string, []commonModels.ChunkMetadata) {
	ids := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	metadatas := make([]commonModels.ChunkMetadata, len(chunks))
	for i, chunk := range chunks {
		ids[i] = ChunkID(chunk.Document, chunk.Ordinal)
		texts[i] = chunk.Text
		metadatas[i] = commonModels.ChunkMetadata{
			Source:  source,
			ChunkId: ids[i],
			Page:    chunk.Page,
			Ordinal: chunk.Ordinal,
		}
	}
	return ids, texts, metadatas
}

func ChunkID(document string, ordinal int) string {
	return fmt.Sprintf("%s_chunk_%d", document, ordinal)
}
