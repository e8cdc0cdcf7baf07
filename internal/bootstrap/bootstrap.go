// Package bootstrap builds the object graph shared by the HTTP API, the CLI
// and the MCP server from a config.Settings.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/akolanti/uniassist/internal/agent"
	"github.com/akolanti/uniassist/internal/config"
	"github.com/akolanti/uniassist/internal/customHttpClient"
	"github.com/akolanti/uniassist/internal/data/redisStore"
	"github.com/akolanti/uniassist/internal/data/store"
	"github.com/akolanti/uniassist/internal/domain/jobModel"
	"github.com/akolanti/uniassist/internal/domain/sessionModel"
	"github.com/akolanti/uniassist/internal/rag/embedding"
	"github.com/akolanti/uniassist/internal/rag/embedding/googleEmbedding"
	"github.com/akolanti/uniassist/internal/rag/embedding/localEmbedding"
	"github.com/akolanti/uniassist/internal/rag/embedding/openaiEmbedding"
	"github.com/akolanti/uniassist/internal/rag/extract"
	"github.com/akolanti/uniassist/internal/rag/ingest"
	"github.com/akolanti/uniassist/internal/rag/llm"
	"github.com/akolanti/uniassist/internal/rag/llm/gemini"
	"github.com/akolanti/uniassist/internal/rag/retrieve"
	"github.com/akolanti/uniassist/internal/rag/vectorDB"
	"github.com/akolanti/uniassist/internal/rag/vectorDB/boltDB"
	"github.com/akolanti/uniassist/internal/rag/vectorDB/qdrantDB"
	"github.com/akolanti/uniassist/pkg/logger_i"
	"google.golang.org/genai"
)

var logger = logger_i.NewLogger("bootstrap")

var ErrMissingAPIKey = errors.New("GOOGLE_API_KEY (or GEMINI_API_KEY) is not set")

// App holds the wired components. Close releases the vector store.
type App struct {
	Settings   *config.Settings
	Store      vectorDB.Store
	Embedder   embedding.Embedder
	Pipeline   *ingest.Pipeline
	Retriever  *retrieve.Service
	Toolbox    *agent.Toolbox
	Dispatcher *agent.Dispatcher
	Sessions   sessionModel.Store
}

type Option func(*overrides)

type overrides struct {
	provider llm.Provider
	embedder embedding.Embedder
	store    vectorDB.Store
	sessions sessionModel.Store
}

// WithProvider replaces the Gemini completion provider.
func WithProvider(p llm.Provider) Option {
	return func(o *overrides) { o.provider = p }
}

func WithEmbedder(e embedding.Embedder) Option {
	return func(o *overrides) { o.embedder = e }
}

func WithStore(s vectorDB.Store) Option {
	return func(o *overrides) { o.store = s }
}

func WithSessions(s sessionModel.Store) Option {
	return func(o *overrides) { o.sessions = s }
}

// Build wires every component. The genai client is only created when the
// completion provider or the embedder needs it.
func Build(ctx context.Context, cfg *config.Settings, opts ...Option) (*App, error) {
	var o overrides
	for _, opt := range opts {
		opt(&o)
	}
	log := logger.With("vectorBackend", cfg.VectorBackend, "embedding", cfg.Embedding.Provider)

	var genaiClient *genai.Client
	needsGenai := o.provider == nil || (o.embedder == nil && cfg.Embedding.Provider == config.EmbeddingProviderGoogle)
	if needsGenai {
		if cfg.Completion.APIKey == "" {
			return nil, ErrMissingAPIKey
		}
		client, err := gemini.GetGeminiClient(ctx, cfg.Completion.APIKey)
		if err != nil {
			return nil, fmt.Errorf("creating genai client: %w", err)
		}
		genaiClient = client
	}

	embedder := o.embedder
	if embedder == nil {
		var err error
		if embedder, err = newEmbedder(cfg, genaiClient); err != nil {
			return nil, err
		}
	}

	vectors := o.store
	if vectors == nil {
		var err error
		if vectors, err = newStore(ctx, cfg, embedder.Dimension()); err != nil {
			return nil, err
		}
	}

	extractor := extract.Extractor(extract.NewRouter())
	if cfg.CacheExtractions {
		extractor = extract.NewSidecarCache(extractor, cfg.DocumentsRoot)
	}

	pipeline := ingest.NewPipeline(ingest.Config{
		DocumentsRoot:  cfg.DocumentsRoot,
		ChunkSize:      cfg.ChunkSize,
		ChunkOverlap:   cfg.ChunkOverlap,
		EmbedBatchSize: cfg.Embedding.BatchSize,
		ExtractTimeout: cfg.Timeouts.Extract,
		EmbedTimeout:   cfg.Timeouts.Embed,
		RunTimeout:     cfg.Timeouts.IngestJob,
	}, extractor, embedder, vectors, newLocker(ctx, cfg))

	retriever := retrieve.NewService(pipeline, embedder, vectors, retrieve.Options{
		DefaultK:     cfg.TopK,
		EmbedTimeout: cfg.Timeouts.Embed,
	})
	toolbox := agent.NewToolbox(pipeline, retriever)

	provider := o.provider
	if provider == nil {
		provider = gemini.NewGeminiProvider(genaiClient.Models, gemini.Options{
			Model:       cfg.Completion.Model,
			Temperature: &cfg.Completion.Temperature,
		})
	}
	sessions := o.sessions
	if sessions == nil {
		sessions = store.InitSessionStore()
	}
	dispatcher := agent.NewDispatcher(agent.Config{
		MaxIterations:     cfg.MaxIterations,
		CompletionTimeout: cfg.Timeouts.Completion,
		ToolTimeout:       cfg.Timeouts.Tool,
	}, provider, toolbox, sessions)

	log.Info("Components wired", "embeddingModel", embedder.Model(), "dimension", embedder.Dimension(), "documentsRoot", cfg.DocumentsRoot)
	return &App{
		Settings:   cfg,
		Store:      vectors,
		Embedder:   embedder,
		Pipeline:   pipeline,
		Retriever:  retriever,
		Toolbox:    toolbox,
		Dispatcher: dispatcher,
		Sessions:   sessions,
	}, nil
}

func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}

func newEmbedder(cfg *config.Settings, genaiClient *genai.Client) (embedding.Embedder, error) {
	switch cfg.Embedding.Provider {
	case config.EmbeddingProviderGoogle:
		return googleEmbedding.NewGoogleEmbedder(genaiClient.Models, googleEmbedding.Options{
			Model:     cfg.Embedding.Model,
			Dimension: cfg.Embedding.Dimension,
			BatchSize: cfg.Embedding.BatchSize,
		}), nil
	case config.EmbeddingProviderOpenAI:
		if cfg.Embedding.APIKey == "" {
			return nil, errors.New("OPENAI_API_KEY is not set")
		}
		return openaiEmbedding.NewOpenAIEmbedder(openaiEmbedding.Options{
			APIKey:     cfg.Embedding.APIKey,
			Model:      cfg.Embedding.Model,
			Dimension:  cfg.Embedding.Dimension,
			BatchSize:  cfg.Embedding.BatchSize,
			HTTPClient: customHttpClient.Shared(),
		}), nil
	case config.EmbeddingProviderLocal:
		return localEmbedding.NewLocalEmbedder(cfg.Embedding.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
}

func newStore(ctx context.Context, cfg *config.Settings, dimension int) (vectorDB.Store, error) {
	switch cfg.VectorBackend {
	case config.VectorBackendQdrant:
		return qdrantDB.GetQdrantClient(ctx, cfg.Qdrant, dimension)
	case config.VectorBackendBolt:
		return boltDB.Open(cfg.VectorStoreRoot)
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}

// newLocker falls back to in-process locks when redis is offline.
func newLocker(ctx context.Context, cfg *config.Settings) ingest.Locker {
	if cfg.LockBackend != config.LockBackendRedis {
		return ingest.NewLocalLocker()
	}
	redisLocks := redisStore.GetRedisStore(ctx, redisStore.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       config.RedisLockStore,
	})
	if redisLocks == nil {
		logger.Warn("Redis is offline, using in-process ingestion locks")
		return ingest.NewLocalLocker()
	}
	return ingest.NewRedisLocker(redisLocks)
}

// NewJobStore returns the redis job store, or the in-memory one when redis is
// offline and config.FALLBACK_REDIS_TO_INTERNALSTORE is set.
func NewJobStore(ctx context.Context, cfg *config.Settings) (jobModel.JobStore, error) {
	if redisJobs := store.GetRedisJobStore(ctx, cfg.Redis); redisJobs != nil {
		return redisJobs, nil
	}
	if !config.FALLBACK_REDIS_TO_INTERNALSTORE {
		return nil, errors.New("redis job store is offline")
	}
	logger.Warn("Redis job store is offline, using in-memory store")
	return store.InitInMemoryJobStore(), nil
}
