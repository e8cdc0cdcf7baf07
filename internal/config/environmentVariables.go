package config

import (
	"log/slog"
	"time"
)

type traceKey string

const (
	IS_PROD                         = false
	LOG_LEVEL_PROD                  = slog.LevelInfo
	FALLBACK_REDIS_TO_INTERNALSTORE = true //if redis init fails, it falls back to an internal in-memory store
	TRACE_ID_KEY           traceKey = "traceId"
	RATE_LIMIT_PER_SECOND           = 2
	BURST_RATE_LIMIT_PER_SECOND     = 5

	//auth - the bearer token itself comes from UNIASSIST_AUTH_TOKEN
	NoAuthBypass = false

	//gemini-embedding-001 supports truncation to 768/1536/3072
	EmbeddingOutputDimensionality int32 = 768
	EmbeddingBatchSize                  = 100

	RequestsPerNewWorkerCount int64 = 10
	MaxWorkerCount            int64 = 10
	MinWorkerCount            int64 = 1
	IdleWorkerTimeout               = 1 * time.Minute

	//job timeouts, a chat must fit one tool call plus its completions
	ChatJobTimeout   = 6 * time.Minute
	IngestJobTimeout = 15 * time.Minute

	//serverTimeouts
	ReadTimeout            = 30 * time.Second //multipart uploads
	WriteTimeout           = 10 * time.Second
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second

	//server listening port
	ServerListenAddr = ":3000"

	//job requests buffer limit
	BufferLimit = 100

	//upload limit for POST /ingest multipart bodies
	MaxUploadSize = 32 << 20

	//vectorDB
	VectorBackendBolt       = "bolt"
	VectorBackendQdrant     = "qdrant"
	VectorStoreFileName     = "vectors.db"
	BoltOpenTimeout         = 5 * time.Second
	QdrantConnectionTimeout = 30 * time.Second
	QdrantHost              = "localhost"
	QdrantGrpcPort          = 6334
	QdrantUseTLS            = false //set for https
	QdrantPoolSize          = 1     //2-5 is preferred for prod according to documentation

	//filesystem
	DocumentsRoot   = "documentos"
	VectorStoreRoot = "vector_db"

	//chunking - same window as the original splitter
	ChunkSize    = 1000
	ChunkOverlap = 100
	DefaultTopK  = 5

	//agent loop
	MaxAgentIterations = 5
	ExtractTimeout     = 2 * time.Minute
	PageExtractTimeout = 10 * time.Second
	EmbedTimeout       = 60 * time.Second
	CompletionTimeout  = 60 * time.Second
	ToolTimeout        = 4 * time.Minute

	//llm
	GeminiModelName          = "gemini-2.5-flash"
	ModelTemperature float32 = 0.2

	//embeddings
	EmbeddingProviderGoogle = "google"
	EmbeddingProviderOpenAI = "openai"
	EmbeddingProviderLocal  = "local"
	GoogleEmbeddingModel    = "gemini-embedding-001"
	OpenAIEmbeddingModel    = "text-embedding-3-small"

	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second

	//redis
	redisHost     = "127.0.0.1"
	redisPort     = "6379"
	RedisAddr     = redisHost + ":" + redisPort
	RedisPassword = ""

	//redis has 16 DB we can use
	RedisJobStore  = 0
	RedisLockStore = 2

	//redis timeouts
	RedisJobStoreTTL  = 24 * time.Hour
	IngestLockTTL     = 20 * time.Minute
	IngestLockBackoff = 250 * time.Millisecond

	//locks
	LockBackendLocal = "local"
	LockBackendRedis = "redis"

	DefaultSessionId = "user123"
)
