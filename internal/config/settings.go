package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Settings is the runtime configuration. Defaults come from the constants in
// this package, a YAML file may override them and the environment wins last.
type Settings struct {
	DocumentsRoot   string `yaml:"documents_root"`
	VectorStoreRoot string `yaml:"vector_store_root"`
	VectorBackend   string `yaml:"vector_backend"`

	Qdrant QdrantSettings `yaml:"qdrant"`
	Redis  RedisSettings  `yaml:"redis"`

	Embedding  EmbeddingSettings  `yaml:"embedding"`
	Completion CompletionSettings `yaml:"completion"`

	ChunkSize        int  `yaml:"chunk_size"`
	ChunkOverlap     int  `yaml:"chunk_overlap"`
	TopK             int  `yaml:"top_k"`
	MaxIterations    int  `yaml:"max_iterations"`
	CacheExtractions bool `yaml:"cache_extractions"`

	LockBackend string `yaml:"lock_backend"`
	AuthToken   string `yaml:"-"`

	Timeouts TimeoutSettings `yaml:"timeouts"`
}

type QdrantSettings struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	UseTLS   bool   `yaml:"use_tls"`
	APIKey   string `yaml:"-"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisSettings struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"-"`
}

type EmbeddingSettings struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
	APIKey    string `yaml:"-"`
}

type CompletionSettings struct {
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	APIKey      string  `yaml:"-"`
}

type TimeoutSettings struct {
	Extract    time.Duration `yaml:"extract"`
	Embed      time.Duration `yaml:"embed"`
	Completion time.Duration `yaml:"completion"`
	Tool       time.Duration `yaml:"tool"`
	ChatJob    time.Duration `yaml:"chat_job"`
	IngestJob  time.Duration `yaml:"ingest_job"`
}

// DefaultSettings mirrors the compiled-in constants.
func DefaultSettings() *Settings {
	return &Settings{
		DocumentsRoot:   DocumentsRoot,
		VectorStoreRoot: VectorStoreRoot,
		VectorBackend:   VectorBackendBolt,
		Qdrant: QdrantSettings{
			Host:     QdrantHost,
			Port:     QdrantGrpcPort,
			UseTLS:   QdrantUseTLS,
			PoolSize: QdrantPoolSize,
		},
		Redis: RedisSettings{Addr: RedisAddr, Password: RedisPassword},
		Embedding: EmbeddingSettings{
			Provider:  EmbeddingProviderGoogle,
			Model:     GoogleEmbeddingModel,
			Dimension: int(EmbeddingOutputDimensionality),
			BatchSize: EmbeddingBatchSize,
		},
		Completion: CompletionSettings{
			Model:       GeminiModelName,
			Temperature: ModelTemperature,
		},
		ChunkSize:        ChunkSize,
		ChunkOverlap:     ChunkOverlap,
		TopK:             DefaultTopK,
		MaxIterations:    MaxAgentIterations,
		CacheExtractions: true,
		LockBackend:      LockBackendLocal,
		Timeouts: TimeoutSettings{
			Extract:    ExtractTimeout,
			Embed:      EmbedTimeout,
			Completion: CompletionTimeout,
			Tool:       ToolTimeout,
			ChatJob:    ChatJobTimeout,
			IngestJob:  IngestJobTimeout,
		},
	}
}

// LoadSettings reads .env (if any), then the YAML file at path (a missing file
// means defaults), then environment overrides.
func LoadSettings(path string) (*Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := DefaultSettings()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading settings %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing settings %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the settings as YAML, creating directories as needed.
func (s *Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *Settings) Validate() error {
	if s.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", s.ChunkSize)
	}
	if s.ChunkOverlap < 0 || s.ChunkOverlap >= s.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, chunk_size), got %d", s.ChunkOverlap)
	}
	switch s.VectorBackend {
	case VectorBackendBolt, VectorBackendQdrant:
	default:
		return fmt.Errorf("unknown vector_backend %q", s.VectorBackend)
	}
	switch s.Embedding.Provider {
	case EmbeddingProviderGoogle, EmbeddingProviderOpenAI, EmbeddingProviderLocal:
	default:
		return fmt.Errorf("unknown embedding provider %q", s.Embedding.Provider)
	}
	switch s.LockBackend {
	case LockBackendLocal, LockBackendRedis:
	default:
		return fmt.Errorf("unknown lock_backend %q", s.LockBackend)
	}
	if s.Completion.Temperature < 0 || s.Completion.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0, 2], got %v", s.Completion.Temperature)
	}
	if s.Timeouts.Tool+s.Timeouts.Completion > s.Timeouts.ChatJob {
		return fmt.Errorf("timeouts.tool (%s) plus timeouts.completion (%s) must fit in timeouts.chat_job (%s)",
			s.Timeouts.Tool, s.Timeouts.Completion, s.Timeouts.ChatJob)
	}
	return nil
}

func applyEnv(cfg *Settings) {
	if v := os.Getenv("UNIASSIST_DOCUMENTS_ROOT"); v != "" {
		cfg.DocumentsRoot = v
	}
	if v := os.Getenv("UNIASSIST_VECTOR_STORE_ROOT"); v != "" {
		cfg.VectorStoreRoot = v
	}
	if v := os.Getenv("UNIASSIST_VECTOR_BACKEND"); v != "" {
		cfg.VectorBackend = v
	}
	if v := os.Getenv("UNIASSIST_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("UNIASSIST_LOCK_BACKEND"); v != "" {
		cfg.LockBackend = v
	}
	if v := os.Getenv("QDRANT_HOST"); v != "" {
		cfg.Qdrant.Host = v
	}
	if port, err := strconv.Atoi(os.Getenv("QDRANT_PORT")); err == nil {
		cfg.Qdrant.Port = port
	}
	cfg.Qdrant.APIKey = os.Getenv("QDRANT_API_KEY")
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	googleKey := os.Getenv("GOOGLE_API_KEY")
	if googleKey == "" {
		googleKey = os.Getenv("GEMINI_API_KEY")
	}
	cfg.Completion.APIKey = googleKey
	switch cfg.Embedding.Provider {
	case EmbeddingProviderOpenAI:
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	default:
		cfg.Embedding.APIKey = googleKey
	}
	cfg.AuthToken = os.Getenv("UNIASSIST_AUTH_TOKEN")
}

func applyDefaults(cfg *Settings) {
	if cfg.Embedding.BatchSize <= 0 {
		cfg.Embedding.BatchSize = EmbeddingBatchSize
	}
	if cfg.Embedding.Model == "" || (cfg.Embedding.Provider == EmbeddingProviderOpenAI && cfg.Embedding.Model == GoogleEmbeddingModel) {
		switch cfg.Embedding.Provider {
		case EmbeddingProviderOpenAI:
			cfg.Embedding.Model = OpenAIEmbeddingModel
		case EmbeddingProviderGoogle:
			cfg.Embedding.Model = GoogleEmbeddingModel
		}
	}
	if cfg.Embedding.Dimension <= 0 {
		cfg.Embedding.Dimension = int(EmbeddingOutputDimensionality)
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = MaxAgentIterations
	}
	if cfg.Completion.Model == "" {
		cfg.Completion.Model = GeminiModelName
	}
	if cfg.Timeouts.Extract <= 0 {
		cfg.Timeouts.Extract = ExtractTimeout
	}
	if cfg.Timeouts.Embed <= 0 {
		cfg.Timeouts.Embed = EmbedTimeout
	}
	if cfg.Timeouts.Completion <= 0 {
		cfg.Timeouts.Completion = CompletionTimeout
	}
	if cfg.Timeouts.Tool <= 0 {
		cfg.Timeouts.Tool = ToolTimeout
	}
	if cfg.Timeouts.ChatJob <= 0 {
		cfg.Timeouts.ChatJob = ChatJobTimeout
	}
	if cfg.Timeouts.IngestJob <= 0 {
		cfg.Timeouts.IngestJob = IngestJobTimeout
	}
	if cfg.Qdrant.PoolSize <= 0 {
		cfg.Qdrant.PoolSize = QdrantPoolSize
	}
}
