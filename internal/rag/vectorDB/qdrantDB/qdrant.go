package qdrantDB

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/akolanti/uniassist/internal/config"
	"github.com/akolanti/uniassist/internal/domain/commonModels"
	"github.com/akolanti/uniassist/internal/domain/ragErrors"
	"github.com/akolanti/uniassist/internal/metrics"
	"github.com/akolanti/uniassist/internal/rag/vectorDB"
	"github.com/akolanti/uniassist/pkg/logger_i"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const backendName = "qdrant"

// pointNamespace derives stable point ids from chunk ids; qdrant only accepts
// UUIDs or unsigned integers.
var pointNamespace = uuid.MustParse("6f1c1b0e-8c4d-4c1e-9a57-2d0f3b7e5a41")

type ClientHolder struct {
	QObj      *qdrant.Client
	dimension uint64
	logger    *logger_i.Logger
}

// GetQdrantClient connects and checks the server with a collection listing.
func GetQdrantClient(ctx context.Context, cfg config.QdrantSettings, dimension int) (*ClientHolder, error) {
	logger := logger_i.NewLogger("Qdrant").With("host", cfg.Host, "port", cfg.Port)
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		APIKey:   cfg.APIKey,
		UseTLS:   cfg.UseTLS,
		PoolSize: uint(cfg.PoolSize),
	})
	if err != nil {
		logger.Error("could not instantiate", "error", err)
		return nil, &ragErrors.StoreUnavailableError{Backend: backendName, Err: err}
	}

	pingCtx, cancel := context.WithTimeout(ctx, config.QdrantConnectionTimeout)
	defer cancel()
	if _, err := client.ListCollections(pingCtx); err != nil {
		logger.Error("qdrant is offline", "error", err)
		_ = client.Close()
		return nil, &ragErrors.StoreUnavailableError{Backend: backendName, Err: err}
	}

	logger.Info("Qdrant client ready")
	return &ClientHolder{QObj: client, dimension: uint64(dimension), logger: logger}, nil
}

func (db *ClientHolder) Close() error {
	db.logger.Info("Shutting down Qdrant")
	return db.QObj.Close()
}

func (db *ClientHolder) CollectionExists(ctx context.Context, name string) (bool, error) {
	exists, err := db.QObj.CollectionExists(ctx, name)
	return exists, classify(name, err)
}

func (db *ClientHolder) CreateCollection(ctx context.Context, collectionName string) (bool, error) {
	if collectionName == "" {
		return false, &ragErrors.InvalidParamsError{Reason: "empty collection name"}
	}

	exists, err := db.QObj.CollectionExists(ctx, collectionName)
	if err != nil {
		return false, classify(collectionName, err)
	}
	if exists {
		return false, nil
	}

	err = db.QObj.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     db.dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		// another replica may have won the race
		if s, ok := status.FromError(err); ok && s.Code() == codes.AlreadyExists {
			return false, nil
		}
		return false, classify(collectionName, err)
	}
	db.logger.WithTrace(ctx).Debug("collection created", "collection", collectionName)
	return true, nil
}

func (db *ClientHolder) Upsert(ctx context.Context, collectionName string, ids []string, vectors [][]float32, texts []string, metadatas []commonModels.ChunkMetadata) error {
	if err := vectorDB.ValidateUpsert(collectionName, ids, vectors, texts, metadatas, int(db.dimension)); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, len(ids))
	for i, id := range ids {
		qdrantPoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(id)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(toPayload(texts[i], metadatas[i])),
		}
	}

	_, err := db.QObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collectionName,
		Points:         qdrantPoints,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", classify(collectionName, err))
	}
	return nil
}

func (db *ClientHolder) Query(ctx context.Context, collectionName string, vectorFloat []float32, k int) ([]commonModels.Hit, error) {
	log := db.logger.WithTrace(ctx).With("collection", collectionName)
	hits := make([]commonModels.Hit, 0)
	if k <= 0 {
		return hits, nil
	}

	start := time.Now()
	result, err := db.QObj.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collectionName,
		Query:          qdrant.NewQuery(vectorFloat...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	metrics.CaptureExecutionMetrics("vector_search", time.Since(start))
	if err != nil {
		log.Error("Error querying Qdrant", "error", err)
		return nil, classify(collectionName, err)
	}

	for _, point := range result {
		hit := fromPayload(point.Payload)
		hit.Score = point.Score
		hits = append(hits, hit)
	}
	vectorDB.SortHits(hits)
	log.Debug("query done", "hits", len(hits))
	return hits, nil
}

func (db *ClientHolder) ListCollections(ctx context.Context) ([]string, error) {
	names, err := db.QObj.ListCollections(ctx)
	if err != nil {
		return nil, classify("", err)
	}
	sort.Strings(names)
	return names, nil
}

func (db *ClientHolder) DeleteCollection(ctx context.Context, name string) error {
	err := db.QObj.DeleteCollection(ctx, name)
	if err == nil {
		return nil
	}
	var notFound *ragErrors.CollectionNotFoundError
	if err = classify(name, err); errors.As(err, &notFound) {
		return nil
	}
	return err
}

func (db *ClientHolder) Count(ctx context.Context, name string) (int, error) {
	count, err := db.QObj.Count(ctx, &qdrant.CountPoints{
		CollectionName: name,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, classify(name, err)
	}
	return int(count), nil
}

// PointID maps a chunk id to its qdrant point id.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

func toPayload(text string, meta commonModels.ChunkMetadata) map[string]any {
	return map[string]any{
		"content":  text,
		"source":   meta.Source,
		"chunk_id": meta.ChunkId,
		"page":     int64(meta.Page),
		"ordinal":  int64(meta.Ordinal),
	}
}

func fromPayload(payload map[string]*qdrant.Value) commonModels.Hit {
	return commonModels.Hit{
		Text: payload["content"].GetStringValue(),
		Metadata: commonModels.ChunkMetadata{
			Source:  payload["source"].GetStringValue(),
			ChunkId: payload["chunk_id"].GetStringValue(),
			Page:    int(payload["page"].GetIntegerValue()),
			Ordinal: int(payload["ordinal"].GetIntegerValue()),
		},
	}
}

// classify maps gRPC failures onto the store error taxonomy.
func classify(collection string, err error) error {
	if err == nil {
		return nil
	}
	s, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch s.Code() {
	case codes.NotFound:
		return &ragErrors.CollectionNotFoundError{Collection: collection}
	case codes.Unavailable, codes.DeadlineExceeded, codes.Unauthenticated:
		return &ragErrors.StoreUnavailableError{Backend: backendName, Err: err}
	case codes.InvalidArgument:
		return &ragErrors.ShapeMismatchError{Collection: collection, Reason: s.Message()}
	default:
		return err
	}
}
