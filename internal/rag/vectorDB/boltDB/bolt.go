// Package boltDB is the default vector store: a single bbolt file with one
// bucket per collection and exhaustive cosine search.
package boltDB

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/akolanti/uniassist/internal/config"
	"github.com/akolanti/uniassist/internal/domain/commonModels"
	"github.com/akolanti/uniassist/internal/domain/ragErrors"
	"github.com/akolanti/uniassist/internal/metrics"
	"github.com/akolanti/uniassist/internal/rag/vectorDB"
	"github.com/akolanti/uniassist/pkg/logger_i"
	"go.etcd.io/bbolt"
)

const backendName = "bolt"

var (
	bucketCollections = []byte("_collections")
	collectionPrefix  = "col:"
)

type record struct {
	Vector   []float32                  `json:"vector"`
	Text     string                     `json:"text"`
	Metadata commonModels.ChunkMetadata `json:"metadata"`
}

type Store struct {
	db     *bbolt.DB
	path   string
	logger *logger_i.Logger
}

// Open creates root if needed and opens <root>/vectors.db.
func Open(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &ragErrors.StoreUnavailableError{Backend: backendName, Err: err}
	}
	path := filepath.Join(root, config.VectorStoreFileName)
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: config.BoltOpenTimeout})
	if err != nil {
		return nil, &ragErrors.StoreUnavailableError{Backend: backendName, Err: fmt.Errorf("opening %s: %w", path, err)}
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCollections)
		return err
	})
	if err != nil {
		db.Close()
		return nil, &ragErrors.StoreUnavailableError{Backend: backendName, Err: err}
	}

	logger := logger_i.NewLogger("BoltStore").With("path", path)
	logger.Info("vector store opened")
	return &Store{db: db, path: path, logger: logger}, nil
}

func bucketName(collection string) []byte {
	return []byte(collectionPrefix + collection)
}

func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var exists bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket(bucketCollections).Get([]byte(name)) != nil
		return nil
	})
	return exists, s.wrap(err)
}

func (s *Store) CreateCollection(ctx context.Context, name string) (bool, error) {
	if name == "" {
		return false, &ragErrors.InvalidParamsError{Reason: "empty collection name"}
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var created bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketCollections)
		if meta.Get([]byte(name)) != nil {
			return nil
		}
		if _, err := tx.CreateBucketIfNotExists(bucketName(name)); err != nil {
			return err
		}
		info, err := json.Marshal(commonModels.CollectionInfo{Name: name, CreatedAt: time.Now().UTC()})
		if err != nil {
			return err
		}
		created = true
		return meta.Put([]byte(name), info)
	})
	if err != nil {
		return false, s.wrap(err)
	}
	if created {
		s.logger.WithTrace(ctx).Debug("collection created", "collection", name)
	}
	return created, nil
}

// Upsert writes the whole batch in one transaction, readers see all of it or none.
func (s *Store) Upsert(ctx context.Context, collection string, ids []string, vectors [][]float32, texts []string, metadatas []commonModels.ChunkMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketCollections)
		info, err := readInfo(meta, collection)
		if err != nil {
			return err
		}
		if err := vectorDB.ValidateUpsert(collection, ids, vectors, texts, metadatas, info.Dimension); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		bucket := tx.Bucket(bucketName(collection))
		for i, id := range ids {
			data, err := json.Marshal(record{Vector: vectors[i], Text: texts[i], Metadata: metadatas[i]})
			if err != nil {
				return err
			}
			if err := bucket.Put([]byte(id), data); err != nil {
				return err
			}
		}

		if info.Dimension == 0 {
			info.Dimension = len(vectors[0])
			data, err := json.Marshal(info)
			if err != nil {
				return err
			}
			return meta.Put([]byte(collection), data)
		}
		return nil
	})
	return s.wrap(err)
}

func (s *Store) Query(ctx context.Context, collection string, vector []float32, k int) ([]commonModels.Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("vector_search", time.Since(start)) }()

	hits := make([]commonModels.Hit, 0)
	if k <= 0 {
		return hits, nil
	}
	err := s.db.View(func(tx *bbolt.Tx) error {
		info, err := readInfo(tx.Bucket(bucketCollections), collection)
		if err != nil {
			return err
		}
		if info.Dimension != 0 && info.Dimension != len(vector) {
			return &ragErrors.ShapeMismatchError{
				Collection: collection,
				Reason:     fmt.Sprintf("query dimension %d, collection dimension %d", len(vector), info.Dimension),
			}
		}
		return tx.Bucket(bucketName(collection)).ForEach(func(_, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			hits = append(hits, commonModels.Hit{
				Text:     rec.Text,
				Metadata: rec.Metadata,
				Score:    vectorDB.Cosine(vector, rec.Vector),
			})
			return nil
		})
	})
	if err != nil {
		return nil, s.wrap(err)
	}

	vectorDB.SortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	names := make([]string, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCollections).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, s.wrap(err)
}

// Info returns the stored description of a collection.
func (s *Store) Info(ctx context.Context, name string) (commonModels.CollectionInfo, error) {
	var info commonModels.CollectionInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		info, err = readInfo(tx.Bucket(bucketCollections), name)
		return err
	})
	return info, s.wrap(err)
}

// DeleteCollection is a no-op for a missing collection.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketCollections)
		if meta.Get([]byte(name)) == nil {
			return nil
		}
		if err := tx.DeleteBucket(bucketName(name)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		return meta.Delete([]byte(name))
	})
	if err == nil {
		s.logger.WithTrace(ctx).Debug("collection deleted", "collection", name)
	}
	return s.wrap(err)
}

func (s *Store) Count(ctx context.Context, name string) (int, error) {
	var count int
	err := s.db.View(func(tx *bbolt.Tx) error {
		if _, err := readInfo(tx.Bucket(bucketCollections), name); err != nil {
			return err
		}
		count = tx.Bucket(bucketName(name)).Stats().KeyN
		return nil
	})
	return count, s.wrap(err)
}

func (s *Store) Close() error {
	s.logger.Info("closing vector store")
	return s.db.Close()
}

func readInfo(meta *bbolt.Bucket, name string) (commonModels.CollectionInfo, error) {
	var info commonModels.CollectionInfo
	data := meta.Get([]byte(name))
	if data == nil {
		return info, &ragErrors.CollectionNotFoundError{Collection: name}
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, fmt.Errorf("decoding collection info %q: %w", name, err)
	}
	return info, nil
}

// wrap leaves domain errors alone and marks a closed database as unavailable.
func (s *Store) wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return &ragErrors.StoreUnavailableError{Backend: backendName, Err: err}
	}
	return err
}
