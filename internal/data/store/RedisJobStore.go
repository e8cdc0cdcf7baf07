package store

import (
	"context"
	"encoding/json"

	"github.com/akolanti/uniassist/internal/config"
	"github.com/akolanti/uniassist/internal/data/redisStore"
	"github.com/akolanti/uniassist/internal/domain/jobModel"
	"github.com/akolanti/uniassist/pkg/logger_i"
)

type RedisJobStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

// GetRedisJobStore returns nil when redis is offline.
func GetRedisJobStore(ctx context.Context, cfg config.RedisSettings) *RedisJobStore {
	internal := redisStore.GetRedisStore(ctx, redisStore.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       config.RedisJobStore,
	})
	if internal == nil {
		return nil
	}
	return NewRedisJobStore(internal)
}

func NewRedisJobStore(store *redisStore.Store) *RedisJobStore {
	return &RedisJobStore{
		store:  store,
		logger: logger_i.NewLogger("JobStore"),
	}
}

func (s *RedisJobStore) SaveJob(ctx context.Context, job jobModel.Job) error {
	log := s.logger.WithTrace(ctx).With("jobId", job.Id)
	log.Debug("saving job")
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}

	err = s.store.Set(ctx, jobKey(job.Id), data, config.RedisJobStoreTTL)
	if err == nil {
		log.Debug("Saved job to Redis")
	}
	return err
}

func (s *RedisJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	var job jobModel.Job
	log := s.logger.WithTrace(ctx).With("jobId", jobId)
	val, err := s.store.Get(ctx, jobKey(jobId))
	if s.store.IsNil(err) {
		return job, false
	} else if err != nil {
		log.Error("reading job failed", "error", err)
		return job, false
	}

	if err = json.Unmarshal([]byte(val), &job); err != nil {
		log.Error("stored job is not valid json", "error", err)
		return job, false
	}

	log.Debug("Job found in Redis")
	return job, true
}

func (s *RedisJobStore) DeleteJob(ctx context.Context, jobID string) {
	err := s.store.Del(ctx, jobKey(jobID))
	if err != nil {
		s.logger.Error("Error deleting job from Redis", "jobId", jobID, "error", err)
		return
	}
	s.logger.Debug("Job deleted from Redis", "jobId", jobID)
}

func jobKey(id string) string {
	return "job:" + id
}
