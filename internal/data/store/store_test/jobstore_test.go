package store_test

import (
	"context"
	"sync"
	"testing"

	"github.com/akolanti/uniassist/internal/config"
	"github.com/akolanti/uniassist/internal/data/redisStore"
	"github.com/akolanti/uniassist/internal/data/store"
	"github.com/akolanti/uniassist/internal/domain/jobModel"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisJobStore(t *testing.T) (*miniredis.Miniredis, *store.RedisJobStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, store.NewRedisJobStore(redisStore.NewTestStore(client))
}

func TestRedisJobStore_Lifecycle(t *testing.T) {
	mr, jobStore := newRedisJobStore(t)

	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "test-trace")
	jobID := "job_abc_123"

	testJob := jobModel.Job{
		Id:      jobID,
		JobType: jobModel.JobTypeIngest,
		Status:  jobModel.JobStatusRunning,
		JobPayload: jobModel.JobPayload{
			DocumentName: "regulamento",
			ChunkCount:   12,
		},
	}

	t.Run("Save and Get Roundtrip", func(t *testing.T) {
		err := jobStore.SaveJob(ctx, testJob)
		if err != nil {
			t.Fatalf("SaveJob failed: %v", err)
		}

		retrievedJob, found := jobStore.GetJob(ctx, jobID)
		if !found {
			t.Fatal("Job was saved but not found in Redis")
		}

		if retrievedJob.JobPayload.DocumentName != testJob.JobPayload.DocumentName ||
			retrievedJob.JobPayload.ChunkCount != testJob.JobPayload.ChunkCount {
			t.Errorf("Data mismatch! Got %+v, want %+v", retrievedJob.JobPayload, testJob.JobPayload)
		}
		if ttl := mr.TTL("job:" + jobID); ttl != config.RedisJobStoreTTL {
			t.Errorf("expected ttl %v, got %v", config.RedisJobStoreTTL, ttl)
		}
	})

	t.Run("Get Non-Existent Job", func(t *testing.T) {
		_, found := jobStore.GetJob(ctx, "ghost-id")
		if found {
			t.Error("Expected found=false for non-existent key")
		}
	})

	t.Run("Corrupted payload is a miss", func(t *testing.T) {
		mr.Set("job:broken", "{not json")
		if _, found := jobStore.GetJob(ctx, "broken"); found {
			t.Error("Expected found=false for an unparsable job")
		}
	})

	t.Run("Delete Job", func(t *testing.T) {
		jobStore.DeleteJob(ctx, jobID)

		if mr.Exists("job:" + jobID) {
			t.Error("Job still exists in Redis after DeleteJob call")
		}
	})
}

func TestRedisJobStore_Race(t *testing.T) {
	_, jobStore := newRedisJobStore(t)

	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "race-trace")
	job := jobModel.Job{Id: "race-job"}

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = jobStore.SaveJob(ctx, job)
			_, _ = jobStore.GetJob(ctx, "race-job")
		}()
	}
	wg.Wait()

	if _, found := jobStore.GetJob(ctx, "race-job"); !found {
		t.Error("job missing after concurrent saves")
	}
}

func TestInMemoryJobStore(t *testing.T) {
	jobStore := store.InitInMemoryJobStore()
	ctx := context.Background()

	if err := jobStore.SaveJob(ctx, jobModel.Job{Id: "a", Status: jobModel.JobStatusQueued}); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}
	got, found := jobStore.GetJob(ctx, "a")
	if !found || got.Status != jobModel.JobStatusQueued {
		t.Fatalf("unexpected lookup result %+v %v", got, found)
	}
	jobStore.DeleteJob(ctx, "a")
	if _, found := jobStore.GetJob(ctx, "a"); found {
		t.Error("job still present after delete")
	}
}
