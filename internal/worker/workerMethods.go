package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/akolanti/uniassist/internal/config"
	jobmodel "github.com/akolanti/uniassist/internal/domain/jobModel"
	"github.com/akolanti/uniassist/internal/metrics"
	"github.com/akolanti/uniassist/pkg/logger_i"
)

func executeJob(job jobmodel.Job) {
	start := time.Now()
	defer func() {
		metrics.CaptureJobMetrics(string(job.Status), time.Since(start))
	}()
	ctxTrace := context.WithValue(context.Background(), config.TRACE_ID_KEY, job.TraceId)
	timeout := chatJobTimeout
	if job.JobType == jobmodel.JobTypeIngest {
		timeout = ingestJobTimeout
	}
	ctx, cancel := context.WithTimeout(ctxTrace, timeout)
	defer cancel()
	log := logger.WithTrace(ctx).With("jobId", job.Id, "jobType", job.JobType)
	log.Debug("Processing job")

	job = saveJobState(ctx, job, jobmodel.JobStatusRunning)

	if job.JobType == jobmodel.JobTypeIngest {
		job = ingestDocument(job, ctx, log)
	} else {
		job = processQuery(job, ctx, log)
	}

	job.EndTime = time.Now()
	final := jobmodel.JobStatusComplete
	if job.Status == jobmodel.JobStatusError {
		final = jobmodel.JobStatusError
	}
	job = saveJobState(context.WithoutCancel(ctx), job, final)
	log.Info("Job finished", "status", job.Status, "step", job.CurrentStep)
}

func removeWorker(reason string) {

	workerWaitGroup.Done()
	count := atomic.AddInt64(&currentWorkerCount, -1)
	logger.Info("Removed worker", "reason", reason, "workerCount", count)
	metrics.DecrementActiveWorkerCount()

}

func ingestDocument(job jobmodel.Job, ctx context.Context, log *logger_i.Logger) jobmodel.Job {
	job.CurrentStep = jobmodel.IngestProcessing
	job = _ragService.IngestDocument(ctx, job)
	log.Debug("Ingestion done", "step", job.CurrentStep, "chunks", job.JobPayload.ChunkCount)
	return job
}

func processQuery(job jobmodel.Job, ctx context.Context, log *logger_i.Logger) jobmodel.Job {
	job.CurrentStep = jobmodel.AgentLoop
	job = _ragService.ProcessRequest(ctx, job)
	log.Debug("Query done", "step", job.CurrentStep, "outcome", job.JobPayload.Outcome)
	return job
}

func saveJobState(ctx context.Context, job jobmodel.Job, jobStatus jobmodel.JobStatus) jobmodel.Job {
	job.Status = jobStatus
	if err := _jobService.JobStore.SaveJob(ctx, job); err != nil {
		logger.Error("Failed to update job state", "jobId", job.Id, "err", err)
	}
	return job
}
