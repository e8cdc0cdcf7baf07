package rag

import (
	"context"
	"time"

	"github.com/akolanti/uniassist/internal/agent"
	"github.com/akolanti/uniassist/internal/domain/jobModel"
	"github.com/akolanti/uniassist/internal/metrics"
	"github.com/akolanti/uniassist/internal/rag/ingest"
	"github.com/akolanti/uniassist/pkg/logger_i"
)

// Service is the only thing the worker pool talks to. The agent loop and the
// ingestion pipeline stay behind it so workers can be tested with mocks.
type Service interface {
	ProcessRequest(ctx context.Context, job jobModel.Job) jobModel.Job
	IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job
}

// Asker answers one question inside a chat session.
type Asker interface {
	Run(ctx context.Context, sessionID, question string) (agent.Outcome, error)
}

type Ingester interface {
	Ingest(ctx context.Context, documentName string, opts ingest.Options) (*ingest.Result, error)
}

type service struct {
	asker    Asker
	ingester Ingester
	logger   *logger_i.Logger
}

func NewService(asker Asker, ingester Ingester) Service {
	return &service{
		asker:    asker,
		ingester: ingester,
		logger:   logger_i.NewLogger("RAG Service"),
	}
}

func (s *service) ProcessRequest(ctx context.Context, job jobModel.Job) jobModel.Job {
	log := s.logger.WithTrace(ctx).With("jobId", job.Id)
	job = logOutput(job, jobModel.AgentLoop, log)

	start := time.Now()
	outcome, err := s.asker.Run(ctx, job.ChatId, job.JobPayload.Question)
	metrics.CaptureExecutionMetrics("agent_loop", time.Since(start))

	job.JobPayload.Outcome = string(outcome.Status)
	job.JobPayload.Iterations = outcome.Iterations
	job.JobPayload.Tools = outcome.Tools
	if err != nil {
		job.JobPayload.Answer = outcome.Answer
		return s.jobError(job, err, "AGENT_LOOP_FAILURE")
	}
	return returnOutput(job, outcome.Answer)
}

func (s *service) IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job {
	log := s.logger.WithTrace(ctx).With("jobId", job.Id)
	job = logOutput(job, jobModel.IngestProcessing, log)

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("document_ingestion", time.Since(start)) }()

	result, err := s.ingester.Ingest(ctx, job.JobPayload.DocumentName, ingest.Options{Force: job.JobPayload.Force})
	if err != nil {
		return s.jobError(job, err, "INGESTION_FAILURE")
	}

	job.JobPayload.DocumentName = result.Document
	job.JobPayload.IngestStatus = string(result.Status)
	job.JobPayload.ChunkCount = result.ChunkCount
	job.JobPayload.Warnings = result.Warnings
	job.CurrentStep = jobModel.Complete
	return job
}
