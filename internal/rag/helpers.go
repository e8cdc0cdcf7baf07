package rag

import (
	"context"
	"errors"
	"net/http"

	"github.com/akolanti/uniassist/internal/domain/jobModel"
	"github.com/akolanti/uniassist/internal/domain/ragErrors"
	"github.com/akolanti/uniassist/pkg/logger_i"
)

func returnOutput(job jobModel.Job, ans string) jobModel.Job {
	job.JobPayload.Answer = ans
	job.CurrentStep = jobModel.Complete
	return job
}

func logOutput(job jobModel.Job, status jobModel.InternalStatus, log *logger_i.Logger) jobModel.Job {
	job.CurrentStep = status
	log.Debug("ProcessRequest", "Current Status", job.CurrentStep)
	return job
}

func (s *service) jobError(job jobModel.Job, err error, message string) jobModel.Job {
	s.logger.Error(message, "jobId", job.Id, "error", err)

	job.Error = toJobError(err)
	job.Status = jobModel.JobStatusError
	job.CurrentStep = jobModel.Error
	return job
}

// toJobError maps the error taxonomy onto what the status endpoint reports.
func toJobError(err error) jobModel.JobError {
	var (
		notFound    *ragErrors.SourceNotFoundError
		invalid     *ragErrors.InvalidParamsError
		embedding   *ragErrors.EmbeddingServiceError
		completion  *ragErrors.CompletionServiceError
		unavailable *ragErrors.StoreUnavailableError
	)
	switch {
	case errors.As(err, &notFound):
		return jobModel.JobError{Code: http.StatusNotFound, Message: notFound.Error()}
	case errors.As(err, &invalid):
		return jobModel.JobError{Code: http.StatusBadRequest, Message: invalid.Error()}
	case errors.As(err, &embedding):
		if embedding.RateLimited {
			return jobModel.JobError{Code: http.StatusTooManyRequests, Message: "embedding provider rate limited", Retry: true}
		}
		return jobModel.JobError{Code: http.StatusBadGateway, Message: "embedding provider failed", Retry: true}
	case errors.As(err, &completion):
		return jobModel.JobError{Code: http.StatusBadGateway, Message: "completion provider failed", Retry: true}
	case errors.As(err, &unavailable):
		return jobModel.JobError{Code: http.StatusServiceUnavailable, Message: "vector store unavailable", Retry: true}
	case errors.Is(err, context.DeadlineExceeded):
		return jobModel.JobError{Code: http.StatusGatewayTimeout, Message: "job timed out", Retry: true}
	default:
		return jobModel.JobError{Code: http.StatusInternalServerError, Message: "Internal Server Error"}
	}
}
