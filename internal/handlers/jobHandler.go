package handlers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akolanti/uniassist/internal/api"
	"github.com/akolanti/uniassist/internal/config"
	"github.com/akolanti/uniassist/internal/domain/commonModels"
	"github.com/akolanti/uniassist/internal/domain/jobModel"
	"github.com/akolanti/uniassist/internal/job"
	"github.com/akolanti/uniassist/internal/metrics"
	"github.com/akolanti/uniassist/pkg/logger_i"
)

const maxChatIdLength = 128

var (
	handlerInstance *JobHandler //private singleton
	once            sync.Once
	logJH           = logger_i.NewLogger("JobHandler")
)

// DocumentCatalog lists the known documents and where uploads go.
type DocumentCatalog interface {
	Documents(ctx context.Context) ([]commonModels.Document, error)
}

type JobHandler struct {
	service       *job.Service
	catalog       DocumentCatalog
	documentsRoot string
}

func InitJobHandler(jobService *job.Service, catalog DocumentCatalog, documentsRoot string) {
	once.Do(func() {
		handlerInstance = &JobHandler{service: jobService, catalog: catalog, documentsRoot: documentsRoot}
		logJH.Info("Starting job handler", "documentsRoot", documentsRoot)
	})
}

func CreateNewJob(newJob newJobData) {
	logJH.With("traceId", newJob.traceId, "jobId", newJob.id).Info("To create new job", "ingest", newJob.isDocumentIngest)
	handlerInstance.pushToJobChannel(newJob)
}

func GetJobStatus(id string, traceId string) (result jobModel.Job, isFound bool) {
	ctxC := context.WithValue(context.Background(), config.TRACE_ID_KEY, traceId)
	if handlerInstance != nil {
		return handlerInstance.service.JobStore.GetJob(ctxC, id)
	}
	return result, false
}

// ValidateChatRequest accepts any chat id: sessions are created on first use.
func ValidateChatRequest(chatReq api.ChatRequest) bool {
	if handlerInstance == nil {
		return false
	}
	logJH.Debug("Validating chat request", "chatId", chatReq.ChatID)
	if chatReq.Message == "" {
		return false
	}
	return len(chatReq.ChatID) <= maxChatIdLength
}

// private methods
func (h *JobHandler) pushToJobChannel(newJob newJobData) {

	_job := jobModel.Job{}
	_job.Id = newJob.id
	_job.CreatedTime = time.Now()
	_job.TraceId = newJob.traceId
	_job.Status = jobModel.JobStatusQueued

	if newJob.isDocumentIngest {
		_job.CurrentStep = jobModel.IngestInit
		_job.JobType = jobModel.JobTypeIngest
		_job.JobPayload.DocumentName = newJob.documentName
		_job.JobPayload.Force = newJob.force
	} else {
		_job.JobType = jobModel.JobTypeChat
		_job.ChatId = newJob.chatId
		_job.JobPayload.Question = newJob.message
		_job.CurrentStep = jobModel.UserQueryInit
	}

	// status is readable before a worker picks the job up
	if err := h.service.JobStore.SaveJob(context.Background(), _job); err != nil {
		logJH.Error("Failed to save queued job", "jobId", _job.Id, "err", err)
	}

	metrics.IncrementJobsInQueue()

	h.service.JobChannel <- _job //this is a blocking send to prevent the system from being overwhelmed
	logJH.Info("Created new job", "jobId", _job.Id)

	//a new worker every RequestsPerNewWorkerCount requests, and one per ingestion
	//since ingestion is long and calls external services; idle workers retire
	accurateCount := atomic.AddInt64(&h.service.RequestCount, 1)
	if accurateCount%config.RequestsPerNewWorkerCount == 0 || _job.JobType == jobModel.JobTypeIngest {
		metrics.StartDispatcherSignalCount()
		logJH.Debug("Worker signal", "requestCount", accurateCount)
		select {
		case h.service.DispatcherChannel <- true:
		default:
			// a signal is already pending
		}
	}
}
