package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/akolanti/uniassist/internal/adapter"
	"github.com/akolanti/uniassist/internal/adapter/utils"
	"github.com/akolanti/uniassist/internal/domain/jobModel"
)

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but can't send a clean status code now
		logRH.Error("Error encoding response", "err", err)
	}
}

func validateId(id string, traceId string) (result jobModel.Job, isFound bool) {
	if id == "" {
		logRH.Warn("Empty Job ID")
		return jobModel.Job{}, false
	}
	return GetJobStatus(id, traceId)
}

func validateContext(ctx context.Context) bool {
	if ctx.Err() != nil {
		logRH.With("traceId", utils.TraceID(ctx)).Warn("context error", "err", ctx.Err())
		return false
	}
	return true
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, id string, error string) {
	writeJsonResponse(w, httpCode, adapter.BadRequest(id, error, httpCode))
}

func queueJob(w http.ResponseWriter, request *http.Request, newJob newJobData) {
	newJob.id = utils.GetNewUUID()
	newJob.traceId = utils.TraceID(request.Context())
	CreateNewJob(newJob)
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newJob.id, newJob.chatId))
}
