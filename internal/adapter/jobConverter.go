package adapter

import (
	"fmt"
	"time"

	"github.com/akolanti/uniassist/internal/api"
	"github.com/akolanti/uniassist/internal/domain/commonModels"
	"github.com/akolanti/uniassist/internal/domain/jobModel"
)

func ToInitJobResponse(id string, chatId string) api.InitJobResponse {
	return api.InitJobResponse{
		Id:        id,
		ChatId:    chatId,
		StatusURL: fmt.Sprintf("status/%s", id),
	}
}

func ToAPIResponse(job jobModel.Job) api.JobResponse {

	var errorPtr *api.JobOutgoingError
	if job.Error.Message != "" || job.Error.Code != 0 {
		errorPtr = &api.JobOutgoingError{
			Code:    job.Error.Code,
			Message: job.Error.Message,
			Retry:   job.Error.Retry,
		}
	}

	result := api.Result{
		Status: string(job.Status),
		Step:   string(job.CurrentStep),
	}
	if job.JobType == jobModel.JobTypeIngest {
		result.IngestResponse = ToIngestResponse(job.JobPayload)
	} else {
		result.RAGExternalResponse = ToRAGExternalStatus(job.JobPayload)
	}

	return api.JobResponse{
		Id:        job.Id,
		ChatId:    job.ChatId,
		StartTime: job.CreatedTime,
		EndTime:   job.EndTime,
		Error:     errorPtr,
		Result:    result,
	}
}

func ToRAGExternalStatus(ragData jobModel.JobPayload) *api.RAGResponse {
	if ragData.Answer == "" && ragData.Outcome == "" {
		return nil
	}

	return &api.RAGResponse{
		Question:   ragData.Question,
		Answer:     ragData.Answer,
		Outcome:    ragData.Outcome,
		Iterations: ragData.Iterations,
		Tools:      ragData.Tools,
	}
}

func ToIngestResponse(payload jobModel.JobPayload) *api.IngestResponse {
	if payload.IngestStatus == "" {
		return nil
	}
	return &api.IngestResponse{
		DocumentName: payload.DocumentName,
		Status:       payload.IngestStatus,
		ChunkCount:   payload.ChunkCount,
		Warnings:     payload.Warnings,
	}
}

func ToDocumentsResponse(docs []commonModels.Document) api.DocumentsResponse {
	out := api.DocumentsResponse{Documents: make([]api.DocumentInfo, 0, len(docs))}
	for _, doc := range docs {
		out.Documents = append(out.Documents, api.DocumentInfo{
			Name:        doc.Name,
			Status:      string(doc.Status),
			ContentType: string(doc.ContentType),
		})
	}
	return out
}

func BadRequest(id string, error string, code int) api.JobResponse {
	return api.JobResponse{
		Id:        id,
		ChatId:    "",
		StartTime: time.Time{},
		EndTime:   time.Time{},
		Result: api.Result{
			Status: string(api.JobStatusError),
		},
		Error: &api.JobOutgoingError{
			Code:    code,
			Message: error,
			Retry:   code == 429 || code >= 500,
		},
	}
}
