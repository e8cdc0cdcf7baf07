package api

import "time"

type JobExternalStatus string

const (
	JobStatusError JobExternalStatus = "Error"
)

type JobResponse struct {
	Id        string            `json:"id" example:"job_cz109"`
	ChatId    string            `json:"chat_id,omitempty" example:"chat_550"`
	Result    Result            `json:"result"`
	Error     *JobOutgoingError `json:"error,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Message string `json:"message" example:"Job not found"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type RAGResponse struct {
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Outcome    string   `json:"outcome" example:"answered"`
	Iterations int      `json:"iterations"`
	Tools      []string `json:"tools,omitempty"`
}

type IngestResponse struct {
	DocumentName string   `json:"document_name" example:"regulamento"`
	Status       string   `json:"status" example:"ingested"`
	ChunkCount   int      `json:"chunk_count" example:"42"`
	Warnings     []string `json:"warnings,omitempty"`
}

type Result struct {
	Status              string          `json:"status"`
	Step                string          `json:"step,omitempty"`
	RAGExternalResponse *RAGResponse    `json:"rag_response,omitempty"`
	IngestResponse      *IngestResponse `json:"ingest_response,omitempty"`
}

type InitJobResponse struct {
	Id        string `json:"id"`
	ChatId    string `json:"chat_id,omitempty"`
	StatusURL string `json:"status_url"`
}

type DocumentInfo struct {
	Name        string `json:"doc_name" example:"regulamento"`
	Status      string `json:"status" example:"processed"`
	ContentType string `json:"content_type,omitempty" example:"PDF"`
}

type DocumentsResponse struct {
	Documents []DocumentInfo `json:"documents"`
}

// requests---------------------

type ChatRequest struct {
	Message string `json:"message" validate:"required" `
	ChatID  string `json:"chatID,omitempty" `
}
type JobStatusRequest struct {
	JobId string `json:"job_id" validate:"required"`
}

type IngestDocumentRequest struct {
	DocumentName string `json:"document_name" validate:"required"`
	Force        bool   `json:"force,omitempty"`
}
