package jobModel

import (
	"context"
	"time"
)

type JobStatus string
type InternalStatus string

type JobType string

const (
	JobStatusQueued   JobStatus = "QUEUED"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusComplete JobStatus = "COMPLETE"
	JobStatusError    JobStatus = "Error"

	UserQueryInit InternalStatus = "Init"
	AgentLoop     InternalStatus = "AgentLoop"

	IngestInit       InternalStatus = "IngestInit"
	IngestProcessing InternalStatus = "IngestProcessing"
	Error            InternalStatus = "Error"

	Complete InternalStatus = "Complete"

	JobTypeChat   JobType = "Chat"
	JobTypeIngest JobType = "Ingest"
)

type Job struct {
	Id          string         `json:"id"`
	ChatId      string         `json:"chat_id"`
	TraceId     string         `json:"trace_id"`
	JobType     JobType        `json:"job_type"`
	JobPayload  JobPayload     `json:"job_payload"`
	Error       JobError       `json:"error,omitempty"`
	CreatedTime time.Time      `json:"created_time"`
	EndTime     time.Time      `json:"end_time,omitempty"`
	Status      JobStatus      `json:"status"`
	CurrentStep InternalStatus `json:"current_step"`
}

type JobError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

type JobPayload struct {
	Question string `json:"question,omitempty"`
	Answer   string `json:"answer,omitempty"`
	// Outcome is the agent loop's terminal state: answered, incomplete or failed.
	Outcome    string   `json:"outcome,omitempty"`
	Iterations int      `json:"iterations,omitempty"`
	Tools      []string `json:"tools,omitempty"`

	DocumentName string   `json:"document_name,omitempty"`
	Force        bool     `json:"force,omitempty"`
	IngestStatus string   `json:"ingest_status,omitempty"`
	ChunkCount   int      `json:"chunk_count,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

type JobStore interface {
	GetJob(ctx context.Context, jobId string) (Job, bool)
	SaveJob(ctx context.Context, job Job) error
	DeleteJob(ctx context.Context, jobID string)
}
