package rag_test

import (
	"context"

	"github.com/akolanti/uniassist/internal/agent"
	"github.com/akolanti/uniassist/internal/rag/ingest"
)

// MockAsker implements rag.Asker
type MockAsker struct {
	OnRun func(ctx context.Context, sessionID, question string) (agent.Outcome, error)
}

func (m *MockAsker) Run(ctx context.Context, sessionID, question string) (agent.Outcome, error) {
	if m.OnRun != nil {
		return m.OnRun(ctx, sessionID, question)
	}
	return agent.Outcome{Status: agent.StatusAnswered, Answer: "mocked answer", Iterations: 1}, nil
}

// MockIngester implements rag.Ingester
type MockIngester struct {
	OnIngest func(ctx context.Context, name string, opts ingest.Options) (*ingest.Result, error)
}

func (m *MockIngester) Ingest(ctx context.Context, name string, opts ingest.Options) (*ingest.Result, error) {
	if m.OnIngest != nil {
		return m.OnIngest(ctx, name, opts)
	}
	return &ingest.Result{Document: name, Status: ingest.StatusIngested, ChunkCount: 1}, nil
}
