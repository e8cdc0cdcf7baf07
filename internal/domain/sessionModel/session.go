package sessionModel

import (
	"context"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleToolCall is the model asking for a tool; RoleTool carries the tool's answer.
	RoleToolCall Role = "tool_call"
	RoleTool     Role = "tool"
)

// ToolCall is a structured request from the completion provider.
type ToolCall struct {
	Id   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type Turn struct {
	Role     Role      `json:"role"`
	Content  string    `json:"content,omitempty"`
	ToolCall *ToolCall `json:"tool_call,omitempty"`
	ToolName string    `json:"tool_name,omitempty"`
	ToolId   string    `json:"tool_id,omitempty"`
	At       time.Time `json:"at"`
}

// Store keeps conversation sessions. Sessions are created lazily and only
// grow; a session is mutated by the single request that owns it.
type Store interface {
	GetOrCreate(ctx context.Context, sessionId string) error
	Append(ctx context.Context, sessionId string, turns ...Turn) error
	History(ctx context.Context, sessionId string) ([]Turn, error)
}
