// Package llm is the completion provider boundary used by the agent loop.
package llm

import (
	"context"

	"github.com/akolanti/uniassist/internal/domain/sessionModel"
)

type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeBoolean ParamType = "boolean"
)

type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
}

// ToolSpec is one entry of the tool menu offered to the model.
type ToolSpec struct {
	Name        string
	Description string
	Params      []Param
}

type Request struct {
	System       string
	Conversation []sessionModel.Turn
	Tools        []ToolSpec
}

// Completion holds either a final Text or a ToolCall the caller must run.
type Completion struct {
	Text     string
	ToolCall *sessionModel.ToolCall
}

type Provider interface {
	Complete(ctx context.Context, req Request) (Completion, error)
}
