// Package mcpserver exposes the assistant's tools to external agents over the
// Model Context Protocol.
package mcpserver

import (
	"context"
	"errors"

	"github.com/akolanti/uniassist/internal/agent"
	"github.com/akolanti/uniassist/pkg/logger_i"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	Name    = "uniassist"
	Version = "1.0.0"
)

var ErrMissingInvoker = errors.New("mcpserver: invoker is required")

// Invoker runs a typed tool invocation; agent.Toolbox implements it.
type Invoker interface {
	Invoke(ctx context.Context, inv agent.Invocation) (string, error)
}

type Server struct {
	invoker Invoker
	server  *mcp.Server
	logger  *logger_i.Logger
}

func NewServer(invoker Invoker) (*Server, error) {
	if invoker == nil {
		return nil, ErrMissingInvoker
	}
	s := &Server{
		invoker: invoker,
		server:  mcp.NewServer(&mcp.Implementation{Name: Name, Version: Version}, nil),
		logger:  logger_i.NewLogger("mcp"),
	}
	s.registerTools()
	return s, nil
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("MCP server running on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	descriptions := make(map[string]string)
	for _, spec := range agent.Specs() {
		descriptions[spec.Name] = spec.Description
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        agent.ToolNameIngest,
		Description: descriptions[agent.ToolNameIngest],
	}, s.handleIngest)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        agent.ToolNameRetrieve,
		Description: descriptions[agent.ToolNameRetrieve],
	}, s.handleRetrieve)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        agent.ToolNameListDocuments,
		Description: descriptions[agent.ToolNameListDocuments],
	}, s.handleListDocuments)
}

func (s *Server) handleIngest(ctx context.Context, _ *mcp.CallToolRequest, in agent.IngestArgs) (*mcp.CallToolResult, any, error) {
	return s.invoke(ctx, agent.Invocation{Kind: agent.ToolIngest, Ingest: in})
}

func (s *Server) handleRetrieve(ctx context.Context, _ *mcp.CallToolRequest, in agent.RetrieveArgs) (*mcp.CallToolResult, any, error) {
	return s.invoke(ctx, agent.Invocation{Kind: agent.ToolRetrieve, Retrieve: in})
}

func (s *Server) handleListDocuments(ctx context.Context, _ *mcp.CallToolRequest, in agent.ListDocumentsArgs) (*mcp.CallToolResult, any, error) {
	return s.invoke(ctx, agent.Invocation{Kind: agent.ToolListDocuments, List: in})
}

// invoke returns recoverable failures as text, like the agent loop does; only
// fatal errors become MCP tool errors.
func (s *Server) invoke(ctx context.Context, inv agent.Invocation) (*mcp.CallToolResult, any, error) {
	log := s.logger.With("tool", inv.Kind.String())
	out, err := s.invoker.Invoke(ctx, inv)
	if err != nil {
		log.Error("tool failed", "err", err)
		return nil, nil, err
	}
	log.Debug("tool done", "bytes", len(out))
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: out}}}, nil, nil
}
