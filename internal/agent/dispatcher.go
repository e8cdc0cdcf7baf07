// Package agent runs the tool-using conversation loop: the model either
// answers or asks for one tool, the tool's text output is fed back, and the
// loop stops on an answer, on the iteration cap or on a fatal error.
package agent

import (
	"context"
	"strings"
	"time"

	"github.com/akolanti/uniassist/internal/config"
	"github.com/akolanti/uniassist/internal/domain/sessionModel"
	"github.com/akolanti/uniassist/internal/metrics"
	"github.com/akolanti/uniassist/internal/rag/llm"
	"github.com/akolanti/uniassist/pkg/logger_i"
)

var logger = logger_i.NewLogger("Agent Loop")

type Status string

const (
	StatusAnswered   Status = "answered"
	StatusIncomplete Status = "incomplete"
	StatusFailed     Status = "failed"
)

// Outcome is the terminal state of a Run. Callers switch on Status; Answer is
// always a displayable text.
type Outcome struct {
	Status     Status   `json:"status"`
	Answer     string   `json:"answer"`
	Iterations int      `json:"iterations"`
	Tools      []string `json:"tools,omitempty"`
}

type Config struct {
	MaxIterations     int
	CompletionTimeout time.Duration
	ToolTimeout       time.Duration
	System            string
}

func (c *Config) applyDefaults() {
	if c.MaxIterations <= 0 {
		c.MaxIterations = config.MaxAgentIterations
	}
	if c.CompletionTimeout <= 0 {
		c.CompletionTimeout = config.CompletionTimeout
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = config.ToolTimeout
	}
	if c.System == "" {
		c.System = SystemInstruction
	}
}

type ToolCaller interface {
	Call(ctx context.Context, call *sessionModel.ToolCall) (string, error)
}

type Dispatcher struct {
	cfg      Config
	provider llm.Provider
	tools    ToolCaller
	sessions sessionModel.Store
}

func NewDispatcher(cfg Config, provider llm.Provider, tools ToolCaller, sessions sessionModel.Store) *Dispatcher {
	cfg.applyDefaults()
	return &Dispatcher{cfg: cfg, provider: provider, tools: tools, sessions: sessions}
}

// Run answers one question within a session. A non-nil error comes with a
// StatusFailed outcome.
func (d *Dispatcher) Run(ctx context.Context, sessionID, question string) (Outcome, error) {
	if sessionID == "" {
		sessionID = config.DefaultSessionId
	}
	log := logger.WithTrace(ctx).With("session", sessionID)

	if err := d.sessions.GetOrCreate(ctx, sessionID); err != nil {
		return d.fail(log, err)
	}
	history, err := d.sessions.History(ctx, sessionID)
	if err != nil {
		return d.fail(log, err)
	}

	userTurn := sessionModel.Turn{Role: sessionModel.RoleUser, Content: question}
	conversation := append(history, userTurn)
	outcome := Outcome{}
	partial := ""

	for outcome.Iterations < d.cfg.MaxIterations {
		if err := ctx.Err(); err != nil {
			return d.fail(log, err)
		}
		outcome.Iterations++

		completion, err := d.complete(ctx, conversation)
		if err != nil {
			log.Error("completion failed", "iteration", outcome.Iterations, "error", err)
			outcome.Status = StatusFailed
			outcome.Answer = FailedAnswer
			d.persist(ctx, log, sessionID, userTurn, outcome.Answer)
			metrics.CaptureAgentOutcome(string(outcome.Status))
			return outcome, err
		}

		if completion.ToolCall == nil {
			outcome.Status = StatusAnswered
			outcome.Answer = completion.Text
			d.persist(ctx, log, sessionID, userTurn, outcome.Answer)
			metrics.CaptureAgentOutcome(string(outcome.Status))
			log.Info("question answered", "iterations", outcome.Iterations, "tools", len(outcome.Tools))
			return outcome, nil
		}
		if strings.TrimSpace(completion.Text) != "" {
			partial = completion.Text
		}

		call := completion.ToolCall
		outcome.Tools = append(outcome.Tools, call.Name)
		log.Debug("running tool", "tool", call.Name, "iteration", outcome.Iterations)

		output, err := d.callTool(ctx, call)
		if err != nil {
			log.Error("tool aborted the request", "tool", call.Name, "error", err)
			outcome.Status = StatusFailed
			outcome.Answer = FailedAnswer
			metrics.CaptureAgentOutcome(string(outcome.Status))
			return outcome, err
		}
		conversation = append(conversation,
			sessionModel.Turn{Role: sessionModel.RoleToolCall, ToolCall: call},
			sessionModel.Turn{Role: sessionModel.RoleTool, ToolId: call.Id, ToolName: call.Name, Content: output},
		)
	}

	outcome.Status = StatusIncomplete
	outcome.Answer = IncompleteAnswer
	if partial != "" {
		outcome.Answer = partial
	}
	log.Warn("iteration cap reached", "iterations", outcome.Iterations, "tools", outcome.Tools)
	d.persist(ctx, log, sessionID, userTurn, outcome.Answer)
	metrics.CaptureAgentOutcome(string(outcome.Status))
	return outcome, nil
}

func (d *Dispatcher) complete(ctx context.Context, conversation []sessionModel.Turn) (llm.Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.CompletionTimeout)
	defer cancel()
	return d.provider.Complete(ctx, llm.Request{
		System:       d.cfg.System,
		Conversation: conversation,
		Tools:        Specs(),
	})
}

func (d *Dispatcher) callTool(ctx context.Context, call *sessionModel.ToolCall) (string, error) {
	toolCtx, cancel := context.WithTimeout(ctx, d.cfg.ToolTimeout)
	defer cancel()
	output, err := d.tools.Call(toolCtx, call)
	if err != nil {
		return "", err
	}
	// the tool may have swallowed a cancellation of the whole request
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return output, nil
}

// persist records only the question and the answer; tool traffic stays in
// the running conversation.
func (d *Dispatcher) persist(ctx context.Context, log *logger_i.Logger, sessionID string, userTurn sessionModel.Turn, answer string) {
	err := d.sessions.Append(context.WithoutCancel(ctx), sessionID,
		userTurn,
		sessionModel.Turn{Role: sessionModel.RoleAssistant, Content: answer},
	)
	if err != nil {
		log.Error("saving session failed", "error", err)
	}
}

func (d *Dispatcher) fail(log *logger_i.Logger, err error) (Outcome, error) {
	log.Warn("request aborted", "error", err)
	metrics.CaptureAgentOutcome(string(StatusFailed))
	return Outcome{Status: StatusFailed, Answer: FailedAnswer}, err
}
