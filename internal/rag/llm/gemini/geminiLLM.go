package gemini

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/akolanti/uniassist/internal/config"
	"github.com/akolanti/uniassist/internal/customHttpClient"
	"github.com/akolanti/uniassist/internal/domain/ragErrors"
	"github.com/akolanti/uniassist/internal/domain/sessionModel"
	"github.com/akolanti/uniassist/internal/metrics"
	"github.com/akolanti/uniassist/internal/rag/llm"
	"github.com/akolanti/uniassist/pkg/logger_i"
	"google.golang.org/genai"
)

const providerName = "gemini"

const (
	roleUser  = "user"
	roleModel = "model"
)

// ContentGenerator is the slice of *genai.Models the provider needs.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

var (
	sharedClient *genai.Client
	sharedErr    error
	once         sync.Once
)

// GetGeminiClient returns the process wide genai client. Completions and
// embeddings share it.
func GetGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	once.Do(func() {
		sharedClient, sharedErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:     apiKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: customHttpClient.Shared(),
		})
		if sharedErr != nil {
			logger_i.NewLogger("llm_gemini").Error("Error creating Gemini client", "error", sharedErr)
		}
	})
	return sharedClient, sharedErr
}

type Options struct {
	Model string
	// Temperature is the sampling temperature; nil means ModelTemperature.
	Temperature *float32
}

type llmClient struct {
	models      ContentGenerator
	modelName   string
	temperature float32
	logger      *logger_i.Logger
}

func NewGeminiProvider(models ContentGenerator, opts Options) llm.Provider {
	if opts.Model == "" {
		opts.Model = config.GeminiModelName
	}
	temperature := config.ModelTemperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	logger := logger_i.NewLogger("llm_gemini")
	logger.Info("Gemini provider created", "model", opts.Model, "temperature", temperature)
	return &llmClient{models: models, modelName: opts.Model, temperature: temperature, logger: logger}
}

func (c *llmClient) Complete(ctx context.Context, req llm.Request) (llm.Completion, error) {
	log := c.logger.WithTrace(ctx)

	contentConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
		Tools:       toolDeclarations(req.Tools),
	}
	if req.System != "" {
		contentConfig.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}

	start := time.Now()
	result, err := c.models.GenerateContent(ctx, c.modelName, toContents(req.Conversation), contentConfig)
	metrics.CaptureExecutionMetrics("llm_completion", time.Since(start))
	if err != nil {
		log.Error("Gemini completion failed", "error", err)
		return llm.Completion{}, &ragErrors.CompletionServiceError{Provider: providerName, Err: err}
	}
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return llm.Completion{}, &ragErrors.CompletionServiceError{Provider: providerName, Err: errors.New("response has no candidates")}
	}

	if calls := result.FunctionCalls(); len(calls) > 0 {
		call := calls[0]
		if len(calls) > 1 {
			log.Warn("model asked for several tools, running the first", "tools", len(calls))
		}
		log.Debug("tool call", "tool", call.Name)
		return llm.Completion{
			Text:     candidateText(result.Candidates[0].Content),
			ToolCall: &sessionModel.ToolCall{Id: call.ID, Name: call.Name, Args: call.Args},
		}, nil
	}
	return llm.Completion{Text: result.Text()}, nil
}

// candidateText joins the plain text parts the model sent next to a call.
func candidateText(content *genai.Content) string {
	var texts []string
	for _, part := range content.Parts {
		if part == nil || part.Thought || part.FunctionCall != nil || part.Text == "" {
			continue
		}
		texts = append(texts, part.Text)
	}
	return strings.Join(texts, "")
}

// toContents maps the running conversation onto Gemini roles. Consecutive
// turns with the same role are merged into one content.
func toContents(turns []sessionModel.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		role, part := toPart(turn)
		if part == nil {
			continue
		}
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, part)
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{part}})
	}
	return contents
}

func toPart(turn sessionModel.Turn) (string, *genai.Part) {
	switch turn.Role {
	case sessionModel.RoleUser:
		return roleUser, &genai.Part{Text: turn.Content}
	case sessionModel.RoleAssistant:
		return roleModel, &genai.Part{Text: turn.Content}
	case sessionModel.RoleToolCall:
		if turn.ToolCall == nil {
			return "", nil
		}
		return roleModel, &genai.Part{FunctionCall: &genai.FunctionCall{
			ID:   turn.ToolCall.Id,
			Name: turn.ToolCall.Name,
			Args: turn.ToolCall.Args,
		}}
	case sessionModel.RoleTool:
		return roleUser, &genai.Part{FunctionResponse: &genai.FunctionResponse{
			ID:       turn.ToolId,
			Name:     turn.ToolName,
			Response: map[string]any{"output": turn.Content},
		}}
	default:
		return "", nil
	}
}

func toolDeclarations(specs []llm.ToolSpec) []*genai.Tool {
	if len(specs) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, spec := range specs {
		schema := &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}}
		for _, p := range spec.Params {
			schema.Properties[p.Name] = &genai.Schema{Type: schemaType(p.Type), Description: p.Description}
			if p.Required {
				schema.Required = append(schema.Required, p.Name)
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  schema,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func schemaType(t llm.ParamType) genai.Type {
	switch t {
	case llm.TypeInteger:
		return genai.TypeInteger
	case llm.TypeBoolean:
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}
