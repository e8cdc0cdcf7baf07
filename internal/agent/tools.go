package agent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/akolanti/uniassist/internal/domain/commonModels"
	"github.com/akolanti/uniassist/internal/domain/ragErrors"
	"github.com/akolanti/uniassist/internal/domain/sessionModel"
	"github.com/akolanti/uniassist/internal/metrics"
	"github.com/akolanti/uniassist/internal/rag/ingest"
	"github.com/akolanti/uniassist/internal/rag/llm"
	"github.com/akolanti/uniassist/internal/rag/retrieve"
)

type ToolKind int

const (
	ToolUnknown ToolKind = iota
	ToolIngest
	ToolRetrieve
	ToolListDocuments
)

const (
	ToolNameIngest        = "ingest_document"
	ToolNameRetrieve      = "retrieve_context"
	ToolNameListDocuments = "list_documents"
)

func (k ToolKind) String() string {
	switch k {
	case ToolIngest:
		return ToolNameIngest
	case ToolRetrieve:
		return ToolNameRetrieve
	case ToolListDocuments:
		return ToolNameListDocuments
	default:
		return "unknown"
	}
}

type IngestArgs struct {
	DocumentName string `json:"document_name" jsonschema:"name of the document in the documents folder, with or without extension"`
	Force        bool   `json:"force,omitempty" jsonschema:"drop the existing collection and ingest again"`
}

type RetrieveArgs struct {
	Question     string `json:"question" jsonschema:"the question to search passages for"`
	DocumentName string `json:"document_name" jsonschema:"name of the document to search"`
	K            int    `json:"k,omitempty" jsonschema:"number of passages to return, default 5"`
}

type ListDocumentsArgs struct{}

// Invocation is a parsed tool call. Only the args field matching Kind is set.
type Invocation struct {
	Kind     ToolKind
	Id       string
	Ingest   IngestArgs
	Retrieve RetrieveArgs
	List     ListDocumentsArgs
}

// Specs is the tool menu offered to the model.
func Specs() []llm.ToolSpec {
	return []llm.ToolSpec{
		{
			Name:        ToolNameIngest,
			Description: "Processa um documento da pasta de documentos (extrai, divide em trechos e indexa). Use quando o documento ainda não foi processado.",
			Params: []llm.Param{
				{Name: "document_name", Type: llm.TypeString, Description: "Nome do documento, com ou sem extensão.", Required: true},
				{Name: "force", Type: llm.TypeBoolean, Description: "Reprocessa mesmo que já exista."},
			},
		},
		{
			Name:        ToolNameRetrieve,
			Description: "Busca no documento os trechos mais relevantes para a pergunta. Processa o documento automaticamente se necessário.",
			Params: []llm.Param{
				{Name: "question", Type: llm.TypeString, Description: "Pergunta ou termos de busca.", Required: true},
				{Name: "document_name", Type: llm.TypeString, Description: "Nome do documento a consultar.", Required: true},
				{Name: "k", Type: llm.TypeInteger, Description: "Quantidade de trechos (padrão 5)."},
			},
		},
		{
			Name:        ToolNameListDocuments,
			Description: "Lista os documentos disponíveis e se já foram processados.",
		},
	}
}

// ParseInvocation maps a model tool call onto a typed invocation.
func ParseInvocation(call *sessionModel.ToolCall) (Invocation, error) {
	if call == nil {
		return Invocation{}, &ragErrors.InvalidParamsError{Reason: "empty tool call"}
	}
	inv := Invocation{Id: call.Id}
	var err error
	switch call.Name {
	case ToolNameIngest:
		inv.Kind = ToolIngest
		if inv.Ingest.DocumentName, err = stringArg(call.Args, "document_name", true); err != nil {
			return inv, err
		}
		if inv.Ingest.Force, err = boolArg(call.Args, "force"); err != nil {
			return inv, err
		}
	case ToolNameRetrieve:
		inv.Kind = ToolRetrieve
		if inv.Retrieve.Question, err = stringArg(call.Args, "question", true); err != nil {
			return inv, err
		}
		if inv.Retrieve.DocumentName, err = stringArg(call.Args, "document_name", true); err != nil {
			return inv, err
		}
		if inv.Retrieve.K, err = intArg(call.Args, "k"); err != nil {
			return inv, err
		}
	case ToolNameListDocuments:
		inv.Kind = ToolListDocuments
	default:
		return inv, &ragErrors.InvalidParamsError{Reason: fmt.Sprintf("unknown tool %q", call.Name)}
	}
	return inv, nil
}

func stringArg(args map[string]any, name string, required bool) (string, error) {
	v, ok := args[name]
	if !ok || v == nil {
		if required {
			return "", &ragErrors.InvalidParamsError{Reason: fmt.Sprintf("missing argument %q", name)}
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &ragErrors.InvalidParamsError{Reason: fmt.Sprintf("argument %q must be a string", name)}
	}
	if required && strings.TrimSpace(s) == "" {
		return "", &ragErrors.InvalidParamsError{Reason: fmt.Sprintf("argument %q is empty", name)}
	}
	return s, nil
}

func boolArg(args map[string]any, name string) (bool, error) {
	switch v := args[name].(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, &ragErrors.InvalidParamsError{Reason: fmt.Sprintf("argument %q must be a boolean", name)}
		}
		return b, nil
	default:
		return false, &ragErrors.InvalidParamsError{Reason: fmt.Sprintf("argument %q must be a boolean", name)}
	}
}

// intArg accepts the numeric shapes JSON decoders produce.
func intArg(args map[string]any, name string) (int, error) {
	switch v := args[name].(type) {
	case nil:
		return 0, nil
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, &ragErrors.InvalidParamsError{Reason: fmt.Sprintf("argument %q must be an integer", name)}
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, &ragErrors.InvalidParamsError{Reason: fmt.Sprintf("argument %q must be an integer", name)}
		}
		return n, nil
	default:
		return 0, &ragErrors.InvalidParamsError{Reason: fmt.Sprintf("argument %q must be an integer", name)}
	}
}

type DocumentIngester interface {
	Ingest(ctx context.Context, documentName string, opts ingest.Options) (*ingest.Result, error)
	Documents(ctx context.Context) ([]commonModels.Document, error)
}

type ContextRetriever interface {
	Retrieve(ctx context.Context, question, documentName string, k int) (*retrieve.Context, error)
}

// Toolbox runs parsed invocations against the pipeline and retrieval service.
type Toolbox struct {
	ingester  DocumentIngester
	retriever ContextRetriever
}

func NewToolbox(ingester DocumentIngester, retriever ContextRetriever) *Toolbox {
	return &Toolbox{ingester: ingester, retriever: retriever}
}

// Execute returns the tool output for the model. Errors are returned as is;
// Render turns the recoverable ones into text.
func (t *Toolbox) Execute(ctx context.Context, inv Invocation) (string, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("tool_"+inv.Kind.String(), time.Since(start)) }()

	switch inv.Kind {
	case ToolIngest:
		result, err := t.ingester.Ingest(ctx, inv.Ingest.DocumentName, ingest.Options{Force: inv.Ingest.Force})
		if err != nil {
			return "", err
		}
		return formatIngest(result), nil
	case ToolRetrieve:
		rc, err := t.retriever.Retrieve(ctx, inv.Retrieve.Question, inv.Retrieve.DocumentName, inv.Retrieve.K)
		if err != nil {
			return "", err
		}
		return rc.Format(), nil
	case ToolListDocuments:
		docs, err := t.ingester.Documents(ctx)
		if err != nil {
			return "", err
		}
		return formatDocuments(docs), nil
	default:
		return "", &ragErrors.InvalidParamsError{Reason: fmt.Sprintf("unknown tool kind %d", inv.Kind)}
	}
}

// Call parses and executes a model tool call. The returned error is set only
// when the request must stop; everything else comes back as text.
func (t *Toolbox) Call(ctx context.Context, call *sessionModel.ToolCall) (string, error) {
	inv, err := ParseInvocation(call)
	if err != nil {
		name := "unknown"
		if call != nil {
			name = call.Name
		}
		metrics.CaptureToolCall(name, false)
		return Render(err), nil
	}
	return t.Invoke(ctx, inv)
}

// Invoke is Call for arguments that are already typed.
func (t *Toolbox) Invoke(ctx context.Context, inv Invocation) (string, error) {
	out, err := t.Execute(ctx, inv)
	metrics.CaptureToolCall(inv.Kind.String(), err == nil)
	if err == nil {
		return out, nil
	}
	if ragErrors.IsFatal(err) || errors.Is(err, context.Canceled) {
		return "", err
	}
	return Render(err), nil
}

// Render describes a tool error for the model.
func Render(err error) string {
	var notFound *ragErrors.SourceNotFoundError
	var invalid *ragErrors.InvalidParamsError
	var embed *ragErrors.EmbeddingServiceError
	var missing *ragErrors.CollectionNotFoundError
	switch {
	case errors.As(err, &notFound):
		available := "Nenhum"
		if len(notFound.Available) > 0 {
			available = strings.Join(notFound.Available, ", ")
		}
		return fmt.Sprintf("Documento não encontrado: %s. Arquivos disponíveis: %s", notFound.Document, available)
	case errors.Is(err, ragErrors.ErrNoRelevantInformation):
		return "Nenhuma informação relevante foi encontrada no documento para essa pergunta."
	case errors.As(err, &invalid):
		return "Parâmetros inválidos: " + invalid.Reason
	case errors.As(err, &missing):
		return fmt.Sprintf("O documento %s ainda não foi processado.", missing.Collection)
	case errors.As(err, &embed) && embed.RateLimited:
		return "O serviço de embeddings está sobrecarregado no momento. Tente novamente mais tarde."
	case errors.Is(err, context.DeadlineExceeded):
		return "A ferramenta excedeu o tempo limite."
	default:
		return "Erro ao executar a ferramenta: " + err.Error()
	}
}

func formatIngest(result *ingest.Result) string {
	var b strings.Builder
	switch result.Status {
	case ingest.StatusAlreadyProcessed:
		fmt.Fprintf(&b, "O documento %s já estava processado (%d trechos).", result.Document, result.ChunkCount)
	default:
		fmt.Fprintf(&b, "Documento %s processado com sucesso: %d trechos indexados.", result.Document, result.ChunkCount)
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintf(&b, " Avisos: %s", strings.Join(result.Warnings, "; "))
	}
	return b.String()
}

func formatDocuments(docs []commonModels.Document) string {
	if len(docs) == 0 {
		return "Documentos disponíveis: Nenhum"
	}
	var b strings.Builder
	b.WriteString("Documentos disponíveis:")
	for _, doc := range docs {
		status := "não processado"
		if doc.Status == commonModels.Processed {
			status = "processado"
		}
		fmt.Fprintf(&b, "\n- %s (%s)", doc.Name, status)
	}
	return b.String()
}
