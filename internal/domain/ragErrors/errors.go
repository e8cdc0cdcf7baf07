// Package ragErrors holds the error taxonomy shared by the pipeline, the
// retrieval service and the agent loop.
package ragErrors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoRelevantInformation is returned by retrieval when the store had no hit
// for the question. It is a signal, not a failure.
var ErrNoRelevantInformation = errors.New("no relevant information found")

// SourceNotFoundError means the requested document has no source file.
// Available lists the source files that do exist.
type SourceNotFoundError struct {
	Document  string
	Path      string
	Available []string
}

func (e *SourceNotFoundError) Error() string {
	available := "none"
	if len(e.Available) > 0 {
		available = strings.Join(e.Available, ", ")
	}
	return fmt.Sprintf("source not found for %q (%s); available: %s", e.Document, e.Path, available)
}

// NotFoundError is raised by extractors for a path that is not a regular file.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("file not found: %s", e.Path)
}

type EmbeddingServiceError struct {
	Provider    string
	Op          string
	RateLimited bool
	Err         error
}

func (e *EmbeddingServiceError) Error() string {
	msg := fmt.Sprintf("embedding service %s: %s failed", e.Provider, e.Op)
	if e.RateLimited {
		msg += " (rate limited)"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EmbeddingServiceError) Unwrap() error { return e.Err }

type CompletionServiceError struct {
	Provider string
	Err      error
}

func (e *CompletionServiceError) Error() string {
	return fmt.Sprintf("completion service %s failed: %v", e.Provider, e.Err)
}

func (e *CompletionServiceError) Unwrap() error { return e.Err }

// ShapeMismatchError is an invariant violation inside the pipeline. It is
// fatal to the request and never converted into a tool string.
type ShapeMismatchError struct {
	Collection string
	Reason     string
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch in collection %q: %s", e.Collection, e.Reason)
}

// NewLengthMismatch reports parallel arrays of different lengths.
func NewLengthMismatch(collection string, ids, vectors, texts, metadatas int) *ShapeMismatchError {
	return &ShapeMismatchError{
		Collection: collection,
		Reason:     fmt.Sprintf("ids=%d vectors=%d texts=%d metadatas=%d", ids, vectors, texts, metadatas),
	}
}

type StoreUnavailableError struct {
	Backend string
	Err     error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("vector store %s unavailable: %v", e.Backend, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

type CollectionNotFoundError struct {
	Collection string
}

func (e *CollectionNotFoundError) Error() string {
	return fmt.Sprintf("collection %q does not exist", e.Collection)
}

type InvalidParamsError struct {
	Reason string
}

func (e *InvalidParamsError) Error() string {
	return "invalid parameters: " + e.Reason
}

// IsFatal reports errors that must abort the whole request instead of being
// fed back to the model as a tool result.
func IsFatal(err error) bool {
	var shape *ShapeMismatchError
	var store *StoreUnavailableError
	return errors.As(err, &shape) || errors.As(err, &store)
}
