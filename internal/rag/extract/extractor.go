// Package extract turns source documents into page records.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/akolanti/uniassist/internal/domain/commonModels"
	"github.com/akolanti/uniassist/internal/domain/ragErrors"
	"github.com/akolanti/uniassist/pkg/logger_i"
)

var logger = logger_i.NewLogger("Extractor")

// Extraction is the output of one extractor run. Warnings carry problems that
// did not stop the extraction, such as a skipped page or an unwritten sidecar.
type Extraction struct {
	Pages     []commonModels.PageRecord
	Warnings  []string
	FromCache bool
}

type Extractor interface {
	Extract(ctx context.Context, path string) (*Extraction, error)
}

// Forgetter is implemented by caching extractors.
type Forgetter interface {
	Forget(document string) error
}

// SourceExtensions lists the extensions accepted as document sources, in
// resolution order.
var SourceExtensions = []string{".pdf", ".docx", ".odt", ".rtf", ".txt"}

// SidecarExtension marks a previously exported extraction.
const SidecarExtension = ".json"

// Stem normalizes a document name: no directories, no extension, trimmed.
func Stem(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	ext := filepath.Ext(base)
	if isKnownExtension(ext) {
		base = strings.TrimSuffix(base, ext)
	}
	return strings.TrimSpace(base)
}

func isKnownExtension(ext string) bool {
	ext = strings.ToLower(ext)
	if ext == SidecarExtension {
		return true
	}
	for _, e := range SourceExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

func TypeOf(path string) commonModels.DocType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return commonModels.PDF
	case ".docx", ".odt", ".rtf":
		return commonModels.DOCX
	case ".txt":
		return commonModels.TXT
	case SidecarExtension:
		return commonModels.JSON
	default:
		return commonModels.ERR
	}
}

// Router dispatches on the file extension.
type Router struct {
	PDF    Extractor
	Office Extractor
}

func NewRouter() *Router {
	return &Router{
		PDF:    NewPDFExtractor(0),
		Office: NewOfficeExtractor(),
	}
}

func (r *Router) Extract(ctx context.Context, path string) (*Extraction, error) {
	switch TypeOf(path) {
	case commonModels.PDF:
		return r.PDF.Extract(ctx, path)
	case commonModels.DOCX, commonModels.TXT:
		return r.Office.Extract(ctx, path)
	case commonModels.JSON:
		if err := checkRegularFile(path); err != nil {
			return nil, err
		}
		record, err := readSidecar(path)
		if err != nil {
			return nil, err
		}
		return &Extraction{Pages: record.Pages, FromCache: true}, nil
	default:
		return nil, fmt.Errorf("unsupported document type: %s", filepath.Ext(path))
	}
}

func checkRegularFile(path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return &ragErrors.NotFoundError{Path: path}
	}
	return nil
}
