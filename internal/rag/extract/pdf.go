package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/akolanti/uniassist/internal/config"
	"github.com/akolanti/uniassist/internal/domain/commonModels"
	"github.com/dslipak/pdf"
)

var errPageTimeout = errors.New("page extraction timed out")

type PDFExtractor struct {
	pageTimeout time.Duration
}

// NewPDFExtractor bounds every page by pageTimeout; zero means the default.
func NewPDFExtractor(pageTimeout time.Duration) *PDFExtractor {
	if pageTimeout <= 0 {
		pageTimeout = config.PageExtractTimeout
	}
	return &PDFExtractor{pageTimeout: pageTimeout}
}

func (p *PDFExtractor) Extract(ctx context.Context, path string) (*Extraction, error) {
	log := logger.WithTrace(ctx).With("path", path)
	if err := checkRegularFile(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat pdf: %w", err)
	}
	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		log.Error("failed opening of pdf file", "error", err)
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}

	numPages := reader.NumPage()
	log.Debug("extracting pdf", "pages", numPages)
	result := &Extraction{Pages: make([]commonModels.PageRecord, 0, numPages)}
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		content, err := p.protectExtract(ctx, page)
		if err != nil {
			log.Warn("skipping unreadable page", "page", i, "error", err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("page %d skipped: %v", i, err))
			continue
		}

		result.Pages = append(result.Pages, commonModels.PageRecord{
			Index: i - 1,
			Text:  content,
		})
	}
	return result, nil
}

// protectExtract runs one page on its own goroutine so a pathological content
// stream cannot hang or crash the whole document.
func (p *PDFExtractor) protectExtract(ctx context.Context, page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resChan <- result{err: fmt.Errorf("malformed page: %v", r)}
			}
		}()
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()

	timer := time.NewTimer(p.pageTimeout)
	defer timer.Stop()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-timer.C:
		return "", errPageTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
