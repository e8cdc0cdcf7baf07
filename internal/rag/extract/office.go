package extract

import (
	"context"
	"fmt"
	"os"

	"github.com/akolanti/uniassist/internal/domain/commonModels"
	"github.com/lu4p/cat"
)

// OfficeExtractor reads .docx, .odt, .rtf and plain text. These formats carry
// no reliable page boundaries so the whole text becomes page 0.
type OfficeExtractor struct{}

func NewOfficeExtractor() *OfficeExtractor {
	return &OfficeExtractor{}
}

func (o *OfficeExtractor) Extract(ctx context.Context, path string) (*Extraction, error) {
	if err := checkRegularFile(path); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var text string
	var err error
	if TypeOf(path) == commonModels.TXT {
		var data []byte
		data, err = os.ReadFile(path)
		text = string(data)
	} else {
		text, err = cat.File(path)
	}
	if err != nil {
		logger.WithTrace(ctx).Error("Error extracting content from doc", "path", path, "error", err)
		return nil, fmt.Errorf("failed to extract %s: %w", path, err)
	}
	return &Extraction{
		Pages: []commonModels.PageRecord{{Index: 0, Text: text}},
	}, nil
}
