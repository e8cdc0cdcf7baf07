package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/akolanti/uniassist/internal/domain/commonModels"
)

// SidecarRecord is the JSON export written next to a source document.
type SidecarRecord struct {
	Document    string                    `json:"document"`
	Source      string                    `json:"source"`
	ExtractedAt time.Time                 `json:"extracted_at"`
	Pages       []commonModels.PageRecord `json:"pages"`
}

// SidecarCache wraps an extractor with a `<dir>/<stem>.json` export. An
// existing sidecar is trusted as-is; there is no staleness check against the
// source file.
type SidecarCache struct {
	inner Extractor
	dir   string
	now   func() time.Time
}

func NewSidecarCache(inner Extractor, dir string) *SidecarCache {
	return &SidecarCache{inner: inner, dir: dir, now: time.Now}
}

// Forget removes the export for document so the next Extract reads the
// source again. A missing export is not an error.
func (c *SidecarCache) Forget(document string) error {
	err := os.Remove(SidecarPath(c.dir, document))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// SidecarPath is where the export for a document lives.
func SidecarPath(dir, document string) string {
	return filepath.Join(dir, Stem(document)+SidecarExtension)
}

func (c *SidecarCache) Extract(ctx context.Context, path string) (*Extraction, error) {
	log := logger.WithTrace(ctx).With("path", path)
	stem := Stem(path)
	sidecar := SidecarPath(c.dir, stem)

	var warnings []string
	record, err := readSidecar(sidecar)
	switch {
	case err == nil:
		log.Debug("using extraction sidecar", "sidecar", sidecar, "pages", len(record.Pages))
		return &Extraction{Pages: record.Pages, FromCache: true}, nil
	case errors.Is(err, fs.ErrNotExist):
	default:
		log.Warn("ignoring unreadable sidecar", "sidecar", sidecar, "error", err)
		warnings = append(warnings, fmt.Sprintf("sidecar %s ignored: %v", sidecar, err))
	}

	result, err := c.inner.Extract(ctx, path)
	if err != nil {
		return nil, err
	}
	result.Warnings = append(warnings, result.Warnings...)

	export := SidecarRecord{
		Document:    stem,
		Source:      filepath.Base(path),
		ExtractedAt: c.now().UTC(),
		Pages:       result.Pages,
	}
	if err := writeSidecar(sidecar, export); err != nil {
		log.Warn("sidecar not written", "sidecar", sidecar, "error", err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("sidecar %s not written: %v", sidecar, err))
	}
	return result, nil
}

func readSidecar(path string) (*SidecarRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var record SidecarRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decoding sidecar: %w", err)
	}
	return &record, nil
}

// writeSidecar goes through a temp file so readers never see a partial export.
func writeSidecar(path string, record SidecarRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".sidecar-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
