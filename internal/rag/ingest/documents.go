package ingest

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/akolanti/uniassist/internal/domain/commonModels"
	"github.com/akolanti/uniassist/internal/domain/ragErrors"
	"github.com/akolanti/uniassist/internal/rag/extract"
)

// Library resolves document names against the documents root.
type Library struct {
	root string
}

func NewLibrary(root string) *Library {
	return &Library{root: root}
}

func (l *Library) Root() string { return l.root }

// Resolve finds the source for a document. An explicit extension is honoured
// first, then the known source types in order and finally a sidecar export.
func (l *Library) Resolve(name string) (string, error) {
	stem := extract.Stem(name)
	var candidates []string
	if ext := strings.ToLower(filepath.Ext(strings.TrimSpace(name))); extract.TypeOf(ext) != commonModels.ERR {
		candidates = append(candidates, filepath.Join(l.root, stem+ext))
	}
	for _, ext := range extract.SourceExtensions {
		candidates = append(candidates, filepath.Join(l.root, stem+ext))
	}
	candidates = append(candidates, extract.SidecarPath(l.root, stem))

	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, nil
		}
	}

	available, err := l.Available()
	if err != nil {
		return "", err
	}
	return "", &ragErrors.SourceNotFoundError{
		Document:  stem,
		Path:      filepath.Join(l.root, stem+".pdf"),
		Available: available,
	}
}

// Available lists the source file names in the root, sorted. A sidecar is
// listed only when no other source shares its stem.
func (l *Library) Available() ([]string, error) {
	sources, err := l.scan()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(sources))
	for _, path := range sources {
		names = append(names, filepath.Base(path))
	}
	sort.Strings(names)
	return names, nil
}

// scan maps each stem in the root to its preferred source path.
func (l *Library) scan() (map[string]string, error) {
	entries, err := os.ReadDir(l.root)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}

	rank := func(path string) int {
		ext := strings.ToLower(filepath.Ext(path))
		for i, e := range extract.SourceExtensions {
			if e == ext {
				return i
			}
		}
		return len(extract.SourceExtensions)
	}

	sources := make(map[string]string)
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if extract.TypeOf(entry.Name()) == commonModels.ERR {
			continue
		}
		path := filepath.Join(l.root, entry.Name())
		stem := extract.Stem(entry.Name())
		if current, ok := sources[stem]; !ok || rank(path) < rank(current) {
			sources[stem] = path
		}
	}
	return sources, nil
}

// Documents returns every known document: sources on disk and collections in
// the store, with their processing status.
func (p *Pipeline) Documents(ctx context.Context) ([]commonModels.Document, error) {
	sources, err := p.library.scan()
	if err != nil {
		return nil, err
	}
	collections, err := p.store.ListCollections(ctx)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]commonModels.Document, len(sources)+len(collections))
	for stem, path := range sources {
		byName[stem] = commonModels.Document{
			Name:        stem,
			SourcePath:  path,
			Status:      commonModels.Unprocessed,
			ContentType: extract.TypeOf(path),
		}
	}
	for _, name := range collections {
		doc := byName[name]
		doc.Name = name
		doc.Status = commonModels.Processed
		byName[name] = doc
	}

	docs := make([]commonModels.Document, 0, len(byName))
	for _, doc := range byName {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}
